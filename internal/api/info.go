package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

// Version is the API version reported by /health and /api/v1/info.
const Version = "0.1.0"

type InfoHandler struct {
	dataDir string
	dbOK    bool
	layers  int
}

func NewInfoHandler(dataDir string, dbOK bool, layers int) *InfoHandler {
	return &InfoHandler{dataDir: dataDir, dbOK: dbOK, layers: layers}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name     string   `json:"name" doc:"Service name"`
	Version  string   `json:"version" doc:"Service version"`
	DataDir  string   `json:"data_dir" doc:"Data directory path"`
	DB       bool     `json:"db" doc:"Whether database is available"`
	Layers   int      `json:"layers" doc:"Number of catalog layers"`
	Features []string `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	features := []string{"mapview", "datastar-sse", "metrics"}
	if h.dbOK {
		features = append(features, "duckdb", "simulation")
	}
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:     "plat-forest",
		Version:  Version,
		DataDir:  h.dataDir,
		DB:       h.dbOK,
		Layers:   h.layers,
		Features: features,
	}}, nil
}
