// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"database/sql"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-forest/internal/db"
	"github.com/joeblew999/plat-forest/internal/mapview"
	"github.com/joeblew999/plat-forest/internal/service"
)

// Services holds the service dependencies for API handlers. Store and DB
// are nil when the database is unavailable.
type Services struct {
	View  *service.ViewHost
	Store *db.Store
	DB    *sql.DB
}

// Types

type IDInput struct {
	ID string `path:"id" doc:"Layer ID" example:"tree-loss"`
}

type LayerOutput struct {
	Body mapview.LayerDefinition
}

type LayersOutput struct {
	Body []mapview.LayerDefinition
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterRoutes registers every API route on api.
func RegisterRoutes(api huma.API, svc *Services, info *InfoHandler) {
	huma.AutoRegister(api, NewAPIHandler(svc))
	if info != nil {
		info.RegisterRoutes(api)
	}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterLayers registers catalog routes.
func (h *APIHandler) RegisterLayers(api huma.API) {
	huma.Get(api, "/api/v1/layers", h.GetLayers, huma.OperationTags("layers"))
	huma.Get(api, "/api/v1/layers/{id}", h.GetLayer, huma.OperationTags("layers"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: Version}}, nil
}

func (h *APIHandler) GetLayers(ctx context.Context, input *struct{}) (*LayersOutput, error) {
	if h.svc == nil || h.svc.View == nil {
		return &LayersOutput{Body: []mapview.LayerDefinition{}}, nil
	}
	return &LayersOutput{Body: h.svc.View.Catalog().Definitions()}, nil
}

func (h *APIHandler) GetLayer(ctx context.Context, input *IDInput) (*LayerOutput, error) {
	if h.svc == nil || h.svc.View == nil {
		return nil, huma.Error404NotFound("service not available")
	}
	def, err := h.svc.View.Catalog().Lookup(input.ID)
	if err != nil {
		return nil, toHumaError(err)
	}
	return &LayerOutput{Body: def}, nil
}
