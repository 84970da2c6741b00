package server

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/joeblew999/plat-forest/internal/api"
	"github.com/joeblew999/plat-forest/internal/db"
	"github.com/joeblew999/plat-forest/internal/mapview"
	"github.com/joeblew999/plat-forest/internal/metrics"
	"github.com/joeblew999/plat-forest/internal/service"
)

// Config holds the server configuration.
type Config struct {
	Host    string
	Port    string
	DataDir string

	// CatalogFile is a YAML layer catalog; empty uses the built-in layers.
	CatalogFile string
	// BaseLayers are attached to every view at mount.
	BaseLayers    []mapview.TileLayer
	Fit           mapview.FitOptions
	FrameInterval time.Duration
	// NoDB skips opening DuckDB; country routes then answer 503.
	NoDB bool

	Logger zerolog.Logger
	Clock  clockwork.Clock
}

// DefaultBaseLayers returns the basemap and label tiles under every view.
func DefaultBaseLayers(basemapURL, labelsURL string) []mapview.TileLayer {
	var out []mapview.TileLayer
	if basemapURL != "" {
		out = append(out, mapview.TileLayer{Name: "basemap", URL: basemapURL, Opacity: 1, MaxZoom: 19, Base: true})
	}
	if labelsURL != "" {
		out = append(out, mapview.TileLayer{Name: "labels", URL: labelsURL, Opacity: 1, MaxZoom: 19, Base: true})
	}
	return out
}

// Server is the forest dashboard HTTP server.
type Server struct {
	config   Config
	log      zerolog.Logger
	mux      *http.ServeMux
	handler  http.Handler
	humaAPI  huma.API
	db       *sql.DB
	metrics  *metrics.Metrics
	services *api.Services
}

// New creates a new forest server.
func New(cfg Config) (*Server, error) {
	catalog, err := service.LoadCatalog(cfg.CatalogFile)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()

	humaConfig := huma.DefaultConfig("plat-forest API", api.Version)
	humaConfig.Info.Description = "Forest loss dashboard API: map view layers, country boundaries, loss history and projections."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, api.Transformers()...)

	humaAPI := humago.New(mux, humaConfig)

	s := &Server{
		config:  cfg,
		log:     cfg.Logger.With().Str("component", "server").Logger(),
		mux:     mux,
		humaAPI: humaAPI,
		metrics: metrics.New(),
	}

	if !cfg.NoDB {
		conn, err := db.Get(db.Config{DataDir: cfg.DataDir, DBName: "forest"})
		if err != nil {
			s.log.Warn().Err(err).Msg("database unavailable, country routes disabled")
		} else {
			s.db = conn
		}
	}

	s.services = &api.Services{DB: s.db}
	var countries service.CountrySource
	if s.db != nil {
		s.services.Store = db.NewStore(s.db)
		countries = s.services.Store
	}
	s.services.View = service.NewViewHost(service.ViewConfig{
		Catalog:       catalog,
		Base:          cfg.BaseLayers,
		Fit:           cfg.Fit,
		FrameInterval: cfg.FrameInterval,
		Clock:         cfg.Clock,
		Logger:        cfg.Logger,
		Metrics:       s.metrics,
		Countries:     countries,
	})

	s.routes()
	s.handler = middleware.RequestID(middleware.Recoverer(s.metrics.Middleware(s.accessLog(mux))))
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// OpenAPI returns the API description.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Services returns the services behind the API.
func (s *Server) Services() *api.Services {
	return s.services
}

// Close tears down the map view and closes the database.
func (s *Server) Close() error {
	err := s.services.View.Close()
	if s.db != nil {
		if cerr := db.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (s *Server) routes() {
	api.RegisterRoutes(s.humaAPI, s.services,
		api.NewInfoHandler(s.config.DataDir, s.db != nil, s.services.View.Catalog().Len()))

	s.mux.Handle("GET /metrics", s.metrics.Handler())
	s.mux.HandleFunc("GET /viewer", s.handleViewer)
	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("http_request")
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service": "plat-forest",
		"status":  "running",
		"viewer":  "/viewer",
		"docs":    "/docs",
	})
}

func (s *Server) handleViewer(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(viewerPage)
}
