package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
	"github.com/rs/zerolog"

	"github.com/joeblew999/plat-forest/internal/db"
	"github.com/joeblew999/plat-forest/internal/mapview"
	"github.com/joeblew999/plat-forest/internal/metrics"
)

var (
	// ErrNoView is returned by operations that need a mounted view.
	ErrNoView = errors.New("no map view mounted")
	// ErrMalformedJSON is returned when a geometry document is not JSON at all.
	ErrMalformedJSON = errors.New("malformed json")
)

// CountrySource looks up a stored country.
type CountrySource interface {
	Country(ctx context.Context, iso string) (db.Country, error)
}

// ViewConfig configures a ViewHost.
type ViewConfig struct {
	Catalog       *mapview.Catalog
	Base          []mapview.TileLayer
	Fit           mapview.FitOptions
	FrameInterval time.Duration
	Clock         clockwork.Clock
	Logger        zerolog.Logger
	Metrics       *metrics.Metrics
	Bus           *EventBus
	Countries     CountrySource
}

// ViewStatus is what the host wants shown and what the view holds.
type ViewStatus struct {
	Mounted    bool                `json:"mounted"`
	Generation uint64              `json:"generation"`
	Desired    []string            `json:"desired"`
	Context    mapview.ViewContext `json:"context"`
	Boundary   bool                `json:"boundary" doc:"Whether a boundary geometry is wanted"`
	State      string              `json:"state" enum:"none,uninitialized,active,disposed"`
	Layers     []string            `json:"layers" doc:"Overlays currently attached"`
	Pending    bool                `json:"pending" doc:"Whether updates await the next frame"`
	LastError  string              `json:"lastError,omitempty"`
}

// ViewHost owns the single map view. It remembers the wanted layers,
// boundary and context across mounts, so a page that reconnects gets the
// same view back. All calls are serialised.
type ViewHost struct {
	mu   sync.Mutex
	cfg  ViewConfig
	log  zerolog.Logger
	ctrl *mapview.Controller
	gen  uint64

	desired  []string
	geometry orb.Geometry
	vc       mapview.ViewContext
}

// NewViewHost creates a host with nothing mounted.
func NewViewHost(cfg ViewConfig) *ViewHost {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Bus == nil {
		cfg.Bus = NewEventBus()
	}
	return &ViewHost{cfg: cfg, log: cfg.Logger.With().Str("component", "viewhost").Logger()}
}

// Catalog returns the layer catalog views are built from.
func (h *ViewHost) Catalog() *mapview.Catalog {
	return h.cfg.Catalog
}

// Bus returns the bus view events are published on.
func (h *ViewHost) Bus() *EventBus {
	return h.cfg.Bus
}

// Mount builds a view on engine and applies the remembered state to it.
// A view that is already mounted is torn down first. The returned
// generation identifies this mount for Unmount.
func (h *ViewHost) Mount(engine mapview.Engine, container string) (uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.ctrl != nil {
		h.log.Warn().Uint64("generation", h.gen).Msg("replacing mounted view")
		h.teardownLocked()
	}

	h.gen++
	gen := h.gen
	var obs mapview.Observer
	if h.cfg.Metrics != nil {
		obs = h.cfg.Metrics
	}
	bus := h.cfg.Bus
	ctrl := mapview.NewController(
		mapview.NewSession(engine, h.cfg.Base...),
		h.cfg.Catalog,
		mapview.Options{
			Fit:           h.cfg.Fit,
			FrameInterval: h.cfg.FrameInterval,
			Clock:         h.cfg.Clock,
			Logger:        h.cfg.Logger.With().Uint64("generation", gen).Logger(),
			Observer:      obs,
			OnFlush: func(res mapview.FlushResult) {
				ev := Event{Kind: EventReconciled, Generation: gen, Report: res.Report, Context: res.Context}
				if res.Fit != nil {
					ev.Boundary = string(res.Fit.Outcome)
				}
				bus.Publish(ev)
			},
		},
	)
	ctrl.SetDesiredLayers(h.desired...)
	ctrl.SetGeometry(h.geometry)
	ctrl.SetContext(h.vc.CountryISO, h.vc.Year)

	if err := ctrl.Mount(container); err != nil {
		_ = ctrl.Teardown()
		return 0, fmt.Errorf("mounting view: %w", err)
	}
	h.ctrl = ctrl
	h.cfg.Metrics.IncMount()
	bus.Publish(Event{Kind: EventMounted, Generation: gen, Context: h.vc})
	return gen, nil
}

// Unmount tears down the view mounted as gen. A stale generation, left
// over from a view that was already replaced, is ignored.
func (h *ViewHost) Unmount(gen uint64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ctrl == nil || gen != h.gen {
		return nil
	}
	return h.teardownLocked()
}

// Close tears down whatever view is mounted.
func (h *ViewHost) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ctrl == nil {
		return nil
	}
	return h.teardownLocked()
}

func (h *ViewHost) teardownLocked() error {
	err := h.ctrl.Teardown()
	h.ctrl = nil
	h.cfg.Bus.Publish(Event{Kind: EventUnmounted, Generation: h.gen})
	if err != nil {
		h.log.Error().Err(err).Uint64("generation", h.gen).Msg("view teardown incomplete")
	}
	return err
}

// SetLayers records the overlays to show.
func (h *ViewHost) SetLayers(ids []string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.desired = append([]string(nil), ids...)
	if h.ctrl == nil {
		return nil
	}
	h.ctrl.SetDesiredLayers(ids...)
	return h.cycleLocked()
}

// SetGeometry records the boundary to draw; nil clears it.
func (h *ViewHost) SetGeometry(g orb.Geometry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.geometry = g
	if h.ctrl == nil {
		return nil
	}
	h.ctrl.SetGeometry(g)
	return h.cycleLocked()
}

// SetGeoJSON decodes a GeoJSON geometry document and shows it as the
// boundary. A JSON document that is not usable GeoJSON clears the boundary.
func (h *ViewHost) SetGeoJSON(data []byte) error {
	g, err := mapview.ParseGeometry(data)
	if err != nil {
		if !json.Valid(data) {
			return fmt.Errorf("%w: %v", ErrMalformedJSON, err)
		}
		h.log.Info().Err(err).Msg("unusable geojson, clearing boundary")
		g = nil
	}
	return h.SetGeometry(g)
}

// SetContext records the country and year shown.
func (h *ViewHost) SetContext(iso string, year int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.vc = mapview.ViewContext{CountryISO: strings.ToUpper(strings.TrimSpace(iso)), Year: year}
	if h.ctrl == nil {
		return nil
	}
	h.ctrl.SetContext(h.vc.CountryISO, h.vc.Year)
	return h.cycleLocked()
}

// SelectCountry switches the view to a stored country: its boundary and
// context change together in one update.
func (h *ViewHost) SelectCountry(ctx context.Context, iso string, year int) (db.Country, error) {
	if h.cfg.Countries == nil {
		return db.Country{}, fmt.Errorf("country lookup not configured")
	}
	c, err := h.cfg.Countries.Country(ctx, iso)
	if err != nil {
		return db.Country{}, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.vc = mapview.ViewContext{CountryISO: c.ISO, Year: year}
	h.geometry = c.Geometry
	if h.ctrl == nil {
		return c, nil
	}
	h.ctrl.SetContext(c.ISO, year)
	h.ctrl.SetGeometry(c.Geometry)
	return c, h.cycleLocked()
}

// Flush applies pending updates now.
func (h *ViewHost) Flush() (mapview.FlushResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ctrl == nil {
		return mapview.FlushResult{}, ErrNoView
	}
	return h.ctrl.Flush()
}

// cycleLocked ends an update cycle when no frame timer does it.
func (h *ViewHost) cycleLocked() error {
	if h.cfg.FrameInterval > 0 {
		return nil
	}
	_, err := h.ctrl.Flush()
	return err
}

// Status reports the wanted and applied view state.
func (h *ViewHost) Status() ViewStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	st := ViewStatus{
		Generation: h.gen,
		Desired:    mapview.NewLayerSet(h.desired...).Sorted(),
		Context:    h.vc,
		Boundary:   h.geometry != nil,
		State:      "none",
		Layers:     []string{},
	}
	if h.ctrl == nil {
		return st
	}
	snap := h.ctrl.Applied()
	st.Mounted = snap.State == mapview.StateActive
	st.State = snap.State.String()
	st.Layers = snap.Layers
	st.Pending = snap.Pending
	if err := h.ctrl.LastError(); err != nil {
		st.LastError = err.Error()
	}
	return st
}
