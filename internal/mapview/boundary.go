package mapview

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"
)

// FitOptions configures boundary drawing and viewport fitting.
type FitOptions struct {
	Padding      int          // pixels of margin around the boundary
	MaxZoom      int          // fits never zoom further in than this
	FallbackZoom int          // zoom used when the boundary has no area
	Style        OutlineStyle // outline styling
}

// DefaultFitOptions returns the dashboard's fit settings.
func DefaultFitOptions() FitOptions {
	return FitOptions{
		Padding:      20,
		MaxZoom:      8,
		FallbackZoom: 3,
		Style:        OutlineStyle{Color: "#ffffff", Weight: 2},
	}
}

// FitOutcome says what ApplyGeometry did to the viewport.
type FitOutcome string

const (
	OutcomeCleared  FitOutcome = "cleared"  // no geometry; boundary removed, viewport untouched
	OutcomeFit      FitOutcome = "fit"      // viewport fitted to the boundary
	OutcomeFallback FitOutcome = "fallback" // degenerate bound; centered at the fallback zoom
)

// FitResult describes one ApplyGeometry call.
type FitResult struct {
	Outcome FitOutcome
	Bound   orb.Bound
	Handle  Handle
}

// BoundaryFitter replaces a session's boundary outline and fits the viewport.
type BoundaryFitter struct {
	opts FitOptions
	log  zerolog.Logger
}

// NewBoundaryFitter creates a fitter. Zero option fields take defaults.
func NewBoundaryFitter(opts FitOptions, log zerolog.Logger) *BoundaryFitter {
	def := DefaultFitOptions()
	if opts.Padding <= 0 {
		opts.Padding = def.Padding
	}
	if opts.MaxZoom <= 0 {
		opts.MaxZoom = def.MaxZoom
	}
	if opts.FallbackZoom <= 0 {
		opts.FallbackZoom = def.FallbackZoom
	}
	if opts.Style.Color == "" {
		opts.Style.Color = def.Style.Color
	}
	if opts.Style.Weight <= 0 {
		opts.Style.Weight = def.Style.Weight
	}
	return &BoundaryFitter{opts: opts, log: log}
}

// Options returns the effective options.
func (f *BoundaryFitter) Options() FitOptions {
	return f.opts
}

// ApplyGeometry draws g as the session's boundary and fits the viewport to
// it. A nil, empty or non-polygonal geometry only clears the boundary.
func (f *BoundaryFitter) ApplyGeometry(g orb.Geometry, s *Session) (FitResult, error) {
	if !usableBoundary(g) {
		if g != nil {
			f.log.Info().Str("type", g.GeoJSONType()).Msg("unusable boundary geometry, clearing boundary")
		}
		if err := s.ClearBoundary(); err != nil {
			return FitResult{}, err
		}
		return FitResult{Outcome: OutcomeCleared}, nil
	}

	h, err := s.SetBoundary(Outline{Geometry: g, Style: f.opts.Style})
	if err != nil {
		return FitResult{}, err
	}

	bound := g.Bound()
	if bound.Right() == bound.Left() || bound.Top() == bound.Bottom() {
		v := View{Center: bound.Center(), Zoom: f.opts.FallbackZoom}
		if err := s.SetView(v); err != nil {
			return FitResult{}, fmt.Errorf("fallback view: %w", err)
		}
		f.log.Debug().Interface("center", v.Center).Int("zoom", v.Zoom).Msg("degenerate boundary, using fallback view")
		return FitResult{Outcome: OutcomeFallback, Bound: bound, Handle: h}, nil
	}

	req := FitRequest{Bound: bound, Padding: f.opts.Padding, MaxZoom: f.opts.MaxZoom}
	if err := s.FitBounds(req); err != nil {
		return FitResult{}, fmt.Errorf("fit bounds: %w", err)
	}
	return FitResult{Outcome: OutcomeFit, Bound: bound, Handle: h}, nil
}

// usableBoundary reports whether g is a polygon or multipolygon with at
// least one point.
func usableBoundary(g orb.Geometry) bool {
	switch geom := g.(type) {
	case orb.Polygon:
		for _, ring := range geom {
			if len(ring) > 0 {
				return true
			}
		}
	case orb.MultiPolygon:
		for _, poly := range geom {
			if usableBoundary(poly) {
				return true
			}
		}
	}
	return false
}

// ParseGeometry decodes a GeoJSON geometry, Feature, or a FeatureCollection
// holding one feature. JSON null and empty input decode to nil.
func ParseGeometry(data []byte) (orb.Geometry, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("parsing geojson: %w", err)
	}

	switch head.Type {
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("parsing geojson feature: %w", err)
		}
		return f.Geometry, nil
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("parsing geojson feature collection: %w", err)
		}
		if len(fc.Features) == 0 {
			return nil, nil
		}
		if len(fc.Features) > 1 {
			return nil, fmt.Errorf("feature collection holds %d features, want 1", len(fc.Features))
		}
		return fc.Features[0].Geometry, nil
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, fmt.Errorf("parsing geojson geometry: %w", err)
		}
		return g.Geometry(), nil
	}
}
