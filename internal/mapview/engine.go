package mapview

import "github.com/paulmach/orb"

// Handle is an opaque reference to a resource owned by the rendering engine.
type Handle string

// TileLayer is what the engine needs to draw an XYZ tile overlay.
type TileLayer struct {
	Name    string  `json:"name"`
	URL     string  `json:"url"`
	Opacity float64 `json:"opacity"`
	MaxZoom int     `json:"maxZoom"`
	Base    bool    `json:"base,omitempty"`
}

// OutlineStyle styles a boundary outline. Outlines are never filled.
type OutlineStyle struct {
	Color  string  `json:"color"`
	Weight float64 `json:"weight"`
}

// Outline is an unfilled polygon outline.
type Outline struct {
	Geometry orb.Geometry
	Style    OutlineStyle
}

// FitRequest asks the engine to fit its viewport to Bound, keeping Padding
// pixels of margin and not zooming past MaxZoom. It is advisory.
type FitRequest struct {
	Bound   orb.Bound
	Padding int
	MaxZoom int
}

// View is an explicit center and zoom.
type View struct {
	Center orb.Point
	Zoom   int
}

// Engine is the external, asynchronous rendering engine behind a session.
// Tile loading after AddTileLayer happens in the engine's own time; callers
// never wait for it.
type Engine interface {
	Mount(container string) error
	AddTileLayer(layer TileLayer) (Handle, error)
	AddOutline(outline Outline) (Handle, error)
	Remove(h Handle) error
	FitBounds(req FitRequest) error
	SetView(v View) error
	Unmount() error
}
