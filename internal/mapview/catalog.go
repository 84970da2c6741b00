// Package mapview keeps a long-lived map view in step with a declarative
// description of what should be visible on it.
//
// A [Session] owns one live rendering [Engine] and the handles it hands out.
// A [Reconciler] diffs the desired overlay set against the attached one and
// applies the minimal detach/attach sequence, a [BoundaryFitter] draws the
// country outline and fits the viewport, and a [Controller] coalesces UI
// updates into single passes over both.
package mapview

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// LayerDefinition describes a toggleable tile overlay.
type LayerDefinition struct {
	ID              string  `json:"id" yaml:"id" doc:"Layer identifier" example:"tree-loss"`
	TileURLTemplate string  `json:"tileUrlTemplate" yaml:"tileUrlTemplate" doc:"XYZ tile URL template; {year} and {iso} are filled from the view context"`
	DisplayName     string  `json:"displayName" yaml:"displayName" doc:"Display name" example:"Tree cover loss"`
	Color           string  `json:"color,omitempty" yaml:"color,omitempty" doc:"Legend color (CSS)" example:"#dc6c9a"`
	Opacity         float64 `json:"opacity" yaml:"opacity" minimum:"0" maximum:"1" doc:"Layer opacity (0-1)" example:"0.8"`
	MaxZoom         int     `json:"maxZoom" yaml:"maxZoom" minimum:"1" doc:"Maximum native zoom of the tile source" example:"12"`
}

// Validate checks the definition's invariants.
func (d LayerDefinition) Validate() error {
	switch {
	case strings.TrimSpace(d.ID) == "":
		return fmt.Errorf("layer id is required")
	case strings.TrimSpace(d.TileURLTemplate) == "":
		return fmt.Errorf("layer %q: tile url template is required", d.ID)
	case !(d.Opacity >= 0 && d.Opacity <= 1):
		return fmt.Errorf("layer %q: opacity %v out of range [0,1]", d.ID, d.Opacity)
	case d.MaxZoom <= 0:
		return fmt.Errorf("layer %q: max zoom must be positive, got %d", d.ID, d.MaxZoom)
	}
	return nil
}

// ContextDependent reports whether the tile template references the view
// context, meaning the layer must be re-attached when the context changes.
func (d LayerDefinition) ContextDependent() bool {
	return strings.Contains(d.TileURLTemplate, "{year}") || strings.Contains(d.TileURLTemplate, "{iso}")
}

// Expand returns a copy with {year} and {iso} filled in from vc.
// Placeholders without a value in vc are left untouched.
func (d LayerDefinition) Expand(vc ViewContext) LayerDefinition {
	url := d.TileURLTemplate
	if vc.Year > 0 {
		url = strings.ReplaceAll(url, "{year}", strconv.Itoa(vc.Year))
	}
	if vc.CountryISO != "" {
		url = strings.ReplaceAll(url, "{iso}", vc.CountryISO)
	}
	d.TileURLTemplate = url
	return d
}

// ViewContext is the country and year the view is currently showing.
type ViewContext struct {
	CountryISO string `json:"countryIso" doc:"ISO 3166-1 alpha-3 country code" example:"BRA"`
	Year       int    `json:"year" doc:"Selected year" example:"2023"`
}

// Catalog is the read-only registry of overlay definitions. It is immutable
// after construction and safe for concurrent use.
type Catalog struct {
	defs map[string]LayerDefinition
	ids  []string
}

// NewCatalog validates defs and builds a catalog from them.
func NewCatalog(defs ...LayerDefinition) (*Catalog, error) {
	c := &Catalog{defs: make(map[string]LayerDefinition, len(defs))}
	for _, d := range defs {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, exists := c.defs[d.ID]; exists {
			return nil, fmt.Errorf("layer %q defined twice", d.ID)
		}
		c.defs[d.ID] = d
		c.ids = append(c.ids, d.ID)
	}
	sort.Strings(c.ids)
	return c, nil
}

// MustCatalog is NewCatalog that panics on invalid definitions.
func MustCatalog(defs ...LayerDefinition) *Catalog {
	c, err := NewCatalog(defs...)
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup returns the definition for id.
func (c *Catalog) Lookup(id string) (LayerDefinition, error) {
	d, ok := c.defs[id]
	if !ok {
		return LayerDefinition{}, fmt.Errorf("layer %q: %w", id, ErrNotFound)
	}
	return d, nil
}

// Has reports whether id is registered.
func (c *Catalog) Has(id string) bool {
	_, ok := c.defs[id]
	return ok
}

// IDs returns the registered ids in sorted order.
func (c *Catalog) IDs() []string {
	out := make([]string, len(c.ids))
	copy(out, c.ids)
	return out
}

// Definitions returns all definitions sorted by id.
func (c *Catalog) Definitions() []LayerDefinition {
	out := make([]LayerDefinition, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, c.defs[id])
	}
	return out
}

// Len returns the number of registered layers.
func (c *Catalog) Len() int {
	return len(c.ids)
}

const gfwTiles = "https://tiles.globalforestwatch.org"

// DefaultDefinitions returns the forest overlays served by Global Forest Watch.
func DefaultDefinitions() []LayerDefinition {
	return []LayerDefinition{
		{
			ID:              "tree-loss",
			TileURLTemplate: gfwTiles + "/umd_tree_cover_loss/v1.11/tcd_30/{z}/{x}/{y}.png?start_year=2001&end_year={year}",
			DisplayName:     "Tree cover loss",
			Color:           "#dc6c9a",
			Opacity:         0.8,
			MaxZoom:         12,
		},
		{
			ID:              "tree-gain",
			TileURLTemplate: gfwTiles + "/umd_tree_cover_gain/v202206/default/{z}/{x}/{y}.png",
			DisplayName:     "Tree cover gain",
			Color:           "#6d6de5",
			Opacity:         0.8,
			MaxZoom:         12,
		},
		{
			ID:              "forest-cover",
			TileURLTemplate: gfwTiles + "/umd_tree_cover_density_2000/v1.6/tcd_30/{z}/{x}/{y}.png",
			DisplayName:     "Tree cover (2000)",
			Color:           "#97bd3d",
			Opacity:         0.6,
			MaxZoom:         12,
		},
		{
			ID:              "fire-alerts",
			TileURLTemplate: gfwTiles + "/nasa_viirs_fire_alerts/v20241209/default/{z}/{x}/{y}.png",
			DisplayName:     "VIIRS fire alerts",
			Color:           "#ea5a00",
			Opacity:         0.9,
			MaxZoom:         14,
		},
		{
			ID:              "primary-forest",
			TileURLTemplate: gfwTiles + "/umd_regional_primary_forest_2001/v201901/default/{z}/{x}/{y}.png",
			DisplayName:     "Primary forest",
			Color:           "#658022",
			Opacity:         0.7,
			MaxZoom:         12,
		},
		{
			ID:              "protected-areas",
			TileURLTemplate: gfwTiles + "/wdpa_protected_areas/v202102/default/{z}/{x}/{y}.png",
			DisplayName:     "Protected areas",
			Color:           "#5b8fa8",
			Opacity:         0.5,
			MaxZoom:         14,
		},
	}
}
