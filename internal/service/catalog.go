// Package service hosts the map view and loads its configuration.
package service

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-forest/internal/mapview"
)

// catalogFile is the on-disk catalog layout. JSON is valid YAML, so
// both formats load through the same decoder.
type catalogFile struct {
	Layers []mapview.LayerDefinition `yaml:"layers"`
}

// LoadCatalog reads a catalog file. An empty path returns the built-in
// forest layers.
func LoadCatalog(path string) (*mapview.Catalog, error) {
	if path == "" {
		return mapview.NewCatalog(mapview.DefaultDefinitions()...)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a catalog document. Layers without an
// id get one derived from their display name.
func ParseCatalog(data []byte) (*mapview.Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	if len(f.Layers) == 0 {
		return nil, fmt.Errorf("catalog defines no layers")
	}
	for i := range f.Layers {
		if f.Layers[i].ID == "" {
			f.Layers[i].ID = generateID(f.Layers[i].DisplayName)
		}
	}
	return mapview.NewCatalog(f.Layers...)
}

// WriteCatalog encodes c as YAML.
func WriteCatalog(w io.Writer, c *mapview.Catalog) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(catalogFile{Layers: c.Definitions()}); err != nil {
		return err
	}
	return enc.Close()
}

// generateID creates a URL-safe ID from a name.
func generateID(name string) string {
	id := strings.ToLower(strings.TrimSpace(name))
	id = strings.ReplaceAll(id, " ", "-")
	var result strings.Builder
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			result.WriteRune(r)
		}
	}
	return result.String()
}
