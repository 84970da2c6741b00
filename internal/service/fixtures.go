package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-forest/internal/analytics"
	"github.com/joeblew999/plat-forest/internal/db"
	"github.com/joeblew999/plat-forest/internal/mapview"
)

// FixtureCountry is one country in a fixture file. Geometry holds a GeoJSON
// geometry or feature written as YAML.
type FixtureCountry struct {
	ISO          string                  `yaml:"iso"`
	Name         string                  `yaml:"name"`
	AreaHa       float64                 `yaml:"areaHa"`
	ForestAreaHa float64                 `yaml:"forestAreaHa"`
	EmissionsMg  float64                 `yaml:"emissionsMg"`
	Geometry     any                     `yaml:"geometry"`
	Loss         []analytics.Observation `yaml:"loss"`
}

// Fixture is a file of countries to load into the store.
type Fixture struct {
	Countries []FixtureCountry `yaml:"countries"`
}

// FixtureFile describes an importable file in the fixtures directory.
type FixtureFile struct {
	Name string `json:"name" doc:"File name" example:"brazil.yaml"`
	Size string `json:"size" doc:"Human-readable file size" example:"1.2 KB"`
}

// FixturesDir returns the fixtures directory under dataDir.
func FixturesDir(dataDir string) string {
	return filepath.Join(dataDir, "fixtures")
}

// ListFixtures returns the YAML and JSON files in dir. A missing directory
// yields an empty list.
func ListFixtures(dir string) ([]FixtureFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []FixtureFile{}, nil
		}
		return nil, err
	}

	files := []FixtureFile{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".yaml", ".yml", ".json":
		default:
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, FixtureFile{Name: entry.Name(), Size: formatSize(info.Size())})
	}
	return files, nil
}

// ParseFixture decodes a fixture document.
func ParseFixture(data []byte) (Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Fixture{}, fmt.Errorf("parsing fixture: %w", err)
	}
	return f, nil
}

// ImportFixtureFile loads the fixture at path into store and returns the
// number of countries imported.
func ImportFixtureFile(ctx context.Context, store *db.Store, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	f, err := ParseFixture(data)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return ImportFixture(ctx, store, f)
}

// ImportFixture writes every country of f and its observations to store.
func ImportFixture(ctx context.Context, store *db.Store, f Fixture) (int, error) {
	for i, fc := range f.Countries {
		c := db.Country{
			ISO:          fc.ISO,
			Name:         fc.Name,
			AreaHa:       fc.AreaHa,
			ForestAreaHa: fc.ForestAreaHa,
			EmissionsMg:  fc.EmissionsMg,
		}
		if fc.Geometry != nil {
			raw, err := json.Marshal(fc.Geometry)
			if err != nil {
				return i, fmt.Errorf("%s geometry: %w", fc.ISO, err)
			}
			if c.Geometry, err = mapview.ParseGeometry(raw); err != nil {
				return i, fmt.Errorf("%s geometry: %w", fc.ISO, err)
			}
		}
		if err := store.UpsertCountry(ctx, c); err != nil {
			return i, err
		}
		if err := store.AddObservations(ctx, fc.ISO, fc.Loss); err != nil {
			return i, err
		}
	}
	return len(f.Countries), nil
}

// formatSize returns a human-readable byte count.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
