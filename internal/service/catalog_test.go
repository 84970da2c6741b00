package service

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogYAML = `
layers:
  - id: tree-loss
    displayName: Tree cover loss
    tileUrlTemplate: https://tiles.example/loss/{z}/{x}/{y}.png?end_year={year}
    opacity: 0.8
    maxZoom: 12
  - displayName: Mangrove Extent
    tileUrlTemplate: https://tiles.example/mangroves/{z}/{x}/{y}.png
    opacity: 0.5
    maxZoom: 10
`

func TestParseCatalogYAML(t *testing.T) {
	c, err := ParseCatalog([]byte(catalogYAML))
	require.NoError(t, err)
	assert.Equal(t, []string{"mangrove-extent", "tree-loss"}, c.IDs())

	def, err := c.Lookup("tree-loss")
	require.NoError(t, err)
	assert.True(t, def.ContextDependent())
}

func TestParseCatalogJSON(t *testing.T) {
	c, err := ParseCatalog([]byte(`{"layers":[{"id":"a","tileUrlTemplate":"u","opacity":1,"maxZoom":3}]}`))
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())
}

func TestParseCatalogRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"empty":     `layers: []`,
		"bad yaml":  `layers: [`,
		"duplicate": "layers:\n  - {id: a, tileUrlTemplate: u, opacity: 1, maxZoom: 3}\n  - {id: a, tileUrlTemplate: v, opacity: 1, maxZoom: 3}\n",
		"opacity":   "layers:\n  - {id: a, tileUrlTemplate: u, opacity: 2, maxZoom: 3}\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadCatalog(t *testing.T) {
	def, err := LoadCatalog("")
	require.NoError(t, err)
	assert.Equal(t, 6, def.Len())

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(catalogYAML), 0644))
	c, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestWriteCatalogRoundTrip(t *testing.T) {
	def, err := LoadCatalog("")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCatalog(&buf, def))
	again, err := ParseCatalog(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, def.Definitions(), again.Definitions())
}

func TestGenerateID(t *testing.T) {
	assert.Equal(t, "primary-forest-2001", generateID("  Primary Forest (2001) "))
}
