package mapview_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-forest/internal/mapview"
	"github.com/joeblew999/plat-forest/internal/mapview/mapviewtest"
)

var baseLayers = []mapview.TileLayer{
	{Name: "basemap", URL: "https://tiles.example/base/{z}/{x}/{y}.png", Opacity: 1, MaxZoom: 19},
	{Name: "labels", URL: "https://tiles.example/labels/{z}/{x}/{y}.png", Opacity: 1, MaxZoom: 19},
}

func testCatalog(t *testing.T) *mapview.Catalog {
	t.Helper()
	c, err := mapview.NewCatalog(mapview.DefaultDefinitions()...)
	require.NoError(t, err)
	return c
}

func activeSession(t *testing.T) (*mapview.Session, *mapviewtest.Engine) {
	t.Helper()
	eng := mapviewtest.New()
	s := mapview.NewSession(eng, baseLayers...)
	require.NoError(t, s.Init("map"))
	eng.Reset()
	return s, eng
}

func newReconciler(t *testing.T) *mapview.Reconciler {
	return mapview.NewReconciler(testCatalog(t), zerolog.Nop())
}
