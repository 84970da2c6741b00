package mapview_test

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-forest/internal/mapview"
)

func newFitter() *mapview.BoundaryFitter {
	return mapview.NewBoundaryFitter(mapview.FitOptions{}, zerolog.Nop())
}

var square = orb.Polygon{{{-60, -10}, {-50, -10}, {-50, 0}, {-60, 0}, {-60, -10}}}

func TestApplyGeometryFitsBounds(t *testing.T) {
	s, eng := activeSession(t)

	res, err := newFitter().ApplyGeometry(square, s)
	require.NoError(t, err)
	assert.Equal(t, mapview.OutcomeFit, res.Outcome)

	ops := eng.Ops()
	require.Len(t, ops, 2)
	assert.Equal(t, "add-outline", ops[0].Kind)
	assert.Equal(t, "fit", ops[1].Kind)
	assert.Equal(t, orb.Bound{Min: orb.Point{-60, -10}, Max: orb.Point{-50, 0}}, ops[1].Fit.Bound)
	assert.Equal(t, 20, ops[1].Fit.Padding)
	assert.Equal(t, 8, ops[1].Fit.MaxZoom)

	h, ok := s.Boundary()
	require.True(t, ok)
	assert.Equal(t, res.Handle, h)
}

func TestApplyGeometryMultiPolygon(t *testing.T) {
	s, eng := activeSession(t)
	mp := orb.MultiPolygon{square, {{{10, 10}, {12, 10}, {12, 12}, {10, 10}}}}

	res, err := newFitter().ApplyGeometry(mp, s)
	require.NoError(t, err)
	assert.Equal(t, mapview.OutcomeFit, res.Outcome)
	assert.Equal(t, orb.Bound{Min: orb.Point{-60, -10}, Max: orb.Point{12, 12}}, eng.Ops()[1].Fit.Bound)
}

func TestApplyGeometryDegenerateUsesFallback(t *testing.T) {
	s, eng := activeSession(t)
	point := orb.Polygon{{{-47.9, -15.8}, {-47.9, -15.8}, {-47.9, -15.8}, {-47.9, -15.8}}}

	res, err := newFitter().ApplyGeometry(point, s)
	require.NoError(t, err)
	assert.Equal(t, mapview.OutcomeFallback, res.Outcome)

	ops := eng.Ops()
	require.Len(t, ops, 2)
	assert.Equal(t, "view", ops[1].Kind)
	assert.Equal(t, orb.Point{-47.9, -15.8}, ops[1].View.Center)
	assert.Equal(t, 3, ops[1].View.Zoom)
	_, ok := s.Boundary()
	assert.True(t, ok)
}

func TestApplyGeometryNilClearsBoundary(t *testing.T) {
	s, eng := activeSession(t)
	f := newFitter()

	_, err := f.ApplyGeometry(square, s)
	require.NoError(t, err)
	eng.Reset()

	res, err := f.ApplyGeometry(nil, s)
	require.NoError(t, err)
	assert.Equal(t, mapview.OutcomeCleared, res.Outcome)
	_, ok := s.Boundary()
	assert.False(t, ok)
	assert.Equal(t, []string{"remove:boundary"}, eng.Kinds(), "viewport must stay unchanged")
}

func TestApplyGeometryUnusableDegradesToNoBoundary(t *testing.T) {
	tests := []struct {
		name string
		geom orb.Geometry
	}{
		{"empty polygon", orb.Polygon{}},
		{"empty rings", orb.Polygon{{}}},
		{"empty multipolygon", orb.MultiPolygon{}},
		{"point", orb.Point{1, 2}},
		{"line", orb.LineString{{0, 0}, {1, 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := activeSession(t)
			f := newFitter()
			_, err := f.ApplyGeometry(square, s)
			require.NoError(t, err)

			res, err := f.ApplyGeometry(tt.geom, s)
			require.NoError(t, err)
			assert.Equal(t, mapview.OutcomeCleared, res.Outcome)
			_, ok := s.Boundary()
			assert.False(t, ok)
		})
	}
}

func TestApplyGeometryCustomOptions(t *testing.T) {
	s, eng := activeSession(t)
	f := mapview.NewBoundaryFitter(mapview.FitOptions{Padding: 40, MaxZoom: 6}, zerolog.Nop())

	_, err := f.ApplyGeometry(square, s)
	require.NoError(t, err)
	fit := eng.Ops()[1].Fit
	assert.Equal(t, 40, fit.Padding)
	assert.Equal(t, 6, fit.MaxZoom)
	assert.Equal(t, 3, f.Options().FallbackZoom)
}

func TestApplyGeometryRequiresActiveSession(t *testing.T) {
	s, _ := activeSession(t)
	require.NoError(t, s.Dispose())

	_, err := newFitter().ApplyGeometry(square, s)
	require.ErrorIs(t, err, mapview.ErrInvalidState)
}

func TestParseGeometry(t *testing.T) {
	g, err := mapview.ParseGeometry([]byte(`{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}`))
	require.NoError(t, err)
	assert.IsType(t, orb.Polygon{}, g)

	g, err = mapview.ParseGeometry([]byte(`{"type":"Feature","properties":{"name":"x"},"geometry":{"type":"MultiPolygon","coordinates":[[[[0,0],[1,0],[1,1],[0,0]]]]}}`))
	require.NoError(t, err)
	assert.IsType(t, orb.MultiPolygon{}, g)

	g, err = mapview.ParseGeometry([]byte(`{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}}]}`))
	require.NoError(t, err)
	assert.IsType(t, orb.Polygon{}, g)

	g, err = mapview.ParseGeometry([]byte(" null "))
	require.NoError(t, err)
	assert.Nil(t, g)

	_, err = mapview.ParseGeometry([]byte(`{"type":`))
	assert.Error(t, err)
}
