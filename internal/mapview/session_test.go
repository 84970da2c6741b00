package mapview_test

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-forest/internal/mapview"
	"github.com/joeblew999/plat-forest/internal/mapview/mapviewtest"
)

var treeLoss = mapview.LayerDefinition{
	ID: "tree-loss", TileURLTemplate: "https://t/{z}/{x}/{y}.png", Opacity: 0.8, MaxZoom: 12,
}

func TestSessionInitAttachesBaseLayers(t *testing.T) {
	eng := mapviewtest.New()
	s := mapview.NewSession(eng, baseLayers...)
	assert.Equal(t, mapview.StateUninitialized, s.State())

	require.NoError(t, s.Init("map"))
	assert.Equal(t, mapview.StateActive, s.State())
	assert.Equal(t, []string{"mount:map", "add-tile:basemap", "add-tile:labels"}, eng.Kinds())
	assert.Empty(t, s.ActiveIDs(), "base layers are not overlays")
}

func TestSessionInitTwice(t *testing.T) {
	s, _ := activeSession(t)
	require.ErrorIs(t, s.Init("map"), mapview.ErrInvalidState)

	require.NoError(t, s.Dispose())
	require.ErrorIs(t, s.Init("map"), mapview.ErrInvalidState)
}

func TestSessionInitRollsBackOnBaseFailure(t *testing.T) {
	eng := mapviewtest.New()
	eng.FailAdd = map[string]bool{"labels": true}
	s := mapview.NewSession(eng, baseLayers...)

	require.ErrorIs(t, s.Init("map"), mapviewtest.ErrInjected)
	assert.Equal(t, mapview.StateUninitialized, s.State())
	assert.Zero(t, eng.Live())
	assert.False(t, eng.Mounted())
}

func TestAttachBeforeInit(t *testing.T) {
	// A first session is initialised; a second one never is.
	first, _ := activeSession(t)
	_, err := first.AttachOverlay("tree-loss", treeLoss)
	require.NoError(t, err)

	second := mapview.NewSession(mapviewtest.New())
	_, err = second.AttachOverlay("tree-loss", treeLoss)
	require.ErrorIs(t, err, mapview.ErrInvalidState)
}

func TestAttachDuplicate(t *testing.T) {
	s, _ := activeSession(t)
	_, err := s.AttachOverlay("tree-loss", treeLoss)
	require.NoError(t, err)

	_, err = s.AttachOverlay("tree-loss", treeLoss)
	require.ErrorIs(t, err, mapview.ErrDuplicateLayer)
}

func TestDetachUnknown(t *testing.T) {
	s, _ := activeSession(t)
	require.ErrorIs(t, s.DetachOverlay("tree-loss"), mapview.ErrNotFound)
}

func TestDetachRemovesHandle(t *testing.T) {
	s, eng := activeSession(t)
	h, err := s.AttachOverlay("tree-loss", treeLoss)
	require.NoError(t, err)

	require.NoError(t, s.DetachOverlay("tree-loss"))
	_, ok := s.Overlay("tree-loss")
	assert.False(t, ok)

	ops := eng.Ops()
	require.Len(t, ops, 2)
	assert.Equal(t, "remove", ops[1].Kind)
	assert.Equal(t, h, ops[1].Handle)
}

func TestSetBoundaryReplaces(t *testing.T) {
	s, eng := activeSession(t)
	poly := orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}

	first, err := s.SetBoundary(mapview.Outline{Geometry: poly})
	require.NoError(t, err)
	second, err := s.SetBoundary(mapview.Outline{Geometry: poly})
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	got, ok := s.Boundary()
	require.True(t, ok)
	assert.Equal(t, second, got)
	assert.Equal(t, []string{"add-outline", "remove:boundary", "add-outline"}, eng.Kinds())

	require.NoError(t, s.ClearBoundary())
	_, ok = s.Boundary()
	assert.False(t, ok)
	require.NoError(t, s.ClearBoundary(), "clearing an absent boundary is a no-op")
}

func TestDisposeIsIdempotent(t *testing.T) {
	s, eng := activeSession(t)
	_, err := s.AttachOverlay("tree-loss", treeLoss)
	require.NoError(t, err)
	_, err = s.SetBoundary(mapview.Outline{Geometry: orb.Polygon{{{0, 0}, {1, 1}, {1, 0}, {0, 0}}}})
	require.NoError(t, err)

	require.NoError(t, s.Dispose())
	require.NoError(t, s.Dispose())

	assert.Equal(t, mapview.StateDisposed, s.State())
	assert.Empty(t, s.ActiveIDs())
	_, ok := s.Boundary()
	assert.False(t, ok)
	assert.Zero(t, eng.Live(), "every engine handle must be released")
	assert.False(t, eng.Mounted())
}

func TestDisposeBeforeInit(t *testing.T) {
	eng := mapviewtest.New()
	s := mapview.NewSession(eng, baseLayers...)
	require.NoError(t, s.Dispose())
	assert.Empty(t, eng.Ops())
}

func TestDisposeContinuesPastEngineErrors(t *testing.T) {
	s, eng := activeSession(t)
	_, err := s.AttachOverlay("tree-loss", treeLoss)
	require.NoError(t, err)
	eng.FailRemove = true

	err = s.Dispose()
	require.ErrorIs(t, err, mapviewtest.ErrInjected)
	assert.Equal(t, mapview.StateDisposed, s.State())
	assert.Empty(t, s.ActiveIDs())
	assert.Zero(t, eng.Live())
}

func TestOperationsAfterDispose(t *testing.T) {
	s, _ := activeSession(t)
	require.NoError(t, s.Dispose())

	_, err := s.AttachOverlay("tree-loss", treeLoss)
	assert.ErrorIs(t, err, mapview.ErrInvalidState)
	assert.ErrorIs(t, s.DetachOverlay("tree-loss"), mapview.ErrInvalidState)
	assert.ErrorIs(t, s.ClearBoundary(), mapview.ErrInvalidState)
	assert.ErrorIs(t, s.FitBounds(mapview.FitRequest{}), mapview.ErrInvalidState)
	assert.ErrorIs(t, s.SetView(mapview.View{}), mapview.ErrInvalidState)
}
