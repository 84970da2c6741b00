package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-forest/internal/mapview"
)

func scrape(t *testing.T, h http.Handler) (int, string) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rr.Code, rr.Body.String()
}

func TestHandler_nilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveReconcile(mapview.Report{Added: []string{"tree-loss"}}, time.Millisecond)
	m.ObserveFit(mapview.OutcomeFit)
	m.ObserveFlushError(errors.New("boom"))
	m.IncMount()

	code, body := scrape(t, m.Handler())
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body, "metrics unavailable")
}

func TestHandler_exposesViewMetrics(t *testing.T) {
	m := New()
	m.ObserveReconcile(mapview.Report{
		Added:   []string{"tree-loss", "fire-alerts"},
		Removed: []string{"tree-gain"},
		Unknown: []string{"bogus"},
	}, 2*time.Millisecond)
	m.ObserveFit(mapview.OutcomeFallback)
	m.ObserveFlushError(errors.New("boom"))
	m.IncMount()

	code, body := scrape(t, m.Handler())
	require.Equal(t, http.StatusOK, code, body)
	assert.Contains(t, body, "forest_mapview_reconcile_passes_total 1")
	assert.Contains(t, body, `forest_mapview_layer_changes_total{action="attach",layer="tree-loss"} 1`)
	assert.Contains(t, body, `forest_mapview_layer_changes_total{action="detach",layer="tree-gain"} 1`)
	assert.Contains(t, body, "forest_mapview_unknown_layers_total 1")
	assert.Contains(t, body, `forest_mapview_boundary_updates_total{outcome="fallback"} 1`)
	assert.Contains(t, body, "forest_mapview_flush_errors_total 1")
	assert.Contains(t, body, "forest_mapview_mounts_total 1")
	assert.Contains(t, body, "forest_mapview_reconcile_duration_seconds_count 1")
}

func TestMiddlewareRecordsRequests(t *testing.T) {
	m := New()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/layers/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	h := m.Middleware(mux)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/layers/nope", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)

	_, body := scrape(t, m.Handler())
	assert.Contains(t, body, `forest_http_requests_total{method="GET",path="GET /api/v1/layers/{id}",status="404"} 1`)
}

func TestMiddlewareNilPassesThrough(t *testing.T) {
	var m *Metrics
	called := false
	h := m.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
}
