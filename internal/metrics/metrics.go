// Package metrics exposes the service's Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joeblew999/plat-forest/internal/mapview"
)

// Metrics records HTTP and map view metrics on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry            *prometheus.Registry
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	reconcilePasses     prometheus.Counter
	reconcileDuration   prometheus.Histogram
	layerChanges        *prometheus.CounterVec
	unknownLayers       prometheus.Counter
	boundaryFits        *prometheus.CounterVec
	flushErrors         prometheus.Counter
	viewMounts          prometheus.Counter
}

// New creates a fresh registry with every metric registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "forest",
		Name:      "http_requests_total",
		Help:      "Count of HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "forest",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	reconcilePasses := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "forest",
		Subsystem: "mapview",
		Name:      "reconcile_passes_total",
		Help:      "Number of completed layer reconciliation passes",
	})

	reconcileDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "forest",
		Subsystem: "mapview",
		Name:      "reconcile_duration_seconds",
		Help:      "Time spent applying a reconciliation pass",
		Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
	})

	layerChanges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "forest",
		Subsystem: "mapview",
		Name:      "layer_changes_total",
		Help:      "Overlays attached or detached, by action and layer",
	}, []string{"action", "layer"})

	unknownLayers := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "forest",
		Subsystem: "mapview",
		Name:      "unknown_layers_total",
		Help:      "Requested layer ids missing from the catalog",
	})

	boundaryFits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "forest",
		Subsystem: "mapview",
		Name:      "boundary_updates_total",
		Help:      "Boundary updates, by outcome",
	}, []string{"outcome"})

	flushErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "forest",
		Subsystem: "mapview",
		Name:      "flush_errors_total",
		Help:      "Update passes that failed",
	})

	viewMounts := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "forest",
		Subsystem: "mapview",
		Name:      "mounts_total",
		Help:      "Map views mounted",
	})

	registry.MustRegister(
		httpRequests,
		httpRequestDuration,
		reconcilePasses,
		reconcileDuration,
		layerChanges,
		unknownLayers,
		boundaryFits,
		flushErrors,
		viewMounts,
	)

	return &Metrics{
		registry:            registry,
		httpRequests:        httpRequests,
		httpRequestDuration: httpRequestDuration,
		reconcilePasses:     reconcilePasses,
		reconcileDuration:   reconcileDuration,
		layerChanges:        layerChanges,
		unknownLayers:       unknownLayers,
		boundaryFits:        boundaryFits,
		flushErrors:         flushErrors,
		viewMounts:          viewMounts,
	}
}

// ObserveHTTPRequest records a single HTTP request/response cycle.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpRequestDuration.With(labels).Observe(duration.Seconds())
}

// ObserveReconcile implements mapview.Observer.
func (m *Metrics) ObserveReconcile(r mapview.Report, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.reconcilePasses.Inc()
	m.reconcileDuration.Observe(elapsed.Seconds())
	for _, id := range r.Added {
		m.layerChanges.WithLabelValues("attach", id).Inc()
	}
	for _, id := range r.Removed {
		m.layerChanges.WithLabelValues("detach", id).Inc()
	}
	m.unknownLayers.Add(float64(len(r.Unknown)))
}

// ObserveFit implements mapview.Observer.
func (m *Metrics) ObserveFit(outcome mapview.FitOutcome) {
	if m == nil {
		return
	}
	m.boundaryFits.WithLabelValues(string(outcome)).Inc()
}

// ObserveFlushError implements mapview.Observer.
func (m *Metrics) ObserveFlushError(error) {
	if m == nil {
		return
	}
	m.flushErrors.Inc()
}

// IncMount counts a mounted view.
func (m *Metrics) IncMount() {
	if m == nil {
		return
	}
	m.viewMounts.Inc()
}

// Handler exposes the Prometheus registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records every request passing through next.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.ObserveHTTPRequest(r.Method, routeLabel(r), rec.status, time.Since(start))
	})
}

// routeLabel keeps the path label bounded: the mux pattern, or "unmatched"
// for requests no route claimed.
func routeLabel(r *http.Request) string {
	if r.Pattern != "" {
		return r.Pattern
	}
	return "unmatched"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps server-sent event streams working through the middleware.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

var _ mapview.Observer = (*Metrics)(nil)
