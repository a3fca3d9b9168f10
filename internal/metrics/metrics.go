// Package metrics provides Prometheus instrumentation for the parity engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RunsTotal counts transformation runs, partitioned by outcome.
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parity_runs_total",
		Help: "Total number of transformation runs",
	}, []string{"outcome"})

	// RunDuration tracks end-to-end transformation duration.
	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "parity_run_duration_seconds",
		Help:    "Transformation run duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// SyntheticCallSteps counts synthetic call creation steps, by source leg.
	SyntheticCallSteps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parity_synthetic_call_steps_total",
		Help: "Synthetic call creation steps emitted",
	}, []string{"source"})

	// UnmatchedPutQuantity accumulates residual put quantity across runs.
	UnmatchedPutQuantity = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parity_unmatched_put_quantity_total",
		Help: "Cumulative put quantity left without stock cover",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parity_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parity_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "parity_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the raw path for the label; the API surface is small enough
		// that cardinality stays bounded.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
