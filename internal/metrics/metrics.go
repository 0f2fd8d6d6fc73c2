// Package metrics provides Prometheus instrumentation for the arbitrage
// engine.
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
	// EvaluationsTotal counts EV gate evaluations, partitioned by outcome.
	EvaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbengine_evaluations_total",
		Help: "Total EV gate evaluations",
	}, []string{"decision"})

	// EvaluationLatency tracks how long one gate evaluation takes.
	EvaluationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arbengine_evaluation_latency_seconds",
		Help:    "EV gate evaluation latency in seconds",
		Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01},
	})

	// FillResultsTotal counts recorded fill feedback, partitioned by outcome.
	FillResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbengine_fill_results_total",
		Help: "Total recorded fill results",
	}, []string{"filled"})

	// ExposureLimitRejections counts accepted decisions blocked by the
	// venue exposure limiter.
	ExposureLimitRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arbengine_exposure_limit_rejections_total",
		Help: "Decisions rejected by the venue exposure limiter",
	})

	// FeeScheduleSyncs counts fee schedule updates per exchange.
	FeeScheduleSyncs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbengine_fee_schedule_syncs_total",
		Help: "Fee schedule sync operations",
	}, []string{"exchange"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arbengine_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbengine_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "arbengine_http_request_duration_seconds",
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

		// Use the route pattern for path label to avoid high cardinality.
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
