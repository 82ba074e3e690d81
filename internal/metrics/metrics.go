// Package metrics exposes Prometheus instrumentation for the sync engine
// and the HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SyncRuns counts sync executions per provider and outcome.
	SyncRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviewhub_sync_runs_total",
			Help: "Total number of sync runs",
		},
		[]string{"provider", "outcome"},
	)

	// NewReviews counts reviews discovered for the first time.
	NewReviews = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviewhub_new_reviews_total",
			Help: "Total number of newly discovered reviews",
		},
		[]string{"provider"},
	)

	// DraftFailures counts AI draft generations that degraded to an empty
	// draft.
	DraftFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reviewhub_draft_failures_total",
			Help: "Total number of failed AI draft generations",
		},
	)

	requestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func init() {
	prometheus.MustRegister(SyncRuns, NewReviews, DraftFailures, requestCounter, requestDuration)
}

// Handler serves the /metrics scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request count and duration per route.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := strconv.Itoa(ww.Status())
		requestCounter.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		requestDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(time.Since(start).Seconds())
	})
}
