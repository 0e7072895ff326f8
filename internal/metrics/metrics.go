// Package metrics provides Prometheus metrics for the cumulus server.
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
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cumulus_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cumulus_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Listing cache metrics
	listingsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cumulus_listings_open",
			Help: "Number of currently open listings",
		},
	)

	listingPageMerges = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cumulus_listing_page_merges_total",
			Help: "Total number of pages merged into listing collections",
		},
	)

	listingPromotions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cumulus_listing_unordered_promotions_total",
			Help: "Total unordered nodes promoted to ordered during page merges",
		},
	)

	listingStalePages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cumulus_listing_stale_pages_total",
			Help: "Total page results discarded for arriving after a listing reset",
		},
	)

	// SSE metrics
	sseConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cumulus_sse_connections_active",
			Help: "Number of active SSE subscribers",
		},
	)
)

// SetListingsOpen records the number of currently open listings.
func SetListingsOpen(n int) {
	listingsOpen.Set(float64(n))
}

// ObservePageMerge records a merged page and its promoted node count.
func ObservePageMerge(promoted int) {
	listingPageMerges.Inc()
	listingPromotions.Add(float64(promoted))
}

// IncStalePages records a discarded stale page result.
func IncStalePages() {
	listingStalePages.Inc()
}

// SetSSEConnectionsActive records the active SSE subscriber count.
func SetSSEConnectionsActive(n int) {
	sseConnectionsActive.Set(float64(n))
}

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// statusRecorder captures the response status for request metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush passes through so SSE handlers still see an http.Flusher.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Instrument wraps an HTTP handler with request count and duration
// metrics. path should be the route pattern, not the raw URL, to keep
// label cardinality bounded.
func Instrument(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}
