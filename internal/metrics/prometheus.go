package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dhroxy_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dhroxy_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dhroxy_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Upstream metrics
	upstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dhroxy_upstream_requests_total",
			Help: "Total number of upstream requests by resource and outcome",
		},
		[]string{"resource", "status"},
	)

	upstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dhroxy_upstream_request_duration_seconds",
			Help:    "Upstream request duration in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"resource"},
	)

	cacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dhroxy_response_cache_lookups_total",
			Help: "Response cache lookups by tier and result",
		},
		[]string{"tier", "result"},
	)

	// Business metrics
	classifiedResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dhroxy_classified_results_total",
			Help: "Total number of classified lab results by mode and tier",
		},
		[]string{"mode", "tier"},
	)

	chatCompletions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dhroxy_chat_completions_total",
			Help: "Total number of chat completions by outcome",
		},
		[]string{"outcome"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// GinMiddleware records request counts and latency per route template.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// RecordUpstreamRequest records one upstream call
func RecordUpstreamRequest(resource, status string, duration time.Duration) {
	upstreamRequestsTotal.WithLabelValues(resource, status).Inc()
	upstreamRequestDuration.WithLabelValues(resource).Observe(duration.Seconds())
}

// RecordCacheLookup records a response cache hit or miss
func RecordCacheLookup(tier string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookups.WithLabelValues(tier, result).Inc()
}

// RecordClassification records one classified result
func RecordClassification(mode, tier string) {
	classifiedResults.WithLabelValues(mode, tier).Inc()
}

// RecordChatCompletion records a chat completion outcome ("ok" or "apology")
func RecordChatCompletion(outcome string) {
	chatCompletions.WithLabelValues(outcome).Inc()
}
