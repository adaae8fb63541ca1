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
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailcast_http_requests_total",
			Help: "Total HTTP requests by method, path, and status",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mailcast_http_request_duration_seconds",
			Help:    "HTTP request latency distribution",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	attemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailcast_attempts_total",
			Help: "Total delivery attempts by outcome",
		},
		[]string{"outcome"},
	)

	dueCampaigns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mailcast_due_campaigns",
			Help: "Campaigns selected as due on the most recent tick",
		},
	)

	tickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mailcast_tick_duration_seconds",
			Help:    "Dispatcher tick duration distribution",
			Buckets: []float64{.05, .1, .5, 1, 5, 15, 60},
		},
	)

	campaignsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mailcast_campaigns_created_total",
			Help: "Total campaigns created",
		},
	)

	rateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailcast_rate_limit_rejections_total",
			Help: "Requests rejected by rate limiter",
		},
		[]string{"actor"},
	)

	statsCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailcast_cache_hits_total",
			Help: "Cache-aside lookups by result",
		},
		[]string{"result"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordAttempt records one delivery attempt by outcome
func RecordAttempt(outcome string) {
	attemptsTotal.WithLabelValues(outcome).Inc()
}

// SetDueCampaigns records how many campaigns the last tick selected
func SetDueCampaigns(count int) {
	dueCampaigns.Set(float64(count))
}

// ObserveTickDuration records how long a dispatcher tick took
func ObserveTickDuration(d time.Duration) {
	tickDuration.Observe(d.Seconds())
}

// RecordCampaignCreated records a campaign creation
func RecordCampaignCreated() {
	campaignsCreated.Inc()
}

// RecordRateLimitRejection records a rate limit rejection
func RecordRateLimitRejection(actor string) {
	rateLimitRejections.WithLabelValues(actor).Inc()
}

// RecordCacheResult records a cache-aside hit or miss
func RecordCacheResult(hit bool) {
	if hit {
		statsCacheHits.WithLabelValues("hit").Inc()
	} else {
		statsCacheHits.WithLabelValues("miss").Inc()
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns HTTP middleware that records request metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		RecordRequest(r.Method, r.URL.Path, wrapped.status, time.Since(start))
	})
}
