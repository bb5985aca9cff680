// Package metrics exposes Prometheus collectors for the image pipeline.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Tier labels.
const (
	TierManual    = "manual"
	TierOpenGraph = "opengraph"
	TierLogo      = "logo"
	TierThumbnail = "thumbnail"
)

// Outcome labels.
const (
	OutcomeHit     = "hit"
	OutcomeMiss    = "miss"
	OutcomeError   = "error"
	OutcomeDenied  = "denied"
	OutcomeSkipped = "skipped"
)

// Cache labels.
const (
	CachePDF       = "pdf"
	CacheThumbnail = "thumbnail"
	CacheQuery     = "query"
)

var (
	tierOutcomesTotal          *prometheus.CounterVec
	rateLimitDelaySeconds      *prometheus.HistogramVec
	cacheLookupsTotal          *prometheus.CounterVec
	fetchTotal                 *prometheus.CounterVec
	entriesTotal               *prometheus.CounterVec
	activeWorkers              prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		tierOutcomesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pubimage_tier_outcomes_total",
				Help: "Resolution tier outcomes, labeled by tier and outcome.",
			},
			[]string{"tier", "outcome"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pubimage_rate_limit_delay_seconds",
				Help:    "Histogram of crawl-delay waits, labeled by domain.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		cacheLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pubimage_cache_lookups_total",
				Help: "Cache lookups, labeled by cache and result.",
			},
			[]string{"cache", "result"},
		)

		fetchTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pubimage_fetch_total",
				Help: "Outbound fetches, labeled by kind and status.",
			},
			[]string{"kind", "status"},
		)

		entriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pubimage_entries_total",
				Help: "Citation entries processed, labeled by result.",
			},
			[]string{"result"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "pubimage_active_workers",
				Help: "Number of workers currently resolving an entry.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveTier counts one tier outcome.
func ObserveTier(tier, outcome string) {
	Init()
	tierOutcomesTotal.WithLabelValues(tier, outcome).Inc()
}

// ObserveRateLimitDelay records the duration of a crawl-delay wait.
func ObserveRateLimitDelay(rawURL string, duration time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(SanitizeSite(rawURL)).Observe(duration.Seconds())
}

// ObserveCacheLookup counts a cache hit or miss.
func ObserveCacheLookup(cache string, hit bool) {
	Init()
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookupsTotal.WithLabelValues(cache, result).Inc()
}

// ObserveFetch counts an outbound fetch. A zero status means a transport failure.
func ObserveFetch(kind string, status int) {
	Init()
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	fetchTotal.WithLabelValues(kind, label).Inc()
}

// ObserveEntry counts a processed citation entry.
func ObserveEntry(result string) {
	Init()
	entriesTotal.WithLabelValues(result).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
