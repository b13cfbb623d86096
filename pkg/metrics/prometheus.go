// Package metrics provides Prometheus metrics for the giniscope
// pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Upstream fetch metrics
	upstreamRequests *prometheus.CounterVec
	upstreamRetries  *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	partialFetches   *prometheus.CounterVec

	// Cache metrics
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	cacheEntries     prometheus.Gauge
	coalescedWaiters prometheus.Counter

	// Data quality metrics
	recordsSkipped  prometheus.Counter
	degradedResults prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "giniscope",
		subsystem:        "pipeline",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.upstreamRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "upstream_requests_total",
		Help:      "Total HTTP requests issued against the upstream API by result status",
	}, []string{"status"})

	m.upstreamRetries = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "upstream_retries_total",
		Help:      "Total retry attempts against the upstream API by endpoint",
	}, []string{"endpoint"})

	m.upstreamDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "upstream_request_duration_seconds",
		Help:      "Histogram of upstream request latency in seconds by endpoint",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint"})

	m.partialFetches = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "partial_fetches_total",
		Help:      "Total paginated fetches that aborted early and returned partial data",
	}, []string{"endpoint"})

	m.cacheHits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cache_hits_total",
		Help:      "Total cache reads served without an upstream fetch",
	})

	m.cacheMisses = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cache_misses_total",
		Help:      "Total cache reads that missed (absent or expired entries)",
	})

	m.cacheEntries = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cache_entries",
		Help:      "Current number of cached entries",
	})

	m.coalescedWaiters = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "coalesced_waiters_total",
		Help:      "Total callers that shared an in-flight fetch instead of issuing their own",
	})

	m.recordsSkipped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "records_skipped_total",
		Help:      "Total malformed upstream records rejected during parsing",
	})

	m.degradedResults = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "degraded_results_total",
		Help:      "Total results whose skipped-record ratio crossed the warning threshold",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests by endpoint, method and status code",
	}, []string{"endpoint", "method", "status"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Histogram of HTTP request duration in seconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method"})
}

// GetRegistry returns the custom registry used for metric exposition.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Package-level record functions against the global manager.

// RecordUpstreamRequest counts one upstream round trip by status
// ("error" for transport failures).
func RecordUpstreamRequest(status string) {
	globalManager.upstreamRequests.WithLabelValues(status).Inc()
}

// RecordUpstreamRetry counts one retry attempt for an endpoint.
func RecordUpstreamRetry(endpoint string) {
	globalManager.upstreamRetries.WithLabelValues(endpoint).Inc()
}

// ObserveUpstreamDuration records the latency of one upstream request.
func ObserveUpstreamDuration(endpoint string, d time.Duration) {
	globalManager.upstreamDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// RecordPartialFetch counts a pagination run that returned partial data.
func RecordPartialFetch(endpoint string) {
	globalManager.partialFetches.WithLabelValues(endpoint).Inc()
}

// RecordCacheHit counts a cache read served from the store.
func RecordCacheHit() {
	globalManager.cacheHits.Inc()
}

// RecordCacheMiss counts a cache read that fell through to a fetch.
func RecordCacheMiss() {
	globalManager.cacheMisses.Inc()
}

// UpdateCacheEntries sets the current cache size gauge.
func UpdateCacheEntries(n int) {
	globalManager.cacheEntries.Set(float64(n))
}

// RecordCoalescedWaiter counts a caller that piggybacked on an
// in-flight fetch.
func RecordCoalescedWaiter() {
	globalManager.coalescedWaiters.Inc()
}

// RecordRecordsSkipped counts malformed records rejected by the parser.
func RecordRecordsSkipped(n int) {
	if n > 0 {
		globalManager.recordsSkipped.Add(float64(n))
	}
}

// RecordDegradedResult counts a result that crossed the skip-ratio
// warning threshold.
func RecordDegradedResult() {
	globalManager.degradedResults.Inc()
}

// RecordHTTPRequest counts one served HTTP request.
func RecordHTTPRequest(endpoint, method, status string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
}

// ObserveHTTPRequestDuration records the latency of one served request.
func ObserveHTTPRequestDuration(endpoint, method string, d time.Duration) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method).Observe(d.Seconds())
}
