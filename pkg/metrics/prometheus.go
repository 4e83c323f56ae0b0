// Package metrics provides Prometheus metrics for the scoreboard service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	defaultRefreshInterval = 10 * time.Second

	// Reasons a submission is rejected; used as the "reason" label.
	ReasonRateLimited  = "rate_limited"
	ReasonUnauthorized = "unauthorized"
	ReasonLength       = "length"
	ReasonDecode       = "decode"
	ReasonStorage      = "storage"

	// Relay attempt outcomes; used as the "outcome" label.
	OutcomeSuccess   = "success"
	OutcomeRetry     = "retry"
	OutcomePermanent = "permanent"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Submissions
	submissionsAccepted prometheus.Counter
	submissionsRejected *prometheus.CounterVec

	// Rate limiting
	rateLimitRejections prometheus.Counter
	rateLimitClients    prometheus.Gauge

	// Repository
	repositoryEntriesTotal  prometheus.Gauge
	repositoryUpdateLatency prometheus.Histogram
	repositoryQueryLatency  prometheus.Histogram
	repositoryErrors        *prometheus.CounterVec

	// Relay
	relayAttempts   *prometheus.CounterVec
	relayFailures   prometheus.Counter
	relayDuration   prometheus.Histogram
	relayQueueSize  prometheus.Gauge
	relayQueueDrops prometheus.Counter
	relayWorkers    prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "scoreboard",
		subsystem:        "ingest",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000, 15000},
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

// RefreshInterval is how often gauge updaters should sample.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

// Enabled reports whether observations are recorded.
func (m *Manager) Enabled() bool { return m.enabled }

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		Buckets: m.histogramBuckets, ConstLabels: m.customLabels,
	})
}

func (m *Manager) initializeMetrics() {
	m.submissionsAccepted = m.counter("submissions_accepted_total",
		"Submissions persisted and acknowledged with 202")
	m.submissionsRejected = m.counterVec("submissions_rejected_total",
		"Submissions rejected before or during persistence", "reason")

	m.rateLimitRejections = m.counter("rate_limit_rejections_total",
		"Requests rejected by the per-client sliding window")
	m.rateLimitClients = m.gauge("rate_limit_clients",
		"Clients currently tracked by the rate limiter")

	m.repositoryEntriesTotal = m.gauge("repository_entries_total",
		"Rows in the score table")
	m.repositoryUpdateLatency = m.histogram("repository_update_latency_milliseconds",
		"Upsert latency in milliseconds")
	m.repositoryQueryLatency = m.histogram("repository_query_latency_milliseconds",
		"Leaderboard and stats query latency in milliseconds")
	m.repositoryErrors = m.counterVec("repository_errors_total",
		"Repository failures by operation", "operation")

	m.relayAttempts = m.counterVec("relay_attempts_total",
		"Dispatch attempts by outcome", "outcome")
	m.relayFailures = m.counter("relay_failures_total",
		"Submissions whose dispatch ultimately failed")
	m.relayDuration = m.histogram("relay_duration_milliseconds",
		"Total dispatch time including retries in milliseconds")
	m.relayQueueSize = m.gauge("relay_queue_size",
		"Pending jobs in the async relay queue")
	m.relayQueueDrops = m.counter("relay_queue_drops_total",
		"Jobs refused because the relay queue was full or closed")
	m.relayWorkers = m.gauge("relay_workers",
		"Running relay workers")

	m.httpRequests = m.counterVec("http_requests_total",
		"HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	}, []string{"endpoint", "method", "status_code"})
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total",
		"Error responses by endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes in use")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Running goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "Most recent GC pause in milliseconds")
}

// RecordSubmissionAccepted counts a persisted submission.
func RecordSubmissionAccepted() {
	if globalManager.enabled {
		globalManager.submissionsAccepted.Inc()
	}
}

// RecordSubmissionRejected counts a rejected submission by reason.
func RecordSubmissionRejected(reason string) {
	if globalManager.enabled {
		globalManager.submissionsRejected.WithLabelValues(reason).Inc()
	}
}

// RecordRateLimitRejection counts a request refused by the limiter.
func RecordRateLimitRejection() {
	if globalManager.enabled {
		globalManager.rateLimitRejections.Inc()
	}
}

// UpdateRateLimitClients sets the tracked client count.
func UpdateRateLimitClients(count int) {
	globalManager.rateLimitClients.Set(float64(count))
}

// UpdateRepositoryEntriesTotal sets the row count.
func UpdateRepositoryEntriesTotal(count int) {
	globalManager.repositoryEntriesTotal.Set(float64(count))
}

// RecordRepositoryUpdateLatency records upsert latency.
func RecordRepositoryUpdateLatency(latencyMs float64) {
	if globalManager.enabled {
		globalManager.repositoryUpdateLatency.Observe(latencyMs)
	}
}

// RecordRepositoryQueryLatency records read latency.
func RecordRepositoryQueryLatency(latencyMs float64) {
	if globalManager.enabled {
		globalManager.repositoryQueryLatency.Observe(latencyMs)
	}
}

// RecordRepositoryError counts a failed repository operation.
func RecordRepositoryError(operation string) {
	if globalManager.enabled {
		globalManager.repositoryErrors.WithLabelValues(operation).Inc()
	}
}

// RecordRelayAttempt counts one dispatch attempt.
func RecordRelayAttempt(outcome string) {
	if globalManager.enabled {
		globalManager.relayAttempts.WithLabelValues(outcome).Inc()
	}
}

// RecordRelayFailure counts a dispatch that gave up.
func RecordRelayFailure() {
	if globalManager.enabled {
		globalManager.relayFailures.Inc()
	}
}

// RecordRelayDuration records total dispatch time.
func RecordRelayDuration(latencyMs float64) {
	if globalManager.enabled {
		globalManager.relayDuration.Observe(latencyMs)
	}
}

// UpdateRelayQueueSize sets the async relay backlog.
func UpdateRelayQueueSize(size int) {
	globalManager.relayQueueSize.Set(float64(size))
}

// RecordRelayQueueDrop counts a job that could not be enqueued.
func RecordRelayQueueDrop() {
	if globalManager.enabled {
		globalManager.relayQueueDrops.Inc()
	}
}

// UpdateRelayWorkers sets the running worker count.
func UpdateRelayWorkers(count int) {
	globalManager.relayWorkers.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if globalManager.enabled {
		globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	}
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if globalManager.enabled {
		globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
	}
}

// RecordErrorByEndpoint counts an error response.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	if globalManager.enabled {
		globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
	}
}

// UpdateSystemMemoryUsage sets heap usage.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records the latest GC pause.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// RefreshInterval returns the global manager's gauge sampling interval.
func RefreshInterval() time.Duration {
	return globalManager.refreshInterval
}

// GetRegistry returns the registry backing the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
