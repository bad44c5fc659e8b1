// Package metrics provides Prometheus metrics for the findna pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Health levels exported by UpdateHealthStatus.
const (
	HealthLevelHealthy  = 0
	HealthLevelDegraded = 1
	HealthLevelCritical = 2
)

// Manager manages all Prometheus metrics for the findna service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Source fetch metrics
	sourceFetches        *prometheus.CounterVec
	sourceFetchDuration  *prometheus.HistogramVec
	sourceRetries        *prometheus.CounterVec
	sourceBreakerState   *prometheus.GaugeVec
	sourceCacheLookups   *prometheus.CounterVec
	sourceSuccessRatio   prometheus.Gauge
	healthStatus         prometheus.Gauge
	profileBuilds        *prometheus.CounterVec
	profileBuildDuration prometheus.Histogram
	dataQuality          prometheus.Histogram
	disciplineScore      prometheus.Histogram

	// Persistence metrics
	persistOps          *prometheus.CounterVec
	persistDuration     *prometheus.HistogramVec
	persistRetries      prometheus.Counter
	persistQueueSize    prometheus.Gauge
	persistQueueCap     prometheus.Gauge
	workerActiveCount   prometheus.Gauge
	persistQueueRejects *prometheus.CounterVec

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "findna",
		subsystem:        "pipeline",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.sourceFetches = m.counterVec("source_fetch_total",
		"Total number of source fetches by source and final status", "source", "status")
	m.sourceFetchDuration = m.histogramVec("source_fetch_duration_seconds",
		"Source fetch duration in seconds including retries", "source")
	m.sourceRetries = m.counterVec("source_retries_total",
		"Total number of retried source fetch attempts", "source")
	m.sourceBreakerState = promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "source_breaker_state",
		Help:        "Circuit breaker state per source (0 closed, 1 half-open, 2 open)",
		ConstLabels: m.constLabels,
	}, []string{"source"})
	m.sourceCacheLookups = m.counterVec("source_cache_lookups_total",
		"Source cache lookups by source and result", "source", "result")
	m.sourceSuccessRatio = m.gauge("source_success_ratio",
		"Share of source fetch attempts that succeeded since start")
	m.healthStatus = m.gauge("health_status",
		"Overall health (0 healthy, 1 degraded, 2 critical)")

	m.profileBuilds = m.counterVec("profile_builds_total",
		"Total number of profile builds by outcome", "outcome")
	m.profileBuildDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "profile_build_duration_seconds",
		Help:        "End to end profile build duration in seconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	})
	m.dataQuality = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "data_quality_score",
		Help:        "Data quality score of built profiles",
		Buckets:     prometheus.LinearBuckets(0, 10, 11),
		ConstLabels: m.constLabels,
	})
	m.disciplineScore = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "discipline_score",
		Help:        "Discipline score of built profiles",
		Buckets:     prometheus.LinearBuckets(0, 10, 11),
		ConstLabels: m.constLabels,
	})

	m.persistOps = m.counterVec("persist_total",
		"Total number of persistence writes by backend and outcome", "backend", "outcome")
	m.persistDuration = m.histogramVec("persist_duration_seconds",
		"Persistence write duration in seconds", "backend")
	m.persistRetries = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "persist_retries_total",
		Help:        "Total number of retried persistence writes",
		ConstLabels: m.constLabels,
	})
	m.persistQueueSize = m.gauge("persist_queue_size", "Current number of pending persistence jobs")
	m.persistQueueCap = m.gauge("persist_queue_capacity", "Capacity of the persistence queue")
	m.persistQueueRejects = m.counterVec("persist_queue_rejections_total",
		"Persistence jobs rejected by the queue by reason", "reason")
	m.workerActiveCount = m.gauge("worker_active_count", "Number of running persistence workers")

	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_seconds",
		"HTTP request duration in seconds", "endpoint", "method", "status_code")

	m.errorRateByComponent = m.counterVec("errors_by_component_total",
		"Total number of errors by component and error type", "component", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total",
		"Total number of errors by error type and severity", "error_type", "severity")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Allocated heap memory in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Current number of goroutines")
}

// Source Metrics Functions.

// RecordSourceFetch records the final outcome of one source fetch.
func RecordSourceFetch(source, status string, seconds float64) {
	globalManager.sourceFetches.WithLabelValues(source, status).Inc()
	globalManager.sourceFetchDuration.WithLabelValues(source).Observe(seconds)
}

// RecordSourceRetry increments the retry counter for a source.
func RecordSourceRetry(source string) {
	globalManager.sourceRetries.WithLabelValues(source).Inc()
}

// RecordBreakerState sets the circuit breaker state for a source.
func RecordBreakerState(source string, state int) {
	globalManager.sourceBreakerState.WithLabelValues(source).Set(float64(state))
}

// RecordCacheLookup records a hit or a miss of the source cache.
func RecordCacheLookup(source string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	globalManager.sourceCacheLookups.WithLabelValues(source, result).Inc()
}

// UpdateSourceSuccessRatio sets the overall source success ratio.
func UpdateSourceSuccessRatio(ratio float64) {
	globalManager.sourceSuccessRatio.Set(ratio)
}

// UpdateHealthStatus sets the overall health level.
func UpdateHealthStatus(level int) {
	globalManager.healthStatus.Set(float64(level))
}

// Build Metrics Functions.

// RecordBuild records a finished profile build.
func RecordBuild(outcome string, seconds float64) {
	globalManager.profileBuilds.WithLabelValues(outcome).Inc()
	globalManager.profileBuildDuration.Observe(seconds)
}

// RecordDataQuality observes the data quality score of a built profile.
func RecordDataQuality(score float64) {
	globalManager.dataQuality.Observe(score)
}

// RecordDisciplineScore observes the discipline score of a built profile.
func RecordDisciplineScore(score float64) {
	globalManager.disciplineScore.Observe(score)
}

// Persistence Metrics Functions.

// RecordPersist records one persistence write.
func RecordPersist(backend, outcome string, seconds float64) {
	globalManager.persistOps.WithLabelValues(backend, outcome).Inc()
	globalManager.persistDuration.WithLabelValues(backend).Observe(seconds)
}

// RecordPersistRetry increments the persistence retry counter.
func RecordPersistRetry() {
	globalManager.persistRetries.Inc()
}

// UpdatePersistQueueSize sets the number of pending persistence jobs.
func UpdatePersistQueueSize(size int) {
	globalManager.persistQueueSize.Set(float64(size))
}

// UpdatePersistQueueCapacity sets the persistence queue capacity.
func UpdatePersistQueueCapacity(capacity int) {
	globalManager.persistQueueCap.Set(float64(capacity))
}

// RecordPersistQueueRejection records a job the queue refused.
func RecordPersistQueueRejection(reason string) {
	globalManager.persistQueueRejects.WithLabelValues(reason).Inc()
}

// UpdateWorkerActiveCount sets the number of running persistence workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// HTTP Metrics Functions.

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration observes an HTTP request duration in seconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, seconds float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(seconds)
}

// Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// System Metrics Functions.

// UpdateSystemMemoryUsage sets the allocated heap memory in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
