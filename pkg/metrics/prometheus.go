// Package metrics provides Prometheus metrics for the rankd ranking service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// defaultLatencyBuckets are in milliseconds, the unit every latency is
// recorded in.
var defaultLatencyBuckets = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000} //nolint:gochecknoglobals // read-only defaults

// Manager manages all Prometheus metrics for the ranking service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Operation metrics - one series per public operation
	operationsSubmitted *prometheus.CounterVec
	operationsRejected  *prometheus.CounterVec
	operationLatency    *prometheus.HistogramVec
	operationFailures   *prometheus.CounterVec

	// Task tracking
	tasksInFlight prometheus.Gauge
	taskPanics    prometheus.Counter

	// Backlog
	backlogSize    prometheus.Gauge
	backlogPushes  *prometheus.CounterVec
	backlogReplays prometheus.Counter

	// Connection
	connectionState    prometheus.Gauge
	reconnectAttempts  prometheus.Counter
	reconnectSuccesses prometheus.Counter

	// Store
	storeErrors *prometheus.CounterVec

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// Init replaces the global manager with one built from opts on a fresh
// registry. Call it once at startup, before any recorder runs and before
// GetRegistry is handed to an HTTP handler.
func Init(opts ...Option) *Manager {
	registry := prometheus.NewRegistry()
	m := NewManager(append(opts, WithPrometheusRegistry(registry))...)
	customRegistry = registry
	globalManager = m
	return m
}

// RefreshInterval is how often sampled gauges should be refreshed.
func RefreshInterval() time.Duration {
	return globalManager.refreshInterval
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "rankd",
		subsystem:        "ranking",
		histogramBuckets: defaultLatencyBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.customLabels)

	m.operationsSubmitted = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("operations_submitted_total"),
		Help:        "Total number of operations accepted by the dispatcher",
		ConstLabels: labels,
	}, []string{"operation"})

	m.operationsRejected = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("operations_rejected_total"),
		Help:        "Total number of operations rejected by validation",
		ConstLabels: labels,
	}, []string{"operation", "reason"})

	m.operationLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("operation_latency_milliseconds"),
		Help:        "Latency of synchronous operations against the store in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	}, []string{"operation"})

	m.operationFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("operation_failures_total"),
		Help:        "Total number of operations that failed against the store",
		ConstLabels: labels,
	}, []string{"operation"})

	m.tasksInFlight = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("tasks_in_flight"),
		Help:        "Number of tracked tasks not yet reaped",
		ConstLabels: labels,
	})

	m.taskPanics = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("task_panics_total"),
		Help:        "Total number of tasks that panicked and were recovered",
		ConstLabels: labels,
	})

	m.backlogSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("backlog_size"),
		Help:        "Number of write intents waiting for replay",
		ConstLabels: labels,
	})

	m.backlogPushes = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("backlog_pushes_total"),
		Help:        "Total number of write intents pushed to the backlog",
		ConstLabels: labels,
	}, []string{"action"})

	m.backlogReplays = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("backlog_replays_total"),
		Help:        "Total number of backlog entries re-submitted after reconnect",
		ConstLabels: labels,
	})

	m.connectionState = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("connection_state"),
		Help:        "Store connection state (0 disconnected, 1 connected, 2 reconnecting)",
		ConstLabels: labels,
	})

	m.reconnectAttempts = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("reconnect_attempts_total"),
		Help:        "Total number of reconnect attempts",
		ConstLabels: labels,
	})

	m.reconnectSuccesses = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("reconnect_successes_total"),
		Help:        "Total number of successful reconnects",
		ConstLabels: labels,
	})

	m.storeErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("store_errors_total"),
		Help:        "Total number of errors returned by the backing store",
		ConstLabels: labels,
	}, []string{"operation", "error_type"})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("http_requests_total"),
			Help:        "Total number of HTTP requests by endpoint and method",
			ConstLabels: labels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("http_request_duration_milliseconds"),
			Help:        "HTTP request duration in milliseconds",
			Buckets:     m.histogramBuckets,
			ConstLabels: labels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_memory_usage_bytes"),
		Help:        "System memory usage in bytes",
		ConstLabels: labels,
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_goroutine_count"),
		Help:        "Number of goroutines",
		ConstLabels: labels,
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_gc_pause_time_milliseconds"),
		Help:        "GC pause time in milliseconds",
		Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		ConstLabels: labels,
	})
}

// Operation Metrics Functions.

// RecordOperationSubmitted counts an operation accepted by the dispatcher.
func RecordOperationSubmitted(op string) {
	if !globalManager.enabled {
		return
	}
	globalManager.operationsSubmitted.WithLabelValues(op).Inc()
}

// RecordOperationRejected counts an operation rejected during validation.
func RecordOperationRejected(op, reason string) {
	if !globalManager.enabled {
		return
	}
	globalManager.operationsRejected.WithLabelValues(op, reason).Inc()
}

// RecordOperationLatency records the latency of a synchronous operation in milliseconds.
func RecordOperationLatency(op string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.operationLatency.WithLabelValues(op).Observe(latencyMs)
}

// RecordOperationFailure counts an operation that took the failure path.
func RecordOperationFailure(op string) {
	if !globalManager.enabled {
		return
	}
	globalManager.operationFailures.WithLabelValues(op).Inc()
}

// Task Metrics Functions.

// UpdateTasksInFlight sets the number of tracked tasks.
func UpdateTasksInFlight(count int) {
	globalManager.tasksInFlight.Set(float64(count))
}

// RecordTaskPanic counts a recovered task panic.
func RecordTaskPanic() {
	globalManager.taskPanics.Inc()
}

// Backlog Metrics Functions.

// UpdateBacklogSize sets the current backlog length.
func UpdateBacklogSize(size int) {
	globalManager.backlogSize.Set(float64(size))
}

// RecordBacklogPush counts a write intent pushed to the backlog.
func RecordBacklogPush(action string) {
	globalManager.backlogPushes.WithLabelValues(action).Inc()
}

// RecordBacklogReplays adds n replayed backlog entries.
func RecordBacklogReplays(n int) {
	globalManager.backlogReplays.Add(float64(n))
}

// Connection Metrics Functions.

// UpdateConnectionState sets the connection state gauge.
func UpdateConnectionState(state int) {
	globalManager.connectionState.Set(float64(state))
}

// RecordReconnectAttempt counts a reconnect attempt.
func RecordReconnectAttempt() {
	globalManager.reconnectAttempts.Inc()
}

// RecordReconnectSuccess counts a successful reconnect.
func RecordReconnectSuccess() {
	globalManager.reconnectSuccesses.Inc()
}

// RecordStoreError counts an error returned by the backing store.
func RecordStoreError(op, errorType string) {
	globalManager.storeErrors.WithLabelValues(op, errorType).Inc()
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// System Performance Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
