// Package metrics provides Prometheus metrics for the recruitment review service.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	defaultRefreshInterval = 10 * time.Second
)

// Latency buckets in milliseconds for store, delivery and HTTP histograms.
var defaultLatencyBuckets = []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000} //nolint:gochecknoglobals // constant bucket layout

// Manager owns every collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          atomic.Bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Review workflow
	transitions            *prometheus.CounterVec
	staleConflicts         prometheus.Counter
	applicationsSubmitted  *prometheus.CounterVec
	applicationsByStage    *prometheus.GaugeVec
	outcomeNotifications   *prometheus.CounterVec
	signupSteps            *prometheus.CounterVec
	staffAdministrativeOps *prometheus.CounterVec

	// Delivery pipeline
	deliveries       *prometheus.CounterVec
	deliveryRetries  *prometheus.CounterVec
	deliveryLatency  *prometheus.HistogramVec
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueUtilization prometheus.Gauge
	queueEnqueue     *prometheus.CounterVec
	workerActive     prometheus.Gauge
	workerProcessed  prometheus.Counter

	// Storage and upstreams
	storeLatency *prometheus.HistogramVec
	circuitState *prometheus.GaugeVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec

	// Process
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// customRegistry keeps the default Go collectors out of /metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "recruit",
		subsystem:        "review",
		histogramBuckets: defaultLatencyBuckets,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	m.enabled.Store(true)
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

// RefreshInterval is how often callers should refresh gauge snapshots.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

// Enabled reports whether recording is active.
func (m *Manager) Enabled() bool { return m.enabled.Load() }

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	m.transitions = m.counterVec("transitions_total",
		"Stage transition attempts by action and result", "action", "result")
	m.staleConflicts = m.counter("stale_conflicts_total",
		"Transitions that lost a concurrency race")
	m.applicationsSubmitted = m.counterVec("applications_submitted_total",
		"Applications created from form intake", "duplicate")
	m.applicationsByStage = m.gaugeVec("applications_by_stage",
		"Current number of applications per stage", "stage")
	m.outcomeNotifications = m.counterVec("outcome_notifications_total",
		"Applicant-facing outcome notifications by outcome and result", "outcome", "result")
	m.signupSteps = m.counterVec("signup_steps_total",
		"Staff signup flow steps by step and result", "step", "result")
	m.staffAdministrativeOps = m.counterVec("staff_admin_operations_total",
		"Administrative staff operations by operation and result", "operation", "result")

	m.deliveries = m.counterVec("deliveries_total",
		"Post-commit deliveries by kind and result", "kind", "result")
	m.deliveryRetries = m.counterVec("delivery_retries_total",
		"Delivery attempts beyond the first by kind", "kind")
	m.deliveryLatency = m.histogramVec("delivery_duration_milliseconds",
		"Delivery duration including retries in milliseconds", "kind")
	m.queueSize = m.gauge("queue_size", "Current number of queued deliveries")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum number of queued deliveries")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue size divided by capacity")
	m.queueEnqueue = m.counterVec("queue_enqueue_total", "Enqueue attempts by result", "result")
	m.workerActive = m.gauge("worker_active", "Number of running delivery workers")
	m.workerProcessed = m.counter("worker_processed_total", "Deliveries handled by workers")

	m.storeLatency = m.histogramVec("store_operation_duration_milliseconds",
		"Record store operation latency in milliseconds", "store", "operation")
	m.circuitState = m.gaugeVec("upstream_circuit_state",
		"Circuit breaker state per upstream (0 closed, 1 half-open, 2 open)", "upstream")

	m.httpRequests = m.counterVec("http_requests_total",
		"HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.errorsByComponent = m.counterVec("errors_total",
		"Errors by component and type", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Heap bytes in use")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
}

// SetEnabled turns the package-level recorders on or off.
func SetEnabled(enabled bool) { globalManager.enabled.Store(enabled) }

// RecordTransition counts a transition attempt.
func RecordTransition(action, result string) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.transitions.WithLabelValues(action, result).Inc()
}

// RecordStaleConflict counts a lost concurrency race.
func RecordStaleConflict() {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.staleConflicts.Inc()
}

// RecordApplicationSubmitted counts an intake submission.
func RecordApplicationSubmitted(duplicate bool) {
	if !globalManager.enabled.Load() {
		return
	}
	label := "false"
	if duplicate {
		label = "true"
	}
	globalManager.applicationsSubmitted.WithLabelValues(label).Inc()
}

// UpdateApplicationsByStage replaces the per-stage gauge snapshot.
func UpdateApplicationsByStage(counts map[string]int) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.applicationsByStage.Reset()
	for stage, n := range counts {
		globalManager.applicationsByStage.WithLabelValues(stage).Set(float64(n))
	}
}

// RecordOutcomeNotification counts an outcome notification attempt.
func RecordOutcomeNotification(outcome, result string) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.outcomeNotifications.WithLabelValues(outcome, result).Inc()
}

// RecordSignupStep counts a signup flow step.
func RecordSignupStep(step, result string) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.signupSteps.WithLabelValues(step, result).Inc()
}

// RecordStaffOperation counts an administrative staff operation.
func RecordStaffOperation(operation, result string) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.staffAdministrativeOps.WithLabelValues(operation, result).Inc()
}

// RecordDelivery counts a finished delivery and its total duration.
func RecordDelivery(kind, result string, durationMs float64) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.deliveries.WithLabelValues(kind, result).Inc()
	globalManager.deliveryLatency.WithLabelValues(kind).Observe(durationMs)
}

// RecordDeliveryRetry counts a retried delivery attempt.
func RecordDeliveryRetry(kind string) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.deliveryRetries.WithLabelValues(kind).Inc()
}

// UpdateQueueSize sets the queue depth and derived utilization.
func UpdateQueueSize(size, capacity int) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.queueSize.Set(float64(size))
	if capacity > 0 {
		globalManager.queueUtilization.Set(float64(size) / float64(capacity))
	}
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue counts an enqueue attempt by result (ok, full, closed, cancelled).
func RecordQueueEnqueue(result string) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.queueEnqueue.WithLabelValues(result).Inc()
}

// UpdateWorkerActiveCount sets the number of running workers.
func UpdateWorkerActiveCount(count int) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.workerActive.Set(float64(count))
}

// RecordWorkerProcessed counts one handled delivery.
func RecordWorkerProcessed() {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.workerProcessed.Inc()
}

// RecordStoreLatency records a store operation latency.
func RecordStoreLatency(store, operation string, latencyMs float64) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.storeLatency.WithLabelValues(store, operation).Observe(latencyMs)
}

// UpdateCircuitState records a circuit breaker state change.
func UpdateCircuitState(upstream string, state int) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.circuitState.WithLabelValues(upstream).Set(float64(state))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByComponent counts an error.
func RecordErrorByComponent(component, errorType string) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets heap bytes in use.
func UpdateSystemMemoryUsage(bytes uint64) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the registry served on /metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Global returns the process-wide manager.
func Global() *Manager {
	return globalManager
}
