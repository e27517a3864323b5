// Package metrics provides Prometheus metrics for the ranker rating engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector exported by ranker.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Engine metrics
	selections            prometheus.Counter
	selectionBatchSize    prometheus.Histogram
	submissions           prometheus.Counter
	comparisons           prometheus.Counter
	submissionLatency     prometheus.Histogram
	duplicateSubmissions  prometheus.Counter
	rejectedSubmissions   *prometheus.CounterVec
	aggregationLatency    *prometheus.HistogramVec
	itemsTotal            prometheus.Gauge
	eventsTotal           prometheus.Gauge
	storeQueryLatency     *prometheus.HistogramVec
	storeUpdateLatency    prometheus.Histogram
	storeTransactionFails prometheus.Counter

	// Simulator queue and worker metrics
	queueSize               prometheus.Gauge
	queueCapacity           prometheus.Gauge
	queueEnqueued           prometheus.Counter
	queueDequeued           prometheus.Counter
	queueEnqueueErrors      prometheus.Counter
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP metrics for the observability listener
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // registry without default Go collectors

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "ranker",
		subsystem:        "engine",
		histogramBuckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.selections = m.counter("selections_total", "Total number of batches selected")
	m.selectionBatchSize = m.histogram("selection_batch_size", "Number of items returned per selection",
		[]float64{0, 1, 2, 3, 4, 5, 6, 8, 10})
	m.submissions = m.counter("submissions_total", "Total number of rankings committed")
	m.comparisons = m.counter("comparisons_total", "Total number of pairwise comparisons applied")
	m.submissionLatency = m.histogram("submission_latency_milliseconds",
		"Latency of one atomic ranking submission in milliseconds", m.histogramBuckets)
	m.duplicateSubmissions = m.counter("duplicate_submissions_total",
		"Total number of replayed submission ids that were ignored")
	m.rejectedSubmissions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "rejected_submissions_total",
		Help: "Total number of submissions rejected by validation, by reason",
	}, []string{"reason"})
	m.aggregationLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "aggregation_latency_milliseconds",
		Help:    "Latency of aggregation queries in milliseconds, by query",
		Buckets: m.histogramBuckets,
	}, []string{"query"})
	m.itemsTotal = m.gauge("items_total", "Number of items known to the rating store")
	m.eventsTotal = m.gauge("ranking_events_total", "Number of ranking events in the append-only log")

	m.storeQueryLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "store",
		Name:    "query_latency_milliseconds",
		Help:    "Rating store read latency in milliseconds, by operation",
		Buckets: m.histogramBuckets,
	}, []string{"op"})
	m.storeUpdateLatency = promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "store",
		Name:    "update_latency_milliseconds",
		Help:    "Rating store transaction latency in milliseconds",
		Buckets: m.histogramBuckets,
	})
	m.storeTransactionFails = promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "store",
		Name: "transaction_failures_total",
		Help: "Total number of rolled back store transactions",
	})

	m.queueSize = m.gauge("queue_size", "Current number of queued simulated rounds")
	m.queueCapacity = m.gauge("queue_capacity", "Capacity of the simulated round queue")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Total number of rounds enqueued")
	m.queueDequeued = m.counter("queue_dequeued_total", "Total number of rounds dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of rounds rejected by a full or closed queue")
	m.workerCount = m.gauge("worker_count", "Number of running simulator workers")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds",
		"Latency of one simulated round in milliseconds", m.histogramBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Total number of failed simulated rounds")

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "http",
		Name: "requests_total",
		Help: "Total number of HTTP requests by endpoint, method and status code",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "http",
		Name:    "request_duration_milliseconds",
		Help:    "HTTP request duration in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "errors_total",
		Help: "Total number of errors by component and type",
	}, []string{"component", "error_type"})

	m.systemMemoryUsage = promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "system",
		Name: "memory_usage_bytes",
		Help: "Heap bytes allocated",
	})
	m.systemGoroutineCount = promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "system",
		Name: "goroutines",
		Help: "Number of goroutines",
	})
	m.systemGCPauseTime = promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "system",
		Name:    "gc_pause_milliseconds",
		Help:    "Average GC pause in milliseconds",
		Buckets: m.histogramBuckets,
	})
}

// RecordSelection counts a selected batch and observes its size.
func RecordSelection(size int) {
	globalManager.selections.Inc()
	globalManager.selectionBatchSize.Observe(float64(size))
}

// RecordSubmission counts a committed ranking.
func RecordSubmission() {
	globalManager.submissions.Inc()
}

// RecordComparisons adds n applied pairwise comparisons.
func RecordComparisons(n int) {
	if n > 0 {
		globalManager.comparisons.Add(float64(n))
	}
}

// RecordSubmissionLatency observes the latency of one submission.
func RecordSubmissionLatency(ms float64) {
	globalManager.submissionLatency.Observe(ms)
}

// RecordDuplicateSubmission counts a replayed submission id.
func RecordDuplicateSubmission() {
	globalManager.duplicateSubmissions.Inc()
}

// RecordRejectedSubmission counts a submission rejected for reason.
func RecordRejectedSubmission(reason string) {
	globalManager.rejectedSubmissions.WithLabelValues(reason).Inc()
}

// RecordAggregationLatency observes the latency of an aggregation query.
func RecordAggregationLatency(query string, ms float64) {
	globalManager.aggregationLatency.WithLabelValues(query).Observe(ms)
}

// UpdateItemsTotal sets the number of known items.
func UpdateItemsTotal(n int) {
	globalManager.itemsTotal.Set(float64(n))
}

// UpdateEventsTotal sets the number of logged ranking events.
func UpdateEventsTotal(n int64) {
	globalManager.eventsTotal.Set(float64(n))
}

// RecordStoreQueryLatency observes a store read.
func RecordStoreQueryLatency(op string, ms float64) {
	globalManager.storeQueryLatency.WithLabelValues(op).Observe(ms)
}

// RecordStoreUpdateLatency observes a store transaction.
func RecordStoreUpdateLatency(ms float64) {
	globalManager.storeUpdateLatency.Observe(ms)
}

// RecordStoreTransactionFailure counts a rolled back transaction.
func RecordStoreTransactionFailure() {
	globalManager.storeTransactionFails.Inc()
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue counts an enqueued round.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue counts a dequeued round.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError counts a rejected enqueue.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// UpdateWorkerCount sets the number of running workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency observes one simulated round.
func RecordWorkerProcessingLatency(ms float64) {
	globalManager.workerProcessingLatency.Observe(ms)
}

// RecordWorkerError counts a failed simulated round.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(ms)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the heap usage in bytes.
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
