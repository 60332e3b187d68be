// Package metrics provides Prometheus metrics for the outings scoring service.
package metrics

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const defaultRefreshInterval = 10 * time.Second

// scoreBuckets spans both score scales: similarity tops out near 10, buddy at 100.
var scoreBuckets = []float64{0.5, 1, 2, 3, 5, 7.5, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100}

// Scorer label values.
const (
	ScorerBuddy      = "buddy"
	ScorerSimilarity = "similarity"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Scoring
	scoringLatency      *prometheus.HistogramVec
	scoringRuns         *prometheus.CounterVec
	candidatesScored    *prometheus.CounterVec
	scoreDistribution   *prometheus.HistogramVec
	candidatesFiltered  *prometheus.CounterVec
	buddyMatchesEmitted prometheus.Counter
	refreshDeduplicated prometheus.Counter

	// Cache
	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
	cacheInvalidations *prometheus.CounterVec

	// Records
	profilesTotal prometheus.Gauge
	eventsTotal   prometheus.Gauge

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Worker
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var (
	mu             sync.RWMutex
	globalManager  *Manager            //nolint:gochecknoglobals // singleton metrics manager
	customRegistry *prometheus.Registry //nolint:gochecknoglobals // registry served on /metrics
)

func init() { //nolint:gochecknoinits // global metrics setup
	customRegistry = prometheus.NewRegistry()
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// Configure replaces the global manager with one built from opts on a fresh
// registry. Metrics recorded before the call are discarded.
func Configure(opts ...Option) error {
	probe := &Manager{histogramBuckets: prometheus.DefBuckets}
	for _, opt := range opts {
		opt(probe)
	}
	if !sort.Float64sAreSorted(probe.histogramBuckets) {
		return fmt.Errorf("%w: histogram buckets must be increasing", ErrInvalidOption)
	}

	reg := prometheus.NewRegistry()
	m := NewManager(append(opts, WithPrometheusRegistry(reg))...)

	mu.Lock()
	customRegistry = reg
	globalManager = m
	mu.Unlock()
	return nil
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "outings",
		subsystem:        "scoring",
		histogramBuckets: prometheus.DefBuckets,
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

// RefreshInterval is how often gauge updaters should run.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

// Enabled reports whether recording is on.
func (m *Manager) Enabled() bool { return m.enabled }

func (m *Manager) name(n string) string { return m.metricPrefix + n }

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.customLabels)

	m.scoringLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("latency_milliseconds"),
		Help:        "Time spent scoring one batch of candidates",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	}, []string{"scorer"})

	m.scoringRuns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("runs_total"),
		Help:        "Scoring batches executed",
		ConstLabels: labels,
	}, []string{"scorer"})

	m.candidatesScored = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("candidates_total"),
		Help:        "Candidates passed to a scorer",
		ConstLabels: labels,
	}, []string{"scorer"})

	m.scoreDistribution = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("score"),
		Help:        "Distribution of emitted compatibility and similarity scores",
		Buckets:     scoreBuckets,
		ConstLabels: labels,
	}, []string{"scorer"})

	m.candidatesFiltered = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("candidates_filtered_total"),
		Help:        "Candidates dropped before scoring, by reason",
		ConstLabels: labels,
	}, []string{"reason"})

	m.buddyMatchesEmitted = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("buddy_matches_total"),
		Help:        "Buddy matches returned after preference filtering",
		ConstLabels: labels,
	})

	m.refreshDeduplicated = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("refresh_deduplicated_total"),
		Help:        "Refresh jobs coalesced with an already pending job",
		ConstLabels: labels,
	})

	m.cacheHits = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("cache_hits_total"),
		Help:        "Recommendation cache hits",
		ConstLabels: labels,
	}, []string{"backend"})

	m.cacheMisses = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("cache_misses_total"),
		Help:        "Recommendation cache misses",
		ConstLabels: labels,
	}, []string{"backend"})

	m.cacheInvalidations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("cache_invalidations_total"),
		Help:        "Recommendation cache keys dropped",
		ConstLabels: labels,
	}, []string{"backend"})

	m.profilesTotal = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("profiles"),
		Help:        "Profiles currently stored",
		ConstLabels: labels,
	})

	m.eventsTotal = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("events"),
		Help:        "Events currently stored",
		ConstLabels: labels,
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("queue_size"),
		Help:        "Refresh jobs waiting in the queue",
		ConstLabels: labels,
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("queue_capacity"),
		Help:        "Refresh queue capacity",
		ConstLabels: labels,
	})

	m.queueEnqueued = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("queue_enqueued_total"),
		Help:        "Refresh jobs enqueued",
		ConstLabels: labels,
	})

	m.queueDequeued = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("queue_dequeued_total"),
		Help:        "Refresh jobs taken by workers",
		ConstLabels: labels,
	})

	m.queueEnqueueErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("queue_enqueue_errors_total"),
		Help:        "Refresh jobs rejected by the queue",
		ConstLabels: labels,
	})

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("worker_count"),
		Help:        "Refresh workers running",
		ConstLabels: labels,
	})

	m.workerProcessingLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("worker_processing_latency_milliseconds"),
		Help:        "Time to recompute and store one event's recommendations",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	})

	m.workerErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("worker_errors_total"),
		Help:        "Refresh jobs that failed",
		ConstLabels: labels,
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("http_requests_total"),
		Help:        "HTTP requests by route, method and status",
		ConstLabels: labels,
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("http_request_duration_milliseconds"),
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("errors_total"),
		Help:        "Errors by component and type",
		ConstLabels: labels,
	}, []string{"component", "error_type"})

	m.errorsByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("http_errors_total"),
		Help:        "HTTP error responses by route, method and error type",
		ConstLabels: labels,
	}, []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_memory_usage_bytes"),
		Help:        "Heap bytes allocated",
		ConstLabels: labels,
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_goroutine_count"),
		Help:        "Number of goroutines",
		ConstLabels: labels,
	})

	if m.registry != prometheus.DefaultRegisterer {
		_ = m.registry.Register(collectors.NewBuildInfoCollector())
	}
}

func current() *Manager {
	mu.RLock()
	defer mu.RUnlock()
	if !globalManager.enabled {
		return nil
	}
	return globalManager
}

// RecordScoring records one scoring batch of n candidates.
func RecordScoring(scorer string, candidates int, latency time.Duration) {
	if m := current(); m != nil {
		m.scoringRuns.WithLabelValues(scorer).Inc()
		m.candidatesScored.WithLabelValues(scorer).Add(float64(candidates))
		m.scoringLatency.WithLabelValues(scorer).Observe(float64(latency.Microseconds()) / 1000)
	}
}

// ObserveScore records one emitted score.
func ObserveScore(scorer string, score float64) {
	if m := current(); m != nil {
		m.scoreDistribution.WithLabelValues(scorer).Observe(score)
	}
}

// RecordCandidatesFiltered counts n candidates dropped for reason.
func RecordCandidatesFiltered(reason string, n int) {
	if m := current(); m != nil && n > 0 {
		m.candidatesFiltered.WithLabelValues(reason).Add(float64(n))
	}
}

// RecordBuddyMatches counts matches returned to a requester.
func RecordBuddyMatches(n int) {
	if m := current(); m != nil {
		m.buddyMatchesEmitted.Add(float64(n))
	}
}

// RecordRefreshDeduplicated counts a coalesced refresh job.
func RecordRefreshDeduplicated() {
	if m := current(); m != nil {
		m.refreshDeduplicated.Inc()
	}
}

// RecordCacheHit counts a cache hit for backend.
func RecordCacheHit(backend string) {
	if m := current(); m != nil {
		m.cacheHits.WithLabelValues(backend).Inc()
	}
}

// RecordCacheMiss counts a cache miss for backend.
func RecordCacheMiss(backend string) {
	if m := current(); m != nil {
		m.cacheMisses.WithLabelValues(backend).Inc()
	}
}

// RecordCacheInvalidation counts n dropped keys.
func RecordCacheInvalidation(backend string, n int) {
	if m := current(); m != nil {
		m.cacheInvalidations.WithLabelValues(backend).Add(float64(n))
	}
}

// UpdateRecordCounts sets the profile and event gauges.
func UpdateRecordCounts(profiles, events int) {
	if m := current(); m != nil {
		m.profilesTotal.Set(float64(profiles))
		m.eventsTotal.Set(float64(events))
	}
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	if m := current(); m != nil {
		m.queueSize.Set(float64(size))
	}
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	if m := current(); m != nil {
		m.queueCapacity.Set(float64(capacity))
	}
}

// RecordQueueEnqueue counts an accepted job.
func RecordQueueEnqueue() {
	if m := current(); m != nil {
		m.queueEnqueued.Inc()
	}
}

// RecordQueueDequeue counts a job handed to a worker.
func RecordQueueDequeue() {
	if m := current(); m != nil {
		m.queueDequeued.Inc()
	}
}

// RecordQueueEnqueueError counts a rejected job.
func RecordQueueEnqueueError() {
	if m := current(); m != nil {
		m.queueEnqueueErrors.Inc()
	}
}

// UpdateWorkerCount sets the running worker count.
func UpdateWorkerCount(count int) {
	if m := current(); m != nil {
		m.workerCount.Set(float64(count))
	}
}

// RecordWorkerProcessingLatency records one job's processing time in milliseconds.
func RecordWorkerProcessingLatency(latencyMs float64) {
	if m := current(); m != nil {
		m.workerProcessingLatency.Observe(latencyMs)
	}
}

// RecordWorkerError counts a failed job.
func RecordWorkerError() {
	if m := current(); m != nil {
		m.workerErrors.Inc()
	}
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if m := current(); m != nil {
		m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	}
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	if m := current(); m != nil {
		m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
	}
}

// RecordErrorByComponent counts an error raised by component.
func RecordErrorByComponent(component, errorType string) {
	if m := current(); m != nil {
		m.errorsByComponent.WithLabelValues(component, errorType).Inc()
	}
}

// RecordErrorByEndpoint counts an HTTP error response.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	if m := current(); m != nil {
		m.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
	}
}

// UpdateSystemMemoryUsage sets heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	if m := current(); m != nil {
		m.systemMemoryUsage.Set(float64(bytes))
	}
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) {
	if m := current(); m != nil {
		m.systemGoroutineCount.Set(float64(count))
	}
}

// RefreshInterval returns the interval configured on the global manager.
func RefreshInterval() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return globalManager.refreshInterval
}

// GetRegistry returns the registry the global manager writes to.
func GetRegistry() *prometheus.Registry {
	mu.RLock()
	defer mu.RUnlock()
	return customRegistry
}
