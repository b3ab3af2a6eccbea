package id

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "id"

// PrometheusMetrics implements the Metrics interface using Prometheus
type PrometheusMetrics struct {
	mu         sync.RWMutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
	registry   *prometheus.Registry
}

// NewPrometheusMetrics creates a new Prometheus metrics instance
// If registry is nil, uses the default Prometheus registry
func NewPrometheusMetrics(registry *prometheus.Registry) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer.(*prometheus.Registry)
	}

	pm := &PrometheusMetrics{
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		registry:   registry,
	}

	pm.registerDefaultMetrics()
	return pm
}

type counterDef struct {
	name      string
	subsystem string
	metric    string
	help      string
	labels    []string
}

var defaultCounters = []counterDef{
	{MetricGenerateSuccess, "generator", "ids_total", "Total number of identifiers issued", []string{"node"}},
	{MetricGenerateError, "generator", "errors_total", "Total number of failed generations", []string{"reason"}},
	{MetricClockAdjust, "generator", "clock_adjustments_total", "Ticks bumped past a stalled or regressed clock", []string{"node"}},

	{MetricNodeResolved, "node", "resolved_total", "Node addresses resolved by provider", []string{"source"}},
	{MetricNodeError, "node", "errors_total", "Node resolution failures by provider", []string{"source"}},
	{MetricNodeAllocated, "node", "allocated_total", "Node addresses allocated from the shared counter", nil},

	{MetricBackendOps, "backend", "operations_total", "Total number of backend operations", []string{"operation", "backend"}},
	{MetricBackendErrors, "backend", "errors_total", "Total number of backend errors", []string{"operation", "backend"}},

	{MetricLockAcquired, "lock", "acquired_total", "Distributed locks acquired", nil},
	{MetricLockFailed, "lock", "failed_total", "Distributed lock acquisitions that failed", nil},
	{MetricCounterIncrement, "counter", "increments_total", "Shared counter increments", nil},
	{MetricCounterError, "counter", "errors_total", "Shared counter failures", nil},

	{MetricServerQueries, "server", "queries_total", "Queries answered by the wire server", []string{"function"}},
	{MetricServerErrors, "server", "errors_total", "Queries that returned an error", nil},
}

// registerDefaultMetrics registers all standard metrics
func (p *PrometheusMetrics) registerDefaultMetrics() {
	for _, d := range defaultCounters {
		p.counters[d.name] = promauto.With(p.registry).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: d.subsystem,
				Name:      d.metric,
				Help:      d.help,
			},
			d.labels,
		)
	}

	// Timing histograms
	p.histograms[MetricBackendLatency] = promauto.With(p.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "backend",
			Name:      "operation_duration_seconds",
			Help:      "Backend operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation", "backend"},
	)

	p.histograms[MetricQueryDuration] = promauto.With(p.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "server",
			Name:      "query_duration_seconds",
			Help:      "Wire server query duration in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		},
		nil,
	)

	p.gauges[MetricServerConnections] = promauto.With(p.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "server",
			Name:      "connections",
			Help:      "Open wire server connections",
		},
		nil,
	)
}

// Increment increments a Prometheus counter
func (p *PrometheusMetrics) Increment(name string, tags ...string) {
	p.mu.RLock()
	counter, ok := p.counters[name]
	p.mu.RUnlock()
	if !ok {
		p.mu.Lock()
		if counter, ok = p.counters[name]; !ok {
			// Create dynamic counter if it doesn't exist
			counter = promauto.With(p.registry).NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Name:      promName(name),
					Help:      "Dynamic counter: " + name,
				},
				p.extractLabels(tags),
			)
			p.counters[name] = counter
		}
		p.mu.Unlock()
	}

	counter.With(p.extractLabelValues(tags)).Inc()
}

// Gauge sets a Prometheus gauge value
func (p *PrometheusMetrics) Gauge(name string, value float64, tags ...string) {
	p.mu.RLock()
	gauge, ok := p.gauges[name]
	p.mu.RUnlock()
	if !ok {
		p.mu.Lock()
		if gauge, ok = p.gauges[name]; !ok {
			gauge = promauto.With(p.registry).NewGaugeVec(
				prometheus.GaugeOpts{
					Namespace: metricsNamespace,
					Name:      promName(name),
					Help:      "Dynamic gauge: " + name,
				},
				p.extractLabels(tags),
			)
			p.gauges[name] = gauge
		}
		p.mu.Unlock()
	}

	gauge.With(p.extractLabelValues(tags)).Set(value)
}

// Histogram records a value in a Prometheus histogram
func (p *PrometheusMetrics) Histogram(name string, value float64, tags ...string) {
	p.mu.RLock()
	histogram, ok := p.histograms[name]
	p.mu.RUnlock()
	if !ok {
		p.mu.Lock()
		if histogram, ok = p.histograms[name]; !ok {
			histogram = promauto.With(p.registry).NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: metricsNamespace,
					Name:      promName(name),
					Help:      "Dynamic histogram: " + name,
					Buckets:   prometheus.DefBuckets,
				},
				p.extractLabels(tags),
			)
			p.histograms[name] = histogram
		}
		p.mu.Unlock()
	}

	histogram.With(p.extractLabelValues(tags)).Observe(value)
}

// Timing records a duration in a Prometheus histogram
func (p *PrometheusMetrics) Timing(name string, duration time.Duration, tags ...string) {
	p.Histogram(name, duration.Seconds(), tags...)
}

// extractLabels extracts label names from tags (every even index)
func (p *PrometheusMetrics) extractLabels(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}

	labels := make([]string, 0, len(tags)/2)
	for i := 0; i+1 < len(tags); i += 2 {
		labels = append(labels, tags[i])
	}
	return labels
}

// extractLabelValues creates a label map from tags (key-value pairs)
func (p *PrometheusMetrics) extractLabelValues(tags []string) prometheus.Labels {
	labels := make(prometheus.Labels, len(tags)/2)
	for i := 0; i+1 < len(tags); i += 2 {
		labels[tags[i]] = tags[i+1]
	}
	return labels
}

// GetRegistry returns the underlying Prometheus registry
func (p *PrometheusMetrics) GetRegistry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// promName turns a dotted metric name into a valid Prometheus name.
func promName(name string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(strings.TrimPrefix(name, metricsNamespace+"."))
}
