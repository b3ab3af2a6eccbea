package id

import (
	"sync"
	"time"
)

// Metrics provides observability for generators, node providers, backends
// and the wire server
type Metrics interface {
	// Increment increases a counter by 1
	Increment(name string, tags ...string)

	// Gauge sets an absolute value
	Gauge(name string, value float64, tags ...string)

	// Histogram records a value distribution
	Histogram(name string, value float64, tags ...string)

	// Timing records a duration
	Timing(name string, duration time.Duration, tags ...string)
}

// NoOpMetrics is a metrics collector that does nothing
type NoOpMetrics struct{}

func (m *NoOpMetrics) Increment(name string, tags ...string)                      {}
func (m *NoOpMetrics) Gauge(name string, value float64, tags ...string)           {}
func (m *NoOpMetrics) Histogram(name string, value float64, tags ...string)       {}
func (m *NoOpMetrics) Timing(name string, duration time.Duration, tags ...string) {}

// InMemoryMetrics stores metrics in memory for testing. Safe for concurrent
// use; read the maps only once writers are done.
type InMemoryMetrics struct {
	mu         sync.Mutex
	Counters   map[string]int
	Gauges     map[string]float64
	Histograms map[string][]float64
	Timings    map[string][]time.Duration
}

func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{
		Counters:   make(map[string]int),
		Gauges:     make(map[string]float64),
		Histograms: make(map[string][]float64),
		Timings:    make(map[string][]time.Duration),
	}
}

func (m *InMemoryMetrics) Increment(name string, tags ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Counters[name]++
}

func (m *InMemoryMetrics) Gauge(name string, value float64, tags ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Gauges[name] = value
}

func (m *InMemoryMetrics) Histogram(name string, value float64, tags ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Histograms[name] = append(m.Histograms[name], value)
}

func (m *InMemoryMetrics) Timing(name string, duration time.Duration, tags ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Timings[name] = append(m.Timings[name], duration)
}

// Count returns a counter value under the lock.
func (m *InMemoryMetrics) Count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Counters[name]
}

// Common metric names
const (
	MetricGenerateSuccess = "id.generate.success"
	MetricGenerateError   = "id.generate.error"
	MetricClockAdjust     = "id.generate.clock_adjust" // tick did not advance past the last one issued

	MetricNodeResolved  = "id.node.resolved"
	MetricNodeError     = "id.node.error"
	MetricNodeAllocated = "id.node.allocated"
	MetricNodeLeases    = "id.node.leases"

	MetricBackendOps     = "id.backend.ops"
	MetricBackendErrors  = "id.backend.errors"
	MetricBackendLatency = "id.backend.latency"

	MetricLockAcquired     = "id.lock.acquired"
	MetricLockFailed       = "id.lock.failed"
	MetricCounterIncrement = "id.counter.increment"
	MetricCounterError     = "id.counter.error"

	MetricServerQueries     = "id.server.queries"
	MetricServerErrors      = "id.server.errors"
	MetricServerConnections = "id.server.connections"
	MetricQueryDuration     = "id.server.query_duration"
)
