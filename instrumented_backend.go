package id

import (
	"context"
	"time"
)

// InstrumentedBackend wraps any backend and records per-operation counts,
// errors and latency. Missing keys and lost conditional writes are expected
// outcomes and are not counted as errors.
//
//	backend = id.NewInstrumentedBackend(backend, "s3", logger, metrics)
type InstrumentedBackend struct {
	Backend
	name    string
	logger  Logger
	metrics Metrics
}

// NewInstrumentedBackend wraps backend. name labels the series, e.g. "s3".
func NewInstrumentedBackend(backend Backend, name string, logger Logger, metrics Metrics) *InstrumentedBackend {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	if metrics == nil {
		metrics = &NoOpMetrics{}
	}
	return &InstrumentedBackend{Backend: backend, name: name, logger: logger, metrics: metrics}
}

func (b *InstrumentedBackend) observe(op, key string, start time.Time, err error) {
	b.metrics.Timing(MetricBackendLatency, time.Since(start), "operation", op, "backend", b.name)
	b.metrics.Increment(MetricBackendOps, "operation", op, "backend", b.name)

	if err == nil || IsNotFound(err) || IsAlreadyExists(err) || IsConflict(err) {
		return
	}
	b.metrics.Increment(MetricBackendErrors, "operation", op, "backend", b.name)
	b.logger.Warn("backend operation failed", "backend", b.name, "operation", op, "key", key, "error", err)
}

func (b *InstrumentedBackend) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	data, err := b.Backend.Get(ctx, key)
	b.observe("get", key, start, err)
	return data, err
}

func (b *InstrumentedBackend) Put(ctx context.Context, key string, data []byte) error {
	start := time.Now()
	err := b.Backend.Put(ctx, key, data)
	b.observe("put", key, start, err)
	return err
}

func (b *InstrumentedBackend) PutIfAbsent(ctx context.Context, key string, data []byte) error {
	start := time.Now()
	err := b.Backend.PutIfAbsent(ctx, key, data)
	b.observe("put_if_absent", key, start, err)
	return err
}

func (b *InstrumentedBackend) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := b.Backend.Delete(ctx, key)
	b.observe("delete", key, start, err)
	return err
}

func (b *InstrumentedBackend) Exists(ctx context.Context, key string) (bool, error) {
	start := time.Now()
	ok, err := b.Backend.Exists(ctx, key)
	b.observe("exists", key, start, err)
	return ok, err
}

func (b *InstrumentedBackend) GetWithETag(ctx context.Context, key string) ([]byte, string, error) {
	start := time.Now()
	data, etag, err := b.Backend.GetWithETag(ctx, key)
	b.observe("get_with_etag", key, start, err)
	return data, etag, err
}

func (b *InstrumentedBackend) PutIfMatch(ctx context.Context, key string, data []byte, expectedETag string) (string, error) {
	start := time.Now()
	etag, err := b.Backend.PutIfMatch(ctx, key, data, expectedETag)
	b.observe("put_if_match", key, start, err)
	return etag, err
}
