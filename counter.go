package id

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Counter provides atomic counter operations with Redis backend.
// RedisNodeAllocator draws node suffixes from one; LeaseManager exposes the
// same counter for inspection and recovery.
type Counter struct {
	redis   *redis.Client
	key     string
	logger  Logger
	metrics Metrics
}

// NewCounter creates a new Redis-backed atomic counter
func NewCounter(redis *redis.Client, key string, logger Logger, metrics Metrics) *Counter {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	if metrics == nil {
		metrics = &NoOpMetrics{}
	}

	return &Counter{
		redis:   redis,
		key:     key,
		logger:  logger,
		metrics: metrics,
	}
}

// Key returns the Redis key holding the counter.
func (c *Counter) Key() string { return c.key }

// Increment atomically increments the counter and returns the new value
func (c *Counter) Increment(ctx context.Context) (int64, error) {
	if c.redis == nil {
		return 0, fmt.Errorf("redis not available: %w", ErrBackendUnavailable)
	}

	val, err := c.redis.Incr(ctx, c.key).Result()
	if err != nil {
		c.metrics.Increment(MetricCounterError)
		return 0, fmt.Errorf("failed to increment counter %s: %w: %w", c.key, ErrBackendUnavailable, err)
	}

	c.metrics.Increment(MetricCounterIncrement)
	return val, nil
}

// Get returns the current counter value, zero if it was never incremented
func (c *Counter) Get(ctx context.Context) (int64, error) {
	if c.redis == nil {
		return 0, fmt.Errorf("redis not available: %w", ErrBackendUnavailable)
	}

	val, err := c.redis.Get(ctx, c.key).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		c.metrics.Increment(MetricCounterError)
		return 0, fmt.Errorf("failed to get counter %s: %w: %w", c.key, ErrBackendUnavailable, err)
	}

	intVal, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid counter value %q: %w", val, err)
	}

	return intVal, nil
}

// Set sets the counter to a specific value.
// Only for recovery: moving it backwards hands out suffixes that may be live.
func (c *Counter) Set(ctx context.Context, value int64) error {
	if c.redis == nil {
		return fmt.Errorf("redis not available: %w", ErrBackendUnavailable)
	}

	if err := c.redis.Set(ctx, c.key, value, 0).Err(); err != nil {
		c.metrics.Increment(MetricCounterError)
		return fmt.Errorf("failed to set counter %s: %w: %w", c.key, ErrBackendUnavailable, err)
	}

	c.logger.Info("counter value set", "key", c.key, "value", value)
	return nil
}

// Reset resets the counter to zero, so allocation starts again at suffix 1.
func (c *Counter) Reset(ctx context.Context) error {
	return c.Set(ctx, 0)
}
