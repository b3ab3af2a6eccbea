package id

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const nodeLeasePrefix = "node:"

func nodeCounterKey(keyPrefix string) string {
	return keyPrefix + ":counter:node"
}

// RedisNodeAllocator hands out cluster-unique node addresses. Each process
// increments a shared counter, appends the low 24 bits of the result to a
// locally administered prefix, and claims that node with a TTL lease. A
// suffix still leased by a live process is skipped. Redis errors are retried
// with the configured RetryConfig before Node gives up.
type RedisNodeAllocator struct {
	cfg     AllocatorConfig
	counter *Counter
	lock    *DistributedLock
	logger  Logger
	metrics Metrics

	mu    sync.Mutex
	node  EUI48
	lease *Lease
}

// NewRedisNodeAllocator validates cfg and returns an allocator. The client is
// not owned by the allocator.
func NewRedisNodeAllocator(client *redis.Client, cfg AllocatorConfig, logger Logger, metrics Metrics) (*RedisNodeAllocator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = &NoOpLogger{}
	}
	if metrics == nil {
		metrics = &NoOpMetrics{}
	}

	lock := NewDistributedLock(client, cfg.KeyPrefix)
	lock.SetMetrics(metrics)
	lock.SetRetryConfig(cfg.Retry)

	return &RedisNodeAllocator{
		cfg:     cfg,
		counter: NewCounter(client, nodeCounterKey(cfg.KeyPrefix), logger, metrics),
		lock:    lock,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Node allocates a node on first call and returns the same node afterwards,
// as long as the lease has not been released.
func (a *RedisNodeAllocator) Node(ctx context.Context) (EUI48, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.lease != nil {
		return a.node, nil
	}

	for attempt := 0; attempt < a.cfg.MaxAttempts; attempt++ {
		var n int64
		err := a.cfg.Retry.Do(ctx, func() error {
			var err error
			n, err = a.counter.Increment(ctx)
			return err
		})
		if err != nil {
			a.metrics.Increment(MetricNodeError, "source", NodeSourceRedis)
			return EUI48{}, err
		}

		node, err := EUI48FromUint64(uint64(a.cfg.Prefix)<<24 | uint64(n)&0xFFFFFF)
		if err != nil {
			return EUI48{}, err
		}

		lease, err := a.lock.AcquireWithRetry(ctx, nodeLeasePrefix+node.StringNoPunctuation(), a.cfg.LeaseTTL)
		if errors.Is(err, ErrLockHeld) {
			a.logger.Debug("node suffix in use, trying next", "node", node.String(), "attempt", attempt)
			continue
		}
		if err != nil {
			a.metrics.Increment(MetricNodeError, "source", NodeSourceRedis)
			return EUI48{}, err
		}

		a.node, a.lease = node, lease
		a.metrics.Increment(MetricNodeAllocated)
		a.metrics.Increment(MetricNodeResolved, "source", NodeSourceRedis)
		a.logger.Info("node allocated",
			"source", NodeSourceRedis,
			"node", node.String(),
			"counter", n,
			"ttl", a.cfg.LeaseTTL,
		)
		return node, nil
	}

	a.metrics.Increment(MetricNodeError, "source", NodeSourceRedis)
	return EUI48{}, WithContext(ErrNodeExhausted, map[string]interface{}{
		"prefix":   fmt.Sprintf("%06x", a.cfg.Prefix),
		"attempts": a.cfg.MaxAttempts,
	})
}

// Refresh extends the current lease. It returns ErrLockHeld if the lease was
// lost, after which the node must no longer be used.
func (a *RedisNodeAllocator) Refresh(ctx context.Context) error {
	a.mu.Lock()
	lease := a.lease
	a.mu.Unlock()

	if lease == nil {
		return WithContext(ErrNotFound, map[string]interface{}{"reason": "no node allocated"})
	}
	return lease.Refresh(ctx)
}

// KeepAlive refreshes the lease every third of its TTL until ctx ends or a
// refresh fails. It returns the refresh error, or nil when ctx ends.
func (a *RedisNodeAllocator) KeepAlive(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.LeaseTTL / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := a.Refresh(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				a.logger.Error("node lease refresh failed", "node", a.node.String(), "error", err)
				return err
			}
		}
	}
}

// Release gives the node back. A later Node call allocates a new one.
func (a *RedisNodeAllocator) Release(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.lease == nil {
		return nil
	}
	err := a.lease.Release(ctx)
	a.logger.Info("node released", "node", a.node.String())
	a.lease = nil
	a.node = EUI48{}
	return err
}
