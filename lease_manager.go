package id

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// LeaseInfo describes one live node lease.
type LeaseInfo struct {
	Key        string        // resource key, e.g. "node:020000000001"
	LockKey    string        // full Redis key
	Value      string        // owner token
	Node       EUI48         // leased node, NilEUI48 if the key is not a node lease
	TTL        time.Duration // remaining TTL
	AcquiredAt time.Time     // zero if the value carries no timestamp
}

// LeaseManager inspects and cleans up leases written by DistributedLock.
// It backs the "leases" admin command.
type LeaseManager struct {
	redis     *redis.Client
	keyPrefix string
	logger    Logger
	metrics   Metrics
}

// NewLeaseManager creates a lease manager for administrative operations
func NewLeaseManager(redis *redis.Client, keyPrefix string, logger Logger, metrics Metrics) *LeaseManager {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	if metrics == nil {
		metrics = &NoOpMetrics{}
	}

	return &LeaseManager{
		redis:     redis,
		keyPrefix: keyPrefix,
		logger:    logger,
		metrics:   metrics,
	}
}

// NodeCounter returns the counter RedisNodeAllocator draws node suffixes
// from under the same key prefix.
func (lm *LeaseManager) NodeCounter() *Counter {
	return NewCounter(lm.redis, nodeCounterKey(lm.keyPrefix), lm.logger, lm.metrics)
}

func (lm *LeaseManager) lockPrefix() string {
	return lm.keyPrefix + ":lock:"
}

// ListLeases returns all live leases under the key prefix.
//
//	leases, err := manager.ListLeases(ctx)
//	for _, l := range leases {
//	    fmt.Printf("%s ttl=%s age=%s\n", l.Node, l.TTL, time.Since(l.AcquiredAt))
//	}
func (lm *LeaseManager) ListLeases(ctx context.Context) ([]LeaseInfo, error) {
	if lm.redis == nil {
		return nil, fmt.Errorf("redis not available: %w", ErrBackendUnavailable)
	}

	pattern := lm.lockPrefix() + "*"

	var leases []LeaseInfo
	var cursor uint64

	for {
		var keys []string
		var err error
		keys, cursor, err = lm.redis.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan lease keys: %w", err)
		}

		for _, lockKey := range keys {
			info, err := lm.read(ctx, lockKey)
			if err != nil {
				lm.logger.Warn("failed to read lease", "key", lockKey, "error", err)
				continue
			}
			if info != nil {
				leases = append(leases, *info)
			}
		}

		if cursor == 0 {
			break
		}
	}

	lm.metrics.Gauge(MetricNodeLeases, float64(len(leases)))

	return leases, nil
}

// read returns nil, nil for a key that expired between scan and read.
func (lm *LeaseManager) read(ctx context.Context, lockKey string) (*LeaseInfo, error) {
	ttl, err := lm.redis.PTTL(ctx, lockKey).Result()
	if err != nil {
		return nil, err
	}
	if ttl < 0 {
		return nil, nil
	}

	value, err := lm.redis.Get(ctx, lockKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	key := strings.TrimPrefix(lockKey, lm.lockPrefix())
	info := &LeaseInfo{
		Key:     key,
		LockKey: lockKey,
		Value:   value,
		TTL:     ttl,
	}
	if at, ok := leaseAcquiredAt(value); ok {
		info.AcquiredAt = at
	}
	if hex, ok := strings.CutPrefix(key, nodeLeasePrefix); ok {
		if node, err := ParseEUI48(hex); err == nil {
			info.Node = node
		}
	}
	return info, nil
}

// CleanupOrphaned removes leases acquired more than minAge ago. A lease that
// is still being refreshed after minAge is removed too, so pick minAge well
// above any expected process lifetime between restarts.
func (lm *LeaseManager) CleanupOrphaned(ctx context.Context, minAge time.Duration) (int, error) {
	leases, err := lm.ListLeases(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list leases: %w", err)
	}

	removed := 0
	now := time.Now()

	for _, lease := range leases {
		if lease.AcquiredAt.IsZero() {
			continue
		}
		age := now.Sub(lease.AcquiredAt)
		if age < minAge {
			continue
		}

		deleted, err := lm.redis.Del(ctx, lease.LockKey).Result()
		if err != nil {
			lm.logger.Warn("failed to delete orphaned lease",
				"key", lease.Key,
				"age", age,
				"error", err,
			)
			continue
		}

		if deleted > 0 {
			removed++
			lm.logger.Info("removed orphaned lease",
				"key", lease.Key,
				"age", age,
				"ttl_remaining", lease.TTL,
			)
		}
	}

	if removed > 0 {
		lm.logger.Info("orphaned lease cleanup completed",
			"removed", removed,
			"min_age", minAge,
		)
	}

	return removed, nil
}

// ForceRelease deletes a lease regardless of owner.
// Only use it when the holder is known to be gone.
func (lm *LeaseManager) ForceRelease(ctx context.Context, key string) error {
	if lm.redis == nil {
		return fmt.Errorf("redis not available: %w", ErrBackendUnavailable)
	}

	deleted, err := lm.redis.Del(ctx, lm.lockPrefix()+key).Result()
	if err != nil {
		return fmt.Errorf("failed to delete lease: %w", err)
	}
	if deleted == 0 {
		return WithContext(ErrNotFound, map[string]interface{}{"lease": key})
	}

	lm.logger.Info("forcefully released lease", "key", key)
	return nil
}

// GetLeaseInfo returns one lease, or ErrNotFound.
func (lm *LeaseManager) GetLeaseInfo(ctx context.Context, key string) (*LeaseInfo, error) {
	if lm.redis == nil {
		return nil, fmt.Errorf("redis not available: %w", ErrBackendUnavailable)
	}

	info, err := lm.read(ctx, lm.lockPrefix()+key)
	if err != nil {
		return nil, fmt.Errorf("failed to read lease: %w", err)
	}
	if info == nil {
		return nil, WithContext(ErrNotFound, map[string]interface{}{"lease": key})
	}
	return info, nil
}
