package id

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Lua scripts that act only while the caller still owns the lock value.
var (
	releaseScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		end
		return 0
	`)
	refreshScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		end
		return 0
	`)
)

// DistributedLock provides Redis-based locks with expiry. RedisNodeAllocator
// uses it to reserve node addresses across a cluster; each reservation is a
// Lease that the holder refreshes while it is alive.
type DistributedLock struct {
	redis      *redis.Client
	keyPrefix  string
	defaultTTL time.Duration
	retry      RetryConfig
	metrics    Metrics
}

// NewDistributedLock creates a new distributed lock manager using Redis
func NewDistributedLock(redis *redis.Client, keyPrefix string) *DistributedLock {
	return &DistributedLock{
		redis:      redis,
		keyPrefix:  keyPrefix,
		defaultTTL: DefaultLeaseTTL,
		retry:      DefaultRetryConfig(),
		metrics:    &NoOpMetrics{},
	}
}

// SetMetrics updates the metrics collector
func (l *DistributedLock) SetMetrics(metrics Metrics) {
	l.metrics = metrics
}

// SetRetryConfig replaces the backoff used by AcquireWithRetry
func (l *DistributedLock) SetRetryConfig(cfg RetryConfig) {
	l.retry = cfg
}

func (l *DistributedLock) lockKey(key string) string {
	return fmt.Sprintf("%s:lock:%s", l.keyPrefix, key)
}

// Lease is one held lock. Its value starts with the acquisition time in Unix
// nanoseconds so that LeaseManager can report lease age.
type Lease struct {
	Key        string
	AcquiredAt time.Time

	lock    *DistributedLock
	lockKey string
	value   string
	ttl     time.Duration
}

// Acquire takes the lock on key for ttl (the default TTL if zero). It fails
// with ErrLockHeld when another holder has it.
func (l *DistributedLock) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	if ttl == 0 {
		ttl = l.defaultTTL
	}

	now := time.Now()
	lease := &Lease{
		Key:        key,
		AcquiredAt: now,
		lock:       l,
		lockKey:    l.lockKey(key),
		value:      strconv.FormatInt(now.UnixNano(), 10) + ":" + uuid.NewString(),
		ttl:        ttl,
	}

	// SET NX: only set if not exists
	ok, err := l.redis.SetNX(ctx, lease.lockKey, lease.value, ttl).Result()
	if err != nil {
		l.metrics.Increment(MetricLockFailed)
		return nil, WithContext(ErrBackendUnavailable, map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
	if !ok {
		l.metrics.Increment(MetricLockFailed)
		return nil, WithContext(ErrLockHeld, map[string]interface{}{
			"key": key,
			"ttl": ttl,
		})
	}

	l.metrics.Increment(MetricLockAcquired)
	return lease, nil
}

// AcquireWithRetry is Acquire, retried with the lock's RetryConfig while
// Redis is unreachable. ErrLockHeld is returned at once: a held key is the
// caller's to handle, not a transient failure.
func (l *DistributedLock) AcquireWithRetry(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	var lease *Lease
	err := l.retry.Do(ctx, func() error {
		var err error
		lease, err = l.Acquire(ctx, key, ttl)
		return err
	})
	if err != nil {
		return nil, err
	}
	return lease, nil
}

// Refresh extends the lease by its TTL. It fails with ErrLockHeld if the
// lease expired and someone else took the key.
func (le *Lease) Refresh(ctx context.Context) error {
	n, err := refreshScript.Run(ctx, le.lock.redis, []string{le.lockKey}, le.value, le.ttl.Milliseconds()).Int()
	if err != nil {
		return WithContext(ErrBackendUnavailable, map[string]interface{}{
			"key":   le.Key,
			"error": err.Error(),
		})
	}
	if n == 0 {
		return WithContext(ErrLockHeld, map[string]interface{}{
			"key":    le.Key,
			"reason": "lease lost",
		})
	}
	return nil
}

// Release deletes the lock if this lease still owns it.
func (le *Lease) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, le.lock.redis, []string{le.lockKey}, le.value).Err()
}

// TTL returns the lease's configured time to live.
func (le *Lease) TTL() time.Duration { return le.ttl }

// leaseAcquiredAt extracts the acquisition time from a lease value.
func leaseAcquiredAt(value string) (time.Time, bool) {
	nanos, _, _ := strings.Cut(value, ":")
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(0, n), true
}
