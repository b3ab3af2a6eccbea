package id

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// Configuration constants
const (
	// Lock and allocation retry configuration
	DefaultMaxRetries      = 3
	DefaultInitialBackoff  = 100 * time.Millisecond
	DefaultBackoffMultiple = 2
	DefaultJitterPercent   = 0.5 // 50% jitter to avoid thundering herd

	// File backend configuration
	DefaultFilePermissions = 0644
	DefaultDirPermissions  = 0755

	// Node identity
	DefaultNodeKey       = "nodes/self.json"
	DefaultLeaseTTL      = 30 * time.Second
	DefaultNodePrefix    = 0x020000 // locally administered, unicast
	DefaultAllocAttempts = 16
	DefaultServerPort    = 5433
)

// RetryConfig holds configuration for retry operations with exponential backoff
type RetryConfig struct {
	MaxRetries      int
	InitialBackoff  time.Duration
	BackoffMultiple int
	JitterPercent   float64
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      DefaultMaxRetries,
		InitialBackoff:  DefaultInitialBackoff,
		BackoffMultiple: DefaultBackoffMultiple,
		JitterPercent:   DefaultJitterPercent,
	}
}

// Validate checks if the RetryConfig is valid
func (c RetryConfig) Validate() error {
	if c.MaxRetries < 0 {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "MaxRetries",
			"value":  c.MaxRetries,
			"reason": "must be non-negative",
		})
	}
	if c.InitialBackoff <= 0 {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "InitialBackoff",
			"value":  c.InitialBackoff,
			"reason": "must be positive",
		})
	}
	if c.BackoffMultiple < 1 {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "BackoffMultiple",
			"value":  c.BackoffMultiple,
			"reason": "must be >= 1",
		})
	}
	if c.JitterPercent < 0 || c.JitterPercent > 1 {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "JitterPercent",
			"value":  c.JitterPercent,
			"reason": "must be between 0 and 1",
		})
	}
	return nil
}

// Backoff returns the wait before retry number attempt (0-based): the initial
// backoff grown by BackoffMultiple per attempt, plus up to JitterPercent of
// random jitter.
func (c RetryConfig) Backoff(attempt int) time.Duration {
	d := c.InitialBackoff
	for i := 0; i < attempt; i++ {
		d *= time.Duration(c.BackoffMultiple)
	}
	if c.JitterPercent > 0 {
		d += time.Duration(rand.Float64() * c.JitterPercent * float64(d))
	}
	return d
}

// Do runs fn, retrying up to MaxRetries more times while it fails with
// ErrBackendUnavailable. Other errors return at once. It returns ctx.Err()
// if ctx ends while waiting. The zero RetryConfig runs fn once.
func (c RetryConfig) Do(ctx context.Context, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil || !errors.Is(err, ErrBackendUnavailable) || attempt >= c.MaxRetries {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.Backoff(attempt)):
		}
	}
}

// GeneratorConfig controls the payload stamped on every TimeID a Generator
// issues.
type GeneratorConfig struct {
	Payload       uint16 // fixed 14-bit payload
	RandomPayload bool   // draw the payload once at construction instead
}

// Validate checks if the GeneratorConfig is valid
func (c GeneratorConfig) Validate() error {
	if c.Payload > MaxPayload {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "Payload",
			"value":  c.Payload,
			"reason": "must fit in 14 bits",
		})
	}
	if c.RandomPayload && c.Payload != 0 {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "RandomPayload",
			"reason": "cannot be combined with a fixed Payload",
		})
	}
	return nil
}

// AllocatorConfig configures RedisNodeAllocator.
type AllocatorConfig struct {
	KeyPrefix   string        // Redis key namespace
	Prefix      uint32        // high 24 bits of every allocated node
	LeaseTTL    time.Duration // how long a claimed node stays reserved without refresh
	MaxAttempts int           // counter values to try before giving up
	Retry       RetryConfig   // transient Redis failures; zero means no retries
}

// DefaultAllocatorConfig returns the default allocator configuration
func DefaultAllocatorConfig() AllocatorConfig {
	return AllocatorConfig{
		KeyPrefix:   "id",
		Prefix:      DefaultNodePrefix,
		LeaseTTL:    DefaultLeaseTTL,
		MaxAttempts: DefaultAllocAttempts,
		Retry:       DefaultRetryConfig(),
	}
}

// Validate checks if the AllocatorConfig is valid
func (c AllocatorConfig) Validate() error {
	if c.KeyPrefix == "" {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "KeyPrefix",
			"reason": "key prefix is required",
		})
	}
	if c.Prefix > 0xFFFFFF {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "Prefix",
			"value":  c.Prefix,
			"reason": "must fit in 24 bits",
		})
	}
	if c.Prefix&0x020000 == 0 || c.Prefix&0x010000 != 0 {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "Prefix",
			"value":  c.Prefix,
			"reason": "must be a locally administered unicast prefix",
		})
	}
	if c.LeaseTTL < time.Second {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "LeaseTTL",
			"value":  c.LeaseTTL,
			"reason": "must be at least one second",
		})
	}
	if c.MaxAttempts < 1 {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "MaxAttempts",
			"value":  c.MaxAttempts,
			"reason": "must be >= 1",
		})
	}
	if c.Retry != (RetryConfig{}) {
		return c.Retry.Validate()
	}
	return nil
}

// Node source names accepted by ServerConfig.NodeSource.
const (
	NodeSourceStatic    = "static"
	NodeSourceInterface = "interface"
	NodeSourceRandom    = "random"
	NodeSourceStored    = "stored"
	NodeSourceRedis     = "redis"
)

// ServerConfig configures the wire server and how it picks its node.
type ServerConfig struct {
	Port       int
	Node       string // address for NodeSourceStatic, interface name for NodeSourceInterface
	NodeSource string
	Backend    BackendConfig // used by NodeSourceStored
	Generator  GeneratorConfig
	Allocator  AllocatorConfig // used by NodeSourceRedis
}

// Validate checks if the ServerConfig is valid
func (c ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "Port",
			"value":  c.Port,
			"reason": "must be a TCP port",
		})
	}

	switch c.NodeSource {
	case NodeSourceStatic:
		if _, err := ParseEUI48(c.Node); err != nil {
			return WithContext(ErrInvalidConfig, map[string]interface{}{
				"field":  "Node",
				"value":  c.Node,
				"reason": "static node must be an EUI48 address",
			})
		}
	case NodeSourceInterface, NodeSourceRandom:
	case NodeSourceStored:
		if err := c.Backend.Validate(); err != nil {
			return err
		}
	case NodeSourceRedis:
		if err := c.Allocator.Validate(); err != nil {
			return err
		}
	default:
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "NodeSource",
			"value":  c.NodeSource,
			"reason": "unknown node source",
		})
	}

	return c.Generator.Validate()
}
