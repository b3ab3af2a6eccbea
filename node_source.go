package id

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// OpenNodeProvider builds the provider cfg.NodeSource names. The returned
// close function releases whatever the provider holds: the stored source's
// backend, or the redis source's lease and client. It is never nil.
func OpenNodeProvider(ctx context.Context, cfg ServerConfig, logger Logger, metrics Metrics) (NodeProvider, func(context.Context) error, error) {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	if metrics == nil {
		metrics = &NoOpMetrics{}
	}
	noop := func(context.Context) error { return nil }

	switch cfg.NodeSource {
	case NodeSourceStatic:
		node, err := ParseEUI48(cfg.Node)
		if err != nil {
			return nil, noop, err
		}
		return NewStaticNode(node), noop, nil

	case NodeSourceInterface:
		return NewInterfaceNode(cfg.Node), noop, nil

	case NodeSourceRandom:
		return NewRandomNode(), noop, nil

	case NodeSourceStored:
		backend, err := NewBackend(ctx, cfg.Backend)
		if err != nil {
			return nil, noop, err
		}
		instrumented := NewInstrumentedBackend(backend, cfg.Backend.Type, logger, metrics)
		provider := NewStoredNode(instrumented, DefaultNodeKey, NewRandomNode(), logger, metrics)
		return provider, func(context.Context) error { return backend.Close() }, nil

	case NodeSourceRedis:
		client := redis.NewClient(RedisOptions())
		alloc, err := NewRedisNodeAllocator(client, cfg.Allocator, logger, metrics)
		if err != nil {
			client.Close()
			return nil, noop, err
		}
		return alloc, func(ctx context.Context) error {
			return errors.Join(alloc.Release(ctx), client.Close())
		}, nil

	default:
		return nil, noop, WithContext(ErrInvalidConfig, map[string]interface{}{
			"field": "NodeSource",
			"value": cfg.NodeSource,
		})
	}
}
