package id

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"
)

// Generator issues TimeIDs for one node. It is safe for concurrent use.
//
// Every TimeID from one Generator carries a distinct tick: when the clock
// stalls or moves backwards the generator issues one past the last tick
// instead, so it runs slightly ahead of the clock until the clock catches up.
type Generator struct {
	node    EUI48
	clock   TickSource
	payload uint16
	logger  Logger
	metrics Metrics

	mu   sync.Mutex
	last uint64
	init bool
}

// NewGenerator validates cfg and returns a generator for node. A nil clock
// means NewSystemClock.
func NewGenerator(node EUI48, clock TickSource, cfg GeneratorConfig, logger Logger, metrics Metrics) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = NewSystemClock()
	}
	if logger == nil {
		logger = &NoOpLogger{}
	}
	if metrics == nil {
		metrics = &NoOpMetrics{}
	}

	payload := cfg.Payload
	if cfg.RandomPayload {
		var b [2]byte
		if _, err := rand.Read(b[:]); err != nil {
			return nil, fmt.Errorf("failed to draw payload: %w", err)
		}
		payload = binary.BigEndian.Uint16(b[:]) & MaxPayload
	}

	return &Generator{
		node:    node,
		clock:   clock,
		payload: payload,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// NewGeneratorFromProvider resolves the node from provider first.
func NewGeneratorFromProvider(ctx context.Context, provider NodeProvider, clock TickSource, cfg GeneratorConfig, logger Logger, metrics Metrics) (*Generator, error) {
	node, err := provider.Node(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve node: %w", err)
	}
	return NewGenerator(node, clock, cfg, logger, metrics)
}

// Node returns the node stamped on every TimeID.
func (g *Generator) Node() EUI48 { return g.node }

// Payload returns the payload stamped on every TimeID.
func (g *Generator) Payload() uint16 { return g.payload }

// Next returns a new TimeID.
func (g *Generator) Next(ctx context.Context) (TimeID, error) {
	if err := ctx.Err(); err != nil {
		return TimeID{}, err
	}

	tick, err := g.nextTick()
	if err != nil {
		g.metrics.Increment(MetricGenerateError, "reason", "tick_range")
		g.logger.Error("tick out of range", "node", g.node.String(), "error", err)
		return TimeID{}, err
	}

	t, err := NewTimeID(g.node, tick, g.payload)
	if err != nil {
		g.metrics.Increment(MetricGenerateError, "reason", "encode")
		return TimeID{}, err
	}

	g.metrics.Increment(MetricGenerateSuccess, "node", g.node.StringNoPunctuation())
	return t, nil
}

// NextN returns n TimeIDs in generation order.
func (g *Generator) NextN(ctx context.Context, n int) ([]TimeID, error) {
	ids := make([]TimeID, 0, n)
	for i := 0; i < n; i++ {
		t, err := g.Next(ctx)
		if err != nil {
			return ids, err
		}
		ids = append(ids, t)
	}
	return ids, nil
}

func (g *Generator) nextTick() (uint64, error) {
	tick := g.clock.Ticks()

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.init && tick <= g.last {
		if tick < g.last {
			g.logger.Warn("clock moved backwards",
				"node", g.node.String(),
				"tick", tick,
				"last", g.last,
			)
		}
		g.metrics.Increment(MetricClockAdjust, "node", g.node.StringNoPunctuation())
		tick = g.last + 1
	}
	if tick > MaxTick {
		return 0, WithContext(ErrTickRange, map[string]interface{}{
			"tick": tick,
		})
	}

	g.last, g.init = tick, true
	return tick, nil
}
