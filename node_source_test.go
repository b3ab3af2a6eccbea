package id

import (
	"context"
	"errors"
	"testing"
)

func TestOpenNodeProvider_Static(t *testing.T) {
	ctx := context.Background()
	p, closeFn, err := OpenNodeProvider(ctx, ServerConfig{NodeSource: NodeSourceStatic, Node: "0800.2b01.0203"}, nil, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer closeFn(ctx)

	node, err := p.Node(ctx)
	if err != nil || node.String() != "08:00:2b:01:02:03" {
		t.Errorf("unexpected node %v, %v", node, err)
	}

	if _, closeFn, err := OpenNodeProvider(ctx, ServerConfig{NodeSource: NodeSourceStatic, Node: "bogus"}, nil, nil); !IsInvalidFormat(err) || closeFn == nil {
		t.Errorf("expected invalid format and a usable close func, got %v", err)
	}
}

func TestOpenNodeProvider_Random(t *testing.T) {
	ctx := context.Background()
	p, _, err := OpenNodeProvider(ctx, ServerConfig{NodeSource: NodeSourceRandom}, nil, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := p.(*RandomNode); !ok {
		t.Errorf("expected *RandomNode, got %T", p)
	}
}

func TestOpenNodeProvider_Stored(t *testing.T) {
	ctx := context.Background()
	cfg := ServerConfig{
		NodeSource: NodeSourceStored,
		Backend:    BackendConfig{Type: BackendFilesystem, Bucket: t.TempDir()},
	}
	metrics := NewInMemoryMetrics()

	p, closeFn, err := OpenNodeProvider(ctx, cfg, nil, metrics)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	first, err := p.Node(ctx)
	if err != nil {
		t.Fatalf("node: %v", err)
	}
	closeFn(ctx)

	p, closeFn, _ = OpenNodeProvider(ctx, cfg, nil, nil)
	defer closeFn(ctx)
	second, err := p.Node(ctx)
	if err != nil {
		t.Fatalf("node: %v", err)
	}
	if first != second {
		t.Errorf("stored node changed across restarts: %v then %v", first, second)
	}

	if metrics.Count(MetricBackendOps) == 0 {
		t.Error("expected backend operations to be instrumented")
	}
}

func TestOpenNodeProvider_Redis(t *testing.T) {
	mr, _ := newTestRedis(t)
	t.Setenv("REDIS_ADDR", mr.Addr())
	ctx := context.Background()

	p, closeFn, err := OpenNodeProvider(ctx, ServerConfig{NodeSource: NodeSourceRedis, Allocator: DefaultAllocatorConfig()}, nil, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	node, err := p.Node(ctx)
	if err != nil {
		t.Fatalf("node: %v", err)
	}
	if !mr.Exists("id:lock:node:" + node.StringNoPunctuation()) {
		t.Error("expected lease while open")
	}

	if err := closeFn(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if mr.Exists("id:lock:node:" + node.StringNoPunctuation()) {
		t.Error("expected lease released on close")
	}
}

func TestOpenNodeProvider_Unknown(t *testing.T) {
	_, closeFn, err := OpenNodeProvider(context.Background(), ServerConfig{NodeSource: "dns"}, nil, nil)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
	if closeFn == nil {
		t.Error("close func should never be nil")
	}
}
