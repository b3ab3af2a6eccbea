package id

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRedisNodeAllocator_AllocatesFromPrefix(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()
	metrics := NewInMemoryMetrics()

	alloc, err := NewRedisNodeAllocator(client, DefaultAllocatorConfig(), nil, metrics)
	if err != nil {
		t.Fatalf("new allocator: %v", err)
	}

	node, err := alloc.Node(ctx)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if node.String() != "02:00:00:00:00:01" {
		t.Errorf("expected first node 02:00:00:00:00:01, got %s", node)
	}

	again, err := alloc.Node(ctx)
	if err != nil || again != node {
		t.Errorf("expected cached node %v, got %v (%v)", node, again, err)
	}

	if !mr.Exists("id:lock:node:020000000001") {
		t.Error("lease key should exist")
	}
	if v, _ := mr.Get("id:counter:node"); v != "1" {
		t.Errorf("expected counter 1, got %q", v)
	}
	if metrics.Count(MetricNodeAllocated) != 1 {
		t.Errorf("expected one allocation recorded")
	}
}

func TestRedisNodeAllocator_ConcurrentProcessesGetDistinctNodes(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()

	const procs = 10
	nodes := make([]EUI48, procs)
	var wg sync.WaitGroup
	for i := 0; i < procs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			alloc, err := NewRedisNodeAllocator(client, DefaultAllocatorConfig(), nil, nil)
			if err != nil {
				t.Errorf("new allocator: %v", err)
				return
			}
			nodes[i], err = alloc.Node(ctx)
			if err != nil {
				t.Errorf("allocate: %v", err)
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[EUI48]bool)
	for _, n := range nodes {
		if seen[n] {
			t.Errorf("node %v allocated twice", n)
		}
		seen[n] = true
	}
}

func TestRedisNodeAllocator_SkipsLiveLeaseAfterWrap(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()

	first, _ := NewRedisNodeAllocator(client, DefaultAllocatorConfig(), nil, nil)
	held, err := first.Node(ctx)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	// wrap the 24-bit suffix space so the next INCR lands on the held suffix
	mr.Set("id:counter:node", "16777216")

	second, _ := NewRedisNodeAllocator(client, DefaultAllocatorConfig(), nil, nil)
	got, err := second.Node(ctx)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if got == held {
		t.Fatalf("allocated a node still leased by another process: %v", got)
	}
	if got.String() != "02:00:00:00:00:02" {
		t.Errorf("expected 02:00:00:00:00:02, got %s", got)
	}
}

func TestRedisNodeAllocator_Exhausted(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()

	cfg := DefaultAllocatorConfig()
	cfg.MaxAttempts = 2
	for _, key := range []string{"id:lock:node:020000000001", "id:lock:node:020000000002"} {
		mr.Set(key, "held")
		mr.SetTTL(key, time.Minute)
	}

	alloc, _ := NewRedisNodeAllocator(client, cfg, nil, nil)
	_, err := alloc.Node(ctx)
	if !errors.Is(err, ErrNodeExhausted) {
		t.Errorf("expected ErrNodeExhausted, got %v", err)
	}
}

func TestRedisNodeAllocator_RefreshAndRelease(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()

	cfg := DefaultAllocatorConfig()
	cfg.LeaseTTL = 2 * time.Second
	alloc, _ := NewRedisNodeAllocator(client, cfg, nil, nil)

	if err := alloc.Refresh(ctx); !IsNotFound(err) {
		t.Errorf("refresh before allocation should fail with not found, got %v", err)
	}

	node, err := alloc.Node(ctx)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	mr.FastForward(1500 * time.Millisecond)
	if err := alloc.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	mr.FastForward(1500 * time.Millisecond)
	if !mr.Exists("id:lock:node:" + node.StringNoPunctuation()) {
		t.Fatal("refreshed lease expired")
	}

	if err := alloc.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if mr.Exists("id:lock:node:" + node.StringNoPunctuation()) {
		t.Error("lease should be gone after release")
	}

	next, err := alloc.Node(ctx)
	if err != nil {
		t.Fatalf("reallocate: %v", err)
	}
	if next == node {
		t.Error("expected a fresh node after release")
	}
}

func TestRedisNodeAllocator_LostLease(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()

	alloc, _ := NewRedisNodeAllocator(client, DefaultAllocatorConfig(), nil, nil)
	if _, err := alloc.Node(ctx); err != nil {
		t.Fatalf("allocate: %v", err)
	}

	mr.FastForward(DefaultLeaseTTL + time.Second)
	if err := alloc.Refresh(ctx); !errors.Is(err, ErrLockHeld) {
		t.Errorf("expected ErrLockHeld for expired lease, got %v", err)
	}
}

func TestRedisNodeAllocator_KeepAliveStopsOnCancel(t *testing.T) {
	_, client := newTestRedis(t)

	cfg := DefaultAllocatorConfig()
	cfg.LeaseTTL = time.Second
	alloc, _ := NewRedisNodeAllocator(client, cfg, nil, nil)
	if _, err := alloc.Node(context.Background()); err != nil {
		t.Fatalf("allocate: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 800*time.Millisecond)
	defer cancel()
	if err := alloc.KeepAlive(ctx); err != nil {
		t.Errorf("keepalive should end cleanly on cancel, got %v", err)
	}
}

func TestNewRedisNodeAllocator_InvalidConfig(t *testing.T) {
	_, client := newTestRedis(t)
	cfg := DefaultAllocatorConfig()
	cfg.Prefix = 0x010000 // multicast
	if _, err := NewRedisNodeAllocator(client, cfg, nil, nil); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestRedisNodeAllocator_RetriesWhileRedisIsDown(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()

	cfg := DefaultAllocatorConfig()
	cfg.Retry = RetryConfig{MaxRetries: 20, InitialBackoff: 10 * time.Millisecond, BackoffMultiple: 1}
	alloc, err := NewRedisNodeAllocator(client, cfg, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	mr.SetError("ERR redis is down")
	go func() {
		time.Sleep(50 * time.Millisecond)
		mr.SetError("")
	}()

	node, err := alloc.Node(ctx)
	if err != nil {
		t.Fatalf("allocation should survive a short outage: %v", err)
	}
	if got := node.String(); got != "02:00:00:00:00:01" {
		t.Errorf("expected 02:00:00:00:00:01, got %s", got)
	}
}

func TestRedisNodeAllocator_NoRetryFailsFast(t *testing.T) {
	mr, client := newTestRedis(t)

	cfg := DefaultAllocatorConfig()
	cfg.Retry = RetryConfig{}
	metrics := NewInMemoryMetrics()
	alloc, err := NewRedisNodeAllocator(client, cfg, nil, metrics)
	if err != nil {
		t.Fatal(err)
	}

	mr.SetError("ERR redis is down")
	if _, err := alloc.Node(context.Background()); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
	if got := metrics.Count(MetricCounterError); got != 1 {
		t.Errorf("expected a single counter attempt, got %d", got)
	}
}
