package id

import (
	"context"
	"errors"
	"testing"
)

func TestCounter_IncrementGetSet(t *testing.T) {
	_, client := newTestRedis(t)
	metrics := NewInMemoryMetrics()
	c := NewCounter(client, "id:counter:test", nil, metrics)
	ctx := context.Background()

	if v, err := c.Get(ctx); err != nil || v != 0 {
		t.Fatalf("expected 0 for missing counter, got %d, %v", v, err)
	}

	for want := int64(1); want <= 3; want++ {
		got, err := c.Increment(ctx)
		if err != nil {
			t.Fatalf("increment: %v", err)
		}
		if got != want {
			t.Errorf("expected %d, got %d", want, got)
		}
	}

	if err := c.Set(ctx, 100); err != nil {
		t.Fatalf("set: %v", err)
	}
	if v, _ := c.Get(ctx); v != 100 {
		t.Errorf("expected 100 after set, got %d", v)
	}

	if err := c.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if v, _ := c.Get(ctx); v != 0 {
		t.Errorf("expected 0 after reset, got %d", v)
	}

	if got := metrics.Count(MetricCounterIncrement); got != 3 {
		t.Errorf("expected 3 increments recorded, got %d", got)
	}
}

func TestCounter_InvalidValue(t *testing.T) {
	mr, client := newTestRedis(t)
	c := NewCounter(client, "id:counter:bad", nil, nil)

	mr.Set("id:counter:bad", "not-a-number")
	if _, err := c.Get(context.Background()); err == nil {
		t.Error("expected error for non-numeric counter")
	}
}

func TestCounter_RedisErrorIsUnavailable(t *testing.T) {
	mr, client := newTestRedis(t)
	metrics := NewInMemoryMetrics()
	c := NewCounter(client, "id:counter:test", nil, metrics)

	mr.SetError("ERR redis is down")
	if _, err := c.Increment(context.Background()); !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("expected ErrBackendUnavailable, got %v", err)
	}
	if got := metrics.Count(MetricCounterError); got != 1 {
		t.Errorf("expected 1 counter error, got %d", got)
	}
}

func TestCounter_NoRedis(t *testing.T) {
	c := NewCounter(nil, "k", nil, nil)
	if _, err := c.Increment(context.Background()); !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("expected ErrBackendUnavailable, got %v", err)
	}
}
