package id

import (
	"sync"
	"sync/atomic"
	"time"
)

// gregorianOffset is the number of 100ns intervals between the RFC 4122
// epoch (1582-10-15 00:00 UTC) and the Unix epoch.
const gregorianOffset = 0x01B21DD213814000

const ticksPerSecond = 10_000_000

// TickSource supplies tick counts: 100ns intervals since the RFC 4122 epoch.
// Values must be non-decreasing for the identifiers built from them to be
// unique on one node.
type TickSource interface {
	Ticks() uint64
}

// TickFromTime converts a wall clock time to a tick count. Times before the
// RFC 4122 epoch map to zero.
func TickFromTime(t time.Time) uint64 {
	sec := t.Unix()
	d := sec*ticksPerSecond + int64(t.Nanosecond()/100) + gregorianOffset
	if d < 0 {
		return 0
	}
	return uint64(d)
}

// TimeFromTick converts a tick count back to UTC wall clock time.
func TimeFromTick(tick uint64) time.Time {
	d := int64(tick&MaxTick) - gregorianOffset
	sec := d / ticksPerSecond
	rem := d % ticksPerSecond
	return time.Unix(sec, rem*100).UTC()
}

// SystemClock reads ticks from the wall clock.
type SystemClock struct {
	now func() time.Time
}

// NewSystemClock returns a clock backed by time.Now.
func NewSystemClock() *SystemClock {
	return &SystemClock{now: time.Now}
}

func (c *SystemClock) Ticks() uint64 {
	return TickFromTime(c.now())
}

// MonotonicClock wraps another source and never reports a tick lower than
// one it already returned.
type MonotonicClock struct {
	mu     sync.Mutex
	source TickSource
	last   uint64
}

func NewMonotonicClock(source TickSource) *MonotonicClock {
	return &MonotonicClock{source: source}
}

func (c *MonotonicClock) Ticks() uint64 {
	t := c.source.Ticks()

	c.mu.Lock()
	defer c.mu.Unlock()
	if t < c.last {
		return c.last
	}
	c.last = t
	return t
}

// FixedClock returns a settable tick. Useful in tests and replays.
type FixedClock struct {
	tick atomic.Uint64
}

func NewFixedClock(tick uint64) *FixedClock {
	c := &FixedClock{}
	c.tick.Store(tick)
	return c
}

func (c *FixedClock) Ticks() uint64 { return c.tick.Load() }

// Set moves the clock to tick, forwards or backwards.
func (c *FixedClock) Set(tick uint64) { c.tick.Store(tick) }

// Advance moves the clock forward by d, rounded down to whole ticks.
func (c *FixedClock) Advance(d time.Duration) {
	c.tick.Add(uint64(d / 100))
}
