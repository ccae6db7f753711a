package exploration

import (
	"sync/atomic"
	"time"
)

// Clock measures the time elapsed since an agent started
type Clock interface {
	Elapsed() time.Duration
}

// WallClock is a Clock measuring wall time since its construction
type WallClock struct {
	start time.Time
}

// NewWallClock returns a new WallClock started now
func NewWallClock() *WallClock {
	return &WallClock{start: time.Now()}
}

// Elapsed implements the Clock interface
func (w *WallClock) Elapsed() time.Duration {
	return time.Since(w.start)
}

// TickClock is a deterministic Clock which advances by a fixed step
// each time Advance is called. It is safe for concurrent use.
type TickClock struct {
	dt    time.Duration
	ticks atomic.Int64
}

// NewTickClock returns a new TickClock advancing by dt per tick
func NewTickClock(dt time.Duration) *TickClock {
	return &TickClock{dt: dt}
}

// Advance moves the clock forward by one tick
func (t *TickClock) Advance() {
	t.ticks.Add(1)
}

// Ticks returns the number of times the clock has advanced
func (t *TickClock) Ticks() int64 {
	return t.ticks.Load()
}

// Elapsed implements the Clock interface
func (t *TickClock) Elapsed() time.Duration {
	return time.Duration(t.ticks.Load()) * t.dt
}
