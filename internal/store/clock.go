package store

import (
	"sync"
	"time"
)

// Stamp is a logical timestamp in milliseconds. Event stamps and worker
// start stamps must come from the same Clock to be comparable.
type Stamp = int64

// Clock produces Stamps.
type Clock interface {
	Now() Stamp
}

// MonotonicClock returns wall-clock milliseconds, bumped by one whenever
// two calls would otherwise observe the same or a smaller value.
type MonotonicClock struct {
	mu   sync.Mutex
	last Stamp
}

// NewMonotonicClock creates a strictly increasing millisecond clock.
func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{}
}

// Now returns a stamp strictly greater than every previous one.
func (c *MonotonicClock) Now() Stamp {
	now := time.Now().UnixMilli()

	c.mu.Lock()
	defer c.mu.Unlock()
	if now <= c.last {
		now = c.last + 1
	}
	c.last = now
	return now
}

// ManualClock is a Clock advanced by hand. Used in tests.
type ManualClock struct {
	mu  sync.Mutex
	now Stamp
}

// NewManualClock creates a clock starting at start.
func NewManualClock(start Stamp) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the current stamp without advancing it.
func (c *ManualClock) Now() Stamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to s.
func (c *ManualClock) Set(s Stamp) {
	c.mu.Lock()
	c.now = s
	c.mu.Unlock()
}

// Advance moves the clock forward by d and returns the new stamp.
func (c *ManualClock) Advance(d Stamp) Stamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
	return c.now
}
