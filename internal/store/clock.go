package store

import (
	"sync"
	"time"
)

// Clock hands out timestamps that never go backwards, even if the wall clock does.
type Clock struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

// NewClock returns a clock backed by time.Now.
func NewClock() *Clock {
	return &Clock{now: time.Now}
}

// NewClockFunc returns a clock backed by the given time source.
func NewClockFunc(now func() time.Time) *Clock {
	return &Clock{now: now}
}

// Next returns a timestamp not earlier than any previously returned one.
func (c *Clock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC()
	if t.Before(c.last) {
		t = c.last
	}
	c.last = t
	return t
}
