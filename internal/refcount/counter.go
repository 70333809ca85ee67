// Package refcount provides a wait-free atomic counter used for reference
// counting shared resources.
package refcount

import "sync/atomic"

// Counter is a lock-free integer counter safe for concurrent use.
// The zero value is a counter at 0.
type Counter struct {
	v atomic.Int64
}

// New returns a Counter initialised to n.
func New(n int64) *Counter {
	c := &Counter{}
	c.v.Store(n)
	return c
}

// Inc increments the counter by one and returns the new value.
func (c *Counter) Inc() int64 {
	return c.v.Add(1)
}

// Dec decrements the counter by one and returns the new value, so callers
// may branch on the count reaching zero.
func (c *Counter) Dec() int64 {
	return c.v.Add(-1)
}

// Add adds n (which may be negative) and returns the new value.
func (c *Counter) Add(n int64) int64 {
	return c.v.Add(n)
}

// Sub subtracts n and returns the new value.
func (c *Counter) Sub(n int64) int64 {
	return c.v.Add(-n)
}

// Get returns the current value.
func (c *Counter) Get() int64 {
	return c.v.Load()
}
