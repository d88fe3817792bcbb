package metrics

import "sync/atomic"

// Counter is a named, mutable integer metric. It supports concurrent
// increment/decrement from any goroutine holding a reference to it.
//
// A Counter keeps working after its name is removed from the registry;
// removal only makes it unreachable for new lookups.
type Counter struct {
	name  string
	count atomic.Int64
}

func newCounter(name string) *Counter {
	return &Counter{name: name}
}

// Name returns the registry key this counter was registered under.
func (c *Counter) Name() string { return c.name }

// Inc increments the counter by one.
func (c *Counter) Inc() { c.count.Add(1) }

// Dec decrements the counter by one.
func (c *Counter) Dec() { c.count.Add(-1) }

// Add adjusts the counter by delta (which may be negative).
func (c *Counter) Add(delta int64) { c.count.Add(delta) }

// Count returns the current value.
func (c *Counter) Count() int64 { return c.count.Load() }
