package metrics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/inflight/internal/events"
)

// Registry maps unique names to counters. It is process-scoped: counters
// live for the lifetime of the registry unless removed by name.
type Registry struct {
	id  string
	bus *events.Bus

	mu       sync.RWMutex
	counters map[string]*Counter
}

// Option configures a Registry.
type Option func(*Registry)

// WithIdentity overrides the generated registry identity. The identity
// appears in lookup-failure messages and in logs.
func WithIdentity(id string) Option {
	return func(r *Registry) { r.id = id }
}

// WithBus attaches an event bus; the registry publishes
// events.CounterRegistered / events.CounterRemoved on it.
func WithBus(bus *events.Bus) Option {
	return func(r *Registry) { r.bus = bus }
}

// NewRegistry creates an empty registry with a uuid-backed identity.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		counters: make(map[string]*Counter),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.id == "" {
		r.id = "inflight-" + uuid.NewString()[:8]
	}
	return r
}

// String returns the registry identity used in error messages.
func (r *Registry) String() string { return r.id }

// Counter returns the counter registered under name, registering a new
// one if the name is unknown. Repeated calls with the same name return
// the identical instance.
func (r *Registry) Counter(name string) *Counter {
	r.mu.RLock()
	c, ok := r.counters[name]
	r.mu.RUnlock()
	if ok {
		return c
	}

	r.mu.Lock()
	c, ok = r.counters[name]
	if !ok {
		c = newCounter(name)
		r.counters[name] = c
	}
	r.mu.Unlock()

	if !ok {
		r.publish(events.CounterRegistered{Name: name, Registry: r.id})
	}
	return c
}

// Get returns the counter registered under name, or a *NotFoundError
// carrying the name and the registry identity.
func (r *Registry) Get(name string) (*Counter, error) {
	r.mu.RLock()
	c, ok := r.counters[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &NotFoundError{Name: name, Registry: r.id}
	}
	return c, nil
}

// Lookup returns the counter registered under name without registering.
func (r *Registry) Lookup(name string) (*Counter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.counters[name]
	return c, ok
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.counters[name]
	return ok
}

// Remove deletes the counter registered under name and reports whether
// it was present. Held references to the counter stay usable; only
// registry lookups fail afterwards.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	_, ok := r.counters[name]
	delete(r.counters, name)
	r.mu.Unlock()

	if ok {
		r.publish(events.CounterRemoved{Name: name, Registry: r.id})
	}
	return ok
}

// Names returns all registered names in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.counters))
	for name := range r.counters {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Len returns the number of registered counters.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.counters)
}

// Each calls fn for every registered counter. The registry lock is not
// held during fn, so fn may call back into the registry.
func (r *Registry) Each(fn func(name string, c *Counter)) {
	r.mu.RLock()
	snapshot := make([]*Counter, 0, len(r.counters))
	for _, c := range r.counters {
		snapshot = append(snapshot, c)
	}
	r.mu.RUnlock()

	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].name < snapshot[j].name })
	for _, c := range snapshot {
		fn(c.name, c)
	}
}

// publish delivers a lifecycle event to the attached bus, if any.
// Delivery is bounded; a slow subscriber must not stall registry callers.
func (r *Registry) publish(evt any) {
	if r.bus == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.bus.Publish(ctx, evt); err != nil {
		slog.Warn("Failed to publish registry event", "registry", r.id, "error", err)
	}
}
