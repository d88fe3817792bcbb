package snapshot

import (
	"context"
	"sync"
	"time"
)

// LatestValue is a read model entry: the most recent persisted count for
// one counter name.
type LatestValue struct {
	Counter string    `json:"counter"`
	Count   int64     `json:"count"`
	TakenAt time.Time `json:"taken_at"`
}

// LatestProjection maintains an in-memory view of the newest snapshot per
// counter, reconstructed from the store and kept current via Apply.
type LatestProjection struct {
	mu       sync.RWMutex
	store    Store
	latest   map[string]LatestValue
	lastSync time.Time
}

// NewLatestProjection creates a projection backed by the given store.
func NewLatestProjection(store Store) *LatestProjection {
	return &LatestProjection{
		store:  store,
		latest: make(map[string]LatestValue),
	}
}

// Rebuild reconstructs the projection from all snapshots in the store.
// This is typically called at startup.
func (p *LatestProjection) Rebuild(ctx context.Context) error {
	snaps, err := p.store.Range(ctx, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.latest = make(map[string]LatestValue)
	for _, snap := range snaps {
		p.applyLocked(snap)
	}
	p.lastSync = time.Now()
	return nil
}

// Apply folds a freshly appended snapshot into the projection.
func (p *LatestProjection) Apply(snap Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyLocked(snap)
}

func (p *LatestProjection) applyLocked(snap Snapshot) {
	cur, ok := p.latest[snap.Counter]
	// Snapshots arrive in append order; same-second entries keep the later one.
	if ok && cur.TakenAt.After(snap.TakenAt) {
		return
	}
	p.latest[snap.Counter] = LatestValue{
		Counter: snap.Counter,
		Count:   snap.Count,
		TakenAt: snap.TakenAt,
	}
}

// Latest returns the most recent persisted value for counter.
func (p *LatestProjection) Latest(counter string) (LatestValue, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.latest[counter]
	return v, ok
}

// All returns the newest value per counter, keyed by counter name.
func (p *LatestProjection) All() map[string]LatestValue {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]LatestValue, len(p.latest))
	for k, v := range p.latest {
		out[k] = v
	}
	return out
}
