// Package snapshot persists point-in-time counter values so registry
// history survives process restarts and can be queried offline.
package snapshot

import (
	"context"
	"time"
)

// Snapshot is one persisted counter observation.
type Snapshot struct {
	ID       int64             `json:"id"`
	Counter  string            `json:"counter"`
	Registry string            `json:"registry"`
	Count    int64             `json:"count"`
	TakenAt  time.Time         `json:"taken_at"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Store defines the interface for persisting and retrieving counter snapshots.
type Store interface {
	// Append adds a new snapshot to the store.
	Append(ctx context.Context, snap Snapshot) error

	// ByCounter retrieves all snapshots for a specific counter name, oldest first.
	ByCounter(ctx context.Context, counter string) ([]Snapshot, error)

	// Range retrieves snapshots taken within [start, end], oldest first.
	Range(ctx context.Context, start, end time.Time) ([]Snapshot, error)

	// Close closes the store and releases resources.
	Close() error
}
