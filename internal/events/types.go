package events

import "time"

// CounterRegistered is published when a name is first registered in a registry.
type CounterRegistered struct {
	Name     string
	Registry string
}

// CounterRemoved is published when a name is removed from a registry.
type CounterRemoved struct {
	Name     string
	Registry string
}

// SnapshotTaken is published after a snapshot pass has persisted counter values.
type SnapshotTaken struct {
	Registry string
	Counters int
	TakenAt  time.Time
}

// RegistryEvent is implemented by events that reference a registry identity.
type RegistryEvent interface {
	RegistryID() string
}

func (e CounterRegistered) RegistryID() string { return e.Registry }
func (e CounterRemoved) RegistryID() string    { return e.Registry }
func (e SnapshotTaken) RegistryID() string     { return e.Registry }
