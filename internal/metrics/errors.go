package metrics

import (
	"errors"
	"fmt"
)

// ErrCounterNotFound is the sentinel for lookups of names that are not
// (or no longer) present in a registry. Match with errors.Is; use
// errors.As with *NotFoundError to recover the name and registry identity.
var ErrCounterNotFound = errors.New("counter not found")

// NotFoundError reports a failed counter lookup. Its message format is
// part of the public contract and must not change: callers log and match
// on it.
type NotFoundError struct {
	Name     string
	Registry string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("No counter with name [%s] found in registry [%s]", e.Name, e.Registry)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrCounterNotFound
}
