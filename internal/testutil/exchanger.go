// Package testutil holds test-harness plumbing shared by package tests.
// Nothing here is product logic.
package testutil

import (
	"errors"
	"time"
)

// ErrExchangeTimeout is returned when no partner arrives within the bound.
var ErrExchangeTimeout = errors.New("exchange timed out waiting for partner")

// Exchanger is a two-party rendezvous point: each party hands in a value
// and receives the other party's value. It is used by tests to
// deterministically interleave a worker goroutine with the test
// goroutine. All waits are bounded to keep a broken test from hanging.
type Exchanger[T any] struct {
	slots chan slot[T]
}

type slot[T any] struct {
	value T
	reply chan T
}

// NewExchanger creates an exchanger with no parties waiting.
func NewExchanger[T any]() *Exchanger[T] {
	return &Exchanger[T]{slots: make(chan slot[T])}
}

// Exchange hands value to the partner and returns the partner's value.
// It blocks until a second party calls Exchange, or until timeout, in
// which case it returns ErrExchangeTimeout.
func (e *Exchanger[T]) Exchange(value T, timeout time.Duration) (T, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	mine := slot[T]{value: value, reply: make(chan T, 1)}

	select {
	case e.slots <- mine:
		// Partner took our offer; it replies with its own value.
		select {
		case got := <-mine.reply:
			return got, nil
		case <-timer.C:
			var zero T
			return zero, ErrExchangeTimeout
		}
	case theirs := <-e.slots:
		theirs.reply <- value
		return theirs.value, nil
	case <-timer.C:
		var zero T
		return zero, ErrExchangeTimeout
	}
}
