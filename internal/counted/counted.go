// Package counted decorates arbitrary callables with an in-flight counter
// resolved by name from a metrics registry. The wrapper increments the
// counter strictly before invoking the callable and decrements it strictly
// after it returns, so a counter reading taken while the callable runs
// observes the invocation and the net count is unchanged across a call.
package counted

import (
	"context"

	"git.home.luguber.info/inful/inflight/internal/metrics"
)

// Callable is any operation that can be wrapped with counting.
type Callable[T any] func(ctx context.Context) (T, error)

// Options control how the counter name is derived.
type Options struct {
	// Name is the counter name. Required.
	Name string
	// Namespace is prepended (dot-separated) to Name unless Absolute is set.
	Namespace string
	// Absolute uses Name as the registry key verbatim.
	Absolute bool
}

func (o Options) counterName() string {
	if o.Absolute || o.Namespace == "" {
		return o.Name
	}
	return o.Namespace + "." + o.Name
}

// Wrap returns a callable that counts in-flight invocations of fn under
// the configured name in reg. The counter is registered eagerly so it is
// observable before the first invocation.
//
// At call time the counter is resolved by name again: if it has been
// removed from the registry in the meantime, the call fails with a
// *metrics.NotFoundError and fn is not invoked. The callable's result and
// error pass through unchanged; the decrement happens on every exit path.
func Wrap[T any](reg *metrics.Registry, opts Options, fn Callable[T]) Callable[T] {
	name := opts.counterName()
	reg.Counter(name)

	return func(ctx context.Context) (T, error) {
		counter, err := reg.Get(name)
		if err != nil {
			var zero T
			return zero, err
		}

		counter.Inc()
		defer counter.Dec()
		return fn(ctx)
	}
}

// Do runs fn once under the counter registered as name in reg, applying
// the same resolve/increment/invoke/decrement contract as Wrap. Unlike
// Wrap it never registers the counter: the name must already exist.
func Do[T any](ctx context.Context, reg *metrics.Registry, name string, fn Callable[T]) (T, error) {
	counter, err := reg.Get(name)
	if err != nil {
		var zero T
		return zero, err
	}

	counter.Inc()
	defer counter.Dec()
	return fn(ctx)
}
