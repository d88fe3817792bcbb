package counted

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/inflight/internal/metrics"
	"git.home.luguber.info/inful/inflight/internal/testutil"
)

const counterName = "countedMethod"

const exchangeTimeout = 5 * time.Second

func TestWrap_RegistersCounterBeforeFirstCall(t *testing.T) {
	reg := metrics.NewRegistry()

	wrapped := Wrap(reg, Options{Name: counterName, Absolute: true}, func(context.Context) (int64, error) {
		return 0, nil
	})
	require.NotNil(t, wrapped)

	require.True(t, reg.Has(counterName), "counter is not registered correctly")
	counter, ok := reg.Lookup(counterName)
	require.True(t, ok)
	assert.Equal(t, int64(0), counter.Count(), "counter count is incorrect")
}

func TestWrap_LookupReturnsIdenticalInstance(t *testing.T) {
	reg := metrics.NewRegistry()

	Wrap(reg, Options{Name: counterName, Absolute: true}, func(context.Context) (int64, error) {
		return 0, nil
	})

	counter, ok := reg.Lookup(counterName)
	require.True(t, ok, "counter is not registered correctly")

	// Every lookup path must yield the same instance.
	assert.Same(t, counter, reg.Counter(counterName), "counter and registered instance are not the same")
	got, err := reg.Get(counterName)
	require.NoError(t, err)
	assert.Same(t, counter, got)
}

func TestWrap_CountsWhileCallBlocks(t *testing.T) {
	reg := metrics.NewRegistry()
	ex := testutil.NewExchanger[int64]()

	wrapped := Wrap(reg, Options{Name: counterName, Absolute: true}, func(context.Context) (int64, error) {
		// Rendezvous with the test goroutine, then block until it hands
		// over the value to return.
		if _, err := ex.Exchange(0, exchangeTimeout); err != nil {
			return 0, err
		}
		return ex.Exchange(0, exchangeTimeout)
	})

	counter, ok := reg.Lookup(counterName)
	require.True(t, ok, "counter is not registered correctly")

	workerErr := make(chan error, 1)
	go func() {
		v, err := wrapped(context.Background())
		if err != nil {
			workerErr <- err
			return
		}
		if _, err := ex.Exchange(v, exchangeTimeout); err != nil {
			workerErr <- err
			return
		}
		workerErr <- nil
	}()

	// Wait until the callable is executing; the counter must be incremented.
	_, err := ex.Exchange(0, exchangeTimeout)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counter.Count(), "counter count is incorrect while call is in flight")

	// Hand over the return value and unblock the call.
	want := 1 + rand.Int63n(1<<62)
	_, err = ex.Exchange(want, exchangeTimeout)
	require.NoError(t, err)

	// Wait until the call has returned and check the propagated value.
	got, err := ex.Exchange(0, exchangeTimeout)
	require.NoError(t, err)
	assert.Equal(t, want, got, "counted call return value is incorrect")

	// Decrement happens after return: net count is unchanged.
	assert.Equal(t, int64(0), counter.Count(), "counter count is incorrect after call returned")

	select {
	case err := <-workerErr:
		require.NoError(t, err, "worker goroutine failed")
	case <-time.After(exchangeTimeout):
		t.Fatal("worker goroutine did not finish")
	}
}

func TestWrap_RemovedCounterFailsInvocation(t *testing.T) {
	reg := metrics.NewRegistry(metrics.WithIdentity("inflight-test"))

	invoked := false
	wrapped := Wrap(reg, Options{Name: counterName, Absolute: true}, func(context.Context) (int64, error) {
		invoked = true
		return 0, nil
	})

	counter, ok := reg.Lookup(counterName)
	require.True(t, ok, "counter is not registered correctly")

	require.True(t, reg.Remove(counterName))

	_, err := wrapped(context.Background())
	require.Error(t, err, "no error has been returned")
	require.ErrorIs(t, err, metrics.ErrCounterNotFound)

	var nfe *metrics.NotFoundError
	require.ErrorAs(t, err, &nfe)
	assert.Equal(t,
		fmt.Sprintf("No counter with name [%s] found in registry [%s]", counterName, reg),
		err.Error())

	assert.False(t, invoked, "callable must not run when the counter is missing")
	assert.Equal(t, int64(0), counter.Count(), "counter count is incorrect")
}

func TestWrap_PropagatesCallableError(t *testing.T) {
	reg := metrics.NewRegistry()
	cause := errors.New("downstream unavailable")

	wrapped := Wrap(reg, Options{Name: counterName, Absolute: true}, func(context.Context) (string, error) {
		return "", cause
	})

	_, err := wrapped(context.Background())
	require.Same(t, cause, err, "callable error must pass through unchanged")

	counter, ok := reg.Lookup(counterName)
	require.True(t, ok)
	assert.Equal(t, int64(0), counter.Count(), "decrement must also happen on the error path")
}

func TestOptions_NamespaceQualification(t *testing.T) {
	reg := metrics.NewRegistry()

	Wrap(reg, Options{Name: "calls", Namespace: "billing.Invoicer"}, func(context.Context) (int, error) {
		return 0, nil
	})
	assert.True(t, reg.Has("billing.Invoicer.calls"))

	Wrap(reg, Options{Name: "calls", Namespace: "billing.Invoicer", Absolute: true}, func(context.Context) (int, error) {
		return 0, nil
	})
	assert.True(t, reg.Has("calls"), "absolute names must be used verbatim")
}

func TestDo_RequiresRegisteredCounter(t *testing.T) {
	reg := metrics.NewRegistry()

	_, err := Do(context.Background(), reg, counterName, func(context.Context) (int, error) {
		return 42, nil
	})
	require.ErrorIs(t, err, metrics.ErrCounterNotFound)
	assert.False(t, reg.Has(counterName), "Do must not register counters as a side effect")

	reg.Counter(counterName)
	got, err := Do(context.Background(), reg, counterName, func(context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}
