package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	ierrors "git.home.luguber.info/inful/inflight/internal/errors"
)

func TestBus_PublishSubscribe(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch, unsubscribe := Subscribe[CounterRegistered](b, 1)
	defer unsubscribe()

	require.NoError(t, b.Publish(context.Background(), CounterRegistered{Name: "countedMethod", Registry: "inflight-test"}))

	select {
	case got := <-ch:
		require.Equal(t, "countedMethod", got.Name)
		require.Equal(t, "inflight-test", got.Registry)
	case <-time.After(250 * time.Millisecond):
		t.Fatal("timed out waiting for event")
	}
}

func TestBus_InterfaceSubscriptionReceivesConcreteEvents(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch, unsubscribe := Subscribe[RegistryEvent](b, 2)
	defer unsubscribe()

	require.NoError(t, b.Publish(context.Background(), CounterRemoved{Name: "c", Registry: "r1"}))
	require.NoError(t, b.Publish(context.Background(), SnapshotTaken{Registry: "r1", Counters: 3, TakenAt: time.Now()}))

	for range 2 {
		select {
		case got := <-ch:
			require.Equal(t, "r1", got.RegistryID())
		case <-time.After(250 * time.Millisecond):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestBus_PublishBackpressure(t *testing.T) {
	b := NewBus()
	defer b.Close()

	_, unsubscribe := Subscribe[CounterRegistered](b, 0) // unbuffered; no receiver => blocks
	defer unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := b.Publish(ctx, CounterRegistered{Name: "x"})
	require.Error(t, err)
	require.True(t, ierrors.IsCategory(err, ierrors.CategoryRuntime))
}

func TestBus_Close(t *testing.T) {
	b := NewBus()

	ch, _ := Subscribe[CounterRegistered](b, 1)
	b.Close()

	// Channel must be closed on bus close.
	_, ok := <-ch
	require.False(t, ok)

	// Publishing after close fails with a daemon-category error.
	err := b.Publish(context.Background(), CounterRegistered{Name: "x"})
	require.Error(t, err)
	require.True(t, ierrors.IsCategory(err, ierrors.CategoryDaemon))
}

func TestBus_Unsubscribe(t *testing.T) {
	b := NewBus()
	defer b.Close()

	_, unsubscribe := Subscribe[CounterRemoved](b, 1)
	require.Equal(t, 1, SubscriberCount[CounterRemoved](b))

	unsubscribe()
	require.Equal(t, 0, SubscriberCount[CounterRemoved](b))
}
