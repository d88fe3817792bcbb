package daemon

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/inflight/internal/config"
	"git.home.luguber.info/inful/inflight/internal/events"
)

func testConfig() *config.Config {
	return &config.Config{
		Registry:  "inflight-test",
		Namespace: "inflight",
		Counters: []config.CounterSpec{
			{Name: "countedMethod", Absolute: true},
			{Name: "requests"},
		},
		HTTP: config.HTTPConfig{Listen: "127.0.0.1:0"},
		Snapshot: config.SnapshotConfig{
			Enabled:  true,
			Interval: "1m",
			Store:    ":memory:",
		},
	}
}

func newTestDaemon(t *testing.T) *Daemon {
	t.Helper()
	d, err := New(testConfig())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = d.Stop(context.Background())
	})
	return d
}

func TestNew_RegistersConfiguredCounters(t *testing.T) {
	d := newTestDaemon(t)

	// Absolute names pass through; others are namespace-qualified.
	assert.True(t, d.Registry().Has("countedMethod"))
	assert.True(t, d.Registry().Has("inflight.requests"))
	assert.False(t, d.Registry().Has("requests"))
	assert.True(t, d.Registry().Has("inflight.snapshots.active"))
	assert.Equal(t, "inflight-test", d.Registry().String())
}

func TestTakeSnapshot_PersistsAndPublishes(t *testing.T) {
	d := newTestDaemon(t)

	taken, unsub := events.Subscribe[events.SnapshotTaken](d.Bus(), 1)
	defer unsub()

	d.Registry().Counter("countedMethod").Add(3)
	d.takeSnapshot()

	select {
	case evt := <-taken:
		assert.Equal(t, "inflight-test", evt.Registry)
		// Two configured counters plus the pass's own in-flight counter.
		assert.Equal(t, 3, evt.Counters)
	case <-time.After(time.Second):
		t.Fatal("no snapshot event published")
	}

	snaps, err := d.store.ByCounter(context.Background(), "countedMethod")
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, int64(3), snaps[0].Count)
	assert.Equal(t, "inflight-test", snaps[0].Registry)

	latest, ok := d.projection.Latest("countedMethod")
	require.True(t, ok)
	assert.Equal(t, int64(3), latest.Count)

	// The pass counter is captured while the pass is in flight.
	passSnaps, err := d.store.ByCounter(context.Background(), "inflight.snapshots.active")
	require.NoError(t, err)
	require.Len(t, passSnaps, 1)
	assert.Equal(t, int64(1), passSnaps[0].Count)
}

func TestReloadConfig_RegistersNewCounters(t *testing.T) {
	d := newTestDaemon(t)

	newCfg := testConfig()
	newCfg.Counters = append(newCfg.Counters, config.CounterSpec{Name: "jobs"})

	require.NoError(t, d.ReloadConfig(context.Background(), newCfg))
	assert.True(t, d.Registry().Has("inflight.jobs"))
	assert.Same(t, newCfg, d.Config())
}

func TestReloadConfig_UpdatesSnapshotInterval(t *testing.T) {
	d := newTestDaemon(t)
	require.NoError(t, d.scheduler.ScheduleSnapshots(time.Minute))

	newCfg := testConfig()
	newCfg.Snapshot.Interval = "30s"
	require.NoError(t, d.ReloadConfig(context.Background(), newCfg))
}

func TestStop_TakesFinalSnapshot(t *testing.T) {
	d, err := New(testConfig())
	require.NoError(t, err)

	d.Registry().Counter("countedMethod").Inc()
	store := d.store

	require.NoError(t, d.Stop(context.Background()))

	// The store is closed after the final pass; querying through the
	// in-memory projection shows the shutdown state.
	latest, ok := d.projection.Latest("countedMethod")
	require.True(t, ok)
	assert.Equal(t, int64(1), latest.Count)
	assert.NotNil(t, store)
}
