package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatestProjection_RebuildKeepsNewestPerCounter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-10 * time.Minute).Truncate(time.Second)
	require.NoError(t, store.Append(ctx, Snapshot{Counter: "a", Registry: "r", Count: 1, TakenAt: base}))
	require.NoError(t, store.Append(ctx, Snapshot{Counter: "a", Registry: "r", Count: 5, TakenAt: base.Add(time.Minute)}))
	require.NoError(t, store.Append(ctx, Snapshot{Counter: "b", Registry: "r", Count: 2, TakenAt: base}))

	p := NewLatestProjection(store)
	require.NoError(t, p.Rebuild(ctx))

	a, ok := p.Latest("a")
	require.True(t, ok)
	assert.Equal(t, int64(5), a.Count)

	all := p.All()
	require.Len(t, all, 2)
	assert.Equal(t, int64(2), all["b"].Count)

	_, ok = p.Latest("missing")
	assert.False(t, ok)
}

func TestLatestProjection_Apply(t *testing.T) {
	p := NewLatestProjection(nil)

	now := time.Now()
	p.Apply(Snapshot{Counter: "a", Count: 1, TakenAt: now})
	p.Apply(Snapshot{Counter: "a", Count: 3, TakenAt: now.Add(time.Second)})
	// Older observation must not overwrite a newer one.
	p.Apply(Snapshot{Counter: "a", Count: 9, TakenAt: now.Add(-time.Minute)})

	got, ok := p.Latest("a")
	require.True(t, ok)
	assert.Equal(t, int64(3), got.Count)
}
