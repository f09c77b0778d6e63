package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nextSnapshot(t *testing.T, ch <-chan Event) Snapshot {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "subscription closed")
		require.NoError(t, ev.Err)
		return ev.Snapshot
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return Snapshot{}
}

func TestMemoryStore_SubscribeDeliversInitialSnapshot(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewMemoryStore()
	_, err := s.Add(ctx, "routes", map[string]any{"name": "NORTH"})
	require.NoError(t, err)

	ch, err := s.Subscribe(ctx, "routes")
	require.NoError(t, err)

	snap := nextSnapshot(t, ch)
	assert.Equal(t, "routes", snap.Path)
	require.Len(t, snap.Docs, 1)
	assert.Equal(t, "NORTH", snap.Docs[0].Data["name"])
	assert.NotEmpty(t, snap.Docs[0].ID)
}

func TestMemoryStore_WritesProduceFullSnapshots(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewMemoryStore()
	ch, err := s.Subscribe(ctx, "shops")
	require.NoError(t, err)
	assert.Empty(t, nextSnapshot(t, ch).Docs)

	id, err := s.Add(ctx, "shops", map[string]any{"name": "A", "id": "ignored"})
	require.NoError(t, err)
	snap := nextSnapshot(t, ch)
	require.Len(t, snap.Docs, 1)
	assert.Equal(t, id, snap.Docs[0].ID)
	assert.NotContains(t, snap.Docs[0].Data, "id")

	require.NoError(t, s.Update(ctx, "shops", id, map[string]any{"area": "TOWN"}))
	snap = nextSnapshot(t, ch)
	assert.Equal(t, map[string]any{"name": "A", "area": "TOWN"}, snap.Docs[0].Data)

	require.NoError(t, s.Delete(ctx, "shops", id))
	assert.Empty(t, nextSnapshot(t, ch).Docs)
}

func TestMemoryStore_SetOverwrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Set(ctx, "settings", ProfileID, map[string]any{"name": "A", "region": "R"}))
	require.NoError(t, s.Set(ctx, "settings", ProfileID, map[string]any{"name": "B"}))

	ch, err := s.Subscribe(ctx, "settings")
	require.NoError(t, err)
	doc, ok := nextSnapshot(t, ch).Find(ProfileID)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"name": "B"}, doc.Data)
}

func TestMemoryStore_UpdateMissing(t *testing.T) {
	s := NewMemoryStore()
	err := s.Update(context.Background(), "shops", "nope", map[string]any{"a": 1})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_CancelClosesChannel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewMemoryStore()

	ch, err := s.Subscribe(ctx, "orders")
	require.NoError(t, err)
	nextSnapshot(t, ch)
	cancel()

	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMemoryStore_Closed(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Close(ctx))

	_, err := s.Subscribe(ctx, "routes")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.Add(ctx, "routes", map[string]any{})
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Delete(ctx, "routes", "x"), ErrClosed)
}
