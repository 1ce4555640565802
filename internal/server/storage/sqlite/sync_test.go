package sqlite

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophsync/internal/crdt"
	"github.com/iudanet/gophsync/internal/server/storage"
)

func clockAt(wall int64, counter uint32, device string) crdt.Timestamp {
	return crdt.Timestamp{WallTime: wall, Counter: counter, DeviceID: device}
}

func newItem(id string, clock crdt.Timestamp, data string) *storage.SyncItem {
	return &storage.SyncItem{
		ID:       id,
		Clock:    clock,
		DeviceID: clock.DeviceID,
		Data:     []byte(data),
	}
}

func TestSyncStorage_PutItems_Accepts(t *testing.T) {
	clock := &manualTime{}
	clock.Set(5_000)
	s, cleanup := setupTestStorage(t, WithNow(clock.Now))
	defer cleanup()
	ctx := context.Background()

	results, err := s.PutItems(ctx, "user-1", "notes", []*storage.SyncItem{
		newItem("a", clockAt(100, 0, "dev-a"), `{"v":1}`),
		newItem("b", clockAt(100, 1, "dev-a"), `{"v":2}`),
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.True(t, results[0].Accepted)
	assert.Equal(t, int64(5_000), results[0].ServerTS)
	assert.True(t, results[1].Accepted)
	assert.Equal(t, int64(5_001), results[1].ServerTS, "Same millisecond allocates last+1")

	current, err := s.CurrentTimestamp(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5_001), current)
}

func TestSyncStorage_PutItems_ClockGuard(t *testing.T) {
	s, cleanup := setupTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	stored := newItem("a", clockAt(200, 5, "dev-b"), `{"v":"stored"}`)
	results, err := s.PutItems(ctx, "user-1", "notes", []*storage.SyncItem{stored})
	require.NoError(t, err)
	require.True(t, results[0].Accepted)
	storedTS := results[0].ServerTS

	tests := []struct {
		clock    crdt.Timestamp
		name     string
		accepted bool
	}{
		{name: "older wall time", clock: clockAt(199, 9, "dev-z"), accepted: false},
		{name: "lower counter", clock: clockAt(200, 4, "dev-z"), accepted: false},
		{name: "equal clock", clock: clockAt(200, 5, "dev-b"), accepted: false},
		{name: "device tie-break loses", clock: clockAt(200, 5, "dev-a"), accepted: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := s.PutItems(ctx, "user-1", "notes", []*storage.SyncItem{newItem("a", tt.clock, `{"v":"incoming"}`)})
			require.NoError(t, err)
			require.Len(t, results, 1)

			assert.Equal(t, tt.accepted, results[0].Accepted)
			require.NotNil(t, results[0].Current)
			assert.Equal(t, clockAt(200, 5, "dev-b"), results[0].Current.Clock)
			assert.Equal(t, `{"v":"stored"}`, string(results[0].Current.Data))
			assert.Equal(t, storedTS, results[0].Current.ServerTS)
		})
	}

	results, err = s.PutItems(ctx, "user-1", "notes", []*storage.SyncItem{newItem("a", clockAt(200, 5, "dev-c"), `{"v":"newer"}`)})
	require.NoError(t, err)
	assert.True(t, results[0].Accepted, "Device tie-break wins")
	assert.Greater(t, results[0].ServerTS, storedTS)
	assert.Nil(t, results[0].Current)

	items, _, err := s.ListSince(ctx, storage.ListQuery{UserID: "user-1", Collection: "notes", Limit: 10})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, `{"v":"newer"}`, string(items[0].Data))
	assert.Equal(t, "dev-c", items[0].DeviceID)
}

func TestSyncStorage_PutItems_Tombstone(t *testing.T) {
	s, cleanup := setupTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	_, err := s.PutItems(ctx, "user-1", "notes", []*storage.SyncItem{newItem("a", clockAt(1, 0, "d"), `{}`)})
	require.NoError(t, err)

	tombstone := newItem("a", clockAt(2, 0, "d"), `{}`)
	tombstone.IsDeleted = true
	_, err = s.PutItems(ctx, "user-1", "notes", []*storage.SyncItem{tombstone})
	require.NoError(t, err)

	items, _, err := s.ListSince(ctx, storage.ListQuery{UserID: "user-1", Collection: "notes", Limit: 10})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].IsDeleted, "Tombstones are kept and served")
}

func TestSyncStorage_SequenceMonotonic(t *testing.T) {
	clock := &manualTime{}
	clock.Set(10_000)
	s, cleanup := setupTestStorage(t, WithNow(clock.Now))
	defer cleanup()
	ctx := context.Background()

	var last int64
	for i, ms := range []int64{10_000, 9_000, 10_000, 12_000, 1} {
		clock.Set(ms)
		results, err := s.PutItems(ctx, "user-1", "notes", []*storage.SyncItem{newItem(fmt.Sprintf("i%d", i), clockAt(int64(i+1), 0, "d"), `{}`)})
		require.NoError(t, err)
		assert.Greater(t, results[0].ServerTS, last, "Server timestamps strictly increase")
		last = results[0].ServerTS
	}
	assert.Equal(t, int64(12_001), last)
}

func TestSyncStorage_ListSince(t *testing.T) {
	s, cleanup := setupTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		item := newItem(fmt.Sprintf("h%d", i), clockAt(int64(i+1), 0, "d"), `{}`)
		item.EntityID = "book-1"
		if i%2 == 1 {
			item.EntityID = "book-2"
		}
		_, err := s.PutItems(ctx, "user-1", "highlights", []*storage.SyncItem{item})
		require.NoError(t, err)
	}
	_, err := s.PutItems(ctx, "user-2", "highlights", []*storage.SyncItem{newItem("foreign", clockAt(1, 0, "d"), `{}`)})
	require.NoError(t, err)
	_, err = s.PutItems(ctx, "user-1", "notes", []*storage.SyncItem{newItem("other", clockAt(1, 0, "d"), `{}`)})
	require.NoError(t, err)

	t.Run("paging", func(t *testing.T) {
		page, hasMore, err := s.ListSince(ctx, storage.ListQuery{UserID: "user-1", Collection: "highlights", Limit: 2})
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.True(t, hasMore)
		assert.Equal(t, "h0", page[0].ID)
		assert.Equal(t, "h1", page[1].ID)
		assert.Less(t, page[0].ServerTS, page[1].ServerTS)

		rest, hasMore, err := s.ListSince(ctx, storage.ListQuery{UserID: "user-1", Collection: "highlights", Since: page[1].ServerTS, Limit: 10})
		require.NoError(t, err)
		assert.False(t, hasMore)
		require.Len(t, rest, 3)
		assert.Equal(t, "h2", rest[0].ID)
	})

	t.Run("entity filter", func(t *testing.T) {
		items, _, err := s.ListSince(ctx, storage.ListQuery{UserID: "user-1", Collection: "highlights", EntityID: "book-2", Limit: 10})
		require.NoError(t, err)
		require.Len(t, items, 2)
		for _, item := range items {
			assert.Equal(t, "book-2", item.EntityID)
		}
	})

	t.Run("isolation", func(t *testing.T) {
		items, _, err := s.ListSince(ctx, storage.ListQuery{UserID: "user-2", Collection: "highlights", Limit: 10})
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "foreign", items[0].ID)

		items, _, err = s.ListSince(ctx, storage.ListQuery{UserID: "user-1", Collection: "missing", Limit: 10})
		require.NoError(t, err)
		assert.Empty(t, items)
	})
}
