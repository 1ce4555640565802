package boltdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/iudanet/gophsync/internal/client/storage"
	"github.com/iudanet/gophsync/internal/crdt"
	"github.com/iudanet/gophsync/internal/models"
)

func TestSaveAndGetCursor(t *testing.T) {
	ctx := context.Background()
	store, cleanup := createTestStorage(t)
	defer cleanup()

	// Изначально курсора нет - ожидаем 0
	cursor, err := store.GetCursor(ctx, "highlights", "")
	require.NoError(t, err)
	assert.Equal(t, int64(0), cursor.ServerTimestamp)
	assert.Equal(t, "highlights", cursor.Collection)

	require.NoError(t, store.SaveCursor(ctx, &models.Cursor{Collection: "highlights", ServerTimestamp: 1234567890}))

	cursor, err = store.GetCursor(ctx, "highlights", "")
	require.NoError(t, err)
	assert.Equal(t, int64(1234567890), cursor.ServerTimestamp)
	assert.False(t, cursor.UpdatedAt.IsZero())
}

func TestSaveCursor_Monotonic(t *testing.T) {
	ctx := context.Background()
	store, cleanup := createTestStorage(t)
	defer cleanup()

	require.NoError(t, store.SaveCursor(ctx, &models.Cursor{Collection: "highlights", ServerTimestamp: 500}))
	require.NoError(t, store.SaveCursor(ctx, &models.Cursor{Collection: "highlights", ServerTimestamp: 100}))

	cursor, err := store.GetCursor(ctx, "highlights", "")
	require.NoError(t, err)
	assert.Equal(t, int64(500), cursor.ServerTimestamp, "Cursor must never move backwards")

	require.NoError(t, store.SaveCursor(ctx, &models.Cursor{Collection: "highlights", ServerTimestamp: 900}))
	cursor, err = store.GetCursor(ctx, "highlights", "")
	require.NoError(t, err)
	assert.Equal(t, int64(900), cursor.ServerTimestamp)
}

func TestCursor_EntityScopes(t *testing.T) {
	ctx := context.Background()
	store, cleanup := createTestStorage(t)
	defer cleanup()

	require.NoError(t, store.SaveCursor(ctx, &models.Cursor{Collection: "highlights", ServerTimestamp: 10}))
	require.NoError(t, store.SaveCursor(ctx, &models.Cursor{Collection: "highlights", EntityID: "doc-1", ServerTimestamp: 20}))

	whole, err := store.GetCursor(ctx, "highlights", "")
	require.NoError(t, err)
	assert.Equal(t, int64(10), whole.ServerTimestamp)

	scoped, err := store.GetCursor(ctx, "highlights", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, int64(20), scoped.ServerTimestamp)
	assert.Equal(t, "doc-1", scoped.EntityID)

	cursors, err := store.ListCursors(ctx)
	require.NoError(t, err)
	assert.Len(t, cursors, 2)
}

func TestGetCursor_BucketMissing(t *testing.T) {
	ctx := context.Background()
	store, cleanup := createTestStorage(t)
	defer cleanup()

	// Удаляем bucket cursors напрямую
	err := store.db.Update(func(tx *bbolt.Tx) error {
		return tx.DeleteBucket(bucketCursors)
	})
	require.NoError(t, err)

	_, err = store.GetCursor(ctx, "highlights", "")
	assert.Error(t, err)
}

func TestGetDeviceID_GeneratedOnceAndPersisted(t *testing.T) {
	ctx := context.Background()
	store, cleanup := createTestStorage(t)
	defer cleanup()

	first, err := store.GetDeviceID(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, first)

	second, err := store.GetDeviceID(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestClockState(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	_, err := store.LoadClockState("device-a")
	assert.ErrorIs(t, err, storage.ErrClockStateNotFound)

	state := crdt.Timestamp{WallTime: 1697712345678, Counter: 3, DeviceID: "device-a"}
	require.NoError(t, store.SaveClockState(state))

	loaded, err := store.LoadClockState("device-a")
	require.NoError(t, err)
	assert.Equal(t, state, loaded)
}

func TestClockState_Corrupted(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	err := store.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMetadata).Put([]byte(keyClockState), []byte("not-a-clock"))
	})
	require.NoError(t, err)

	_, err = store.LoadClockState("device-a")
	assert.ErrorIs(t, err, crdt.ErrClockParse)

	// Часы не падают на поврежденном состоянии
	clock := crdt.NewClock("device-a", crdt.WithStateStore(store))
	assert.NotPanics(t, func() { clock.Next() })

	loaded, err := store.LoadClockState("device-a")
	require.NoError(t, err, "Next should overwrite corrupted state")
	assert.Equal(t, "device-a", loaded.DeviceID)
}

func TestSaveCursor_ScopesDoNotCollide(t *testing.T) {
	ctx := context.Background()
	store, cleanup := createTestStorage(t)
	defer cleanup()

	require.NoError(t, store.SaveCursor(ctx, &models.Cursor{Collection: "a/b", ServerTimestamp: 1}))
	require.NoError(t, store.SaveCursor(ctx, &models.Cursor{Collection: "a", EntityID: "b", ServerTimestamp: 2}))

	unscoped, err := store.GetCursor(ctx, "a/b", "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), unscoped.ServerTimestamp)

	scoped, err := store.GetCursor(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, int64(2), scoped.ServerTimestamp)
}
