package boltdb

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophsync/internal/client/storage"
	"github.com/iudanet/gophsync/internal/crdt"
	"github.com/iudanet/gophsync/internal/models"
)

// createTestRecord создает тестовую запись
func createTestRecord(key, deviceID string, wall int64, serverTS *int64) *models.Record {
	return &models.Record{
		Key:             key,
		DeviceID:        deviceID,
		Clock:           crdt.Timestamp{WallTime: wall, DeviceID: deviceID},
		Data:            json.RawMessage(`{"text":"` + key + `"}`),
		ServerTimestamp: serverTS,
		UpdatedAt:       time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestStorage_PutAndGetRecord(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	record := createTestRecord("h1", "device-a", 1000, nil)
	record.EntityID = "doc-1"

	require.NoError(t, store.PutRecord(ctx, "highlights", record))

	got, err := store.GetRecord(ctx, "highlights", "h1")
	require.NoError(t, err)
	assert.Equal(t, record.Key, got.Key)
	assert.Equal(t, record.EntityID, got.EntityID)
	assert.Equal(t, record.Clock, got.Clock)
	assert.JSONEq(t, string(record.Data), string(got.Data))
	assert.Nil(t, got.ServerTimestamp)
	assert.True(t, record.UpdatedAt.Equal(got.UpdatedAt))
}

func TestStorage_GetRecord_NotFound(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	ctx := context.Background()

	// Коллекции еще нет
	_, err := store.GetRecord(ctx, "highlights", "missing")
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)

	require.NoError(t, store.PutRecord(ctx, "highlights", createTestRecord("h1", "device-a", 1, nil)))

	// Коллекция есть, ключа нет
	_, err = store.GetRecord(ctx, "highlights", "missing")
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)
}

func TestStorage_PutRecord_Overwrites(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, store.PutRecord(ctx, "highlights", createTestRecord("h1", "device-a", 1000, nil)))

	updated := createTestRecord("h1", "device-a", 2000, nil)
	updated.IsDeleted = true
	require.NoError(t, store.PutRecord(ctx, "highlights", updated))

	got, err := store.GetRecord(ctx, "highlights", "h1")
	require.NoError(t, err)
	assert.Equal(t, int64(2000), got.Clock.WallTime)
	assert.True(t, got.IsDeleted, "Tombstone must be stored as a regular row")
}

func TestStorage_CollectionsAreIsolated(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, store.PutRecords(ctx, "highlights", []*models.Record{
		createTestRecord("h1", "device-a", 1, nil),
		createTestRecord("h2", "device-a", 2, nil),
	}))
	require.NoError(t, store.PutRecord(ctx, "bookmarks", createTestRecord("b1", "device-a", 3, nil)))

	highlights, err := store.ListRecords(ctx, "highlights")
	require.NoError(t, err)
	assert.Len(t, highlights, 2)

	bookmarks, err := store.ListRecords(ctx, "bookmarks")
	require.NoError(t, err)
	assert.Len(t, bookmarks, 1)

	empty, err := store.ListRecords(ctx, "notes")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStorage_PendingRecords(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	acked := int64(42)

	require.NoError(t, store.PutRecords(ctx, "highlights", []*models.Record{
		createTestRecord("own-pending", "device-a", 1, nil),
		createTestRecord("own-acked", "device-a", 2, &acked),
		createTestRecord("foreign", "device-b", 3, &acked),
	}))

	pending, err := store.PendingRecords(ctx, "highlights", "device-a")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "own-pending", pending[0].Key)

	pending, err = store.PendingRecords(ctx, "highlights", "device-b")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestStorage_DeleteRecord(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, store.PutRecord(ctx, "drafts", createTestRecord("d1", "device-a", 1, nil)))

	require.NoError(t, store.DeleteRecord(ctx, "drafts", "d1"))

	_, err := store.GetRecord(ctx, "drafts", "d1")
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)

	err = store.DeleteRecord(ctx, "drafts", "d1")
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)
}
