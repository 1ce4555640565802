package data

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophsync/internal/client/storage"
	"github.com/iudanet/gophsync/internal/client/storage/boltdb"
	"github.com/iudanet/gophsync/internal/client/syncmeta"
	"github.com/iudanet/gophsync/internal/crdt"
)

func setupTestService(t *testing.T) (Service, *boltdb.Storage) {
	t.Helper()

	db, err := boltdb.New(context.Background(), filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := syncmeta.New(db, crdt.NewClock("device-a"), "device-a", logger)
	store.Register("notes")

	return NewService(store), db
}

func TestService_PutAndGet(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	record, err := svc.Put(ctx, "notes", "n1", "doc-1", []byte(`{"text":"hello"}`))
	require.NoError(t, err)
	assert.Equal(t, "n1", record.Key)
	assert.Equal(t, "doc-1", record.EntityID)
	assert.Equal(t, "device-a", record.DeviceID)
	assert.True(t, record.IsPending("device-a"), "Local write is pending until pushed")

	got, err := svc.Get(ctx, "notes", "n1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"hello"}`, string(got.Data))
}

func TestService_Put_GeneratesKey(t *testing.T) {
	svc, _ := setupTestService(t)

	record, err := svc.Put(context.Background(), "notes", "", "", []byte(`[1,2,3]`))
	require.NoError(t, err)
	assert.Len(t, record.Key, 36, "Empty key becomes a UUID")
}

func TestService_Put_Validation(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	tests := []struct {
		wantErr    error
		name       string
		collection string
		data       string
	}{
		{name: "invalid json", collection: "notes", data: `{"text":`, wantErr: ErrInvalidJSON},
		{name: "empty data", collection: "notes", data: ``, wantErr: ErrInvalidJSON},
		{name: "empty collection", collection: "", data: `{}`, wantErr: ErrEmptyCollection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Put(ctx, tt.collection, "k", "", []byte(tt.data))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestService_Delete_SyncedWritesTombstone(t *testing.T) {
	svc, db := setupTestService(t)
	ctx := context.Background()

	_, err := svc.Put(ctx, "notes", "n1", "", []byte(`{}`))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "notes", "n1"))

	_, err = svc.Get(ctx, "notes", "n1")
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)

	// Строка осталась в хранилище как tombstone
	stored, err := db.GetRecord(ctx, "notes", "n1")
	require.NoError(t, err)
	assert.True(t, stored.IsDeleted)
	assert.Nil(t, stored.ServerTimestamp)

	list, err := svc.List(ctx, "notes", false)
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = svc.List(ctx, "notes", true)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	err = svc.Delete(ctx, "notes", "n1")
	assert.ErrorIs(t, err, storage.ErrRecordNotFound, "Deleting twice reports missing record")
}

func TestService_Delete_LocalCollectionRemovesRow(t *testing.T) {
	svc, db := setupTestService(t)
	ctx := context.Background()

	_, err := svc.Put(ctx, "drafts", "d1", "", []byte(`{}`))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "drafts", "d1"))

	_, err = db.GetRecord(ctx, "drafts", "d1")
	assert.True(t, errors.Is(err, storage.ErrRecordNotFound))
}

func TestService_Get_Missing(t *testing.T) {
	svc, _ := setupTestService(t)

	_, err := svc.Get(context.Background(), "notes", "nope")
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)
}
