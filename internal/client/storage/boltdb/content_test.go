package boltdb

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/iudanet/gophsync/internal/client/storage"
	"github.com/iudanet/gophsync/internal/crypto"
	"github.com/iudanet/gophsync/internal/models"
)

func newTestFile(data []byte, fileType string) *models.StoredFile {
	return &models.StoredFile{
		ContentHash: crypto.ContentHash(data),
		FileType:    fileType,
		MediaType:   "text/plain; charset=utf-8",
		Data:        data,
	}
}

func TestStorage_StoreAndGetFile(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	data := bytes.Repeat([]byte("highlighted text "), 100)
	file := newTestFile(data, models.FileTypeOriginal)

	require.NoError(t, store.StoreFile(ctx, file))

	got, err := store.GetFile(ctx, file.ContentHash, models.FileTypeOriginal)
	require.NoError(t, err)
	assert.Equal(t, data, got.Data)
	assert.Equal(t, int64(len(data)), got.Size)
	assert.Equal(t, models.FileID(models.FileTypeOriginal, file.ContentHash), got.ID)
	assert.Equal(t, file.MediaType, got.MediaType)
	assert.False(t, got.StoredAt.IsZero())

	// Данные на диске сжаты
	err = store.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketFilesData).Get(contentKey(file.ContentHash, models.FileTypeOriginal))
		assert.Less(t, len(raw), len(data))
		return nil
	})
	require.NoError(t, err)
}

func TestStorage_GetFile_NotFound(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	_, err := store.GetFile(ctx, "deadbeef", models.FileTypeOriginal)
	assert.ErrorIs(t, err, storage.ErrFileNotFound)

	has, err := store.HasFile(ctx, "deadbeef", models.FileTypeOriginal)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestStorage_StoreFile_SameIdentityKeepsOneCopy(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	data := []byte("same bytes")

	require.NoError(t, store.StoreFile(ctx, newTestFile(data, models.FileTypeOriginal)))
	require.NoError(t, store.StoreFile(ctx, newTestFile(data, models.FileTypeOriginal)))

	files, err := store.ListFiles(ctx)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Nil(t, files[0].Data, "ListFiles returns metadata only")
}

func TestStorage_DeleteFile(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	data := []byte("cover image")
	hash := crypto.ContentHash(data)

	require.NoError(t, store.StoreFile(ctx, newTestFile(data, models.FileTypeOriginal)))
	require.NoError(t, store.StoreFile(ctx, newTestFile(data, models.FileTypeThumbnail)))

	require.NoError(t, store.DeleteFile(ctx, hash, models.FileTypeThumbnail))

	has, err := store.HasFile(ctx, hash, models.FileTypeThumbnail)
	require.NoError(t, err)
	assert.False(t, has)

	has, err = store.HasFile(ctx, hash, models.FileTypeOriginal)
	require.NoError(t, err)
	assert.True(t, has, "Other variants stay untouched")

	assert.ErrorIs(t, store.DeleteFile(ctx, hash, models.FileTypeThumbnail), storage.ErrFileNotFound)
}

func TestStorage_DeleteAllForContent(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	data := []byte("book.epub")
	other := []byte("another book")
	hash := crypto.ContentHash(data)

	require.NoError(t, store.StoreFile(ctx, newTestFile(data, models.FileTypeOriginal)))
	require.NoError(t, store.StoreFile(ctx, newTestFile(data, models.FileTypeThumbnail)))
	require.NoError(t, store.StoreFile(ctx, newTestFile(data, models.FileTypeExport)))
	require.NoError(t, store.StoreFile(ctx, newTestFile(other, models.FileTypeOriginal)))

	removed, err := store.DeleteAllForContent(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	files, err := store.ListFiles(ctx)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, crypto.ContentHash(other), files[0].ContentHash)

	removed, err = store.DeleteAllForContent(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}
