package boltdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang/snappy"
	"go.etcd.io/bbolt"

	"github.com/iudanet/gophsync/internal/client/storage"
	"github.com/iudanet/gophsync/internal/models"
)

// contentKey - ключ вида hash\x00type: все варианты одного содержимого
// лежат рядом и находятся сканированием по префиксу
func contentKey(contentHash, fileType string) []byte {
	return []byte(contentHash + "\x00" + fileType)
}

func contentPrefix(contentHash string) []byte {
	return []byte(contentHash + "\x00")
}

// StoreFile stores blob bytes compressed with snappy. The same identity
// stored twice keeps a single copy
func (s *Storage) StoreFile(ctx context.Context, file *models.StoredFile) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	meta := *file
	meta.ID = models.FileID(file.FileType, file.ContentHash)
	meta.Size = int64(len(file.Data))
	if meta.StoredAt.IsZero() {
		meta.StoredAt = time.Now()
	}

	metaData, err := json.Marshal(&meta)
	if err != nil {
		return fmt.Errorf("failed to marshal file metadata: %w", err)
	}

	compressed := snappy.Encode(nil, file.Data)
	key := contentKey(file.ContentHash, file.FileType)

	err = s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketFilesMeta).Put(key, metaData); err != nil {
			return fmt.Errorf("failed to save file metadata: %w", err)
		}
		if err := tx.Bucket(bucketFilesData).Put(key, compressed); err != nil {
			return fmt.Errorf("failed to save file data: %w", err)
		}
		return nil
	})

	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}

// GetFile retrieves a stored file with its decompressed bytes
func (s *Storage) GetFile(ctx context.Context, contentHash, fileType string) (*models.StoredFile, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var file *models.StoredFile
	key := contentKey(contentHash, fileType)

	err := s.db.View(func(tx *bbolt.Tx) error {
		metaData := tx.Bucket(bucketFilesMeta).Get(key)
		compressed := tx.Bucket(bucketFilesData).Get(key)
		if metaData == nil || compressed == nil {
			return storage.ErrFileNotFound
		}

		file = &models.StoredFile{}
		if err := json.Unmarshal(metaData, file); err != nil {
			return fmt.Errorf("failed to unmarshal file metadata: %w", err)
		}

		// snappy.Decode выделяет новый буфер, данные bbolt за пределы tx не утекают
		data, err := snappy.Decode(nil, compressed)
		if err != nil {
			return fmt.Errorf("failed to decompress file data: %w", err)
		}
		file.Data = data

		return nil
	})

	if err != nil {
		return nil, err
	}

	return file, nil
}

// HasFile checks whether a file is cached
func (s *Storage) HasFile(ctx context.Context, contentHash, fileType string) (bool, error) {
	if s.db == nil {
		return false, storage.ErrStorageClosed
	}

	var exists bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		exists = tx.Bucket(bucketFilesMeta).Get(contentKey(contentHash, fileType)) != nil
		return nil
	})

	return exists, err
}

// DeleteFile removes one type variant of the content
func (s *Storage) DeleteFile(ctx context.Context, contentHash, fileType string) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	key := contentKey(contentHash, fileType)

	return s.db.Update(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketFilesMeta)
		if meta.Get(key) == nil {
			return storage.ErrFileNotFound
		}
		if err := meta.Delete(key); err != nil {
			return fmt.Errorf("failed to delete file metadata: %w", err)
		}
		return tx.Bucket(bucketFilesData).Delete(key)
	})
}

// DeleteAllForContent removes every type variant of the content
func (s *Storage) DeleteAllForContent(ctx context.Context, contentHash string) (int, error) {
	if s.db == nil {
		return 0, storage.ErrStorageClosed
	}

	prefix := contentPrefix(contentHash)
	removed := 0

	err := s.db.Update(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketFilesMeta)
		data := tx.Bucket(bucketFilesData)

		// Сначала собираем ключи: удалять во время обхода курсором нельзя
		var keys [][]byte
		c := meta.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}

		for _, k := range keys {
			if err := meta.Delete(k); err != nil {
				return fmt.Errorf("failed to delete file metadata: %w", err)
			}
			if err := data.Delete(k); err != nil {
				return fmt.Errorf("failed to delete file data: %w", err)
			}
			removed++
		}
		return nil
	})

	if err != nil {
		return 0, err
	}

	return removed, nil
}

// ListFiles returns metadata of all cached files without bytes
func (s *Storage) ListFiles(ctx context.Context) ([]*models.StoredFile, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var files []*models.StoredFile

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketFilesMeta).ForEach(func(k, v []byte) error {
			var file models.StoredFile
			if err := json.Unmarshal(v, &file); err != nil {
				return fmt.Errorf("failed to unmarshal file metadata: %w", err)
			}
			files = append(files, &file)
			return nil
		})
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	return files, nil
}
