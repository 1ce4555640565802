package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/gophsync/internal/server/storage"
)

// SaveFile stores metadata and bytes of an uploaded file
// Returns true if a live file with the same identity already exists
func (s *Storage) SaveFile(ctx context.Context, meta *storage.FileMeta, data []byte) (bool, error) {
	var deleted int
	err := s.db.QueryRowContext(ctx,
		`SELECT deleted FROM files WHERE user_id = ? AND file_type = ? AND content_hash = ?`,
		meta.UserID, meta.FileType, meta.ContentHash,
	).Scan(&deleted)
	switch {
	case err == nil && !intToBool(deleted):
		return true, nil
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return false, fmt.Errorf("failed to check existing file: %w", err)
	}

	// Байты пишутся до метаданных: видимый файл всегда имеет blob
	if err := s.blobs.PutBlob(ctx, meta.BlobKey(), data); err != nil {
		return false, fmt.Errorf("failed to store blob: %w", err)
	}

	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = s.now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO files (user_id, file_type, content_hash, mime_type, file_name, size, deleted, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT (user_id, file_type, content_hash) DO UPDATE SET
			mime_type = excluded.mime_type,
			file_name = excluded.file_name,
			size = excluded.size,
			deleted = 0,
			created_at = excluded.created_at
	`,
		meta.UserID,
		meta.FileType,
		meta.ContentHash,
		meta.MimeType,
		meta.FileName,
		meta.Size,
		meta.CreatedAt.Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to save file metadata: %w", err)
	}

	return false, nil
}

// GetFile returns metadata and bytes of a live file
func (s *Storage) GetFile(ctx context.Context, userID, fileType, contentHash string) (*storage.FileMeta, []byte, error) {
	meta := &storage.FileMeta{
		UserID:      userID,
		FileType:    fileType,
		ContentHash: contentHash,
	}
	var createdAt int64

	err := s.db.QueryRowContext(ctx, `
		SELECT mime_type, file_name, size, created_at
		FROM files
		WHERE user_id = ? AND file_type = ? AND content_hash = ? AND deleted = 0
	`, userID, fileType, contentHash).Scan(&meta.MimeType, &meta.FileName, &meta.Size, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, storage.ErrFileNotFound
		}
		return nil, nil, fmt.Errorf("failed to get file: %w", err)
	}
	meta.CreatedAt = time.Unix(createdAt, 0)

	data, err := s.blobs.GetBlob(ctx, meta.BlobKey())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read blob: %w", err)
	}

	return meta, data, nil
}

// DeleteFile soft-deletes a file. Bytes stay in the blob store.
func (s *Storage) DeleteFile(ctx context.Context, userID, fileType, contentHash string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE files SET deleted = 1
		WHERE user_id = ? AND file_type = ? AND content_hash = ? AND deleted = 0
	`, userID, fileType, contentHash)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return storage.ErrFileNotFound
	}

	return nil
}

// PutBlob stores bytes in the blobs table
func (s *Storage) PutBlob(ctx context.Context, key string, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO blobs (key, data) VALUES (?, ?) ON CONFLICT (key) DO UPDATE SET data = excluded.data`,
		key, data,
	)
	if err != nil {
		return fmt.Errorf("failed to put blob: %w", err)
	}
	return nil
}

// GetBlob reads bytes from the blobs table
func (s *Storage) GetBlob(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM blobs WHERE key = ?`, key).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrBlobNotFound
		}
		return nil, fmt.Errorf("failed to get blob: %w", err)
	}
	return data, nil
}

// DeleteBlob removes bytes from the blobs table
func (s *Storage) DeleteBlob(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM blobs WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}
