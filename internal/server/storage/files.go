package storage

import (
	"context"
	"time"
)

// FileMeta describes an uploaded blob.
type FileMeta struct {
	CreatedAt   time.Time
	UserID      string
	FileType    string
	ContentHash string
	MimeType    string
	FileName    string
	Size        int64
}

// BlobKey returns the blob store key of the file.
func (m *FileMeta) BlobKey() string {
	return BlobKey(m.UserID, m.FileType, m.ContentHash)
}

// BlobKey builds the blob store key: blobs are isolated per user.
func BlobKey(userID, fileType, contentHash string) string {
	return userID + "/" + fileType + "/" + contentHash
}

// FileStorage defines interface for uploaded file persistence
type FileStorage interface {
	// SaveFile stores metadata and bytes. Returns true if a live file with
	// the same identity already existed, in which case nothing is written
	SaveFile(ctx context.Context, meta *FileMeta, data []byte) (bool, error)

	// GetFile returns metadata and bytes
	// Returns ErrFileNotFound if absent or soft-deleted
	GetFile(ctx context.Context, userID, fileType, contentHash string) (*FileMeta, []byte, error)

	// DeleteFile soft-deletes the file
	// Returns ErrFileNotFound if absent or already deleted
	DeleteFile(ctx context.Context, userID, fileType, contentHash string) error
}

// BlobStore keeps blob bytes by key
type BlobStore interface {
	PutBlob(ctx context.Context, key string, data []byte) error

	// GetBlob returns ErrBlobNotFound for an unknown key
	GetBlob(ctx context.Context, key string) ([]byte, error)

	DeleteBlob(ctx context.Context, key string) error
}
