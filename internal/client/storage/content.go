package storage

import (
	"context"

	"github.com/iudanet/gophsync/internal/models"
)

//go:generate moq -out contentstorage_mock.go . ContentStorage

// ContentStorage defines interface for the local content-addressed blob store.
// Pure local persistence without any network awareness.
type ContentStorage interface {
	// StoreFile stores blob bytes under FileType+ContentHash
	// Storing the same identity twice keeps a single copy
	StoreFile(ctx context.Context, file *models.StoredFile) error

	// GetFile retrieves a stored file with its bytes
	// Returns ErrFileNotFound if the file isn't cached
	GetFile(ctx context.Context, contentHash, fileType string) (*models.StoredFile, error)

	// HasFile checks whether a file is cached
	HasFile(ctx context.Context, contentHash, fileType string) (bool, error)

	// DeleteFile removes one type variant of the content
	DeleteFile(ctx context.Context, contentHash, fileType string) error

	// DeleteAllForContent removes every type variant of the content
	// (main file, thumbnail, ...). Returns number of removed files
	DeleteAllForContent(ctx context.Context, contentHash string) (int, error)

	// ListFiles returns metadata (without bytes) of all cached files
	ListFiles(ctx context.Context) ([]*models.StoredFile, error)
}
