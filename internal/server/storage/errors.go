package storage

import "errors"

// Common storage errors
var (
	// ErrFileNotFound indicates that file is absent or soft-deleted
	ErrFileNotFound = errors.New("file not found")

	// ErrBlobNotFound indicates that blob bytes are missing in the blob store
	ErrBlobNotFound = errors.New("blob not found")
)
