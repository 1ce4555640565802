package storage

import "errors"

// Common client storage errors
var (
	// ErrRecordNotFound indicates that a record was not found in a collection
	ErrRecordNotFound = errors.New("record not found")

	// ErrFileNotFound indicates that the content store has no such file
	ErrFileNotFound = errors.New("file not found")

	// ErrTaskNotFound indicates that a transfer task was not found
	ErrTaskNotFound = errors.New("transfer task not found")

	// ErrClockStateNotFound indicates that no clock state was persisted yet
	ErrClockStateNotFound = errors.New("clock state not found")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")
)
