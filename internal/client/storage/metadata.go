package storage

import (
	"context"

	"github.com/iudanet/gophsync/internal/crdt"
	"github.com/iudanet/gophsync/internal/models"
)

//go:generate moq -out cursorstorage_mock.go . CursorStorage

// CursorStorage defines interface for storing sync cursors
type CursorStorage interface {
	// GetCursor returns the cursor of a collection scope
	// Returns a zero cursor if no pull has been performed yet
	GetCursor(ctx context.Context, collection, entityID string) (*models.Cursor, error)

	// SaveCursor advances the cursor; a lower server timestamp never
	// replaces a higher stored one
	SaveCursor(ctx context.Context, cursor *models.Cursor) error

	// ListCursors returns all stored cursors
	ListCursors(ctx context.Context) ([]*models.Cursor, error)
}

// DeviceStorage stores the identity of this installation
type DeviceStorage interface {
	// GetDeviceID returns the persisted device id, generating and storing
	// a new one on first use
	GetDeviceID(ctx context.Context) (string, error)
}

// ClockStorage persists HLC state between process restarts
type ClockStorage interface {
	crdt.StateStore
}
