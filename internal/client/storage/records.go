package storage

import (
	"context"

	"github.com/iudanet/gophsync/internal/models"
)

//go:generate moq -out recordstorage_mock.go . RecordStorage

// RecordStorage defines interface for storing sync-tagged records on client.
// It is a plain key-value layer: stamping and conflict resolution happen above it.
type RecordStorage interface {
	// PutRecord stores or replaces a record in a collection
	PutRecord(ctx context.Context, collection string, record *models.Record) error

	// PutRecords stores several records in one transaction
	PutRecords(ctx context.Context, collection string, records []*models.Record) error

	// GetRecord retrieves a record by key (tombstones included)
	// Returns ErrRecordNotFound if record doesn't exist
	GetRecord(ctx context.Context, collection, key string) (*models.Record, error)

	// ListRecords returns all records of a collection, tombstones included
	ListRecords(ctx context.Context, collection string) ([]*models.Record, error)

	// PendingRecords returns records written by deviceID that the server
	// has not acknowledged yet (ServerTimestamp == nil)
	PendingRecords(ctx context.Context, collection, deviceID string) ([]*models.Record, error)

	// DeleteRecord physically removes a record
	// Only non-synced collections are allowed to reach this method
	DeleteRecord(ctx context.Context, collection, key string) error
}
