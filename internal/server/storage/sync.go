package storage

import (
	"context"

	"github.com/iudanet/gophsync/internal/crdt"
)

// SyncItem is a server-side copy of a sync-tagged record. The server never
// interprets Data.
type SyncItem struct {
	Clock      crdt.Timestamp
	UserID     string
	Collection string
	ID         string
	EntityID   string
	DeviceID   string
	Data       []byte
	ServerTS   int64
	IsDeleted  bool
}

// PutResult is the outcome of one guarded write.
type PutResult struct {
	Current  *SyncItem // сохраненная версия, когда запись отклонена
	ServerTS int64
	Accepted bool
}

// ListQuery selects items changed after Since.
type ListQuery struct {
	UserID     string
	Collection string
	EntityID   string // пустая строка - без фильтра
	Since      int64
	Limit      int
}

// SyncStorage defines interface for sync item persistence
type SyncStorage interface {
	// PutItems writes items in one transaction. An item overwrites the stored
	// version only if its clock is strictly greater; otherwise the result
	// carries the stored version. Accepted items get a fresh server timestamp.
	PutItems(ctx context.Context, userID, collection string, items []*SyncItem) ([]PutResult, error)

	// ListSince returns up to Limit items with server timestamp > Since,
	// ordered by server timestamp, and whether more items follow
	ListSince(ctx context.Context, q ListQuery) ([]*SyncItem, bool, error)

	// CurrentTimestamp returns the last allocated server timestamp
	CurrentTimestamp(ctx context.Context) (int64, error)
}
