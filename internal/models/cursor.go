package models

import "time"

// Cursor хранит наибольший server timestamp, уже учтенный локально
// для коллекции (и опционально для одной области EntityID).
type Cursor struct {
	UpdatedAt       time.Time `json:"updated_at"`
	Collection      string    `json:"collection"`
	EntityID        string    `json:"entity_id,omitempty"`
	ServerTimestamp int64     `json:"server_timestamp"`
}

// cursorKeySep не встречается в именах коллекций и EntityID
const cursorKeySep = "\x00"

// CursorKey returns the storage key of a cursor scope.
func CursorKey(collection, entityID string) string {
	if entityID == "" {
		return collection
	}
	return collection + cursorKeySep + entityID
}
