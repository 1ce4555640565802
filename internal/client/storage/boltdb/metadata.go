package boltdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/iudanet/gophsync/internal/client/storage"
	"github.com/iudanet/gophsync/internal/crdt"
	"github.com/iudanet/gophsync/internal/models"
)

const (
	keyDeviceID   = "device_id"
	keyClockState = "clock_state"
)

// GetCursor returns the sync cursor of a collection scope.
// Returns a zero cursor if no pull has been performed yet
func (s *Storage) GetCursor(ctx context.Context, collection, entityID string) (*models.Cursor, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	cursor := &models.Cursor{Collection: collection, EntityID: entityID}

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketCursors)
		if bucket == nil {
			return fmt.Errorf("cursors bucket not found")
		}

		data := bucket.Get([]byte(models.CursorKey(collection, entityID)))
		if data == nil {
			// Первая синхронизация - курсор с нуля
			return nil
		}

		return json.Unmarshal(data, cursor)
	})

	if err != nil {
		return nil, fmt.Errorf("failed to get cursor: %w", err)
	}

	return cursor, nil
}

// SaveCursor stores the cursor. A lower server timestamp never replaces
// a higher stored one
func (s *Storage) SaveCursor(ctx context.Context, cursor *models.Cursor) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	key := []byte(models.CursorKey(cursor.Collection, cursor.EntityID))

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketCursors)
		if bucket == nil {
			return fmt.Errorf("cursors bucket not found")
		}

		if existing := bucket.Get(key); existing != nil {
			var stored models.Cursor
			if err := json.Unmarshal(existing, &stored); err == nil &&
				stored.ServerTimestamp >= cursor.ServerTimestamp {
				// Курсор двигается только вперед
				return nil
			}
		}

		toSave := *cursor
		if toSave.UpdatedAt.IsZero() {
			toSave.UpdatedAt = time.Now()
		}

		data, err := json.Marshal(&toSave)
		if err != nil {
			return fmt.Errorf("failed to marshal cursor: %w", err)
		}

		return bucket.Put(key, data)
	})

	if err != nil {
		return fmt.Errorf("failed to save cursor: %w", err)
	}

	return nil
}

// ListCursors returns all stored cursors
func (s *Storage) ListCursors(ctx context.Context) ([]*models.Cursor, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var cursors []*models.Cursor

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCursors).ForEach(func(k, v []byte) error {
			var cursor models.Cursor
			if err := json.Unmarshal(v, &cursor); err != nil {
				return fmt.Errorf("failed to unmarshal cursor %s: %w", k, err)
			}
			cursors = append(cursors, &cursor)
			return nil
		})
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list cursors: %w", err)
	}

	return cursors, nil
}

// GetDeviceID returns the persisted device id, generating a new one on first use
func (s *Storage) GetDeviceID(ctx context.Context) (string, error) {
	if s.db == nil {
		return "", storage.ErrStorageClosed
	}

	var deviceID string

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return fmt.Errorf("metadata bucket not found")
		}

		if existing := bucket.Get([]byte(keyDeviceID)); existing != nil {
			deviceID = string(existing)
			return nil
		}

		deviceID = uuid.New().String()
		return bucket.Put([]byte(keyDeviceID), []byte(deviceID))
	})

	if err != nil {
		return "", fmt.Errorf("failed to get device id: %w", err)
	}

	return deviceID, nil
}

// LoadClockState returns the persisted HLC state.
// Returns ErrClockStateNotFound if nothing was saved yet
func (s *Storage) LoadClockState(deviceID string) (crdt.Timestamp, error) {
	if s.db == nil {
		return crdt.Timestamp{}, storage.ErrStorageClosed
	}

	var state crdt.Timestamp

	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketMetadata).Get([]byte(keyClockState))
		if data == nil {
			return storage.ErrClockStateNotFound
		}
		return state.UnmarshalText(data)
	})

	if err != nil {
		if errors.Is(err, storage.ErrClockStateNotFound) {
			return crdt.Timestamp{}, err
		}
		return crdt.Timestamp{}, fmt.Errorf("failed to load clock state: %w", err)
	}

	return state, nil
}

// SaveClockState persists the last issued HLC value
func (s *Storage) SaveClockState(ts crdt.Timestamp) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	data, err := ts.MarshalText()
	if err != nil {
		return fmt.Errorf("failed to marshal clock state: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMetadata).Put([]byte(keyClockState), data)
	})
	if err != nil {
		return fmt.Errorf("failed to save clock state: %w", err)
	}

	return nil
}
