package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/gophsync/internal/client/storage"
	"github.com/iudanet/gophsync/internal/models"
)

// PutRecord stores or replaces a record in a collection
func (s *Storage) PutRecord(ctx context.Context, collection string, record *models.Record) error {
	return s.PutRecords(ctx, collection, []*models.Record{record})
}

// PutRecords stores several records in one transaction
func (s *Storage) PutRecords(ctx context.Context, collection string, records []*models.Record) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.Bucket(bucketRecords).CreateBucketIfNotExists([]byte(collection))
		if err != nil {
			return fmt.Errorf("failed to create collection bucket: %w", err)
		}

		for _, record := range records {
			// Сериализуем record в JSON
			data, err := json.Marshal(record)
			if err != nil {
				return fmt.Errorf("failed to marshal record %s: %w", record.Key, err)
			}

			// Сохраняем по ключу записи
			if err := bucket.Put([]byte(record.Key), data); err != nil {
				return fmt.Errorf("failed to save record %s: %w", record.Key, err)
			}
		}

		return nil
	})

	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}

// GetRecord retrieves a record by key, tombstones included
func (s *Storage) GetRecord(ctx context.Context, collection, key string) (*models.Record, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var record *models.Record

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketRecords).Bucket([]byte(collection))
		if bucket == nil {
			return storage.ErrRecordNotFound
		}

		data := bucket.Get([]byte(key))
		if data == nil {
			return storage.ErrRecordNotFound
		}

		// Десериализуем
		record = &models.Record{}
		if err := json.Unmarshal(data, record); err != nil {
			return fmt.Errorf("failed to unmarshal record: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return record, nil
}

// ListRecords returns all records of a collection, tombstones included
func (s *Storage) ListRecords(ctx context.Context, collection string) ([]*models.Record, error) {
	records, err := s.scanRecords(collection, func(*models.Record) bool { return true })
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	return records, nil
}

// PendingRecords returns unacknowledged records written by deviceID
func (s *Storage) PendingRecords(ctx context.Context, collection, deviceID string) ([]*models.Record, error) {
	records, err := s.scanRecords(collection, func(r *models.Record) bool {
		return r.IsPending(deviceID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get pending records: %w", err)
	}
	return records, nil
}

// DeleteRecord physically removes a record
func (s *Storage) DeleteRecord(ctx context.Context, collection, key string) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketRecords).Bucket([]byte(collection))
		if bucket == nil || bucket.Get([]byte(key)) == nil {
			return storage.ErrRecordNotFound
		}
		return bucket.Delete([]byte(key))
	})

	if err != nil {
		return fmt.Errorf("delete transaction failed: %w", err)
	}

	return nil
}

// scanRecords перебирает записи коллекции и возвращает прошедшие фильтр
func (s *Storage) scanRecords(collection string, keep func(*models.Record) bool) ([]*models.Record, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var records []*models.Record

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketRecords).Bucket([]byte(collection))
		if bucket == nil {
			// Нет bucket - возвращаем пустой массив
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			var record models.Record
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("failed to unmarshal record %s: %w", k, err)
			}
			if keep(&record) {
				records = append(records, &record)
			}
			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	return records, nil
}
