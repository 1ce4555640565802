// Package data реализует операции приложения над записями коллекций
// поверх слоя метаданных синхронизации.
package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/iudanet/gophsync/internal/client/storage"
	"github.com/iudanet/gophsync/internal/client/syncmeta"
	"github.com/iudanet/gophsync/internal/models"
)

//go:generate moq -out service_mock.go . Service

var (
	// ErrInvalidJSON is returned when record data is not a JSON value
	ErrInvalidJSON = errors.New("record data must be valid JSON")

	// ErrEmptyCollection is returned for an empty collection name
	ErrEmptyCollection = errors.New("collection name cannot be empty")
)

// Service определяет интерфейс для клиентского data сервиса
type Service interface {
	Put(ctx context.Context, collection, key, entityID string, data []byte) (*models.Record, error)
	Get(ctx context.Context, collection, key string) (*models.Record, error)
	List(ctx context.Context, collection string, includeDeleted bool) ([]*models.Record, error)
	Delete(ctx context.Context, collection, key string) error
}

// RecordStore is the write path the service goes through.
// *syncmeta.Store implements it.
type RecordStore interface {
	Put(ctx context.Context, collection string, record *models.Record, origin models.Origin) error
	Get(ctx context.Context, collection, key string) (*models.Record, error)
	List(ctx context.Context, collection string, opts syncmeta.ListOptions) ([]*models.Record, error)
	Tombstone(ctx context.Context, collection, key string) error
	Delete(ctx context.Context, collection, key string) error
	IsSynced(collection string) bool
}

type service struct {
	store RecordStore
}

// NewService creates a record service over store
func NewService(store RecordStore) Service {
	return &service{store: store}
}

// Put создает или обновляет запись. Пустой key заменяется случайным UUID.
func (s *service) Put(ctx context.Context, collection, key, entityID string, data []byte) (*models.Record, error) {
	if collection == "" {
		return nil, ErrEmptyCollection
	}
	if !json.Valid(data) {
		return nil, ErrInvalidJSON
	}
	if key == "" {
		key = uuid.NewString()
	}

	record := &models.Record{
		Key:      key,
		EntityID: entityID,
		Data:     json.RawMessage(data),
	}
	if err := s.store.Put(ctx, collection, record, models.OriginLocal); err != nil {
		return nil, fmt.Errorf("failed to save record: %w", err)
	}

	return s.store.Get(ctx, collection, key)
}

// Get возвращает живую запись; tombstone считается отсутствующей записью
func (s *service) Get(ctx context.Context, collection, key string) (*models.Record, error) {
	record, err := s.store.Get(ctx, collection, key)
	if err != nil {
		return nil, err
	}
	if record.IsDeleted {
		return nil, fmt.Errorf("record %s is deleted: %w", key, storage.ErrRecordNotFound)
	}
	return record, nil
}

// List возвращает записи коллекции, отсортированные по ключу
func (s *service) List(ctx context.Context, collection string, includeDeleted bool) ([]*models.Record, error) {
	if collection == "" {
		return nil, ErrEmptyCollection
	}
	return s.store.List(ctx, collection, syncmeta.ListOptions{IncludeDeleted: includeDeleted})
}

// Delete удаляет запись: в синхронизируемой коллекции пишет tombstone,
// в локальной удаляет физически
func (s *service) Delete(ctx context.Context, collection, key string) error {
	if !s.store.IsSynced(collection) {
		return s.store.Delete(ctx, collection, key)
	}

	// Повторный tombstone не нужен: это была бы лишняя запись на сервер
	if _, err := s.Get(ctx, collection, key); err != nil {
		return err
	}

	return s.store.Tombstone(ctx, collection, key)
}
