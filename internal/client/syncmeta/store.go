// Package syncmeta перехватывает записи в синхронизируемые коллекции и
// проставляет метаданные синхронизации (HLC, device id, признак подтверждения).
package syncmeta

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/iudanet/gophsync/internal/client/storage"
	"github.com/iudanet/gophsync/internal/crdt"
	"github.com/iudanet/gophsync/internal/models"
)

// ErrDirectDeleteRejected is returned when a physical delete targets a synced
// collection. Synced rows are removed only through a tombstone write.
var ErrDirectDeleteRejected = errors.New("direct delete is not allowed in synced collection, write a tombstone instead")

// Listener receives mutation events. It runs synchronously after the write
// is persisted and must not block.
type Listener func(event models.MutationEvent)

// ListOptions controls List output.
type ListOptions struct {
	IncludeDeleted bool
}

// Store is the write-interception layer in front of RecordStorage.
type Store struct {
	records   storage.RecordStorage
	clock     *crdt.Clock
	logger    *slog.Logger
	now       func() time.Time
	synced    map[string]struct{}
	listeners map[int]Listener
	deviceID  string
	nextID    int
	mu        sync.Mutex // сериализует штамп+запись
	lmu       sync.RWMutex
}

// New creates a Store. Collections become synced via Register.
func New(records storage.RecordStorage, clock *crdt.Clock, deviceID string, logger *slog.Logger) *Store {
	return &Store{
		records:   records,
		clock:     clock,
		logger:    logger,
		now:       time.Now,
		deviceID:  deviceID,
		synced:    make(map[string]struct{}),
		listeners: make(map[int]Listener),
	}
}

// DeviceID returns the id stamped into local writes.
func (s *Store) DeviceID() string {
	return s.deviceID
}

// Register marks collections as synced.
func (s *Store) Register(collections ...string) {
	s.lmu.Lock()
	defer s.lmu.Unlock()

	for _, c := range collections {
		s.synced[c] = struct{}{}
	}
}

// IsSynced reports whether writes to collection are intercepted.
func (s *Store) IsSynced(collection string) bool {
	s.lmu.RLock()
	defer s.lmu.RUnlock()

	_, ok := s.synced[collection]
	return ok
}

// Collections returns registered collections in sorted order.
func (s *Store) Collections() []string {
	s.lmu.RLock()
	defer s.lmu.RUnlock()

	result := make([]string, 0, len(s.synced))
	for c := range s.synced {
		result = append(result, c)
	}
	sort.Strings(result)
	return result
}

// Subscribe registers fn for mutation events. The returned func removes it.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.lmu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.lmu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.lmu.Lock()
			delete(s.listeners, id)
			s.lmu.Unlock()
		})
	}
}

// Put writes a record. Local writes to synced collections are stamped with
// a fresh clock value and become pending; remote writes are stored as is.
func (s *Store) Put(ctx context.Context, collection string, record *models.Record, origin models.Origin) error {
	if record == nil || record.Key == "" {
		return fmt.Errorf("record key is required")
	}

	if origin == models.OriginRemote || !s.IsSynced(collection) {
		if err := s.records.PutRecord(ctx, collection, record); err != nil {
			return fmt.Errorf("failed to put record: %w", err)
		}
		return nil
	}

	s.mu.Lock()
	op, err := s.putLocked(ctx, collection, record)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.emit(models.MutationEvent{Collection: collection, Key: record.Key, Op: op, Record: record.Clone()})
	return nil
}

// putLocked штампует и сохраняет локальную запись. Вызывать под mu.
func (s *Store) putLocked(ctx context.Context, collection string, record *models.Record) (models.MutationOp, error) {
	op, err := s.opFor(ctx, collection, record.Key)
	if err != nil {
		return op, err
	}
	s.stamp(record, s.clock.Next())
	if err := s.records.PutRecord(ctx, collection, record); err != nil {
		return op, fmt.Errorf("failed to put record: %w", err)
	}
	return op, nil
}

// PutBatch writes several records. Local writes to a synced collection share
// one logical step of the clock (ascending counters).
func (s *Store) PutBatch(ctx context.Context, collection string, records []*models.Record, origin models.Origin) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if r == nil || r.Key == "" {
			return fmt.Errorf("record key is required")
		}
	}

	if origin == models.OriginRemote || !s.IsSynced(collection) {
		if err := s.records.PutRecords(ctx, collection, records); err != nil {
			return fmt.Errorf("failed to put records: %w", err)
		}
		return nil
	}

	s.mu.Lock()
	ops := make([]models.MutationOp, len(records))
	for i, r := range records {
		op, err := s.opFor(ctx, collection, r.Key)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		ops[i] = op
	}

	clocks := s.clock.NextBatch(len(records))
	for i, r := range records {
		s.stamp(r, clocks[i])
	}
	err := s.records.PutRecords(ctx, collection, records)
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to put records: %w", err)
	}

	for i, r := range records {
		s.emit(models.MutationEvent{Collection: collection, Key: r.Key, Op: ops[i], Record: r.Clone()})
	}
	return nil
}

// ApplyRemote stores a version observed by the server if it wins LWW
// against the local one and reports whether it was stored. A pending local
// version with an identical clock is acknowledged with the incoming server
// timestamp instead.
func (s *Store) ApplyRemote(ctx context.Context, collection string, incoming *models.Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	local, err := s.records.GetRecord(ctx, collection, incoming.Key)
	switch {
	case errors.Is(err, storage.ErrRecordNotFound):
	case err != nil:
		return false, fmt.Errorf("failed to read record %s: %w", incoming.Key, err)
	case incoming.IsNewerThan(local):
	default:
		// Наша же версия вернулась от сервера - подтверждаем ее
		if crdt.Compare(local.Clock, incoming.Clock) == 0 && !local.IsSynced() && incoming.IsSynced() {
			ts := *incoming.ServerTimestamp
			local.ServerTimestamp = &ts
			if err := s.records.PutRecord(ctx, collection, local); err != nil {
				return false, fmt.Errorf("failed to acknowledge record %s: %w", local.Key, err)
			}
		}
		return false, nil
	}

	if err := s.records.PutRecord(ctx, collection, incoming); err != nil {
		return false, fmt.Errorf("failed to put record: %w", err)
	}
	return true, nil
}

// Acknowledge records the server timestamp of a pushed version. Returns false
// when the record was changed locally after the push: it stays pending.
func (s *Store) Acknowledge(ctx context.Context, collection, key string, pushed crdt.Timestamp, serverTimestamp int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	local, err := s.records.GetRecord(ctx, collection, key)
	if err != nil {
		return false, fmt.Errorf("failed to read record %s: %w", key, err)
	}

	if crdt.Compare(local.Clock, pushed) != 0 {
		return false, nil
	}

	local.ServerTimestamp = &serverTimestamp
	if err := s.records.PutRecord(ctx, collection, local); err != nil {
		return false, fmt.Errorf("failed to acknowledge record %s: %w", key, err)
	}
	return true, nil
}

// Tombstone marks a record deleted through the local write path.
// Чтение и запись идут под одной блокировкой, чтобы не затереть
// параллельную локальную запись устаревшей копией.
func (s *Store) Tombstone(ctx context.Context, collection, key string) error {
	if !s.IsSynced(collection) {
		record, err := s.records.GetRecord(ctx, collection, key)
		if err != nil {
			return fmt.Errorf("failed to get record %s: %w", key, err)
		}
		record.IsDeleted = true
		return s.Put(ctx, collection, record, models.OriginLocal)
	}

	s.mu.Lock()
	record, err := s.records.GetRecord(ctx, collection, key)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to get record %s: %w", key, err)
	}
	record.IsDeleted = true
	op, err := s.putLocked(ctx, collection, record)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.emit(models.MutationEvent{Collection: collection, Key: record.Key, Op: op, Record: record.Clone()})
	return nil
}

// Delete physically removes a record of a non-synced collection.
func (s *Store) Delete(ctx context.Context, collection, key string) error {
	if s.IsSynced(collection) {
		return fmt.Errorf("%s: %w", collection, ErrDirectDeleteRejected)
	}

	if err := s.records.DeleteRecord(ctx, collection, key); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

// Get returns a record by key, tombstones included.
func (s *Store) Get(ctx context.Context, collection, key string) (*models.Record, error) {
	return s.records.GetRecord(ctx, collection, key)
}

// List returns records of a collection sorted by key.
func (s *Store) List(ctx context.Context, collection string, opts ListOptions) ([]*models.Record, error) {
	records, err := s.records.ListRecords(ctx, collection)
	if err != nil {
		return nil, err
	}

	result := make([]*models.Record, 0, len(records))
	for _, r := range records {
		if r.IsDeleted && !opts.IncludeDeleted {
			continue
		}
		result = append(result, r)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

// opFor определяет тип операции по наличию записи. Вызывать под mu.
func (s *Store) opFor(ctx context.Context, collection, key string) (models.MutationOp, error) {
	_, err := s.records.GetRecord(ctx, collection, key)
	switch {
	case err == nil:
		return models.OpUpdate, nil
	case errors.Is(err, storage.ErrRecordNotFound):
		return models.OpCreate, nil
	default:
		return "", fmt.Errorf("failed to read record %s: %w", key, err)
	}
}

func (s *Store) stamp(record *models.Record, ts crdt.Timestamp) {
	record.Clock = ts
	record.DeviceID = s.deviceID
	record.ServerTimestamp = nil
	record.UpdatedAt = s.now()
}

func (s *Store) emit(event models.MutationEvent) {
	s.lmu.RLock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.lmu.RUnlock()

	for _, l := range listeners {
		l(event)
	}

	s.logger.Debug("Local write recorded",
		"collection", event.Collection,
		"key", event.Key,
		"op", event.Op)
}
