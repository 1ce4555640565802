package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	httpClient "github.com/iudanet/gophsync/internal/client/api"
	"github.com/iudanet/gophsync/internal/client/storage"
	"github.com/iudanet/gophsync/internal/client/syncmeta"
	"github.com/iudanet/gophsync/internal/crdt"
	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/pkg/api"
)

//go:generate moq -out remoteapi_mock.go . RemoteAPI

// RemoteAPI определяет транспорт метаданных, с которым работает движок
type RemoteAPI interface {
	Pull(ctx context.Context, collection string, since int64, entityID string, limit int) (*api.PullResponse, error)
	Push(ctx context.Context, collection string, items []api.SyncItem) (*api.PushResponse, error)
	CurrentTimestamp(ctx context.Context) (int64, error)
}

// ErrSyncHalted is returned by every cycle after the server answered
// Unauthorized, until ResumeAfterAuth is called.
var ErrSyncHalted = errors.New("sync halted until re-authentication")

const (
	defaultPageSize      = 200
	defaultPushBatchSize = 100
)

// Options configures the replication engine.
type Options struct {
	PageSize      int // лимит записей на страницу pull
	PushBatchSize int // записей в одном push запросе
}

// PullOptions narrows a pull to one entity scope.
type PullOptions struct {
	EntityID string
	Limit    int
}

// PullResult contains pull results
type PullResult struct {
	Pulled    int   // количество полученных с сервера записей
	Applied   int   // количество записей, победивших по LWW
	Discarded int   // локальная версия новее или равна
	Skipped   int   // записи с нечитаемым clock
	Pages     int   // количество запрошенных страниц
	Cursor    int64 // курсор после pull
}

// RejectedItem describes a record the server did not accept.
type RejectedItem struct {
	Key    string
	Reason string
}

// PushResult contains push results
type PushResult struct {
	Rejected   []RejectedItem
	Pushed     int // количество отправленных на сервер записей
	Accepted   int // подтверждены сервером
	Changed    int // изменились локально во время push, остаются pending
	Superseded int // сервер вернул более новую версию, она применена локально
}

// SyncResult contains results of one pull-then-push cycle
type SyncResult struct {
	Pull       *PullResult
	Push       *PushResult
	Collection string
}

// Service is the replication engine: cursor based pull, pending push and
// LWW resolution by clock.
type Service struct {
	remote   RemoteAPI
	store    *syncmeta.Store
	records  storage.RecordStorage
	cursors  storage.CursorStorage
	clock    *crdt.Clock
	logger   *slog.Logger
	group    singleflight.Group
	deviceID string
	opts     Options
	halted   atomic.Bool
}

// NewService creates a new sync service
func NewService(
	remote RemoteAPI,
	store *syncmeta.Store,
	records storage.RecordStorage,
	cursors storage.CursorStorage,
	clock *crdt.Clock,
	deviceID string,
	opts Options,
	logger *slog.Logger,
) *Service {
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.PushBatchSize <= 0 {
		opts.PushBatchSize = defaultPushBatchSize
	}

	return &Service{
		remote:   remote,
		store:    store,
		records:  records,
		cursors:  cursors,
		clock:    clock,
		deviceID: deviceID,
		opts:     opts,
		logger:   logger,
	}
}

// Halted reports whether the engine waits for re-authentication.
func (s *Service) Halted() bool {
	return s.halted.Load()
}

// ResumeAfterAuth lifts the halt caused by an Unauthorized answer.
func (s *Service) ResumeAfterAuth() {
	if s.halted.CompareAndSwap(true, false) {
		s.logger.Info("Sync resumed after re-authentication")
	}
}

// Sync performs a pull-then-push cycle for one collection.
// Concurrent calls for the same collection share one running cycle.
func (s *Service) Sync(ctx context.Context, collection string) (*SyncResult, error) {
	if s.halted.Load() {
		return nil, ErrSyncHalted
	}

	// Цикл переживает отмену первого вызвавшего: к нему могли присоединиться другие
	ch := s.group.DoChan(collection, func() (interface{}, error) {
		return s.runCycle(context.WithoutCancel(ctx), collection)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			s.logger.Debug("Joined running sync cycle", "collection", collection)
		}
		result, _ := res.Val.(*SyncResult)
		return result, res.Err
	}
}

func (s *Service) runCycle(ctx context.Context, collection string) (*SyncResult, error) {
	s.logger.Info("Starting synchronization", "collection", collection)
	started := time.Now()

	result := &SyncResult{Collection: collection}

	pull, err := s.Pull(ctx, collection, PullOptions{})
	result.Pull = pull
	if err != nil {
		return result, err
	}

	push, err := s.Push(ctx, collection)
	result.Push = push
	if err != nil {
		return result, err
	}

	s.logger.Info("Synchronization completed",
		"collection", collection,
		"pulled", pull.Pulled,
		"applied", pull.Applied,
		"discarded", pull.Discarded,
		"skipped", pull.Skipped,
		"pushed", push.Pushed,
		"accepted", push.Accepted,
		"rejected", len(push.Rejected),
		"duration", time.Since(started))

	return result, nil
}

// SyncAll synchronizes every registered collection. Per-collection failures
// are collected; the loop stops early only when authorization is lost.
func (s *Service) SyncAll(ctx context.Context) ([]*SyncResult, error) {
	var (
		results []*SyncResult
		errs    []error
	)

	for _, collection := range s.store.Collections() {
		result, err := s.Sync(ctx, collection)
		if result != nil {
			results = append(results, result)
		}
		if err == nil {
			continue
		}

		errs = append(errs, fmt.Errorf("%s: %w", collection, err))
		if errors.Is(err, httpClient.ErrUnauthorized) || errors.Is(err, ErrSyncHalted) {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}

	return results, errors.Join(errs...)
}

// Pull fetches remote changes after the stored cursor and merges them.
// The cursor advances after every completed page.
func (s *Service) Pull(ctx context.Context, collection string, opts PullOptions) (*PullResult, error) {
	if s.halted.Load() {
		return nil, ErrSyncHalted
	}

	cursor, err := s.cursors.GetCursor(ctx, collection, opts.EntityID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cursor: %w", err)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = s.opts.PageSize
	}

	since := cursor.ServerTimestamp
	result := &PullResult{Cursor: since}

	for {
		resp, err := s.remote.Pull(ctx, collection, since, opts.EntityID, limit)
		if err != nil {
			return result, s.remoteError(err)
		}
		result.Pages++

		pageMax := since
		if resp.ServerTimestamp > pageMax {
			pageMax = resp.ServerTimestamp
		}

		for i := range resp.Items {
			item := &resp.Items[i]
			result.Pulled++

			if item.ServerTimestamp != nil && *item.ServerTimestamp > pageMax {
				pageMax = *item.ServerTimestamp
			}

			applied, err := s.mergeItem(ctx, collection, item, resp.ServerTimestamp)
			if errors.Is(err, crdt.ErrClockParse) {
				s.logger.Warn("Skipping record with malformed clock",
					"collection", collection,
					"key", item.ID,
					"error", err)
				result.Skipped++
				continue
			}
			if err != nil {
				return result, err
			}

			if applied {
				result.Applied++
			} else {
				result.Discarded++
			}
		}

		progressed := pageMax > since
		if progressed {
			err := s.cursors.SaveCursor(ctx, &models.Cursor{
				Collection:      collection,
				EntityID:        opts.EntityID,
				ServerTimestamp: pageMax,
			})
			if err != nil {
				return result, fmt.Errorf("failed to save cursor: %w", err)
			}
			since = pageMax
			result.Cursor = since
		}

		if !resp.HasMore {
			break
		}
		if !progressed {
			// Сервер обещает еще страницы, но курсор не двигается
			s.logger.Warn("Pull made no progress, stopping", "collection", collection, "since", since)
			break
		}
	}

	return result, nil
}

// Push sends pending local changes in batches and records acknowledgements.
func (s *Service) Push(ctx context.Context, collection string) (*PushResult, error) {
	if s.halted.Load() {
		return nil, ErrSyncHalted
	}

	pending, err := s.records.PendingRecords(ctx, collection, s.deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending records: %w", err)
	}

	// Отправляем в порядке clock: старые изменения первыми
	sort.Slice(pending, func(i, j int) bool {
		return crdt.Compare(pending[i].Clock, pending[j].Clock) < 0
	})

	result := &PushResult{}

	for start := 0; start < len(pending); start += s.opts.PushBatchSize {
		end := min(start+s.opts.PushBatchSize, len(pending))
		batch := pending[start:end]

		items := make([]api.SyncItem, 0, len(batch))
		pushed := make(map[string]*models.Record, len(batch))
		for _, record := range batch {
			items = append(items, recordToItem(record))
			pushed[record.Key] = record
		}

		resp, err := s.remote.Push(ctx, collection, items)
		if err != nil {
			return result, s.remoteError(err)
		}
		result.Pushed += len(batch)

		for _, r := range resp.Results {
			record, ok := pushed[r.ID]
			if !ok {
				s.logger.Warn("Server answered for unknown record", "collection", collection, "key", r.ID)
				continue
			}

			if err := s.handlePushResult(ctx, collection, record, &r, result); err != nil {
				return result, err
			}
		}
	}

	return result, nil
}

func (s *Service) handlePushResult(ctx context.Context, collection string, record *models.Record, r *api.PushResult, result *PushResult) error {
	if r.Accepted {
		acked, err := s.store.Acknowledge(ctx, collection, record.Key, record.Clock, r.ServerTimestamp)
		if err != nil {
			return fmt.Errorf("failed to acknowledge record: %w", err)
		}
		if acked {
			result.Accepted++
		} else {
			result.Changed++
		}
		return nil
	}

	if r.Current != nil {
		current, err := itemToRecord(r.Current, r.ServerTimestamp)
		switch {
		case err != nil:
			s.logger.Warn("Server returned current version with malformed clock",
				"collection", collection, "key", record.Key, "error", err)
		case crdt.Compare(current.Clock, record.Clock) == 0:
			// Сервер уже хранит именно эту версию (потерян ответ прошлого push)
			if _, err := s.store.Acknowledge(ctx, collection, record.Key, record.Clock, *current.ServerTimestamp); err != nil {
				return fmt.Errorf("failed to acknowledge record: %w", err)
			}
			result.Accepted++
			return nil
		default:
			s.clock.Receive(current.Clock)
			applied, err := s.store.ApplyRemote(ctx, collection, current)
			if err != nil {
				return fmt.Errorf("failed to apply current version: %w", err)
			}
			if applied {
				result.Superseded++
			}
		}
	}

	s.logger.Info("Record rejected by server",
		"collection", collection,
		"key", record.Key,
		"reason", r.Reason)
	result.Rejected = append(result.Rejected, RejectedItem{Key: record.Key, Reason: r.Reason})
	return nil
}

// PendingCount возвращает количество записей, ожидающих отправки
func (s *Service) PendingCount(ctx context.Context, collection string) (int, error) {
	pending, err := s.records.PendingRecords(ctx, collection, s.deviceID)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending records: %w", err)
	}
	return len(pending), nil
}

// SeedCursor sets the cursor of a never-pulled collection to the current
// server timestamp, so history imported from a snapshot is not pulled again.
func (s *Service) SeedCursor(ctx context.Context, collection string) error {
	if s.halted.Load() {
		return ErrSyncHalted
	}

	cursor, err := s.cursors.GetCursor(ctx, collection, "")
	if err != nil {
		return fmt.Errorf("failed to get cursor: %w", err)
	}
	if cursor.ServerTimestamp != 0 {
		return nil
	}

	ts, err := s.remote.CurrentTimestamp(ctx)
	if err != nil {
		return s.remoteError(err)
	}

	if err := s.cursors.SaveCursor(ctx, &models.Cursor{Collection: collection, ServerTimestamp: ts}); err != nil {
		return fmt.Errorf("failed to save cursor: %w", err)
	}

	s.logger.Info("Cursor seeded", "collection", collection, "server_timestamp", ts)
	return nil
}

// mergeItem применяет запись с сервера по правилу LWW
func (s *Service) mergeItem(ctx context.Context, collection string, item *api.SyncItem, fallbackTS int64) (bool, error) {
	record, err := itemToRecord(item, fallbackTS)
	if err != nil {
		return false, err
	}

	s.clock.Receive(record.Clock)

	applied, err := s.store.ApplyRemote(ctx, collection, record)
	if err != nil {
		return false, err
	}

	if applied {
		s.logger.Debug("Merging record (remote wins)", "collection", collection, "key", record.Key, "clock", record.Clock)
	}
	return applied, nil
}

// remoteError фиксирует потерю авторизации и возвращает ошибку вызывающему
func (s *Service) remoteError(err error) error {
	if errors.Is(err, httpClient.ErrUnauthorized) {
		if !s.halted.Swap(true) {
			s.logger.Warn("Sync halted: server rejected credentials", "error", err)
		}
	}
	return err
}

func recordToItem(record *models.Record) api.SyncItem {
	return api.SyncItem{
		ID:        record.Key,
		EntityID:  record.EntityID,
		Clock:     record.Clock.String(),
		DeviceID:  record.DeviceID,
		Data:      record.Data,
		IsDeleted: record.IsDeleted,
	}
}

// itemToRecord конвертирует запись сервера; у pulled записи всегда есть server timestamp
func itemToRecord(item *api.SyncItem, fallbackTS int64) (*models.Record, error) {
	clock, err := crdt.Parse(item.Clock)
	if err != nil {
		return nil, err
	}

	serverTS := fallbackTS
	if item.ServerTimestamp != nil {
		serverTS = *item.ServerTimestamp
	}

	return &models.Record{
		Key:             item.ID,
		EntityID:        item.EntityID,
		DeviceID:        item.DeviceID,
		Clock:           clock,
		Data:            item.Data,
		IsDeleted:       item.IsDeleted,
		ServerTimestamp: &serverTS,
		UpdatedAt:       time.Now(),
	}, nil
}
