package sync

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	gosync "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophsync/internal/client/storage/boltdb"
	"github.com/iudanet/gophsync/internal/client/syncmeta"
	"github.com/iudanet/gophsync/internal/crdt"
	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/pkg/api"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeServer - сервер синхронизации в памяти с тем же правилом clock guard
type fakeServer struct {
	items map[string]map[string]api.SyncItem
	seq   int64
	mu    gosync.Mutex
}

func newFakeServer() *fakeServer {
	return &fakeServer{items: make(map[string]map[string]api.SyncItem)}
}

func (f *fakeServer) Pull(_ context.Context, collection string, since int64, entityID string, limit int) (*api.PullResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var changed []api.SyncItem
	for _, item := range f.items[collection] {
		if *item.ServerTimestamp > since && (entityID == "" || item.EntityID == entityID) {
			changed = append(changed, item)
		}
	}
	sort.Slice(changed, func(i, j int) bool {
		return *changed[i].ServerTimestamp < *changed[j].ServerTimestamp
	})

	resp := &api.PullResponse{ServerTimestamp: since}
	if limit > 0 && len(changed) > limit {
		changed = changed[:limit]
		resp.HasMore = true
	}
	resp.Items = changed
	if len(changed) > 0 {
		resp.ServerTimestamp = *changed[len(changed)-1].ServerTimestamp
	}
	return resp, nil
}

func (f *fakeServer) Push(_ context.Context, collection string, items []api.SyncItem) (*api.PushResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.items[collection] == nil {
		f.items[collection] = make(map[string]api.SyncItem)
	}
	coll := f.items[collection]

	resp := &api.PushResponse{}
	for _, item := range items {
		clock, err := crdt.Parse(item.Clock)
		if err != nil {
			resp.Results = append(resp.Results, api.PushResult{ID: item.ID, Reason: api.ReasonInvalid})
			continue
		}

		if existing, ok := coll[item.ID]; ok {
			existingClock, _ := crdt.Parse(existing.Clock)
			if !clock.After(existingClock) {
				current := existing
				resp.Results = append(resp.Results, api.PushResult{
					ID:              item.ID,
					Reason:          api.ReasonStale,
					ServerTimestamp: *existing.ServerTimestamp,
					Current:         &current,
				})
				continue
			}
		}

		f.seq++
		ts := f.seq
		item.ServerTimestamp = &ts
		coll[item.ID] = item
		resp.Results = append(resp.Results, api.PushResult{ID: item.ID, Accepted: true, ServerTimestamp: ts})
	}
	return resp, nil
}

func (f *fakeServer) CurrentTimestamp(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seq, nil
}

// manualTime управляемые системные часы устройства
type manualTime struct {
	ms atomic.Int64
}

func (m *manualTime) Set(ms int64) { m.ms.Store(ms) }

func (m *manualTime) Now() time.Time { return time.UnixMilli(m.ms.Load()) }

// device - клиент с собственным хранилищем, часами и движком
type device struct {
	service *Service
	store   *syncmeta.Store
	records *boltdb.Storage
	time    *manualTime
}

func newDevice(t *testing.T, deviceID string, remote RemoteAPI, opts Options) *device {
	t.Helper()

	records, err := boltdb.New(context.Background(), filepath.Join(t.TempDir(), deviceID+".db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = records.Close() })

	mt := &manualTime{}
	mt.Set(1000)

	clock := crdt.NewClock(deviceID, crdt.WithNow(mt.Now), crdt.WithStateStore(records))
	store := syncmeta.New(records, clock, deviceID, setupTestLogger())
	store.Register("highlights")

	return &device{
		service: NewService(remote, store, records, records, clock, deviceID, opts, setupTestLogger()),
		store:   store,
		records: records,
		time:    mt,
	}
}

func (d *device) write(t *testing.T, at int64, key, color string) {
	t.Helper()
	d.time.Set(at)
	record := &models.Record{Key: key, EntityID: "book-1", Data: json.RawMessage(`{"color":"` + color + `"}`)}
	require.NoError(t, d.store.Put(context.Background(), "highlights", record, models.OriginLocal))
}

func (d *device) delete(t *testing.T, at int64, key string) {
	t.Helper()
	d.time.Set(at)
	require.NoError(t, d.store.Tombstone(context.Background(), "highlights", key))
}

func (d *device) sync(t *testing.T) *SyncResult {
	t.Helper()
	result, err := d.service.Sync(context.Background(), "highlights")
	require.NoError(t, err)
	return result
}

func (d *device) get(t *testing.T, key string) *models.Record {
	t.Helper()
	record, err := d.store.Get(context.Background(), "highlights", key)
	require.NoError(t, err)
	return record
}

func syncItem(key, clock string, serverTS int64) api.SyncItem {
	return api.SyncItem{
		ID:              key,
		Clock:           clock,
		DeviceID:        "device-b",
		Data:            json.RawMessage(`{"color":"blue"}`),
		ServerTimestamp: &serverTS,
	}
}
