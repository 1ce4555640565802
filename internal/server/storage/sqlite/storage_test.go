package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualTime управляемый источник времени
type manualTime struct {
	current time.Time
	mu      sync.Mutex
}

func (m *manualTime) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *manualTime) Set(ms int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = time.UnixMilli(ms)
}

func setupTestStorage(t *testing.T, opts ...Option) (*Storage, func()) {
	ctx := context.Background()

	// Используем in-memory database для тестов
	storage, err := New(ctx, ":memory:", opts...)
	require.NoError(t, err)

	cleanup := func() {
		_ = storage.Close()
	}

	return storage, cleanup
}

func TestNew_RunsMigrations(t *testing.T) {
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	for _, table := range []string{"sync_items", "sync_sequence", "files", "blobs"} {
		var name string
		err := s.DB().QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
	}

	ts, err := s.CurrentTimestamp(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), ts)
}

func TestNew_FileDatabaseReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "server.db")

	s, err := New(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.PutBlob(ctx, "k", []byte("v")))
	require.NoError(t, s.Close())

	// Повторный запуск миграций не должен ломать существующую БД
	s, err = New(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	data, err := s.GetBlob(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), data)
}
