package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophsync/internal/server/storage/sqlite"
)

// setupTestLogger creates a logger for testing
func setupTestLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelError, // Only show errors in tests
	}
	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler)
}

// setupTestStorage открывает sqlite в памяти с фиксированным временем 5000 ms
func setupTestStorage(t *testing.T) *sqlite.Storage {
	t.Helper()

	now := func() time.Time { return time.UnixMilli(5000) }
	s, err := sqlite.New(context.Background(), ":memory:", sqlite.WithNow(now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

// withUser добавляет user_id в контекст запроса, как это делает AuthMiddleware
func withUser(r *http.Request, userID string) *http.Request {
	ctx := context.WithValue(r.Context(), UserIDKey, userID)
	return r.WithContext(ctx)
}
