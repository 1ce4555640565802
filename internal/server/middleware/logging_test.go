package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophsync/internal/crypto"
	"github.com/iudanet/gophsync/internal/server/jwt"
)

func bufferLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestLogging_LevelByStatus(t *testing.T) {
	tests := []struct {
		name   string
		level  string
		status int
	}{
		{name: "ok", status: http.StatusOK, level: "level=INFO"},
		{name: "client error", status: http.StatusNotFound, level: "level=WARN"},
		{name: "server error", status: http.StatusInternalServerError, level: "level=ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("hello"))
			})

			req := httptest.NewRequest(http.MethodGet, "/sync/notes", nil)
			w := httptest.NewRecorder()
			Logging(bufferLogger(&buf))(next).ServeHTTP(w, req)

			out := buf.String()
			assert.Contains(t, out, tt.level)
			assert.Contains(t, out, "path=/sync/notes")
			assert.Contains(t, out, "bytes_written=5")
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestLogging_DoesNotLogAuthorization(t *testing.T) {
	var buf bytes.Buffer
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodGet, "/sync/notes", nil)
	req.Header.Set("Authorization", "Bearer secret-token-value")
	Logging(bufferLogger(&buf))(next).ServeHTTP(httptest.NewRecorder(), req)

	assert.NotContains(t, buf.String(), "secret-token-value")
	assert.Contains(t, buf.String(), "status=200", "Default status is 200")
	assert.NotContains(t, buf.String(), "user_id", "Anonymous request has no owner")
}

func TestLogging_RequestID(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{name: "generated", incoming: ""},
		{name: "propagated", incoming: "req-42", keep: true},
		{name: "oversized replaced", incoming: strings.Repeat("x", 100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			req := httptest.NewRequest(http.MethodGet, "/sync-timestamp", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			w := httptest.NewRecorder()
			Logging(bufferLogger(&buf))(next).ServeHTTP(w, req)

			id := w.Header().Get(RequestIDHeader)
			require.NotEmpty(t, id)
			if tt.keep {
				assert.Equal(t, tt.incoming, id)
			} else {
				assert.Len(t, id, 36)
			}
			assert.Contains(t, buf.String(), "request_id="+id)
		})
	}
}

func TestLogging_RecordsAuthenticatedDevice(t *testing.T) {
	var buf bytes.Buffer
	tokens := jwt.NewService(testSecret, time.Hour)
	token, _, err := tokens.Issue("user-7", "device-b")
	require.NoError(t, err)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	logger := bufferLogger(&buf)
	handler := Logging(logger)(AuthMiddleware(logger, tokens)(next))

	req := httptest.NewRequest(http.MethodGet, "/sync/notes", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Contains(t, buf.String(), "user_id=user-7")
	assert.Contains(t, buf.String(), "device_id=device-b")
}

func TestSanitizePath(t *testing.T) {
	hash := crypto.ContentHash([]byte("data"))

	tests := []struct {
		input    string
		expected string
	}{
		{input: "/sync/notes", expected: "/sync/notes"},
		{input: "/files/upload", expected: "/files/upload"},
		{input: "/files/attachment/" + hash, expected: "/files/attachment/" + hash[:8] + "..."},
		{input: "/files/attachment/short", expected: "/files/attachment/short"},
		{input: "/sync/" + hash, expected: "/sync/" + hash},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizePath(tt.input))
		})
	}
}

func TestLogging_SkipPaths(t *testing.T) {
	var buf bytes.Buffer
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	handler := Logging(bufferLogger(&buf), "/health")(next)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Empty(t, buf.String())

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/sync-timestamp", nil))
	assert.Equal(t, 1, strings.Count(buf.String(), "HTTP request"))
}
