package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/gophsync/internal/crypto"
)

const (
	// RequestIDHeader is echoed back on every response
	RequestIDHeader = "X-Request-ID"

	maxRequestIDLen = 64
	shortHashLen    = 8
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

// WriteHeader captures the status code
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap returns the original writer for http.ResponseController
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Write captures the number of bytes written
func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

type requestInfoKey struct{}

// requestInfo заполняется внутренними middleware и читается после ответа
type requestInfo struct {
	userID   string
	deviceID string
}

// annotate сохраняет владельца запроса для строки лога, если она ведется
func annotate(ctx context.Context, userID, deviceID string) {
	if info, ok := ctx.Value(requestInfoKey{}).(*requestInfo); ok {
		info.userID = userID
		info.deviceID = deviceID
	}
}

// Logging пишет одну строку на запрос: метод, путь, статус, длительность,
// размер ответа, request id и устройство. Заголовки и тела не логируются.
// Пути из skipPaths (health checks) не логируются.
func Logging(logger *slog.Logger, skipPaths ...string) func(http.Handler) http.Handler {
	skip := make(map[string]bool, len(skipPaths))
	for _, path := range skipPaths {
		skip[path] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()

			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" || len(requestID) > maxRequestIDLen {
				requestID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, requestID)

			info := &requestInfo{}
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r.WithContext(context.WithValue(r.Context(), requestInfoKey{}, info)))

			level := slog.LevelInfo
			switch {
			case wrapped.statusCode >= 500:
				level = slog.LevelError
			case wrapped.statusCode >= 400:
				level = slog.LevelWarn
			}

			attrs := []any{
				"request_id", requestID,
				"method", r.Method,
				"path", sanitizePath(r.URL.Path),
				"remote_addr", r.RemoteAddr,
				"status", wrapped.statusCode,
				"duration_ms", time.Since(start).Milliseconds(),
				"bytes_written", wrapped.written,
			}
			if info.userID != "" {
				attrs = append(attrs, "user_id", info.userID, "device_id", info.deviceID)
			}

			logger.Log(r.Context(), level, "HTTP request", attrs...)
		})
	}
}

// sanitizePath сокращает адреса содержимого в путях /files/...
// Например: /files/attachment/<64 hex> -> /files/attachment/3f2a9c1b...
func sanitizePath(path string) string {
	if !strings.HasPrefix(path, "/files/") {
		return path
	}

	parts := strings.Split(path, "/")
	for i, part := range parts {
		if crypto.IsContentHash(part) {
			parts[i] = part[:shortHashLen] + "..."
		}
	}
	return strings.Join(parts, "/")
}
