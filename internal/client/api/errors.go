package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Классы ошибок удаленной стороны. Проверять через errors.Is
var (
	// ErrRemoteUnavailable - сеть недоступна, 5xx или 429; можно повторить позже
	ErrRemoteUnavailable = errors.New("remote unavailable")

	// ErrRejected - сервер отклонил запрос (4xx, кроме авторизации и 404)
	ErrRejected = errors.New("request rejected by server")

	// ErrUnauthorized - 401/403, нужна повторная авторизация
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound - 404
	ErrNotFound = errors.New("not found")
)

// StatusError carries the HTTP status and server message of a failed request.
// It unwraps to one of the error classes above.
type StatusError struct {
	kind       error
	Message    string
	StatusCode int
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d: %v", e.StatusCode, e.kind)
	}
	return fmt.Sprintf("server returned %d: %v: %s", e.StatusCode, e.kind, e.Message)
}

func (e *StatusError) Unwrap() error {
	return e.kind
}

// newStatusError классифицирует код ответа
func newStatusError(status int, message string) *StatusError {
	var kind error
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = ErrUnauthorized
	case status == http.StatusNotFound:
		kind = ErrNotFound
	case status == http.StatusTooManyRequests || status >= 500:
		kind = ErrRemoteUnavailable
	default:
		kind = ErrRejected
	}
	return &StatusError{kind: kind, StatusCode: status, Message: message}
}

// IsRetryable reports whether err is worth retrying later.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRemoteUnavailable)
}
