package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/iudanet/gophsync/internal/server/handlers"
	"github.com/iudanet/gophsync/internal/server/jwt"
)

// TokenValidator проверяет bearer токен и возвращает его claims
type TokenValidator interface {
	Validate(token string) (*jwt.Claims, error)
}

// AuthMiddleware создает middleware для проверки JWT токена
// Сервер только проверяет токены, выпущенные заранее (см. команду token)
func AuthMiddleware(logger *slog.Logger, tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Извлекаем токен из заголовка Authorization
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("Missing Authorization header", "path", r.URL.Path)
				handlers.WriteError(w, http.StatusUnauthorized, "missing token")
				return
			}

			// Ожидаем формат: "Bearer <token>"
			scheme, token, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
				logger.Warn("Invalid Authorization header format")
				handlers.WriteError(w, http.StatusUnauthorized, "invalid token format")
				return
			}

			claims, err := tokens.Validate(token)
			if err != nil {
				logger.Warn("Invalid access token", "error", err)
				handlers.WriteError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), handlers.UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, handlers.DeviceIDKey, claims.DeviceID)

			annotate(ctx, claims.UserID, claims.DeviceID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
