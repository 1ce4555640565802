package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/iudanet/gophsync/internal/server/handlers"
	"github.com/iudanet/gophsync/internal/server/middleware"
	"github.com/iudanet/gophsync/internal/server/storage"
)

// Storage объединяет хранилища, которые нужны обработчикам
type Storage interface {
	storage.SyncStorage
	storage.FileStorage
	handlers.Pinger
}

// RouterConfig параметры HTTP слоя
type RouterConfig struct {
	Version         string
	MaxUploadSize   int64
	MaxPageSize     int
	RateLimit       int // 0 - без ограничения
	UploadRateLimit int
	RateWindow      time.Duration
}

// NewRouter собирает маршруты и цепочку middleware.
// Все маршруты, кроме /health, требуют bearer токен.
func NewRouter(cfg RouterConfig, store Storage, tokens middleware.TokenValidator, logger *slog.Logger) http.Handler {
	syncHandler := handlers.NewSyncHandler(logger, store, cfg.MaxPageSize)
	filesHandler := handlers.NewFilesHandler(logger, store, cfg.MaxUploadSize)
	healthHandler := handlers.NewHealthHandler(logger, store, cfg.Version)

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		handlers.WriteError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		handlers.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.HandleFunc("/health", healthHandler.Health).Methods(http.MethodGet)

	api := r.NewRoute().Subrouter()
	api.Use(middleware.AuthMiddleware(logger, tokens))

	api.HandleFunc("/sync-timestamp", syncHandler.Timestamp).Methods(http.MethodGet)
	api.HandleFunc("/sync/{collection}", syncHandler.Pull).Methods(http.MethodGet)
	api.HandleFunc("/sync/{collection}", syncHandler.Push).Methods(http.MethodPost)

	api.HandleFunc("/files/upload", filesHandler.Upload).Methods(http.MethodPost)
	api.HandleFunc("/files/{fileType}/{hash}", filesHandler.Download).Methods(http.MethodGet)
	api.HandleFunc("/files/{fileType}/{hash}", filesHandler.Delete).Methods(http.MethodDelete)

	// Порядок: recovery -> logging -> rate limit -> router
	var h http.Handler = r
	if cfg.RateLimit > 0 {
		var rules []middleware.RateRule
		if cfg.UploadRateLimit > 0 {
			rules = append(rules, middleware.RateRule{Prefix: "/files/upload", Limit: cfg.UploadRateLimit, Window: cfg.RateWindow})
		}
		rules = append(rules, middleware.RateRule{Limit: cfg.RateLimit, Window: cfg.RateWindow})
		h = middleware.RateLimit(logger, rules...)(h)
	}
	h = middleware.Logging(logger, "/health")(h)
	h = middleware.RecoveryMiddleware(logger)(h)

	return h
}
