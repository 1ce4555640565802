package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/iudanet/gophsync/internal/crdt"
	"github.com/iudanet/gophsync/internal/server/storage"
	"github.com/iudanet/gophsync/pkg/api"
)

const (
	// DefaultPageSize размер страницы pull без параметра limit
	DefaultPageSize = 200

	maxSyncBody = 16 << 20
)

// SyncHandler handles synchronization requests
type SyncHandler struct {
	logger      *slog.Logger
	storage     storage.SyncStorage
	maxPageSize int
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(logger *slog.Logger, storage storage.SyncStorage, maxPageSize int) *SyncHandler {
	if maxPageSize <= 0 {
		maxPageSize = DefaultPageSize
	}
	return &SyncHandler{
		logger:      logger,
		storage:     storage,
		maxPageSize: maxPageSize,
	}
}

// Pull обрабатывает GET /sync/{collection}?since=&entityId=&limit=
// Возвращает страницу изменений после since в порядке server timestamp
func (h *SyncHandler) Pull(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		h.logger.Error("User ID not found in context")
		WriteError(w, http.StatusUnauthorized, "missing user")
		return
	}

	collection := mux.Vars(r)["collection"]
	query := r.URL.Query()

	var since int64
	if s := query.Get("since"); s != "" {
		var err error
		since, err = strconv.ParseInt(s, 10, 64)
		if err != nil || since < 0 {
			h.logger.Warn("Invalid since parameter", "since", s)
			WriteError(w, http.StatusBadRequest, "invalid since parameter")
			return
		}
	}

	limit := min(DefaultPageSize, h.maxPageSize)
	if l := query.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			WriteError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
		limit = min(n, h.maxPageSize)
	}

	items, hasMore, err := h.storage.ListSince(ctx, storage.ListQuery{
		UserID:     userID,
		Collection: collection,
		EntityID:   query.Get("entityId"),
		Since:      since,
		Limit:      limit,
	})
	if err != nil {
		h.logger.Error("Failed to list items", "error", err, "user_id", userID, "collection", collection)
		WriteError(w, http.StatusInternalServerError, "failed to read changes")
		return
	}

	resp := api.PullResponse{
		Items:           make([]api.SyncItem, 0, len(items)),
		ServerTimestamp: since,
		HasMore:         hasMore,
	}
	for _, item := range items {
		resp.Items = append(resp.Items, toAPIItem(item))
		resp.ServerTimestamp = max(resp.ServerTimestamp, item.ServerTS)
	}

	h.logger.Debug("Pull completed",
		"user_id", userID,
		"collection", collection,
		"since", since,
		"items", len(items),
		"has_more", hasMore)

	writeJSON(w, h.logger, http.StatusOK, resp)
}

// Push обрабатывает POST /sync/{collection}
// Каждая запись принимается, только если ее clock строго больше сохраненного
func (h *SyncHandler) Push(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		h.logger.Error("User ID not found in context")
		WriteError(w, http.StatusUnauthorized, "missing user")
		return
	}

	collection := mux.Vars(r)["collection"]

	var req api.PushRequest
	if err := decodeJSON(w, r, maxSyncBody, &req); err != nil {
		h.logger.Warn("Failed to decode push request", "error", err)
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	results := make([]api.PushResult, len(req.Items))
	valid := make([]*storage.SyncItem, 0, len(req.Items))
	positions := make([]int, 0, len(req.Items))

	// Токен, привязанный к устройству, может отправлять только свои версии
	tokenDevice, bound := GetDeviceID(ctx)

	for i, wire := range req.Items {
		item, err := fromAPIItem(wire)
		if err == nil && bound && item.DeviceID != tokenDevice {
			err = fmt.Errorf("item of %s: %w", item.DeviceID, errForeignDevice)
		}
		if err != nil {
			h.logger.Debug("Rejected invalid item", "id", wire.ID, "error", err)
			results[i] = api.PushResult{ID: wire.ID, Reason: api.ReasonInvalid}
			continue
		}
		valid = append(valid, item)
		positions = append(positions, i)
	}

	stored, err := h.storage.PutItems(ctx, userID, collection, valid)
	if err != nil {
		h.logger.Error("Failed to store items", "error", err, "user_id", userID, "collection", collection)
		WriteError(w, http.StatusInternalServerError, "failed to store changes")
		return
	}

	accepted := 0
	for j, res := range stored {
		i := positions[j]
		results[i] = api.PushResult{
			ID:              valid[j].ID,
			Accepted:        res.Accepted,
			ServerTimestamp: res.ServerTS,
		}
		if res.Accepted {
			accepted++
			continue
		}
		results[i].Reason = api.ReasonStale
		if res.Current != nil {
			current := toAPIItem(res.Current)
			results[i].Current = &current
		}
	}

	h.logger.Info("Push completed",
		"user_id", userID,
		"collection", collection,
		"received", len(req.Items),
		"accepted", accepted)

	writeJSON(w, h.logger, http.StatusOK, api.PushResponse{Results: results})
}

// Timestamp обрабатывает GET /sync-timestamp
func (h *SyncHandler) Timestamp(w http.ResponseWriter, r *http.Request) {
	ts, err := h.storage.CurrentTimestamp(r.Context())
	if err != nil {
		h.logger.Error("Failed to read server timestamp", "error", err)
		WriteError(w, http.StatusInternalServerError, "failed to read server timestamp")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, api.TimestampResponse{ServerTimestamp: ts})
}

var (
	errDeviceMismatch = errors.New("device id does not match clock")
	errForeignDevice  = errors.New("device id does not match token")
)

// fromAPIItem проверяет запись и приводит clock к канонической форме
func fromAPIItem(wire api.SyncItem) (*storage.SyncItem, error) {
	if err := validate.Struct(wire); err != nil {
		return nil, err
	}

	clock, err := crdt.Parse(wire.Clock)
	if err != nil {
		return nil, err
	}
	if clock.DeviceID != wire.DeviceID {
		return nil, errDeviceMismatch
	}

	return &storage.SyncItem{
		ID:        wire.ID,
		EntityID:  wire.EntityID,
		Clock:     clock,
		DeviceID:  wire.DeviceID,
		Data:      wire.Data,
		IsDeleted: wire.IsDeleted,
	}, nil
}

func toAPIItem(item *storage.SyncItem) api.SyncItem {
	ts := item.ServerTS
	return api.SyncItem{
		ServerTimestamp: &ts,
		ID:              item.ID,
		EntityID:        item.EntityID,
		Clock:           item.Clock.String(),
		DeviceID:        item.DeviceID,
		Data:            item.Data,
		IsDeleted:       item.IsDeleted,
	}
}
