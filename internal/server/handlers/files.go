package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gorilla/mux"

	"github.com/iudanet/gophsync/internal/crypto"
	"github.com/iudanet/gophsync/internal/server/storage"
	"github.com/iudanet/gophsync/pkg/api"
)

// multipart сверх лимита файла: заголовки частей и поле fileType
const multipartOverhead = 1 << 20

// fileType сегмент пути, поэтому допускаем только безопасные символы
type uploadForm struct {
	FileType string `validate:"required,max=64,excludesall=/?#%"`
}

// FilesHandler handles blob upload and download requests
type FilesHandler struct {
	logger        *slog.Logger
	storage       storage.FileStorage
	now           func() time.Time
	maxUploadSize int64
}

// NewFilesHandler creates a new files handler
func NewFilesHandler(logger *slog.Logger, storage storage.FileStorage, maxUploadSize int64) *FilesHandler {
	return &FilesHandler{
		logger:        logger,
		storage:       storage,
		now:           time.Now,
		maxUploadSize: maxUploadSize,
	}
}

// Upload обрабатывает POST /files/upload (multipart: fileType, file)
// Адрес файла вычисляется сервером по содержимому
func (h *FilesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		h.logger.Error("User ID not found in context")
		WriteError(w, http.StatusUnauthorized, "missing user")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		h.logger.Warn("Failed to parse multipart form", "error", err)
		WriteError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	form := uploadForm{FileType: r.FormValue("fileType")}
	if err := validate.Struct(form); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid fileType")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "missing file")
		return
	}
	defer file.Close()

	if header.Size > h.maxUploadSize {
		WriteError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error("Failed to read uploaded file", "error", err)
		WriteError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	meta := &storage.FileMeta{
		UserID:      userID,
		FileType:    form.FileType,
		ContentHash: crypto.ContentHash(data),
		MimeType:    mimetype.Detect(data).String(),
		FileName:    filepath.Base(header.Filename),
		Size:        int64(len(data)),
		CreatedAt:   h.now(),
	}

	exists, err := h.storage.SaveFile(ctx, meta, data)
	if err != nil {
		h.logger.Error("Failed to save file", "error", err, "user_id", userID, "content_hash", meta.ContentHash)
		WriteError(w, http.StatusInternalServerError, "failed to save file")
		return
	}

	h.logger.Info("File uploaded",
		"user_id", userID,
		"file_type", meta.FileType,
		"content_hash", meta.ContentHash,
		"size", meta.Size,
		"already_exists", exists)

	writeJSON(w, h.logger, http.StatusOK, api.UploadResponse{
		ContentHash:   meta.ContentHash,
		FileName:      meta.FileName,
		MimeType:      meta.MimeType,
		FileSize:      meta.Size,
		AlreadyExists: exists,
	})
}

// Download обрабатывает GET /files/{fileType}/{hash}
func (h *FilesHandler) Download(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		WriteError(w, http.StatusUnauthorized, "missing user")
		return
	}

	vars := mux.Vars(r)
	if !crypto.IsContentHash(vars["hash"]) {
		WriteError(w, http.StatusBadRequest, "invalid content hash")
		return
	}

	meta, data, err := h.storage.GetFile(ctx, userID, vars["fileType"], vars["hash"])
	if errors.Is(err, storage.ErrFileNotFound) {
		WriteError(w, http.StatusNotFound, "file not found")
		return
	}
	if err != nil {
		h.logger.Error("Failed to get file", "error", err, "user_id", userID, "content_hash", vars["hash"])
		WriteError(w, http.StatusInternalServerError, "failed to read file")
		return
	}

	w.Header().Set("Content-Type", meta.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Warn("Failed to write file", "error", err)
	}
}

// Delete обрабатывает DELETE /files/{fileType}/{hash}
// Запись помечается удаленной, байты остаются
func (h *FilesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		WriteError(w, http.StatusUnauthorized, "missing user")
		return
	}

	vars := mux.Vars(r)
	err := h.storage.DeleteFile(ctx, userID, vars["fileType"], vars["hash"])
	if errors.Is(err, storage.ErrFileNotFound) {
		WriteError(w, http.StatusNotFound, "file not found")
		return
	}
	if err != nil {
		h.logger.Error("Failed to delete file", "error", err, "user_id", userID)
		WriteError(w, http.StatusInternalServerError, "failed to delete file")
		return
	}

	h.logger.Info("File deleted", "user_id", userID, "file_type", vars["fileType"], "content_hash", vars["hash"])
	w.WriteHeader(http.StatusNoContent)
}
