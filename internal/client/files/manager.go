// Package files отдает blob по адресу содержимого: сначала из локального
// Content Store, при промахе с сервера через Remote File Adapter.
package files

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sync/singleflight"

	httpClient "github.com/iudanet/gophsync/internal/client/api"
	"github.com/iudanet/gophsync/internal/client/storage"
	"github.com/iudanet/gophsync/internal/client/transfer"
	"github.com/iudanet/gophsync/internal/crypto"
	"github.com/iudanet/gophsync/internal/models"
)

// Downloader fetches blob bytes from the server.
type Downloader interface {
	Download(ctx context.Context, fileType, contentHash string) ([]byte, string, error)
}

// Transfers is the part of the transfer queue the manager delegates to.
type Transfers interface {
	QueueUpload(ctx context.Context, contentHash, fileType string, data []byte, opts transfer.UploadOptions) (*models.TransferTask, error)
	QueueDownload(ctx context.Context, contentHash, fileType string, opts transfer.DownloadOptions) (*transfer.QueueResult, error)
	Subscribe(contentHash, fileType string, fn transfer.ProgressFunc) (unsubscribe func())
}

// GetOptions controls a lookup.
type GetOptions struct {
	LocalOnly bool // не обращаться к серверу при промахе кеша
}

// Manager is the File Manager.
type Manager struct {
	content   storage.ContentStorage
	remote    Downloader
	transfers Transfers
	logger    *slog.Logger
	group     singleflight.Group
	tempDir   string
}

// NewManager creates a manager. Temporary copies for GetFileURL go to
// tempDir, or to the OS temp directory when it is empty.
func NewManager(content storage.ContentStorage, remote Downloader, transfers Transfers, tempDir string, logger *slog.Logger) *Manager {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Manager{
		content:   content,
		remote:    remote,
		transfers: transfers,
		tempDir:   tempDir,
		logger:    logger,
	}
}

// GetFile returns the file from the local cache or fetches it from the server.
func (m *Manager) GetFile(ctx context.Context, contentHash, fileType string, opts GetOptions) (*models.StoredFile, error) {
	file, err := m.content.GetFile(ctx, contentHash, fileType)
	if err == nil {
		return file, nil
	}
	if !errors.Is(err, storage.ErrFileNotFound) {
		return nil, fmt.Errorf("failed to read content store: %w", err)
	}

	if opts.LocalOnly {
		return nil, fmt.Errorf("%s/%s: %w", fileType, contentHash, ErrNotFoundLocal)
	}

	// Общий запрос не зависит от отмены контекста первого вызвавшего
	shared := context.WithoutCancel(ctx)
	ch := m.group.DoChan(models.FileID(fileType, contentHash), func() (any, error) {
		return m.fetch(shared, contentHash, fileType)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			m.logger.Debug("Shared in-flight fetch", "content_hash", contentHash, "file_type", fileType)
		}
		return res.Val.(*models.StoredFile), nil
	}
}

func (m *Manager) fetch(ctx context.Context, contentHash, fileType string) (*models.StoredFile, error) {
	m.logger.Debug("Fetching file from server", "content_hash", contentHash, "file_type", fileType)

	data, mediaType, err := m.remote.Download(ctx, fileType, contentHash)
	if err != nil {
		if errors.Is(err, httpClient.ErrNotFound) {
			return nil, fmt.Errorf("%s/%s: %w", fileType, contentHash, ErrNotFoundRemote)
		}
		return nil, &TransferError{ContentHash: contentHash, FileType: fileType, Err: err}
	}

	if err := crypto.VerifyContentHash(data, contentHash); err != nil {
		return nil, &TransferError{ContentHash: contentHash, FileType: fileType, Err: err}
	}

	file := &models.StoredFile{
		ContentHash: contentHash,
		FileType:    fileType,
		MediaType:   mediaType,
		Data:        data,
	}
	if err := m.content.StoreFile(ctx, file); err != nil {
		return nil, fmt.Errorf("failed to cache fetched file: %w", err)
	}

	return file, nil
}

// GetFileURL materializes the file into a private temporary file.
// The caller owns the returned handle and must Revoke it.
func (m *Manager) GetFileURL(ctx context.Context, contentHash, fileType string, opts GetOptions) (*Handle, error) {
	file, err := m.GetFile(ctx, contentHash, fileType, opts)
	if err != nil {
		return nil, err
	}
	return newHandle(m.tempDir, file.Data, file.MediaType)
}

// StoreFile hashes data, caches it locally and queues its upload.
func (m *Manager) StoreFile(ctx context.Context, data []byte, fileType string, opts transfer.UploadOptions) (string, error) {
	contentHash := crypto.ContentHash(data)

	if _, err := m.transfers.QueueUpload(ctx, contentHash, fileType, data, opts); err != nil {
		return "", fmt.Errorf("failed to queue upload: %w", err)
	}
	return contentHash, nil
}

// Prefetch queues a background download unless the file is cached.
func (m *Manager) Prefetch(ctx context.Context, contentHash, fileType string, opts transfer.DownloadOptions) (*transfer.QueueResult, error) {
	return m.transfers.QueueDownload(ctx, contentHash, fileType, opts)
}

// DeleteContent removes every cached type variant of the content.
func (m *Manager) DeleteContent(ctx context.Context, contentHash string) (int, error) {
	removed, err := m.content.DeleteAllForContent(ctx, contentHash)
	if err != nil {
		return 0, fmt.Errorf("failed to delete content: %w", err)
	}
	m.logger.Info("Content removed from cache", "content_hash", contentHash, "files", removed)
	return removed, nil
}

// Subscribe forwards transfer progress of one file.
func (m *Manager) Subscribe(contentHash, fileType string, fn transfer.ProgressFunc) (unsubscribe func()) {
	return m.transfers.Subscribe(contentHash, fileType, fn)
}
