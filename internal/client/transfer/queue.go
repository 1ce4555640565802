// Package transfer реализует персистентную очередь загрузки и скачивания blob.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/iudanet/gophsync/internal/client/storage"
	"github.com/iudanet/gophsync/internal/crypto"
	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/pkg/api"
)

//go:generate moq -out remotefiles_mock.go . RemoteFiles

// RemoteFiles определяет транспорт blob, с которым работает очередь
type RemoteFiles interface {
	Upload(ctx context.Context, fileType, fileName string, data []byte) (*api.UploadResponse, error)
	Download(ctx context.Context, fileType, contentHash string) ([]byte, string, error)
}

var (
	// ErrAlreadyStarted is returned by Start on a running queue
	ErrAlreadyStarted = errors.New("transfer queue already started")

	// ErrTaskActive is returned by RetryFailed for a task that is not terminal
	ErrTaskActive = errors.New("transfer task is still active")
)

// Options configures the queue.
type Options struct {
	DefaultMaxRetries int
	BaseBackoff       time.Duration
	MaxBackoff        time.Duration
	JitterPercent     uint64
	Workers           int
}

// DefaultOptions returns the queue defaults.
func DefaultOptions() Options {
	return Options{
		DefaultMaxRetries: 3,
		BaseBackoff:       time.Second,
		MaxBackoff:        5 * time.Minute,
		JitterPercent:     20,
		Workers:           1,
	}
}

// UploadOptions configures an upload task. Zero MaxRetries selects the
// queue default; empty MediaType is detected from the bytes.
type UploadOptions struct {
	MediaType  string
	Priority   int
	MaxRetries int
}

// DownloadOptions configures a download task.
type DownloadOptions struct {
	Priority   int
	MaxRetries int
}

// QueueResult is returned by QueueDownload.
type QueueResult struct {
	Task           *models.TransferTask // nil когда файл уже в кеше
	AlreadyPresent bool
}

// Stats summarizes the task table.
type Stats struct {
	Pending    int
	Processing int
	Completed  int
	Failed     int
	Paused     bool
}

// Queue is the persistent transfer queue with its worker pool.
type Queue struct {
	content    storage.ContentStorage
	tasks      storage.TaskStorage
	remote     RemoteFiles
	logger     *slog.Logger
	now        func() time.Time
	inProgress map[string]struct{} // ключи файлов, обрабатываемые сейчас
	cancel     context.CancelFunc
	wake       chan struct{}
	events     *eventBus
	opts       Options
	wg         sync.WaitGroup
	mu         sync.Mutex // поиск-или-повышение приоритета и захват задач
	paused     atomic.Bool
}

// New creates a queue. Zero option fields take the defaults.
func New(content storage.ContentStorage, tasks storage.TaskStorage, remote RemoteFiles, opts Options, logger *slog.Logger) *Queue {
	defaults := DefaultOptions()
	if opts.DefaultMaxRetries < 0 {
		opts.DefaultMaxRetries = 0
	} else if opts.DefaultMaxRetries == 0 {
		opts.DefaultMaxRetries = defaults.DefaultMaxRetries
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = defaults.BaseBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = defaults.MaxBackoff
	}
	if opts.JitterPercent == 0 {
		opts.JitterPercent = defaults.JitterPercent
	}
	if opts.Workers <= 0 {
		opts.Workers = defaults.Workers
	}

	return &Queue{
		content:    content,
		tasks:      tasks,
		remote:     remote,
		logger:     logger,
		now:        time.Now,
		inProgress: make(map[string]struct{}),
		wake:       make(chan struct{}, 1),
		events:     newEventBus(),
		opts:       opts,
	}
}

// QueueUpload stores the blob in the content store and enqueues its upload.
// A live task for the same file gets its priority raised instead.
func (q *Queue) QueueUpload(ctx context.Context, contentHash, fileType string, data []byte, opts UploadOptions) (*models.TransferTask, error) {
	if err := crypto.VerifyContentHash(data, contentHash); err != nil {
		return nil, err
	}

	mediaType := opts.MediaType
	if mediaType == "" {
		mediaType = mimetype.Detect(data).String()
	}

	// Сначала сохраняем локально: воркер читает байты из Content Store
	err := q.content.StoreFile(ctx, &models.StoredFile{
		ContentHash: contentHash,
		FileType:    fileType,
		MediaType:   mediaType,
		Data:        data,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store file before upload: %w", err)
	}

	return q.enqueue(ctx, models.DirectionUpload, contentHash, fileType, mediaType, opts.Priority, opts.MaxRetries)
}

// QueueDownload enqueues a download unless the file is already cached.
func (q *Queue) QueueDownload(ctx context.Context, contentHash, fileType string, opts DownloadOptions) (*QueueResult, error) {
	has, err := q.content.HasFile(ctx, contentHash, fileType)
	if err != nil {
		return nil, fmt.Errorf("failed to check content store: %w", err)
	}
	if has {
		return &QueueResult{AlreadyPresent: true}, nil
	}

	task, err := q.enqueue(ctx, models.DirectionDownload, contentHash, fileType, "", opts.Priority, opts.MaxRetries)
	if err != nil {
		return nil, err
	}
	return &QueueResult{Task: task}, nil
}

func (q *Queue) enqueue(ctx context.Context, direction models.TransferDirection, contentHash, fileType, mediaType string, priority, maxRetries int) (*models.TransferTask, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	existing, err := q.tasks.FindActiveTask(ctx, contentHash, fileType, direction)
	switch {
	case err == nil:
		if priority > existing.Priority {
			existing.Priority = priority
			existing.UpdatedAt = q.now()
			if err := q.tasks.SaveTask(ctx, existing); err != nil {
				return nil, fmt.Errorf("failed to raise task priority: %w", err)
			}
			q.logger.Debug("Transfer task priority raised", "task_id", existing.ID, "priority", priority)
		}
		return existing, nil
	case !errors.Is(err, storage.ErrTaskNotFound):
		return nil, fmt.Errorf("failed to look up task: %w", err)
	}

	if maxRetries == 0 {
		maxRetries = q.opts.DefaultMaxRetries
	}

	now := q.now()
	task := &models.TransferTask{
		ID:            uuid.New().String(),
		Direction:     direction,
		ContentHash:   contentHash,
		FileType:      fileType,
		MediaType:     mediaType,
		Status:        models.TransferPending,
		Priority:      priority,
		MaxRetries:    maxRetries,
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := q.tasks.SaveTask(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to save task: %w", err)
	}

	q.logger.Info("Transfer queued",
		"task_id", task.ID,
		"direction", direction,
		"content_hash", contentHash,
		"file_type", fileType)

	q.signal()
	return task, nil
}

// Pause freezes the whole queue. Running transfers finish, no new ones start.
func (q *Queue) Pause() {
	if !q.paused.Swap(true) {
		q.logger.Info("Transfer queue paused")
	}
}

// Resume unfreezes the queue.
func (q *Queue) Resume() {
	if q.paused.Swap(false) {
		q.logger.Info("Transfer queue resumed")
		q.signal()
	}
}

// Paused reports whether the queue is frozen.
func (q *Queue) Paused() bool {
	return q.paused.Load()
}

// Subscribe registers fn for progress of one file. The returned func removes it.
func (q *Queue) Subscribe(contentHash, fileType string, fn ProgressFunc) (unsubscribe func()) {
	return q.events.subscribe(models.FileID(fileType, contentHash), fn)
}

// RetryFailed moves a terminal task back to pending with a fresh retry budget.
func (q *Queue) RetryFailed(ctx context.Context, taskID string) (*models.TransferTask, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, err := q.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	if task.Status != models.TransferFailed {
		return nil, fmt.Errorf("%s is %s: %w", taskID, task.Status, ErrTaskActive)
	}

	now := q.now()
	task.Status = models.TransferPending
	task.RetryCount = 0
	task.Error = ""
	task.NextAttemptAt = now
	task.UpdatedAt = now

	if err := q.tasks.SaveTask(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to save task: %w", err)
	}

	q.signal()
	return task, nil
}

// ClearCompleted removes completed tasks from the table.
func (q *Queue) ClearCompleted(ctx context.Context) (int, error) {
	return q.tasks.DeleteTasksByStatus(ctx, models.TransferCompleted)
}

// Tasks returns all tasks.
func (q *Queue) Tasks(ctx context.Context) ([]*models.TransferTask, error) {
	return q.tasks.ListTasks(ctx)
}

// Stats counts tasks by status.
func (q *Queue) Stats(ctx context.Context) (*Stats, error) {
	tasks, err := q.tasks.ListTasks(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{Paused: q.Paused()}
	for _, t := range tasks {
		switch t.Status {
		case models.TransferPending:
			stats.Pending++
		case models.TransferProcessing:
			stats.Processing++
		case models.TransferCompleted:
			stats.Completed++
		case models.TransferFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

// signal будит воркер, не блокируясь
func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
