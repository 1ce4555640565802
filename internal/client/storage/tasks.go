package storage

import (
	"context"
	"time"

	"github.com/iudanet/gophsync/internal/models"
)

//go:generate moq -out taskstorage_mock.go . TaskStorage

// TaskStorage defines interface for the persistent transfer task table
type TaskStorage interface {
	// SaveTask creates or replaces a task by ID
	SaveTask(ctx context.Context, task *models.TransferTask) error

	// GetTask retrieves a task by ID
	// Returns ErrTaskNotFound if task doesn't exist
	GetTask(ctx context.Context, id string) (*models.TransferTask, error)

	// FindActiveTask returns the non-terminal task for the key or ErrTaskNotFound
	FindActiveTask(ctx context.Context, contentHash, fileType string, direction models.TransferDirection) (*models.TransferTask, error)

	// NextPendingTask returns the highest priority pending task that is due
	// at now (oldest first among equal priorities), or ErrTaskNotFound.
	// skip excludes tasks whose file key is currently being processed
	NextPendingTask(ctx context.Context, now time.Time, skip map[string]struct{}) (*models.TransferTask, error)

	// NextAttemptAt returns the earliest NextAttemptAt among pending tasks
	// that are not due yet; ok is false when there are none
	NextAttemptAt(ctx context.Context, now time.Time) (at time.Time, ok bool, err error)

	// ListTasks returns all tasks
	ListTasks(ctx context.Context) ([]*models.TransferTask, error)

	// ResetProcessing moves tasks left in processing state back to pending
	ResetProcessing(ctx context.Context) (int, error)

	// DeleteTasksByStatus removes all tasks in the given status
	DeleteTasksByStatus(ctx context.Context, status models.TransferStatus) (int, error)
}
