package boltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/gophsync/internal/client/storage"
	"github.com/iudanet/gophsync/internal/models"
)

// SaveTask creates or replaces a transfer task by ID
func (s *Storage) SaveTask(ctx context.Context, task *models.TransferTask) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTasks).Put([]byte(task.ID), data)
	})
	if err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}

	return nil
}

// GetTask retrieves a transfer task by ID
func (s *Storage) GetTask(ctx context.Context, id string) (*models.TransferTask, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var task *models.TransferTask

	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketTasks).Get([]byte(id))
		if data == nil {
			return storage.ErrTaskNotFound
		}
		task = &models.TransferTask{}
		return json.Unmarshal(data, task)
	})

	if err != nil {
		return nil, err
	}

	return task, nil
}

// FindActiveTask returns the non-terminal task for the file key and direction
func (s *Storage) FindActiveTask(ctx context.Context, contentHash, fileType string, direction models.TransferDirection) (*models.TransferTask, error) {
	tasks, err := s.scanTasks(func(t *models.TransferTask) bool {
		return !t.Status.IsTerminal() &&
			t.ContentHash == contentHash &&
			t.FileType == fileType &&
			t.Direction == direction
	})
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, storage.ErrTaskNotFound
	}
	return tasks[0], nil
}

// NextPendingTask returns the due pending task with the highest priority,
// oldest first among equal priorities
func (s *Storage) NextPendingTask(ctx context.Context, now time.Time, skip map[string]struct{}) (*models.TransferTask, error) {
	tasks, err := s.scanTasks(func(t *models.TransferTask) bool {
		if t.Status != models.TransferPending || t.NextAttemptAt.After(now) {
			return false
		}
		_, busy := skip[t.FileKey()]
		return !busy
	})
	if err != nil {
		return nil, err
	}

	var best *models.TransferTask
	for _, t := range tasks {
		if best == nil ||
			t.Priority > best.Priority ||
			(t.Priority == best.Priority && t.CreatedAt.Before(best.CreatedAt)) {
			best = t
		}
	}

	if best == nil {
		return nil, storage.ErrTaskNotFound
	}
	return best, nil
}

// NextAttemptAt returns the earliest deferred attempt among pending tasks
func (s *Storage) NextAttemptAt(ctx context.Context, now time.Time) (time.Time, bool, error) {
	tasks, err := s.scanTasks(func(t *models.TransferTask) bool {
		return t.Status == models.TransferPending && t.NextAttemptAt.After(now)
	})
	if err != nil {
		return time.Time{}, false, err
	}

	var earliest time.Time
	for _, t := range tasks {
		if earliest.IsZero() || t.NextAttemptAt.Before(earliest) {
			earliest = t.NextAttemptAt
		}
	}

	return earliest, !earliest.IsZero(), nil
}

// ListTasks returns all tasks
func (s *Storage) ListTasks(ctx context.Context) ([]*models.TransferTask, error) {
	return s.scanTasks(func(*models.TransferTask) bool { return true })
}

// ResetProcessing moves tasks interrupted in processing state back to pending
func (s *Storage) ResetProcessing(ctx context.Context) (int, error) {
	return s.updateTasks(func(t *models.TransferTask) bool {
		if t.Status != models.TransferProcessing {
			return false
		}
		t.Status = models.TransferPending
		t.UpdatedAt = time.Now()
		return true
	}, false)
}

// DeleteTasksByStatus removes all tasks in the given status
func (s *Storage) DeleteTasksByStatus(ctx context.Context, status models.TransferStatus) (int, error) {
	return s.updateTasks(func(t *models.TransferTask) bool {
		return t.Status == status
	}, true)
}

func (s *Storage) scanTasks(keep func(*models.TransferTask) bool) ([]*models.TransferTask, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var tasks []*models.TransferTask

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTasks).ForEach(func(k, v []byte) error {
			var task models.TransferTask
			if err := json.Unmarshal(v, &task); err != nil {
				return fmt.Errorf("failed to unmarshal task %s: %w", k, err)
			}
			if keep(&task) {
				tasks = append(tasks, &task)
			}
			return nil
		})
	})

	if err != nil {
		return nil, fmt.Errorf("failed to scan tasks: %w", err)
	}

	return tasks, nil
}

// updateTasks применяет fn ко всем задачам в одной транзакции.
// fn возвращает true для задач, которые нужно сохранить (или удалить при remove)
func (s *Storage) updateTasks(fn func(*models.TransferTask) bool, remove bool) (int, error) {
	if s.db == nil {
		return 0, storage.ErrStorageClosed
	}

	affected := 0

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketTasks)

		changed := make(map[string]*models.TransferTask)
		err := bucket.ForEach(func(k, v []byte) error {
			var task models.TransferTask
			if err := json.Unmarshal(v, &task); err != nil {
				return fmt.Errorf("failed to unmarshal task %s: %w", k, err)
			}
			if fn(&task) {
				changed[string(k)] = &task
			}
			return nil
		})
		if err != nil {
			return err
		}

		for id, task := range changed {
			if remove {
				if err := bucket.Delete([]byte(id)); err != nil {
					return err
				}
			} else {
				data, err := json.Marshal(task)
				if err != nil {
					return fmt.Errorf("failed to marshal task: %w", err)
				}
				if err := bucket.Put([]byte(id), data); err != nil {
					return err
				}
			}
			affected++
		}
		return nil
	})

	if err != nil {
		return 0, fmt.Errorf("failed to update tasks: %w", err)
	}

	return affected, nil
}
