package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	httpClient "github.com/iudanet/gophsync/internal/client/api"
	"github.com/iudanet/gophsync/internal/client/storage"
	"github.com/iudanet/gophsync/internal/crypto"
	"github.com/iudanet/gophsync/internal/models"
)

// errPermanent помечает ошибку, после которой повтор бессмысленен
var errPermanent = errors.New("permanent transfer failure")

// storageRetryDelay пауза после ошибки чтения таблицы задач
const storageRetryDelay = time.Second

type workerState int

const (
	stateIdle workerState = iota
	stateDraining
	statePaused
)

func (s workerState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateDraining:
		return "draining"
	case statePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Start recovers tasks interrupted in processing and runs the workers
// until Stop is called or ctx is cancelled.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.cancel != nil {
		return ErrAlreadyStarted
	}

	recovered, err := q.tasks.ResetProcessing(ctx)
	if err != nil {
		return fmt.Errorf("failed to recover interrupted tasks: %w", err)
	}
	if recovered > 0 {
		q.logger.Info("Recovered interrupted transfers", "count", recovered)
	}

	ctx, cancel := context.WithCancel(ctx)
	q.cancel = cancel

	for i := 0; i < q.opts.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}

	q.logger.Info("Transfer queue started", "workers", q.opts.Workers)
	return nil
}

// Stop cancels the workers and waits for them. Interrupted tasks return to pending.
func (q *Queue) Stop() {
	q.mu.Lock()
	cancel := q.cancel
	q.cancel = nil
	q.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	q.wg.Wait()
	q.logger.Info("Transfer queue stopped")
}

// worker - конечный автомат: draining берет задачи, пока они есть;
// idle ждет сигнала или таймера ближайшего повтора; paused ждет Resume
func (q *Queue) worker(ctx context.Context, id int) {
	defer q.wg.Done()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	state := stateDraining
	var retryAfter time.Duration

	for {
		switch state {
		case stateDraining:
			if q.paused.Load() {
				state = statePaused
				continue
			}

			task, err := q.claim(ctx)
			switch {
			case err == nil:
				// Будим соседний воркер: задач может быть больше одной
				q.signal()
				q.process(ctx, task)
			case errors.Is(err, storage.ErrTaskNotFound):
				state = stateIdle
			case ctx.Err() != nil:
				return
			default:
				q.logger.Error("Failed to claim transfer task", "worker", id, "error", err)
				retryAfter = storageRetryDelay
				state = stateIdle
			}

		case stateIdle, statePaused:
			if state == stateIdle {
				if retryAfter > 0 {
					timer.Reset(retryAfter)
					retryAfter = 0
				} else if at, ok := q.nextAttempt(ctx); ok {
					timer.Reset(max(at.Sub(q.now()), 0))
				}
			}

			q.logger.Debug("Transfer worker waiting", "worker", id, "state", state)

			select {
			case <-ctx.Done():
				return
			case <-q.wake:
			case <-timer.C:
			}
			timer.Stop()
			state = stateDraining
		}
	}
}

func (q *Queue) nextAttempt(ctx context.Context) (time.Time, bool) {
	at, ok, err := q.tasks.NextAttemptAt(ctx, q.now())
	if err != nil {
		q.logger.Warn("Failed to get next attempt time", "error", err)
		return q.now().Add(storageRetryDelay), true
	}
	return at, ok
}

// claim переводит следующую готовую задачу в processing
func (q *Queue) claim(ctx context.Context) (*models.TransferTask, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, err := q.tasks.NextPendingTask(ctx, q.now(), q.inProgress)
	if err != nil {
		return nil, err
	}

	task.Status = models.TransferProcessing
	task.UpdatedAt = q.now()
	if err := q.tasks.SaveTask(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to mark task processing: %w", err)
	}

	q.inProgress[task.FileKey()] = struct{}{}
	return task, nil
}

func (q *Queue) process(ctx context.Context, task *models.TransferTask) {
	q.events.publish(task, nil)

	q.logger.Debug("Transfer started",
		"task_id", task.ID,
		"direction", task.Direction,
		"content_hash", task.ContentHash,
		"attempt", task.RetryCount+1)

	var err error
	switch task.Direction {
	case models.DirectionUpload:
		err = q.upload(ctx, task)
	case models.DirectionDownload:
		err = q.download(ctx, task)
	default:
		err = fmt.Errorf("%w: unknown direction %q", errPermanent, task.Direction)
	}

	q.finish(ctx, task, err)
}

func (q *Queue) upload(ctx context.Context, task *models.TransferTask) error {
	// Байты перечитываются из Content Store на каждой попытке
	file, err := q.content.GetFile(ctx, task.ContentHash, task.FileType)
	if err != nil {
		if errors.Is(err, storage.ErrFileNotFound) {
			return fmt.Errorf("%w: local blob missing", errPermanent)
		}
		return fmt.Errorf("failed to read local blob: %w", err)
	}

	resp, err := q.remote.Upload(ctx, task.FileType, task.ContentHash, file.Data)
	if err != nil {
		return err
	}

	if resp.ContentHash != "" && resp.ContentHash != task.ContentHash {
		return fmt.Errorf("server stored content under %s, expected %s", resp.ContentHash, task.ContentHash)
	}
	return nil
}

func (q *Queue) download(ctx context.Context, task *models.TransferTask) error {
	data, mediaType, err := q.remote.Download(ctx, task.FileType, task.ContentHash)
	if err != nil {
		return err
	}

	if err := crypto.VerifyContentHash(data, task.ContentHash); err != nil {
		return err
	}

	// Запись в Content Store - последний шаг успешной загрузки
	err = q.content.StoreFile(ctx, &models.StoredFile{
		ContentHash: task.ContentHash,
		FileType:    task.FileType,
		MediaType:   mediaType,
		Data:        data,
	})
	if err != nil {
		return fmt.Errorf("failed to store downloaded blob: %w", err)
	}
	return nil
}

// finish фиксирует исход попытки: completed, повтор с backoff или failed
func (q *Queue) finish(ctx context.Context, task *models.TransferTask, transferErr error) {
	saveCtx := context.WithoutCancel(ctx)

	q.mu.Lock()

	// Приоритет мог быть повышен во время обработки
	if current, err := q.tasks.GetTask(saveCtx, task.ID); err == nil {
		task.Priority = current.Priority
	}

	now := q.now()
	task.UpdatedAt = now

	switch {
	case transferErr == nil:
		task.Status = models.TransferCompleted
		task.Error = ""
		q.logger.Info("Transfer completed",
			"task_id", task.ID,
			"direction", task.Direction,
			"content_hash", task.ContentHash)

	case ctx.Err() != nil:
		// Остановка очереди - не считается неудачной попыткой
		task.Status = models.TransferPending
		transferErr = nil

	case isPermanent(transferErr):
		task.Status = models.TransferFailed
		task.Error = transferErr.Error()
		q.logger.Warn("Transfer failed permanently",
			"task_id", task.ID,
			"content_hash", task.ContentHash,
			"error", transferErr)

	default:
		task.RetryCount++
		task.Error = transferErr.Error()
		if task.RetryCount > task.MaxRetries {
			task.Status = models.TransferFailed
			q.logger.Warn("Transfer failed, retries exhausted",
				"task_id", task.ID,
				"content_hash", task.ContentHash,
				"retries", task.MaxRetries,
				"error", transferErr)
		} else {
			delay := q.backoff(task.RetryCount)
			task.Status = models.TransferPending
			task.NextAttemptAt = now.Add(delay)
			q.logger.Info("Transfer retry scheduled",
				"task_id", task.ID,
				"retry", task.RetryCount,
				"delay", delay,
				"error", transferErr)
		}
	}

	if err := q.tasks.SaveTask(saveCtx, task); err != nil {
		q.logger.Error("Failed to save transfer task", "task_id", task.ID, "error", err)
	}
	delete(q.inProgress, task.FileKey())
	q.mu.Unlock()

	// Подписчики вызываются вне mu: им разрешено обращаться к очереди
	q.events.publish(task, transferErr)
	if task.Status == models.TransferPending {
		q.signal()
	}
}

// backoff возвращает задержку перед повтором номер retryCount:
// экспонента от BaseBackoff с jitter, не больше MaxBackoff
func (q *Queue) backoff(retryCount int) time.Duration {
	b := retry.NewExponential(q.opts.BaseBackoff)
	b = retry.WithJitterPercent(q.opts.JitterPercent, b)
	b = retry.WithCappedDuration(q.opts.MaxBackoff, b)

	var delay time.Duration
	for i := 0; i < retryCount; i++ {
		delay, _ = b.Next()
	}
	return delay
}

func isPermanent(err error) bool {
	return errors.Is(err, errPermanent) ||
		errors.Is(err, httpClient.ErrNotFound) ||
		errors.Is(err, httpClient.ErrRejected)
}
