package sync

import (
	"context"
	"errors"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/iudanet/gophsync/internal/client/syncmeta"
	"github.com/iudanet/gophsync/internal/models"
)

const defaultDebounce = 2 * time.Second

// Syncer runs one cycle for a collection.
type Syncer interface {
	Sync(ctx context.Context, collection string) (*SyncResult, error)
}

// MutationSource publishes accepted local writes.
type MutationSource interface {
	Subscribe(fn syncmeta.Listener) (unsubscribe func())
}

// Scheduler triggers a sync cycle for a collection after local writes
// to it have been quiet for the debounce interval.
type Scheduler struct {
	syncer   Syncer
	source   MutationSource
	logger   *slog.Logger
	now      func() time.Time
	due      map[string]time.Time // коллекция -> момент запуска
	wake     chan struct{}
	debounce time.Duration
	mu       gosync.Mutex
}

// NewScheduler creates a scheduler. debounce <= 0 selects the default of 2s.
func NewScheduler(syncer Syncer, source MutationSource, debounce time.Duration, logger *slog.Logger) *Scheduler {
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	return &Scheduler{
		syncer:   syncer,
		source:   source,
		logger:   logger,
		now:      time.Now,
		due:      make(map[string]time.Time),
		wake:     make(chan struct{}, 1),
		debounce: debounce,
	}
}

// Run processes mutation events until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	unsubscribe := s.source.Subscribe(s.onMutation)
	defer unsubscribe()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		if next, ok := s.nextDue(); ok {
			timer.Reset(max(time.Until(next), 0))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.wake:
		case <-timer.C:
		}
		timer.Stop()

		for _, collection := range s.takeDue() {
			s.runSync(ctx, collection)
		}
	}
}

// onMutation откладывает синхронизацию коллекции; не блокирует писателя
func (s *Scheduler) onMutation(event models.MutationEvent) {
	s.mu.Lock()
	s.due[event.Collection] = s.now().Add(s.debounce)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) nextDue() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var earliest time.Time
	for _, at := range s.due {
		if earliest.IsZero() || at.Before(earliest) {
			earliest = at
		}
	}
	return earliest, !earliest.IsZero()
}

func (s *Scheduler) takeDue() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var ready []string
	for collection, at := range s.due {
		if !at.After(now) {
			ready = append(ready, collection)
			delete(s.due, collection)
		}
	}
	return ready
}

func (s *Scheduler) runSync(ctx context.Context, collection string) {
	_, err := s.syncer.Sync(ctx, collection)
	switch {
	case err == nil:
	case errors.Is(err, ErrSyncHalted):
		s.logger.Debug("Scheduled sync skipped: engine halted", "collection", collection)
	case ctx.Err() != nil:
	default:
		s.logger.Warn("Scheduled sync failed", "collection", collection, "error", err)
	}
}
