package transfer

import (
	"sync"

	"github.com/iudanet/gophsync/internal/models"
)

// Progress describes a task state change.
type Progress struct {
	Err         error
	TaskID      string
	ContentHash string
	FileType    string
	Direction   models.TransferDirection
	Status      models.TransferStatus
	RetryCount  int
}

// ProgressFunc receives progress events. It must not block.
type ProgressFunc func(Progress)

type eventBus struct {
	subs   map[string]map[int]ProgressFunc
	nextID int
	mu     sync.RWMutex
}

func newEventBus() *eventBus {
	return &eventBus{subs: make(map[string]map[int]ProgressFunc)}
}

func (b *eventBus) subscribe(key string, fn ProgressFunc) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	if b.subs[key] == nil {
		b.subs[key] = make(map[int]ProgressFunc)
	}
	b.subs[key][id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[key], id)
			if len(b.subs[key]) == 0 {
				delete(b.subs, key)
			}
		})
	}
}

func (b *eventBus) publish(task *models.TransferTask, err error) {
	event := Progress{
		TaskID:      task.ID,
		ContentHash: task.ContentHash,
		FileType:    task.FileType,
		Direction:   task.Direction,
		Status:      task.Status,
		RetryCount:  task.RetryCount,
		Err:         err,
	}

	b.mu.RLock()
	fns := make([]ProgressFunc, 0, len(b.subs[task.FileKey()]))
	for _, fn := range b.subs[task.FileKey()] {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(event)
	}
}
