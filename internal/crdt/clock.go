package crdt

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StateStore persists the last issued clock value of a device.
type StateStore interface {
	// LoadClockState returns the persisted value for deviceID.
	// Any error is treated as "no usable state".
	LoadClockState(deviceID string) (Timestamp, error)

	// SaveClockState stores the last issued value.
	SaveClockState(ts Timestamp) error
}

// Clock представляет гибридные логические часы (HLC): физическое время
// в миллисекундах плюс логический счетчик. Значения, выданные одним
// экземпляром, строго возрастают даже при скачках системного времени назад.
type Clock struct {
	now      func() time.Time
	store    StateStore
	logger   *slog.Logger
	deviceID string
	wall     int64  // последнее использованное физическое время (ms)
	counter  uint32 // логический счетчик внутри одной миллисекунды
	mu       sync.Mutex
}

// Option configures a Clock.
type Option func(*Clock)

// WithNow overrides the wall clock source. Used by tests.
func WithNow(now func() time.Time) Option {
	return func(c *Clock) {
		c.now = now
	}
}

// WithStateStore enables persistence of the clock across restarts.
func WithStateStore(store StateStore) Option {
	return func(c *Clock) {
		c.store = store
	}
}

// WithLogger sets the logger used for persistence warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Clock) {
		c.logger = logger
	}
}

// NewClock creates a clock for deviceID. An empty deviceID gets a random UUID.
// If a StateStore is configured the persisted state is restored; missing,
// corrupted or foreign state is ignored.
func NewClock(deviceID string, opts ...Option) *Clock {
	if deviceID == "" {
		deviceID = uuid.New().String()
	}

	c := &Clock{
		deviceID: deviceID,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.wall = c.now().UnixMilli()
	c.restore()

	return c
}

// restore загружает сохраненное состояние, если оно пригодно
func (c *Clock) restore() {
	if c.store == nil {
		return
	}

	state, err := c.store.LoadClockState(c.deviceID)
	if err != nil {
		// Поврежденное или отсутствующее состояние не фатально
		c.logger.Debug("Clock state not restored", "device_id", c.deviceID, "error", err)
		return
	}

	if state.DeviceID != c.deviceID {
		c.logger.Warn("Ignoring clock state of another device",
			"device_id", c.deviceID,
			"stored_device_id", state.DeviceID)
		return
	}

	if state.WallTime > c.wall || (state.WallTime == c.wall && state.Counter > c.counter) {
		c.wall = state.WallTime
		c.counter = state.Counter
	}
}

// DeviceID returns the identifier embedded into every issued value.
func (c *Clock) DeviceID() string {
	return c.deviceID
}

// Next issues a new value strictly greater than every value issued
// or received before.
func (c *Clock) Next() Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()

	ts := c.advance(1)
	c.persist(ts)
	return ts
}

// NextBatch issues n ascending values in one step: the same wall time with
// consecutive counters. Returns an empty slice for n <= 0.
func (c *Clock) NextBatch(n int) []Timestamp {
	if n <= 0 {
		return []Timestamp{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	first := c.advance(1)
	// Резервируем диапазон счетчика целиком в пределах одной миллисекунды
	if uint64(first.Counter)+uint64(n-1) > math.MaxUint32 {
		c.wall++
		c.counter = 0
		first = Timestamp{WallTime: c.wall, Counter: 0, DeviceID: c.deviceID}
	}

	result := make([]Timestamp, 0, n)
	for i := 0; i < n; i++ {
		result = append(result, Timestamp{
			WallTime: first.WallTime,
			Counter:  first.Counter + uint32(i),
			DeviceID: c.deviceID,
		})
	}
	c.counter = first.Counter + uint32(n-1)

	last := result[len(result)-1]
	c.persist(last)
	return result
}

// advance двигает состояние и возвращает новое значение. Вызывать под mu.
func (c *Clock) advance(step uint32) Timestamp {
	physical := c.now().UnixMilli()

	switch {
	case physical > c.wall:
		c.wall = physical
		c.counter = 0
	case c.counter > math.MaxUint32-step:
		// Переполнение счетчика - переносим в физическое время
		c.wall++
		c.counter = 0
	default:
		c.counter += step
	}

	return Timestamp{WallTime: c.wall, Counter: c.counter, DeviceID: c.deviceID}
}

// Receive merges a remote value into the local state so that every value
// issued afterwards compares greater than remote. A changed state is
// persisted, so the guarantee survives a restart.
func (c *Clock) Receive(remote Timestamp) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case remote.WallTime > c.wall:
		c.wall = remote.WallTime
		c.counter = remote.Counter
	case remote.WallTime == c.wall && remote.Counter > c.counter:
		c.counter = remote.Counter
	default:
		return
	}

	c.persist(Timestamp{WallTime: c.wall, Counter: c.counter, DeviceID: c.deviceID})
}

// Current returns the local state without advancing it.
func (c *Clock) Current() Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Timestamp{WallTime: c.wall, Counter: c.counter, DeviceID: c.deviceID}
}

func (c *Clock) persist(ts Timestamp) {
	if c.store == nil {
		return
	}
	if err := c.store.SaveClockState(ts); err != nil {
		c.logger.Warn("Failed to persist clock state", "error", err)
	}
}
