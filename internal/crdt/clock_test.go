package crdt

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTime управляемый источник времени для тестов
type fakeTime struct {
	current time.Time
	mu      sync.Mutex
}

func newFakeTime(ms int64) *fakeTime {
	return &fakeTime{current: time.UnixMilli(ms)}
}

func (f *fakeTime) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *fakeTime) Set(ms int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = time.UnixMilli(ms)
}

// memoryStateStore хранит состояние часов в памяти
type memoryStateStore struct {
	loadErr error
	state   Timestamp
	saved   int
}

func (m *memoryStateStore) LoadClockState(deviceID string) (Timestamp, error) {
	if m.loadErr != nil {
		return Timestamp{}, m.loadErr
	}
	if m.state.IsZero() {
		return Timestamp{}, errors.New("no state")
	}
	return m.state, nil
}

func (m *memoryStateStore) SaveClockState(ts Timestamp) error {
	m.state = ts
	m.saved++
	return nil
}

func TestNewClock(t *testing.T) {
	clock := NewClock("")

	require.NotNil(t, clock)
	assert.NotEmpty(t, clock.DeviceID(), "DeviceID should be generated")

	clock2 := NewClock("device-a")
	assert.Equal(t, "device-a", clock2.DeviceID())
}

func TestClock_Next_AdoptsWallTime(t *testing.T) {
	ft := newFakeTime(1000)
	clock := NewClock("device-a", WithNow(ft.Now))

	ts := clock.Next()
	assert.Equal(t, int64(1000), ts.WallTime)
	assert.Equal(t, uint32(1), ts.Counter, "Same millisecond should bump the counter")

	ft.Set(2000)
	ts = clock.Next()
	assert.Equal(t, int64(2000), ts.WallTime)
	assert.Equal(t, uint32(0), ts.Counter, "New wall time resets the counter")
	assert.Equal(t, "device-a", ts.DeviceID)
}

func TestClock_Next_Monotonicity(t *testing.T) {
	tests := []struct {
		name  string
		times []int64
	}{
		{name: "stutter", times: []int64{100, 100, 100, 100, 100}},
		{name: "backward jump", times: []int64{500, 400, 300, 200, 100}},
		{name: "mixed", times: []int64{100, 200, 150, 150, 300, 10, 300}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ft := newFakeTime(tt.times[0])
			clock := NewClock("device-a", WithNow(ft.Now))

			previous := clock.Next()
			for _, ms := range tt.times {
				ft.Set(ms)
				current := clock.Next()
				assert.Equal(t, 1, Compare(current, previous), "Next should always increase")
				previous = current
			}
		})
	}
}

func TestClock_Next_CounterOverflow(t *testing.T) {
	ft := newFakeTime(1000)
	clock := NewClock("device-a", WithNow(ft.Now))
	clock.Receive(Timestamp{WallTime: 1000, Counter: math.MaxUint32, DeviceID: "device-b"})

	ts := clock.Next()
	assert.Equal(t, int64(1001), ts.WallTime, "Overflow should carry into wall time")
	assert.Equal(t, uint32(0), ts.Counter)
}

func TestClock_NextBatch(t *testing.T) {
	ft := newFakeTime(1000)
	clock := NewClock("device-a", WithNow(ft.Now))

	assert.Empty(t, clock.NextBatch(0))
	assert.Empty(t, clock.NextBatch(-3))

	batch := clock.NextBatch(5)
	require.Len(t, batch, 5)
	for i := 1; i < len(batch); i++ {
		assert.Equal(t, batch[0].WallTime, batch[i].WallTime, "Batch shares wall time")
		assert.Equal(t, 1, Compare(batch[i], batch[i-1]), "Batch values ascend")
	}

	next := clock.Next()
	assert.Equal(t, 1, Compare(next, batch[len(batch)-1]), "Next after batch is greater")
}

func TestClock_Receive_Causality(t *testing.T) {
	tests := []struct {
		name   string
		remote Timestamp
		local  int64
	}{
		{name: "remote ahead", local: 1000, remote: Timestamp{WallTime: 5000, Counter: 7, DeviceID: "device-b"}},
		{name: "remote behind", local: 5000, remote: Timestamp{WallTime: 1000, Counter: 42, DeviceID: "device-b"}},
		{name: "same wall time", local: 3000, remote: Timestamp{WallTime: 3000, Counter: 99, DeviceID: "device-b"}},
		{name: "same wall, lower device id", local: 3000, remote: Timestamp{WallTime: 3000, Counter: 0, DeviceID: "device-0"}},
		{name: "same wall, higher device id", local: 3000, remote: Timestamp{WallTime: 3000, Counter: 0, DeviceID: "device-z"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ft := newFakeTime(tt.local)
			clock := NewClock("device-a", WithNow(ft.Now))
			clock.Next()

			clock.Receive(tt.remote)

			for i := 0; i < 3; i++ {
				ts := clock.Next()
				assert.Equal(t, 1, Compare(ts, tt.remote), "Next after Receive must be greater than received value")
			}
		})
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name     string
		a        Timestamp
		b        Timestamp
		expected int
	}{
		{name: "equal", a: Timestamp{}.with(1, 1, "a"), b: Timestamp{}.with(1, 1, "a"), expected: 0},
		{name: "wall less", a: Timestamp{}.with(1, 9, "z"), b: Timestamp{}.with(2, 0, "a"), expected: -1},
		{name: "wall greater", a: Timestamp{}.with(3, 0, "a"), b: Timestamp{}.with(2, 9, "z"), expected: 1},
		{name: "counter less", a: Timestamp{}.with(2, 1, "z"), b: Timestamp{}.with(2, 2, "a"), expected: -1},
		{name: "counter greater", a: Timestamp{}.with(2, 3, "a"), b: Timestamp{}.with(2, 2, "z"), expected: 1},
		{name: "device tie-break less", a: Timestamp{}.with(2, 2, "a"), b: Timestamp{}.with(2, 2, "b"), expected: -1},
		{name: "device tie-break greater", a: Timestamp{}.with(2, 2, "b"), b: Timestamp{}.with(2, 2, "a"), expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Compare(tt.a, tt.b))
			assert.Equal(t, -tt.expected, Compare(tt.b, tt.a), "Compare must be antisymmetric")
		})
	}
}

func TestCompare_Transitive(t *testing.T) {
	values := []Timestamp{
		Timestamp{}.with(1, 0, "a"),
		Timestamp{}.with(1, 0, "b"),
		Timestamp{}.with(1, 1, "a"),
		Timestamp{}.with(2, 0, "a"),
	}

	for i := range values {
		for j := range values {
			for k := range values {
				if Compare(values[i], values[j]) < 0 && Compare(values[j], values[k]) < 0 {
					assert.Equal(t, -1, Compare(values[i], values[k]))
				}
			}
		}
	}
}

func TestParse_RoundTrip(t *testing.T) {
	ts := Timestamp{WallTime: 1697712345678, Counter: 12, DeviceID: "b692f5c0-2d88-4aa1-a9e1-13aa6e4976d5"}

	encoded := ts.String()
	assert.Equal(t, "001697712345678:0000000012:b692f5c0-2d88-4aa1-a9e1-13aa6e4976d5", encoded)

	parsed, err := Parse(encoded)
	require.NoError(t, err)
	assert.Equal(t, ts, parsed)
}

func TestParse_StringOrderMatchesClockOrder(t *testing.T) {
	a := Timestamp{}.with(999, 5, "dev")
	b := Timestamp{}.with(1000, 0, "dev")

	assert.Less(t, a.String(), b.String())
	assert.Equal(t, -1, Compare(a, b))
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ""},
		{name: "two fields", input: "1:2"},
		{name: "non-numeric wall", input: "abc:1:dev"},
		{name: "negative wall", input: "-5:1:dev"},
		{name: "non-numeric counter", input: "1:x:dev"},
		{name: "counter overflow", input: "1:4294967296:dev"},
		{name: "empty device", input: "1:1:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrClockParse)

			var parseErr *ParseError
			assert.ErrorAs(t, err, &parseErr)
		})
	}
}

func TestTimestamp_TextMarshaling(t *testing.T) {
	ts := Timestamp{}.with(42, 7, "dev:with:colons")

	text, err := ts.MarshalText()
	require.NoError(t, err)

	var decoded Timestamp
	require.NoError(t, decoded.UnmarshalText(text))
	assert.Equal(t, ts, decoded, "Device id may contain the separator")

	assert.Error(t, decoded.UnmarshalText([]byte("garbage")))
}

func TestClock_Persistence(t *testing.T) {
	store := &memoryStateStore{}
	ft := newFakeTime(10_000)

	clock := NewClock("device-a", WithNow(ft.Now), WithStateStore(store))
	clock.Next()
	last := clock.Next()
	assert.Equal(t, last, store.state)
	assert.Equal(t, 2, store.saved)

	// Перезапуск с отставшими системными часами
	ft.Set(5_000)
	restarted := NewClock("device-a", WithNow(ft.Now), WithStateStore(store))
	next := restarted.Next()
	assert.Equal(t, 1, Compare(next, last), "Restored clock must continue after persisted value")
}

func TestClock_Persistence_AfterReceive(t *testing.T) {
	tests := []struct {
		name   string
		remote Timestamp
	}{
		{name: "remote wall ahead", remote: Timestamp{}.with(61_000, 5, "device-b")},
		{name: "same wall, higher counter", remote: Timestamp{}.with(1_000, 40, "device-b")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memoryStateStore{}
			ft := newFakeTime(1_000)

			clock := NewClock("device-a", WithNow(ft.Now), WithStateStore(store))
			clock.Next()
			clock.Receive(tt.remote)

			// Перезапуск до того, как локальные часы догнали удаленные
			restarted := NewClock("device-a", WithNow(ft.Now), WithStateStore(store))
			next := restarted.Next()
			assert.True(t, next.After(tt.remote), "next=%s remote=%s", next, tt.remote)
		})
	}
}

func TestClock_Receive_StaleValueNotPersisted(t *testing.T) {
	store := &memoryStateStore{}
	ft := newFakeTime(5_000)

	clock := NewClock("device-a", WithNow(ft.Now), WithStateStore(store))
	clock.Next()
	saved := store.saved

	clock.Receive(Timestamp{}.with(1_000, 3, "device-b"))
	assert.Equal(t, saved, store.saved, "Receive of an older value does not change state")
}

func TestClock_Persistence_IgnoresForeignAndCorruptedState(t *testing.T) {
	ft := newFakeTime(10_000)

	foreign := &memoryStateStore{state: Timestamp{}.with(99_999, 5, "device-b")}
	clock := NewClock("device-a", WithNow(ft.Now), WithStateStore(foreign))
	assert.Equal(t, int64(10_000), clock.Current().WallTime, "Foreign state should be ignored")

	corrupted := &memoryStateStore{loadErr: errors.New("unexpected end of JSON input")}
	clock = NewClock("device-a", WithNow(ft.Now), WithStateStore(corrupted))
	assert.Equal(t, int64(10_000), clock.Current().WallTime, "Corrupted state should be treated as absent")
	assert.NotPanics(t, func() { clock.Next() })
}

func TestClock_ConcurrentNext(t *testing.T) {
	clock := NewClock("device-a")
	iterations := 500
	goroutines := 10

	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[string]bool)

	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				ts := clock.Next()
				mu.Lock()
				seen[ts.String()] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, iterations*goroutines, "All issued values should be unique")
}

func (t Timestamp) with(wall int64, counter uint32, device string) Timestamp {
	return Timestamp{WallTime: wall, Counter: counter, DeviceID: device}
}
