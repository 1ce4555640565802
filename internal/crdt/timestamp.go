package crdt

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrClockParse is matched by every *ParseError.
var ErrClockParse = errors.New("malformed clock value")

// ParseError describes a clock string that could not be decoded.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse clock %q: %s", e.Input, e.Reason)
}

// Is позволяет сравнивать через errors.Is(err, ErrClockParse)
func (e *ParseError) Is(target error) bool {
	return target == ErrClockParse
}

// Timestamp is a Hybrid Logical Clock value: physical time in unix
// milliseconds, a logical counter and the id of the device that issued it.
type Timestamp struct {
	DeviceID string `json:"device_id"`
	WallTime int64  `json:"wall_time"`
	Counter  uint32 `json:"counter"`
}

const (
	wallWidth    = 15
	counterWidth = 10
	separator    = ":"
)

// IsZero reports whether t is the zero value.
func (t Timestamp) IsZero() bool {
	return t.WallTime == 0 && t.Counter == 0 && t.DeviceID == ""
}

// String returns the canonical encoding "<wall>:<counter>:<device>".
// Поля дополнены нулями, поэтому строковый порядок совпадает с порядком часов.
func (t Timestamp) String() string {
	return fmt.Sprintf("%0*d%s%0*d%s%s", wallWidth, t.WallTime, separator, counterWidth, t.Counter, separator, t.DeviceID)
}

// MarshalText implements encoding.TextMarshaler.
func (t Timestamp) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Timestamp) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Parse decodes the canonical clock encoding produced by Timestamp.String.
func Parse(s string) (Timestamp, error) {
	// deviceID может содержать разделитель, поэтому режем максимум на 3 части
	parts := strings.SplitN(s, separator, 3)
	if len(parts) != 3 {
		return Timestamp{}, &ParseError{Input: s, Reason: "expected 3 fields"}
	}

	wall, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Timestamp{}, &ParseError{Input: s, Reason: "invalid wall time"}
	}
	if wall < 0 {
		return Timestamp{}, &ParseError{Input: s, Reason: "negative wall time"}
	}

	counter, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return Timestamp{}, &ParseError{Input: s, Reason: "invalid counter"}
	}
	if counter > math.MaxUint32 {
		return Timestamp{}, &ParseError{Input: s, Reason: "counter overflow"}
	}

	if parts[2] == "" {
		return Timestamp{}, &ParseError{Input: s, Reason: "empty device id"}
	}

	return Timestamp{
		WallTime: wall,
		Counter:  uint32(counter),
		DeviceID: parts[2],
	}, nil
}

// Compare orders two clock values lexicographically by
// (WallTime, Counter, DeviceID). Returns -1, 0 or 1.
func Compare(a, b Timestamp) int {
	switch {
	case a.WallTime < b.WallTime:
		return -1
	case a.WallTime > b.WallTime:
		return 1
	}

	switch {
	case a.Counter < b.Counter:
		return -1
	case a.Counter > b.Counter:
		return 1
	}

	// Время и счетчик равны - сравниваем DeviceID для детерминизма
	return strings.Compare(a.DeviceID, b.DeviceID)
}

// After reports whether t is strictly greater than other.
func (t Timestamp) After(other Timestamp) bool {
	return Compare(t, other) > 0
}
