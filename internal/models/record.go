package models

import (
	"encoding/json"
	"time"

	"github.com/iudanet/gophsync/internal/crdt"
)

// Origin указывает, откуда пришла запись: локальная запись приложения
// или изменение, уже наблюдавшееся сервером.
type Origin int

const (
	// OriginLocal - запись приложения на этом устройстве, требует штампа часов
	OriginLocal Origin = iota
	// OriginRemote - запись из pull/push ответа сервера, сохраняется как есть
	OriginRemote
)

func (o Origin) String() string {
	switch o {
	case OriginLocal:
		return "local"
	case OriginRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// Record представляет запись синхронизируемой коллекции: произвольный
// payload приложения плюс метаданные синхронизации.
type Record struct {
	UpdatedAt       time.Time       `json:"updated_at"`                 // UpdatedAt время последней локальной записи (для информации)
	ServerTimestamp *int64          `json:"server_timestamp,omitempty"` // ServerTimestamp nil пока запись не подтверждена сервером
	Key             string          `json:"key"`                        // Key первичный ключ внутри коллекции
	EntityID        string          `json:"entity_id,omitempty"`        // EntityID опциональная область (например, документ)
	DeviceID        string          `json:"device_id"`                  // DeviceID устройство, создавшее эту версию
	Clock           crdt.Timestamp  `json:"clock"`                      // Clock HLC значение последней записи
	Data            json.RawMessage `json:"data,omitempty"`             // Data непрозрачный payload приложения
	IsDeleted       bool            `json:"is_deleted"`                 // IsDeleted флаг soft delete (tombstone)
}

// IsNewerThan сравнивает две версии записи по правилу LWW (Last-Write-Wins):
// побеждает строго больший HLC, при равенстве времени и счетчика решает DeviceID.
func (r *Record) IsNewerThan(other *Record) bool {
	return crdt.Compare(r.Clock, other.Clock) > 0
}

// IsPending reports whether r is a local change of deviceID not yet
// acknowledged by the server.
func (r *Record) IsPending(deviceID string) bool {
	return r.DeviceID == deviceID && r.ServerTimestamp == nil
}

// IsSynced reports whether the server has observed this version.
func (r *Record) IsSynced() bool {
	return r.ServerTimestamp != nil
}

// Clone создает глубокую копию записи
func (r *Record) Clone() *Record {
	clone := *r

	if r.Data != nil {
		clone.Data = make(json.RawMessage, len(r.Data))
		copy(clone.Data, r.Data)
	}

	if r.ServerTimestamp != nil {
		ts := *r.ServerTimestamp
		clone.ServerTimestamp = &ts
	}

	return &clone
}

// MutationOp describes the kind of accepted local write.
type MutationOp string

const (
	OpCreate MutationOp = "create"
	OpUpdate MutationOp = "update"
)

// MutationEvent is emitted after an accepted local write to a synced collection.
type MutationEvent struct {
	Record     *Record
	Collection string
	Key        string
	Op         MutationOp
}
