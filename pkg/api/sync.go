package api

import "encoding/json"

// SyncItem представляет одну запись коллекции на проводе
type SyncItem struct {
	ServerTimestamp *int64          `json:"serverTimestamp,omitempty"` // только в ответах pull
	ID              string          `json:"id" validate:"required,max=512"`
	EntityID        string          `json:"entityId,omitempty" validate:"max=512"`
	Clock           string          `json:"clock" validate:"required"`    // каноническая строка HLC
	DeviceID        string          `json:"deviceId" validate:"required"` // устройство-автор версии
	Data            json.RawMessage `json:"data,omitempty"`               // сервер не интерпретирует
	IsDeleted       bool            `json:"isDeleted"`
}

// PullResponse представляет страницу изменений после курсора
type PullResponse struct {
	Items           []SyncItem `json:"items"`
	ServerTimestamp int64      `json:"serverTimestamp"` // наибольший server timestamp на странице
	HasMore         bool       `json:"hasMore"`
}

// PushRequest представляет пакет локальных изменений
type PushRequest struct {
	Items []SyncItem `json:"items" validate:"max=1000"` // записи проверяются по отдельности
}

// Причины отклонения записи при push
const (
	ReasonStale   = "stale"   // на сервере версия с большим или равным clock
	ReasonInvalid = "invalid" // запись не прошла валидацию
)

// PushResult представляет результат обработки одной записи
type PushResult struct {
	Current         *SyncItem `json:"current,omitempty"` // текущая версия сервера для stale
	ID              string    `json:"id"`
	Reason          string    `json:"reason,omitempty"`
	ServerTimestamp int64     `json:"serverTimestamp"`
	Accepted        bool      `json:"accepted"`
}

// PushResponse представляет ответ на push
type PushResponse struct {
	Results []PushResult `json:"results"`
}

// TimestampResponse представляет текущее значение последовательности сервера
type TimestampResponse struct {
	ServerTimestamp int64 `json:"serverTimestamp"`
}
