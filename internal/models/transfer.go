package models

import "time"

// TransferDirection направление передачи blob
type TransferDirection string

const (
	DirectionUpload   TransferDirection = "upload"
	DirectionDownload TransferDirection = "download"
)

// TransferStatus состояние задачи передачи
type TransferStatus string

const (
	TransferPending    TransferStatus = "pending"
	TransferProcessing TransferStatus = "processing"
	TransferCompleted  TransferStatus = "completed"
	TransferFailed     TransferStatus = "failed"
)

// IsTerminal reports whether no further processing happens without a manual retry.
func (s TransferStatus) IsTerminal() bool {
	return s == TransferCompleted || s == TransferFailed
}

// TransferTask представляет задачу очереди загрузки/скачивания blob.
// Для ключа (ContentHash, FileType, Direction) существует не более одной
// незавершенной задачи.
type TransferTask struct {
	NextAttemptAt time.Time         `json:"next_attempt_at"` // NextAttemptAt не раньше этого момента (backoff)
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
	ID            string            `json:"id"`
	Direction     TransferDirection `json:"direction"`
	ContentHash   string            `json:"content_hash"`
	FileType      string            `json:"file_type"`
	MediaType     string            `json:"media_type,omitempty"`
	Status        TransferStatus    `json:"status"`
	Error         string            `json:"error,omitempty"`
	Priority      int               `json:"priority"`
	RetryCount    int               `json:"retry_count"`
	MaxRetries    int               `json:"max_retries"`
}

// FileKey returns the content-addressed identity the task transfers.
func (t *TransferTask) FileKey() string {
	return FileID(t.FileType, t.ContentHash)
}
