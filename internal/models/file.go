package models

import "time"

// Типы файлов, используемые приложением. Список не закрыт:
// FileType - произвольная строка-дискриминатор.
const (
	FileTypeOriginal  = "original"
	FileTypeThumbnail = "thumbnail"
	FileTypeExport    = "export"
)

// StoredFile представляет локально сохраненный blob, адресуемый по содержимому.
type StoredFile struct {
	StoredAt    time.Time `json:"stored_at"`
	ID          string    `json:"id"`           // ID = FileType + ":" + ContentHash
	ContentHash string    `json:"content_hash"` // ContentHash хеш содержимого (hex)
	FileType    string    `json:"file_type"`    // FileType вариант содержимого (оригинал, миниатюра, ...)
	MediaType   string    `json:"media_type"`   // MediaType MIME тип
	Data        []byte    `json:"-"`
	Size        int64     `json:"size"`
}

// FileID builds the content-addressed identity of a stored file.
func FileID(fileType, contentHash string) string {
	return fileType + ":" + contentHash
}
