package api

// UploadResponse представляет ответ на загрузку blob
type UploadResponse struct {
	ContentHash   string `json:"contentHash"`
	FileName      string `json:"fileName"`
	MimeType      string `json:"mimeType"`
	FileSize      int64  `json:"fileSize"`
	AlreadyExists bool   `json:"alreadyExists"` // такой blob уже был на сервере
}
