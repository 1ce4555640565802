package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/iudanet/gophsync/pkg/api"
)

// Download скачивает blob. Возвращает байты и Content-Type
func (c *Client) Download(ctx context.Context, fileType, contentHash string) ([]byte, string, error) {
	path := "/files/" + url.PathEscape(fileType) + "/" + url.PathEscape(contentHash)

	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, "", err
	}

	data, header, err := c.do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download %s failed: %w", contentHash, err)
	}

	return data, header.Get("Content-Type"), nil
}

// Upload загружает blob как multipart форму (поля file и fileType)
func (c *Client) Upload(ctx context.Context, fileType, fileName string, data []byte) (*api.UploadResponse, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("fileType", fileType); err != nil {
		return nil, fmt.Errorf("failed to write form field: %w", err)
	}

	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/files/upload", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	respBody, _, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("upload %s failed: %w", fileName, err)
	}

	var resp api.UploadResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &resp, nil
}

// DeleteFile помечает blob удаленным на сервере
func (c *Client) DeleteFile(ctx context.Context, fileType, contentHash string) error {
	path := "/files/" + url.PathEscape(fileType) + "/" + url.PathEscape(contentHash)
	if err := c.doRequest(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("delete %s failed: %w", contentHash, err)
	}
	return nil
}
