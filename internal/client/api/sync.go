package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/iudanet/gophsync/pkg/api"
)

// Pull запрашивает страницу изменений коллекции после since
func (c *Client) Pull(ctx context.Context, collection string, since int64, entityID string, limit int) (*api.PullResponse, error) {
	query := url.Values{}
	query.Set("since", strconv.FormatInt(since, 10))
	if entityID != "" {
		query.Set("entityId", entityID)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var resp api.PullResponse
	path := "/sync/" + url.PathEscape(collection) + "?" + query.Encode()
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("pull %s failed: %w", collection, err)
	}
	return &resp, nil
}

// Push отправляет пакет локальных изменений коллекции
func (c *Client) Push(ctx context.Context, collection string, items []api.SyncItem) (*api.PushResponse, error) {
	var resp api.PushResponse
	req := api.PushRequest{Items: items}
	if err := c.doRequest(ctx, http.MethodPost, "/sync/"+url.PathEscape(collection), req, &resp); err != nil {
		return nil, fmt.Errorf("push %s failed: %w", collection, err)
	}
	return &resp, nil
}

// CurrentTimestamp возвращает текущее значение последовательности сервера
func (c *Client) CurrentTimestamp(ctx context.Context) (int64, error) {
	var resp api.TimestampResponse
	if err := c.doRequest(ctx, http.MethodGet, "/sync-timestamp", nil, &resp); err != nil {
		return 0, fmt.Errorf("get server timestamp failed: %w", err)
	}
	return resp.ServerTimestamp, nil
}
