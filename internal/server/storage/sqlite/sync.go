package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iudanet/gophsync/internal/crdt"
	"github.com/iudanet/gophsync/internal/server/storage"
)

const itemColumns = `user_id, collection, id, entity_id, clock, device_id, is_deleted, data, server_ts`

// PutItems writes items under the clock guard in one transaction
func (s *Storage) PutItems(ctx context.Context, userID, collection string, items []*storage.SyncItem) ([]storage.PutResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	results := make([]storage.PutResult, 0, len(items))
	for _, item := range items {
		current, err := getItem(ctx, tx, userID, collection, item.ID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to read item %s: %w", item.ID, err)
		}

		// Перезаписываем только строго более новой версией
		if current != nil && !item.Clock.After(current.Clock) {
			results = append(results, storage.PutResult{Current: current, ServerTS: current.ServerTS})
			continue
		}

		ts, err := s.nextServerTS(ctx, tx)
		if err != nil {
			return nil, err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO sync_items (`+itemColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (user_id, collection, id) DO UPDATE SET
				entity_id = excluded.entity_id,
				clock = excluded.clock,
				device_id = excluded.device_id,
				is_deleted = excluded.is_deleted,
				data = excluded.data,
				server_ts = excluded.server_ts
		`,
			userID,
			collection,
			item.ID,
			item.EntityID,
			item.Clock.String(),
			item.DeviceID,
			boolToInt(item.IsDeleted),
			item.Data,
			ts,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert item %s: %w", item.ID, err)
		}

		results = append(results, storage.PutResult{Accepted: true, ServerTS: ts})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return results, nil
}

// nextServerTS выдает max(now_ms, last+1) в той же транзакции, что и запись
func (s *Storage) nextServerTS(ctx context.Context, tx *sql.Tx) (int64, error) {
	var ts int64
	err := tx.QueryRowContext(ctx,
		`UPDATE sync_sequence SET last_ts = MAX(?, last_ts + 1) WHERE id = 1 RETURNING last_ts`,
		s.now().UnixMilli(),
	).Scan(&ts)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate server timestamp: %w", err)
	}
	return ts, nil
}

// ListSince returns items changed after q.Since ordered by server timestamp
func (s *Storage) ListSince(ctx context.Context, q storage.ListQuery) ([]*storage.SyncItem, bool, error) {
	var (
		where strings.Builder
		args  = []any{q.UserID, q.Collection, q.Since}
	)
	where.WriteString(`user_id = ? AND collection = ? AND server_ts > ?`)
	if q.EntityID != "" {
		where.WriteString(` AND entity_id = ?`)
		args = append(args, q.EntityID)
	}
	// Берем на одну запись больше, чтобы узнать hasMore
	args = append(args, q.Limit+1)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM sync_items WHERE `+where.String()+` ORDER BY server_ts LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to query items: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	items := make([]*storage.SyncItem, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, false, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("rows iteration error: %w", err)
	}

	hasMore := len(items) > q.Limit
	if hasMore {
		items = items[:q.Limit]
	}
	return items, hasMore, nil
}

// CurrentTimestamp returns the last allocated server timestamp
func (s *Storage) CurrentTimestamp(ctx context.Context) (int64, error) {
	var ts int64
	if err := s.db.QueryRowContext(ctx, `SELECT last_ts FROM sync_sequence WHERE id = 1`).Scan(&ts); err != nil {
		return 0, fmt.Errorf("failed to read server timestamp: %w", err)
	}
	return ts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func getItem(ctx context.Context, tx *sql.Tx, userID, collection, id string) (*storage.SyncItem, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM sync_items WHERE user_id = ? AND collection = ? AND id = ?`,
		userID, collection, id,
	)
	return scanItem(row)
}

func scanItem(row rowScanner) (*storage.SyncItem, error) {
	var (
		item    storage.SyncItem
		clock   string
		deleted int
	)

	err := row.Scan(
		&item.UserID,
		&item.Collection,
		&item.ID,
		&item.EntityID,
		&clock,
		&item.DeviceID,
		&deleted,
		&item.Data,
		&item.ServerTS,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan item: %w", err)
	}

	item.Clock, err = crdt.Parse(clock)
	if err != nil {
		return nil, fmt.Errorf("stored item %s: %w", item.ID, err)
	}
	item.IsDeleted = intToBool(deleted)

	return &item, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func intToBool(i int) bool {
	return i != 0
}
