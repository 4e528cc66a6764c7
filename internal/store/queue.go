package store

import (
	"context"
	"fmt"

	"github.com/devonagro/herdsync/internal/types"
)

// AddToSyncQueue records a deferred operation to retry later.
func (s *Store) AddToSyncQueue(ctx context.Context, itemType string, payload []byte) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	now := nowRFC3339()
	_, err = db.ExecContext(ctx, `
		INSERT INTO sync_queue (type, payload, attempts, created_at, updated_at)
		VALUES (?, ?, 0, ?, ?)
	`, itemType, string(payload), now, now)
	if err != nil {
		return fmt.Errorf("add to sync queue: %w", err)
	}
	return nil
}

// GetSyncQueue returns all queued items, oldest first.
func (s *Store) GetSyncQueue(ctx context.Context) ([]types.SyncQueueItem, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, type, payload, attempts, created_at, updated_at
		FROM sync_queue ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sync queue: %w", err)
	}
	defer rows.Close()

	var items []types.SyncQueueItem
	for rows.Next() {
		var item types.SyncQueueItem
		var payload, createdAt, updatedAt string
		if err := rows.Scan(&item.ID, &item.Type, &payload, &item.Attempts, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan sync queue item: %w", err)
		}
		item.Payload = []byte(payload)
		item.CreatedAt = parseTime(createdAt)
		item.UpdatedAt = parseTime(updatedAt)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sync queue: %w", err)
	}
	return items, nil
}

// RemoveSyncQueueItem deletes a queued item after it succeeds.
func (s *Store) RemoveSyncQueueItem(ctx context.Context, id int64) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, id); err != nil {
		return fmt.Errorf("remove sync queue item: %w", err)
	}
	return nil
}

// IncrementSyncAttempts bumps the attempt counter after a failed try. There
// is no attempt cap.
func (s *Store) IncrementSyncAttempts(ctx context.Context, id int64) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		UPDATE sync_queue SET attempts = attempts + 1, updated_at = ? WHERE id = ?
	`, nowRFC3339(), id)
	if err != nil {
		return fmt.Errorf("increment sync attempts: %w", err)
	}
	return nil
}
