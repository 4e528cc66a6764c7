package store

import (
	"context"
	"database/sql"
	"fmt"
)

// SaveReferenceData upserts the cached blob for one data-set type. The blob
// is replaced whole, never merged.
func (s *Store) SaveReferenceData(ctx context.Context, dataType string, data []byte) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	now := nowRFC3339()

	var id int64
	err = db.QueryRowContext(ctx, `SELECT id FROM reference_data WHERE type = ?`, dataType).Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		_, err = db.ExecContext(ctx, `
			INSERT INTO reference_data (type, data, last_sync, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
		`, dataType, string(data), now, now, now)
	case err == nil:
		_, err = db.ExecContext(ctx, `
			UPDATE reference_data SET data = ?, last_sync = ?, updated_at = ? WHERE type = ?
		`, string(data), now, now, dataType)
	}
	if err != nil {
		return fmt.Errorf("save reference data %s: %w", dataType, err)
	}
	return nil
}

// GetReferenceData returns the cached blob for one data-set type, or nil
// when nothing is cached.
func (s *Store) GetReferenceData(ctx context.Context, dataType string) ([]byte, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	var data string
	err = db.QueryRowContext(ctx, `SELECT data FROM reference_data WHERE type = ?`, dataType).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reference data %s: %w", dataType, err)
	}
	return []byte(data), nil
}

// ClearReferenceData wipes every cached reference row.
func (s *Store) ClearReferenceData(ctx context.Context) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM reference_data`); err != nil {
		return fmt.Errorf("clear reference data: %w", err)
	}
	return nil
}
