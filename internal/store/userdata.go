package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/devonagro/herdsync/internal/types"
)

// SaveUserData upserts the cached user snapshot keyed by user identifier.
func (s *Store) SaveUserData(ctx context.Context, user *types.UserData) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	now := nowRFC3339()
	lastSync := user.LastSync.UTC().Format(time.RFC3339)

	var id int64
	err = db.QueryRowContext(ctx, `SELECT id FROM user_data WHERE userx_id = ?`, user.UserID).Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		_, err = db.ExecContext(ctx, `
			INSERT INTO user_data (userx_id, name, email, username, data, last_sync, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, user.UserID, user.Name, user.Email, user.Username, user.Data, lastSync, now, now)
	case err == nil:
		_, err = db.ExecContext(ctx, `
			UPDATE user_data SET name = ?, email = ?, username = ?, data = ?, last_sync = ?, updated_at = ?
			WHERE userx_id = ?
		`, user.Name, user.Email, user.Username, user.Data, lastSync, now, user.UserID)
	}
	if err != nil {
		return fmt.Errorf("save user data: %w", err)
	}
	return nil
}

// GetUserData returns the cached snapshot for one user, or ErrNotFound.
func (s *Store) GetUserData(ctx context.Context, userID int64) (*types.UserData, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	var user types.UserData
	var lastSync string
	err = db.QueryRowContext(ctx, `
		SELECT userx_id, name, email, username, data, last_sync FROM user_data WHERE userx_id = ?
	`, userID).Scan(&user.UserID, &user.Name, &user.Email, &user.Username, &user.Data, &lastSync)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user data: %w", err)
	}
	user.LastSync = parseTime(lastSync)
	return &user, nil
}

// ClearUserData removes the cached snapshot for one user.
func (s *Store) ClearUserData(ctx context.Context, userID int64) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM user_data WHERE userx_id = ?`, userID); err != nil {
		return fmt.Errorf("clear user data: %w", err)
	}
	return nil
}
