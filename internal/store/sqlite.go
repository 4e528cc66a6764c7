// Package store implements the durable local cache backing the offline-first
// movement recorder: movements with their detail and media children, cached
// reference data, the user snapshot and a generic outbound sync queue.
//
// The store owns a single SQLite connection; every other component goes
// through its method contract and never touches the database directly.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/devonagro/herdsync/internal/types"
	_ "modernc.org/sqlite"
)

// schemaVersion is compared against the schema_version row at open time.
// Any mismatch wipes and rebuilds every data table; there is no incremental
// migration path. Unsynced movements do not survive the wipe.
const schemaVersion = 3

// Store is the SQLite-backed local database. The zero value is not usable;
// create one with New and call Open before any other method (methods open
// lazily as a convenience).
type Store struct {
	path string

	mu       sync.Mutex
	db       *sql.DB
	inflight chan struct{}
	openErr  error
}

// New creates a Store for the database file at path. No I/O happens until
// Open is called.
func New(path string) *Store {
	return &Store{path: path}
}

// Open opens (creating if absent) the database, applies the destructive
// version gate and the schema. It is idempotent: callers arriving while an
// initialization is in flight wait for that attempt instead of racing to
// open the database twice, and calls after a successful open return
// immediately. A failed attempt may be retried.
func (s *Store) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.db != nil {
		s.mu.Unlock()
		return nil
	}
	if s.inflight != nil {
		ch := s.inflight
		s.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.db != nil {
			return nil
		}
		return s.openErr
	}

	ch := make(chan struct{})
	s.inflight = ch
	s.mu.Unlock()

	db, err := openDatabase(s.path)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.openErr = fmt.Errorf("%w: %v", ErrInit, err)
	} else {
		s.db = db
		s.openErr = nil
	}
	s.inflight = nil
	close(ch)
	return s.openErr
}

func openDatabase(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single connection: SQLite serializes writers naturally and the
	// store's transactions must never interleave on separate connections.
	db.SetMaxOpenConns(1)

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	if err := migrateDatabase(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// enablePragmas sets SQLite pragmas for performance and safety.
func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// migrateDatabase applies the destructive version gate: when the recorded
// schema version differs from schemaVersion (including when none is recorded
// yet) every data table is dropped and rebuilt, then the version row is
// rewritten. The schema_version table itself survives the wipe.
func migrateDatabase(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			version INTEGER NOT NULL,
			updated_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create version table: %w", err)
	}

	var current int
	err = db.QueryRow(`SELECT version FROM schema_version WHERE id = 1`).Scan(&current)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("read schema version: %w", err)
	}

	if current != schemaVersion {
		slog.Info("schema version mismatch, rebuilding database",
			"have", current,
			"want", schemaVersion,
		)
		if err := dropAllTables(db); err != nil {
			return err
		}
	}

	if err := applySchema(db); err != nil {
		return err
	}

	if current != schemaVersion {
		now := time.Now().UTC().Format(time.RFC3339)
		if current == 0 {
			_, err = db.Exec(
				`INSERT INTO schema_version (id, version, updated_at) VALUES (1, ?, ?)`,
				schemaVersion, now,
			)
		} else {
			_, err = db.Exec(
				`UPDATE schema_version SET version = ?, updated_at = ? WHERE id = 1`,
				schemaVersion, now,
			)
		}
		if err != nil {
			return fmt.Errorf("write schema version: %w", err)
		}
	}

	return nil
}

// dropAllTables removes every data table plus goose's bookkeeping so the
// schema can be recreated from scratch. schema_version is kept.
func dropAllTables(db *sql.DB) error {
	tables := []string{
		"movement_medias",
		"movement_details",
		"movements",
		"user_data",
		"sync_queue",
		"reference_data",
		"goose_db_version",
	}
	for _, table := range tables {
		if _, err := db.Exec("DROP TABLE IF EXISTS " + table); err != nil {
			return fmt.Errorf("drop table %s: %w", table, err)
		}
	}
	return nil
}

// conn returns the open database handle, opening the store lazily when a
// caller skipped Open.
func (s *Store) conn(ctx context.Context) (*sql.DB, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db != nil {
		return db, nil
	}
	if err := s.Open(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Stats returns aggregate movement counts.
func (s *Store) Stats(ctx context.Context) (types.Stats, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return types.Stats{}, err
	}

	var stats types.Stats
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM movements`).Scan(&stats.TotalMovements); err != nil {
		return types.Stats{}, fmt.Errorf("count movements: %w", err)
	}
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM movements WHERE synced = 0`).Scan(&stats.PendingSync); err != nil {
		return types.Stats{}, fmt.Errorf("count pending movements: %w", err)
	}
	return stats, nil
}

// StatsByFarm returns aggregate movement counts scoped to one farm.
func (s *Store) StatsByFarm(ctx context.Context, farmID int64) (types.Stats, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return types.Stats{}, err
	}

	var stats types.Stats
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM movements WHERE farm_id = ?`, farmID).Scan(&stats.TotalMovements); err != nil {
		return types.Stats{}, fmt.Errorf("count movements: %w", err)
	}
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM movements WHERE farm_id = ? AND synced = 0`, farmID).Scan(&stats.PendingSync); err != nil {
		return types.Stats{}, fmt.Errorf("count pending movements: %w", err)
	}
	return stats, nil
}

// ClearAllData deletes every row from every data table. Used by logout and
// debug reset flows.
func (s *Store) ClearAllData(ctx context.Context) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	tables := []string{
		"movement_medias",
		"movement_details",
		"movements",
		"user_data",
		"sync_queue",
		"reference_data",
	}
	for _, table := range tables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear table %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
