package store

import (
	"database/sql"
	"fmt"

	"github.com/devonagro/herdsync/migrations"
	"github.com/pressly/goose/v3"
)

// applySchema creates the data tables from the embedded SQL files using goose.
// It is a no-op when the schema is already present.
func applySchema(db *sql.DB) error {
	// Disable goose's default logging to avoid stdout noise
	goose.SetLogger(goose.NopLogger())

	goose.SetBaseFS(migrations.FS)

	if err := goose.SetDialect("sqlite"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}
