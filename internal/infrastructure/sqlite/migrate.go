package sqlite

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const createMigrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version    INTEGER PRIMARY KEY,
	identifier TEXT NOT NULL,
	applied_at INTEGER NOT NULL
)`

// migrateUp applies every embedded up migration newer than the recorded
// schema version, each in its own transaction. Returns how many ran.
func migrateUp(conn *sql.DB) (int, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return 0, fmt.Errorf("failed to load migrations: %w", err)
	}
	defer func() { _ = src.Close() }()

	if _, err := conn.Exec(createMigrationsTable); err != nil {
		return 0, fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	current, err := schemaVersion(conn)
	if err != nil {
		return 0, err
	}

	applied := 0
	version, err := src.First()
	for err == nil {
		if version > current {
			if err := applyMigration(conn, src.ReadUp, version); err != nil {
				return applied, err
			}
			applied++
		}
		version, err = src.Next(version)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return applied, fmt.Errorf("failed to walk migrations: %w", err)
	}
	return applied, nil
}

// schemaVersion returns the highest applied migration version, or 0.
func schemaVersion(conn *sql.DB) (uint, error) {
	var version sql.NullInt64
	if err := conn.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	if !version.Valid {
		return 0, nil
	}
	return uint(version.Int64), nil
}

func applyMigration(conn *sql.DB, readUp func(uint) (io.ReadCloser, string, error), version uint) error {
	r, identifier, err := readUp(version)
	if err != nil {
		return fmt.Errorf("failed to read migration %d: %w", version, err)
	}
	body, err := io.ReadAll(r)
	_ = r.Close()
	if err != nil {
		return fmt.Errorf("failed to read migration %d: %w", version, err)
	}

	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin migration %d: %w", version, err)
	}
	if _, err := tx.Exec(string(body)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("migration %d (%s) failed: %w", version, identifier, err)
	}
	if _, err := tx.Exec(
		"INSERT INTO schema_migrations (version, identifier, applied_at) VALUES (?, ?, ?)",
		version, identifier, time.Now().Unix(),
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to record migration %d: %w", version, err)
	}
	return tx.Commit()
}
