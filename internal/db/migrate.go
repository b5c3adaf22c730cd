// Package db provides database schema migration management.
package db

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"
)

// Migration represents one versioned schema step.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// migrations are applied in order inside a transaction each. The schema is
// embedded rather than shipped as files; the store runs on end-user devices
// where a migrations directory is one more thing that can go missing.
var migrations = []Migration{
	{
		Version:     1,
		Description: "pending operations queue",
		SQL: `
		CREATE TABLE IF NOT EXISTS pending_operations (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			kind TEXT NOT NULL CHECK(kind IN ('create','update','delete')),
			collection TEXT NOT NULL CHECK(length(collection) > 0),
			document_id TEXT NOT NULL CHECK(length(document_id) > 0),
			payload TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending','in_flight','failed')),
			attempts INTEGER NOT NULL DEFAULT 0,
			next_attempt_at INTEGER NOT NULL DEFAULT 0,
			last_error TEXT NOT NULL DEFAULT '',
			enqueued_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_pending_operations_status
			ON pending_operations(status, seq);
		`,
	},
	{
		Version:     2,
		Description: "cached user profile",
		SQL: `
		CREATE TABLE IF NOT EXISTS cached_user (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			role TEXT NOT NULL,
			branch_id TEXT NOT NULL DEFAULT '',
			business_id TEXT NOT NULL DEFAULT '',
			is_active INTEGER NOT NULL DEFAULT 1,
			avatar_url TEXT NOT NULL DEFAULT '',
			cached_at INTEGER NOT NULL
		);
		`,
	},
}

// Migrator handles database schema migrations.
type Migrator struct {
	db *sql.DB
}

// NewMigrator creates a new Migrator instance.
func NewMigrator(db *sql.DB) *Migrator {
	return &Migrator{db: db}
}

// Initialize creates the schema_migrations table if it doesn't exist.
func (m *Migrator) Initialize() error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY CHECK(version > 0),
		applied_at INTEGER NOT NULL CHECK(applied_at > 0),
		description TEXT NOT NULL CHECK(length(description) > 0),
		checksum TEXT NOT NULL CHECK(length(checksum) = 64)
	);`
	_, err := m.db.Exec(query)
	return err
}

// CurrentVersion returns the current schema version.
func (m *Migrator) CurrentVersion() (int, error) {
	var version int
	err := m.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	return version, err
}

// Up applies all pending migrations in version order.
func (m *Migrator) Up() error {
	current, err := m.CurrentVersion()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, mig := range migrations {
		if mig.Version <= current {
			continue
		}
		if err := m.apply(mig); err != nil {
			return fmt.Errorf("migration V%d (%s) failed: %w", mig.Version, mig.Description, err)
		}
	}
	return nil
}

func (m *Migrator) apply(mig Migration) error {
	tx, err := m.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(mig.SQL); err != nil {
		return err
	}

	sum := sha256.Sum256([]byte(mig.SQL))
	_, err = tx.Exec(
		`INSERT INTO schema_migrations (version, applied_at, description, checksum) VALUES (?, ?, ?, ?)`,
		mig.Version, time.Now().Unix(), mig.Description, hex.EncodeToString(sum[:]),
	)
	if err != nil {
		return err
	}
	return tx.Commit()
}
