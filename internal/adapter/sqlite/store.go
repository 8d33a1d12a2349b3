// Package sqlite persists user preferences as JSON values in a SQLite
// key/value table.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

const schemaPreferences = `
CREATE TABLE IF NOT EXISTS preferences (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

const (
	upsertPreference = `INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	selectPreference = `SELECT value FROM preferences WHERE key = ?`
	deleteAll        = `DELETE FROM preferences`
)

// PreferenceStore is a JSON key/value store backed by SQLite.
type PreferenceStore struct {
	db    *sql.DB
	clock clockwork.Clock
}

// Open opens or creates the database at path and ensures the schema exists.
func Open(path string, clock clockwork.Clock) (*PreferenceStore, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// One writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return NewPreferenceStore(db, clock), nil
}

// NewPreferenceStore wraps an existing database handle. The schema must
// already exist.
func NewPreferenceStore(db *sql.DB, clock clockwork.Clock) *PreferenceStore {
	return &PreferenceStore{db: db, clock: clock}
}

func ensureSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(schemaPreferences); err != nil {
		return fmt.Errorf("apply preferences schema: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}
	return nil
}

// Save stores value under key as JSON, replacing any previous value.
func (s *PreferenceStore) Save(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode preference %s: %w", key, err)
	}
	if _, err := s.db.ExecContext(ctx, upsertPreference, key, string(raw), s.clock.Now().UTC()); err != nil {
		return fmt.Errorf("save preference %s: %w", key, err)
	}
	return nil
}

// Load decodes the value under key into dst. It returns false without an
// error when the key is absent. A stored value that is not valid JSON for
// dst is an error.
func (s *PreferenceStore) Load(ctx context.Context, key string, dst any) (bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, selectPreference, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load preference %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("decode preference %s: %w", key, err)
	}
	return true, nil
}

// Clear deletes every preference.
func (s *PreferenceStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, deleteAll); err != nil {
		return fmt.Errorf("clear preferences: %w", err)
	}
	return nil
}

// Ping reports whether the database is reachable.
func (s *PreferenceStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *PreferenceStore) Close() error {
	return s.db.Close()
}
