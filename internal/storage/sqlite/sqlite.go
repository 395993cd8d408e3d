// Package sqlite persists the session state in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/parleyhq/parley/internal/session"
	"github.com/parleyhq/parley/internal/storage"

	_ "modernc.org/sqlite" // SQLite driver registration
)

// defaultBusyTimeout is the SQLite busy timeout in milliseconds.
const defaultBusyTimeout = 5000

// schema holds the single-row state table. The row id is pinned to 1 so
// Save is a plain upsert.
const schema = `
CREATE TABLE IF NOT EXISTS chat_state (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	version    REAL NOT NULL,
	payload    TEXT NOT NULL,
	updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
);`

// Store is a storage.Store backed by SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) a SQLite database at the given path.
// The database uses WAL mode, a 5 s busy timeout, and a single connection
// (SQLite serialises writes).
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("sqlite: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)

	ctx := context.Background()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", defaultBusyTimeout)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: set busy_timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migrate schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Load returns the persisted state, or storage.ErrNotFound.
func (s *Store) Load(ctx context.Context) (session.State, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, "SELECT payload FROM chat_state WHERE id = 1").Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return session.State{}, storage.ErrNotFound
	}
	if err != nil {
		return session.State{}, fmt.Errorf("sqlite: load state: %w", err)
	}

	var state session.State
	if err := json.Unmarshal([]byte(payload), &state); err != nil {
		return session.State{}, fmt.Errorf("sqlite: decode state: %w", err)
	}
	return state, nil
}

// Save replaces the persisted state.
func (s *Store) Save(ctx context.Context, state session.State) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("sqlite: encode state: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chat_state (id, version, payload, updated_at)
		VALUES (1, ?, ?, strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		ON CONFLICT (id) DO UPDATE SET
			version = excluded.version,
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		state.Version, string(payload))
	if err != nil {
		return fmt.Errorf("sqlite: save state: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Compile-time interface check.
var _ storage.Store = (*Store)(nil)
