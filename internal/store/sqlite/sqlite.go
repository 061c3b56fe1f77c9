// Package sqlite backs the invite, cursor, and thread stores with a local
// SQLite database. Used in standalone mode; schema is created on open.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/nextlevelbuilder/threadclaw/internal/store"
)

// DB wraps the sqlite handle shared by all stores.
type DB struct {
	db *sql.DB
}

// Open opens (creating if needed) the sqlite database at path.
// An empty path defaults to ~/.threadclaw/threadclaw.db.
func Open(ctx context.Context, path string) (*DB, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		path = filepath.Join(home, ".threadclaw", "threadclaw.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	d := &DB{db: db}
	if err := d.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return d, nil
}

func (d *DB) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS invitations (
		thread_id        TEXT NOT NULL,
		agent_name       TEXT NOT NULL,
		room_id          TEXT NOT NULL,
		invited_by       TEXT NOT NULL DEFAULT '',
		created_at       DATETIME NOT NULL,
		expires_at       DATETIME,
		last_activity_at DATETIME NOT NULL,
		PRIMARY KEY (thread_id, agent_name)
	);

	CREATE TABLE IF NOT EXISTS cursors (
		agent_name      TEXT PRIMARY KEY,
		last_seq        INTEGER NOT NULL DEFAULT 0,
		last_message_id TEXT NOT NULL DEFAULT '',
		updated_at      DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS threads (
		thread_id        TEXT PRIMARY KEY,
		room_id          TEXT NOT NULL,
		participants     TEXT NOT NULL DEFAULT '[]',
		last_activity_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_invitations_expires ON invitations(expires_at);
	`
	_, err := d.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database handle.
func (d *DB) Close() error { return d.db.Close() }

// Stores returns the store container backed by this database.
func (d *DB) Stores() *store.Stores {
	return store.NewStores(
		&inviteStore{db: d.db},
		&cursorStore{db: d.db},
		&threadStore{db: d.db},
		d.Close,
	)
}
