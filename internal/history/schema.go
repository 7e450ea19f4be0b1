// Package history records synchronization runs in SQLite.
package history

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME NOT NULL,
	workspaces  INTEGER NOT NULL DEFAULT 0,
	copied      INTEGER NOT NULL DEFAULT 0,
	rebuilt     INTEGER NOT NULL DEFAULT 0,
	dry_run     INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS copies (
	run_id    INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	workspace TEXT NOT NULL,
	path      TEXT NOT NULL,
	size      INTEGER NOT NULL DEFAULT 0,
	mod_time  DATETIME NOT NULL,
	checksum  TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_copies_run ON copies(run_id);
CREATE INDEX IF NOT EXISTS idx_copies_workspace ON copies(workspace);
`

// DB wraps a sql.DB with history-specific operations.
type DB struct {
	conn   *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the SQLite database and applies the schema.
// A nil logger falls back to slog.Default().
func Open(dsn string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("history: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("history: apply schema: %w", err)
	}
	return &DB{conn: conn, logger: logger}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
