// Package history keeps a SQLite log of sync runs and the per-issue
// actions each run took.
package history

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
	id             TEXT PRIMARY KEY,
	repo           TEXT NOT NULL,
	provider       TEXT NOT NULL DEFAULT '',
	document       TEXT NOT NULL DEFAULT '',
	started_at     DATETIME NOT NULL,
	finished_at    DATETIME NOT NULL,
	dry_run        INTEGER NOT NULL DEFAULT 0,
	written        INTEGER NOT NULL DEFAULT 0,
	backup         TEXT NOT NULL DEFAULT '',
	total_issues   INTEGER NOT NULL DEFAULT 0,
	total_headings INTEGER NOT NULL DEFAULT 0,
	added          INTEGER NOT NULL DEFAULT 0,
	updated        INTEGER NOT NULL DEFAULT 0,
	unchanged      INTEGER NOT NULL DEFAULT 0,
	preserved      INTEGER NOT NULL DEFAULT 0,
	warnings       TEXT NOT NULL DEFAULT '[]',
	error          TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS run_entries (
	run_id  TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq     INTEGER NOT NULL,
	number  INTEGER NOT NULL,
	title   TEXT NOT NULL DEFAULT '',
	action  TEXT NOT NULL,
	details TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
`

// DB wraps a sql.DB with history-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
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
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
