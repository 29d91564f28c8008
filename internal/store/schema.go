// Package store is the SQLite-backed record store for research notes and the
// full-text index derived from it. The two are written in the same
// transaction; the index is never touched outside this package.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// TimeLayout is the storage format of created_at/updated_at. It is fixed
// width so that lexical order equals chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	topic        TEXT NOT NULL,
	query        TEXT NOT NULL,
	summary      TEXT NOT NULL,
	raw_findings TEXT,
	sources      TEXT,
	tags         TEXT,
	confidence   TEXT NOT NULL DEFAULT 'medium'
	             CHECK (confidence IN ('low', 'medium', 'high')),
	session_dir  TEXT,
	session_type TEXT
	             CHECK (session_type IS NULL OR session_type IN ('deep-research', 'quick-lookup', 'spike')),
	created_at   TEXT NOT NULL,
	updated_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notes_topic ON notes(topic);
CREATE INDEX IF NOT EXISTS idx_notes_created ON notes(created_at);
`

// DB wraps a sql.DB with record and index operations.
type DB struct {
	conn *sql.DB
	now  func() time.Time
}

// Option configures a DB.
type Option func(*DB)

// WithClock overrides the time source used for created_at/updated_at.
func WithClock(now func() time.Time) Option {
	return func(db *DB) {
		db.now = now
	}
}

// Open opens (or creates) the SQLite database and initializes the schema.
//
// WAL lets readers run beside a writer; _txlock=immediate takes the write
// lock at BEGIN so concurrent creators serialize as whole transactions.
func Open(dsn string, opts ...Option) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	db := &DB{conn: conn, now: time.Now}
	for _, opt := range opts {
		opt(db)
	}

	if err := db.Initialize(context.Background()); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Initialize creates the notes table, its indexes, and the search index if
// they do not exist. It is safe to call any number of times.
func (db *DB) Initialize(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, coreSchemaSQL); err != nil {
		return storageErr("apply core schema", err)
	}
	if _, err := db.conn.ExecContext(ctx, ftsSchemaSQL); err != nil {
		return storageErr("apply fts schema", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) timestamp() string {
	return db.now().UTC().Format(TimeLayout)
}
