package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/starford/fathom/internal/apperr"
	"github.com/starford/fathom/internal/models"
)

// DefaultListLimit bounds List when the caller passes no limit.
const DefaultListLimit = 20

// selectNoteFields is the column list for queries aliasing notes as n.
const selectNoteFields = `n.id, n.topic, n.query, n.summary, n.raw_findings, n.sources, n.tags,
	n.confidence, n.session_dir, n.session_type, n.created_at, n.updated_at`

// Create validates n, assigns its id and timestamps, and writes the row and
// its search index entry in one transaction. n is updated only after commit.
func (db *DB) Create(ctx context.Context, n *models.Note) (int64, error) {
	row := *n
	row.Tags = trimTags(n.Tags)
	if row.Confidence == "" {
		row.Confidence = models.ConfidenceMedium
	}
	if err := row.Validate(); err != nil {
		return 0, fmt.Errorf("store: create note: %w", err)
	}
	ts := db.timestamp()
	row.CreatedAt = ts
	row.UpdatedAt = ts

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, storageErr("create note: begin tx", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	res, err := tx.ExecContext(ctx, `
		INSERT INTO notes (topic, query, summary, raw_findings, sources, tags,
		                   confidence, session_dir, session_type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, row.Topic, row.Query, row.Summary,
		nullable(row.RawFindings), nullable(row.Sources), nullable(row.TagString()),
		string(row.Confidence), nullable(row.SessionDir), nullable(string(row.SessionType)),
		row.CreatedAt, row.UpdatedAt)
	if err != nil {
		return 0, storageErr("create note", err)
	}
	row.ID, err = res.LastInsertId()
	if err != nil {
		return 0, storageErr("create note: last insert id", err)
	}

	if err := indexInsert(ctx, tx, &row); err != nil {
		return 0, storageErr("create note", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, storageErr("create note: commit", err)
	}

	*n = row
	return row.ID, nil
}

// Get returns the note with the given id, or apperr.ErrNotFound.
func (db *DB) Get(ctx context.Context, id int64) (*models.Note, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+selectNoteFields+` FROM notes n WHERE n.id = ?`, id)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: note %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("get note", err)
	}
	return n, nil
}

// List returns the newest notes, at most limit of them.
func (db *DB) List(ctx context.Context, limit int) ([]*models.Note, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return db.queryNotes(ctx, "list notes", `
		SELECT `+selectNoteFields+` FROM notes n
		ORDER BY n.created_at DESC, n.id DESC
		LIMIT ?`, limit)
}

// All returns every note, newest first.
func (db *DB) All(ctx context.Context) ([]*models.Note, error) {
	return db.queryNotes(ctx, "all notes", `
		SELECT `+selectNoteFields+` FROM notes n
		ORDER BY n.created_at DESC, n.id DESC`)
}

func (db *DB) queryNotes(ctx context.Context, op, query string, args ...any) ([]*models.Note, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	notes, err := scanNotes(rows)
	if err != nil {
		return nil, storageErr(op, err)
	}
	return notes, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(s rowScanner) (*models.Note, error) {
	var (
		n                                           models.Note
		raw, sources, tags, sessionDir, sessionType sql.NullString
		confidence                                  string
	)
	err := s.Scan(&n.ID, &n.Topic, &n.Query, &n.Summary, &raw, &sources, &tags,
		&confidence, &sessionDir, &sessionType, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, err
	}
	n.RawFindings = raw.String
	n.Sources = sources.String
	n.Tags = models.SplitTags(tags.String)
	n.Confidence = models.Confidence(confidence)
	n.SessionDir = sessionDir.String
	n.SessionType = models.SessionType(sessionType.String)
	return &n, nil
}

// scanNotes drains and closes rows.
func scanNotes(rows *sql.Rows) ([]*models.Note, error) {
	defer rows.Close()
	out := []*models.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func trimTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, strings.TrimSpace(t))
	}
	return out
}

// nullable stores empty optional text as NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
