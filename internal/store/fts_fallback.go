//go:build !sqlite_fts5

package store

import (
	"context"
	"strings"

	"github.com/starford/fathom/internal/models"
)

// FTS5 not compiled in: the index is a plain table with the same columns and
// rowids, so synchronization and verification behave identically. Search
// falls back to LIKE over every indexed column: results come newest first
// rather than by rank, and no term is rejected with apperr.ErrQuerySyntax.
// Build with -tags sqlite_fts5 for ranked full-text search.

// FullTextSearch reports whether search runs on FTS5.
const FullTextSearch = false
const ftsSchemaSQL = `
CREATE TABLE IF NOT EXISTS notes_fts (
	id           INTEGER PRIMARY KEY,
	topic        TEXT,
	query        TEXT,
	summary      TEXT,
	raw_findings TEXT,
	tags         TEXT,
	session_type TEXT
);
`

// Search performs a LIKE-based search, newest first (fallback when FTS5 is
// not compiled in). limit <= 0 returns every match.
func (db *DB) Search(ctx context.Context, term string, limit int) ([]*models.Note, error) {
	if limit <= 0 {
		limit = -1
	}
	term = strings.TrimSpace(term)
	if term == "" {
		return []*models.Note{}, nil
	}
	like := "%" + term + "%"
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+selectNoteFields+`
		FROM notes_fts f
		JOIN notes n ON n.id = f.rowid
		WHERE f.topic LIKE ?1
		   OR f.query LIKE ?1
		   OR f.summary LIKE ?1
		   OR f.raw_findings LIKE ?1
		   OR f.tags LIKE ?1
		   OR f.session_type LIKE ?1
		ORDER BY n.created_at DESC, n.id DESC
		LIMIT ?2
	`, like, limit)
	if err != nil {
		return nil, searchErr(err)
	}
	notes, err := scanNotes(rows)
	if err != nil {
		return nil, searchErr(err)
	}
	return notes, nil
}
