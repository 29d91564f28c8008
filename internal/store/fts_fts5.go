//go:build sqlite_fts5

package store

import (
	"context"
	"strings"

	"github.com/starford/fathom/internal/models"
)

// FullTextSearch reports whether search runs on FTS5.
const FullTextSearch = true

const ftsSchemaSQL = `
CREATE VIRTUAL TABLE IF NOT EXISTS notes_fts USING fts5(
	topic,
	query,
	summary,
	raw_findings,
	tags,
	session_type,
	tokenize = 'unicode61 remove_diacritics 2'
);
`

// Search runs an FTS5 MATCH and returns the owning notes, best rank first.
// limit <= 0 returns every match.
func (db *DB) Search(ctx context.Context, term string, limit int) ([]*models.Note, error) {
	if limit <= 0 {
		limit = -1
	}
	if strings.TrimSpace(term) == "" {
		return []*models.Note{}, nil
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+selectNoteFields+`
		FROM notes_fts f
		JOIN notes n ON n.id = f.rowid
		WHERE notes_fts MATCH ?
		ORDER BY f.rank
		LIMIT ?
	`, term, limit)
	if err != nil {
		return nil, searchErr(err)
	}
	notes, err := scanNotes(rows)
	if err != nil {
		return nil, searchErr(err)
	}
	return notes, nil
}
