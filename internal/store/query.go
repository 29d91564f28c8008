package store

import (
	"context"
	"time"

	"github.com/starford/fathom/internal/models"
)

// Substring filters hand the caller's text to LIKE unescaped: '%' and '_'
// act as wildcards, and matching follows SQLite's LIKE (ASCII
// case-insensitive).

// FilterByTopic returns notes whose topic contains s, newest first.
// Matching is SQLite LIKE: ASCII letters match regardless of case ("TLS"
// finds "tls 1.3"), and '%' and '_' in s are wildcards.
func (db *DB) FilterByTopic(ctx context.Context, s string) ([]*models.Note, error) {
	return db.queryNotes(ctx, "filter by topic", `
		SELECT `+selectNoteFields+` FROM notes n
		WHERE n.topic LIKE '%' || ? || '%'
		ORDER BY n.created_at DESC, n.id DESC`, s)
}

// FilterByTag returns notes whose serialized tag list contains s, newest first.
// Like FilterByTopic it ignores ASCII case and treats '%' and '_' as wildcards.
func (db *DB) FilterByTag(ctx context.Context, s string) ([]*models.Note, error) {
	return db.queryNotes(ctx, "filter by tag", `
		SELECT `+selectNoteFields+` FROM notes n
		WHERE n.tags LIKE '%' || ? || '%'
		ORDER BY n.created_at DESC, n.id DESC`, s)
}

// FilterBySessionType returns notes of exactly session type t, newest first.
func (db *DB) FilterBySessionType(ctx context.Context, t models.SessionType) ([]*models.Note, error) {
	if _, err := models.ParseSessionType(string(t)); err != nil {
		return nil, err
	}
	return db.queryNotes(ctx, "filter by session type", `
		SELECT `+selectNoteFields+` FROM notes n
		WHERE n.session_type = ?
		ORDER BY n.created_at DESC, n.id DESC`, string(t))
}

// FilterSince returns notes created at or after since, newest first.
func (db *DB) FilterSince(ctx context.Context, since time.Time) ([]*models.Note, error) {
	return db.queryNotes(ctx, "filter since", `
		SELECT `+selectNoteFields+` FROM notes n
		WHERE n.created_at >= ?
		ORDER BY n.created_at DESC, n.id DESC`, since.UTC().Format(TimeLayout))
}
