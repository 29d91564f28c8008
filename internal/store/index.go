package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/starford/fathom/internal/models"
)

// Search index synchronization. Every index row is keyed by its note id
// (rowid) and carries the note's text fields verbatim. These helpers take the
// caller's transaction so that a row and its index entry commit together.

func indexInsert(ctx context.Context, tx *sql.Tx, n *models.Note) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO notes_fts (rowid, topic, query, summary, raw_findings, tags, session_type)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.Topic, n.Query, n.Summary,
		nullable(n.RawFindings), nullable(n.TagString()), nullable(string(n.SessionType)))
	if err != nil {
		return fmt.Errorf("index insert %d: %w", n.ID, err)
	}
	return nil
}

// indexTombstone removes the entry for id. It must run before the owning
// note row changes or disappears.
func indexTombstone(ctx context.Context, tx *sql.Tx, id int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM notes_fts WHERE rowid = ?`, id); err != nil {
		return fmt.Errorf("index tombstone %d: %w", id, err)
	}
	return nil
}

// indexReplace tombstones the current entry for n.ID and inserts n's content.
// Any operation that rewrites a note row has to go through here inside the
// same transaction.
func indexReplace(ctx context.Context, tx *sql.Tx, n *models.Note) error {
	if err := indexTombstone(ctx, tx, n.ID); err != nil {
		return err
	}
	return indexInsert(ctx, tx, n)
}

// IndexReport lists the ways the search index diverges from the notes table.
type IndexReport struct {
	Notes    int     `json:"notes"`
	Entries  int     `json:"entries"`
	Missing  []int64 `json:"missing"`  // notes without an index entry
	Orphans  []int64 `json:"orphans"`  // index entries without a note
	Mismatch []int64 `json:"mismatch"` // entries whose text differs from the note
}

// Consistent reports whether every note has exactly one matching entry.
func (r IndexReport) Consistent() bool {
	return len(r.Missing) == 0 && len(r.Orphans) == 0 && len(r.Mismatch) == 0 && r.Notes == r.Entries
}

// VerifyIndex compares the search index with the notes table.
func (db *DB) VerifyIndex(ctx context.Context) (IndexReport, error) {
	rep := IndexReport{Missing: []int64{}, Orphans: []int64{}, Mismatch: []int64{}}

	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM notes`).Scan(&rep.Notes); err != nil {
		return rep, storageErr("verify index: count notes", err)
	}
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM notes_fts`).Scan(&rep.Entries); err != nil {
		return rep, storageErr("verify index: count entries", err)
	}

	var err error
	rep.Missing, err = db.ids(ctx, `
		SELECT n.id FROM notes n
		WHERE NOT EXISTS (SELECT 1 FROM notes_fts f WHERE f.rowid = n.id)
		ORDER BY n.id`)
	if err != nil {
		return rep, storageErr("verify index: missing", err)
	}
	rep.Orphans, err = db.ids(ctx, `
		SELECT f.rowid FROM notes_fts f
		WHERE NOT EXISTS (SELECT 1 FROM notes n WHERE n.id = f.rowid)
		ORDER BY f.rowid`)
	if err != nil {
		return rep, storageErr("verify index: orphans", err)
	}
	rep.Mismatch, err = db.ids(ctx, `
		SELECT n.id FROM notes n JOIN notes_fts f ON f.rowid = n.id
		WHERE f.topic IS NOT n.topic
		   OR f.query IS NOT n.query
		   OR f.summary IS NOT n.summary
		   OR f.raw_findings IS NOT n.raw_findings
		   OR f.tags IS NOT n.tags
		   OR f.session_type IS NOT n.session_type
		ORDER BY n.id`)
	if err != nil {
		return rep, storageErr("verify index: mismatch", err)
	}
	return rep, nil
}

// Reindex rebuilds every index entry from the notes table in one
// transaction and drops entries whose note no longer exists. It returns the
// number of notes indexed.
func (db *DB) Reindex(ctx context.Context) (int, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, storageErr("reindex: begin tx", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	rows, err := tx.QueryContext(ctx, `SELECT `+selectNoteFields+` FROM notes n ORDER BY n.id`)
	if err != nil {
		return 0, storageErr("reindex: load notes", err)
	}
	notes, err := scanNotes(rows)
	if err != nil {
		return 0, storageErr("reindex: scan notes", err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM notes_fts
		WHERE rowid NOT IN (SELECT id FROM notes)
	`); err != nil {
		return 0, storageErr("reindex: drop orphans", err)
	}
	for _, n := range notes {
		if err := indexReplace(ctx, tx, n); err != nil {
			return 0, storageErr("reindex", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, storageErr("reindex: commit", err)
	}
	return len(notes), nil
}

func (db *DB) ids(ctx context.Context, query string) ([]int64, error) {
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
