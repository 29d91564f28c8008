package store

import (
	"context"
	"time"

	"github.com/starford/fathom/internal/models"
)

// NoteStore is the surface of the record store. It has no update or delete:
// notes are append-only for callers. Consumers should depend on this
// interface rather than the concrete *DB type.
type NoteStore interface {
	Initialize(ctx context.Context) error
	Create(ctx context.Context, n *models.Note) (int64, error)
	Get(ctx context.Context, id int64) (*models.Note, error)
	List(ctx context.Context, limit int) ([]*models.Note, error)
	All(ctx context.Context) ([]*models.Note, error)
	FilterByTopic(ctx context.Context, s string) ([]*models.Note, error)
	FilterByTag(ctx context.Context, s string) ([]*models.Note, error)
	FilterBySessionType(ctx context.Context, t models.SessionType) ([]*models.Note, error)
	FilterSince(ctx context.Context, since time.Time) ([]*models.Note, error)
	Search(ctx context.Context, term string, limit int) ([]*models.Note, error)
	Topics(ctx context.Context) ([]models.TopicCount, error)
	Tags(ctx context.Context) ([]models.TagCount, error)
	Export(ctx context.Context, format ExportFormat) (string, error)
	VerifyIndex(ctx context.Context) (IndexReport, error)
	Reindex(ctx context.Context) (int, error)
	Close() error
}

// Verify *DB satisfies NoteStore at compile time.
var _ NoteStore = (*DB)(nil)
