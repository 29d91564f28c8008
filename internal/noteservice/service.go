// Package noteservice coordinates the record store, the session manager and
// the Markdown mirror behind the operations exposed by the CLI, the REST API
// and the MCP server.
package noteservice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/fathom/internal/apperr"
	"github.com/starford/fathom/internal/mirror"
	"github.com/starford/fathom/internal/models"
	"github.com/starford/fathom/internal/store"
	"github.com/starford/fathom/internal/workspace"
)

// Event types passed to the EventSink.
const (
	EventNoteAdded      = "note.added"
	EventSessionCreated = "session.created"
)

// EventSink receives domain events after they are committed.
type EventSink func(kind string, data any)

// AddResult describes a stored note and where its mirror file went.
type AddResult struct {
	Note *models.Note `json:"note"`
	// Mirror is empty when the mirror write failed.
	Mirror string `json:"mirror,omitempty"`
}

// Filter selects notes for Query. The first non-empty field wins, in the
// order Topic, Tag, Since, SessionType.
type Filter struct {
	Topic       string `json:"topic,omitempty"`
	Tag         string `json:"tag,omitempty"`
	Since       string `json:"since,omitempty"`
	SessionType string `json:"session_type,omitempty"`
}

// Service coordinates store, sessions and mirror.
type Service struct {
	db       store.NoteStore
	mirror   *mirror.Writer
	sessions *workspace.Manager
	logger   *slog.Logger
	sink     EventSink
}

// Option configures a Service.
type Option func(*Service)

// WithEventSink sets the receiver of note.added and session.created events.
func WithEventSink(sink EventSink) Option {
	return func(s *Service) {
		s.sink = sink
	}
}

// NewService creates a new note service.
func NewService(db store.NoteStore, mw *mirror.Writer, sessions *workspace.Manager, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{db: db, mirror: mw, sessions: sessions, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddNote stores n and then writes its mirror file. A failed mirror write is
// logged and reported by an empty AddResult.Mirror; the note stays stored.
func (s *Service) AddNote(ctx context.Context, n models.Note) (*AddResult, error) {
	if _, err := s.db.Create(ctx, &n); err != nil {
		return nil, err
	}
	s.logger.Info("note added", slog.Int64("id", n.ID), slog.String("topic", n.Topic))

	res := &AddResult{Note: &n}
	path, err := s.mirror.Write(n)
	if err != nil {
		s.logger.Warn("mirror write failed",
			slog.Int64("id", n.ID),
			slog.String("error", err.Error()))
	} else {
		res.Mirror = path
	}

	s.emit(EventNoteAdded, map[string]any{"id": n.ID, "topic": n.Topic, "mirror": res.Mirror})
	return res, nil
}

// CreateSession scaffolds a new session directory.
func (s *Service) CreateSession(ctx context.Context, t models.SessionType, topic string) (*models.Session, error) {
	sess, err := s.sessions.Create(ctx, t, topic)
	if err != nil {
		return nil, err
	}
	s.emit(EventSessionCreated, sess)
	return sess, nil
}

// Get returns one note.
func (s *Service) Get(ctx context.Context, id int64) (*models.Note, error) {
	return s.db.Get(ctx, id)
}

// List returns the newest notes; limit <= 0 uses store.DefaultListLimit.
func (s *Service) List(ctx context.Context, limit int) ([]*models.Note, error) {
	return s.db.List(ctx, limit)
}

// Search runs a full-text search.
func (s *Service) Search(ctx context.Context, term string, limit int) ([]*models.Note, error) {
	return s.db.Search(ctx, term, limit)
}

// Query applies the first set field of f.
func (s *Service) Query(ctx context.Context, f Filter) ([]*models.Note, error) {
	switch {
	case f.Topic != "":
		return s.db.FilterByTopic(ctx, f.Topic)
	case f.Tag != "":
		return s.db.FilterByTag(ctx, f.Tag)
	case f.Since != "":
		since, err := ParseSince(f.Since)
		if err != nil {
			return nil, err
		}
		return s.db.FilterSince(ctx, since)
	case f.SessionType != "":
		return s.db.FilterBySessionType(ctx, models.SessionType(f.SessionType))
	}
	return nil, fmt.Errorf("%w: one of topic, tag, since, session_type is required", apperr.ErrValidation)
}

// Topics returns per-topic note counts.
func (s *Service) Topics(ctx context.Context) ([]models.TopicCount, error) {
	return s.db.Topics(ctx)
}

// Tags returns per-tag note counts.
func (s *Service) Tags(ctx context.Context) ([]models.TagCount, error) {
	return s.db.Tags(ctx)
}

// Export renders every note in the named format.
func (s *Service) Export(ctx context.Context, format string) (string, error) {
	f, err := store.ParseExportFormat(format)
	if err != nil {
		return "", err
	}
	return s.db.Export(ctx, f)
}

// VerifyIndex reports divergence between the notes table and the search index.
func (s *Service) VerifyIndex(ctx context.Context) (store.IndexReport, error) {
	return s.db.VerifyIndex(ctx)
}

// Reindex rebuilds the search index.
func (s *Service) Reindex(ctx context.Context) (int, error) {
	n, err := s.db.Reindex(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Info("search index rebuilt", slog.Int("notes", n))
	return n, nil
}

func (s *Service) emit(kind string, data any) {
	if s.sink != nil {
		s.sink(kind, data)
	}
}

var sinceLayouts = []string{time.RFC3339Nano, store.TimeLayout, "2006-01-02T15:04:05", "2006-01-02"}

// ParseSince accepts an RFC 3339 timestamp, the store's timestamp layout, or
// a bare date. Values without a zone are taken as UTC.
func ParseSince(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range sinceLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: since must be a date (2006-01-02) or timestamp (got %q)", apperr.ErrValidation, s)
}
