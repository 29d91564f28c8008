package workspace

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/starford/fathom/internal/apperr"
	"github.com/starford/fathom/internal/models"
	"github.com/starford/fathom/internal/storage"
)

// maxClaimAttempts bounds how often a session name lost to a concurrent
// creator is re-allocated.
const maxClaimAttempts = 16

// Manager creates session scaffolding on disk.
type Manager struct {
	root   string
	fs     storage.Provider
	alloc  *Allocator
	logger *slog.Logger
}

// NewManager creates a session manager. root is the absolute workspace root
// backing fs.
func NewManager(root string, fs storage.Provider, logger *slog.Logger) *Manager {
	return &Manager{
		root:   root,
		fs:     fs,
		alloc:  NewAllocator(fs),
		logger: logger,
	}
}

// Allocator returns the path allocator used by the manager.
func (m *Manager) Allocator() *Allocator {
	return m.alloc
}

// Create allocates a directory for (t, topic) and creates it together with
// its fixed subdirectories. Failures wrap apperr.ErrIO.
func (m *Manager) Create(_ context.Context, t models.SessionType, topic string) (*models.Session, error) {
	if t == "" {
		return nil, fmt.Errorf("%w: session type is required", apperr.ErrValidation)
	}
	if _, err := models.ParseSessionType(string(t)); err != nil {
		return nil, err
	}

	var name, sessionSlug string
	claimed := false
	for attempt := 0; attempt < maxClaimAttempts; attempt++ {
		var err error
		name, sessionSlug, err = m.alloc.SessionDir(t, topic)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperr.ErrIO, err)
		}
		err = m.fs.Mkdir(name)
		if err == nil {
			claimed = true
			break
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%w: create session dir: %v", apperr.ErrIO, err)
		}
		m.logger.Debug("session: name taken, reallocating", slog.String("dir", name))
	}
	if !claimed {
		return nil, fmt.Errorf("%w: could not claim a session dir for %q after %d attempts", apperr.ErrIO, topic, maxClaimAttempts)
	}

	marker := sessionMarker{Type: t, Base: sessionBase(t, topic), Slug: sessionSlug}
	if err := m.alloc.writeMarker(name, marker); err != nil {
		return nil, fmt.Errorf("%w: write session marker: %v", apperr.ErrIO, err)
	}

	for _, sub := range models.Subdirs(t) {
		if err := m.fs.MkdirAll(filepath.Join(name, sub)); err != nil {
			return nil, fmt.Errorf("%w: create %s: %v", apperr.ErrIO, sub, err)
		}
	}

	s := &models.Session{
		Type: t,
		Slug: sessionSlug,
		Dir:  filepath.Join(m.root, name),
	}
	m.logger.Info("session created", slog.String("type", string(t)), slog.String("dir", s.Dir))
	return s, nil
}
