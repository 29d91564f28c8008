package mirror

import (
	"fmt"

	"github.com/starford/fathom/internal/apperr"
	"github.com/starford/fathom/internal/models"
	"github.com/starford/fathom/internal/storage"
	"github.com/starford/fathom/internal/workspace"
)

// Writer places mirror files at the paths chosen by the allocator.
type Writer struct {
	fs    storage.Provider
	alloc *workspace.Allocator
}

// NewWriter creates a mirror writer over the workspace provider.
func NewWriter(fs storage.Provider, alloc *workspace.Allocator) *Writer {
	return &Writer{fs: fs, alloc: alloc}
}

// Write renders n and replaces its mirror file, creating the notes directory
// if needed. It returns the file path (relative to the workspace root unless
// the note's session dir is absolute). Failures wrap apperr.ErrIO.
func (w *Writer) Write(n models.Note) (string, error) {
	if n.ID <= 0 {
		return "", fmt.Errorf("%w: mirror: note has no id", apperr.ErrValidation)
	}
	path := w.alloc.NoteFile(n)
	if err := w.fs.Write(path, []byte(Render(n))); err != nil {
		return "", fmt.Errorf("%w: mirror: write %s: %w", apperr.ErrIO, path, err)
	}
	return path, nil
}
