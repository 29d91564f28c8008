package mirror

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/fathom/internal/workspace"
)

// Event kinds reported by Watch.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
	EventSession = "session"
)

// EventCallback receives a change kind and a path relative to the workspace root.
type EventCallback func(kind string, path string)

// Watch reports changes to .md files anywhere in the workspace, plus new
// top-level session directories, until ctx is cancelled. Directories
// created at runtime are added to the watch list. Hidden entries, including
// the atomic-write temp files, are ignored.
func Watch(ctx context.Context, root string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	emit := func(kind, rel string) {
		logger.Debug("watcher: event", slog.String("kind", kind), slog.String("path", rel))
		if cb != nil {
			cb(kind, rel)
		}
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			rel, relErr := filepath.Rel(root, ev.Name)
			if relErr != nil || hidden(rel) {
				continue
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", rel),
							slog.String("error", addErr.Error()))
					}
					if filepath.Dir(rel) == "." && rel != workspace.NotesDir {
						emit(EventSession, rel)
					}
					reportExisting(root, ev.Name, emit)
					continue
				}
			}

			if !strings.HasSuffix(rel, ".md") {
				continue
			}

			switch {
			case ev.Op&fsnotify.Create != 0:
				emit(EventCreated, rel)
			case ev.Op&fsnotify.Write != 0:
				emit(EventUpdated, rel)
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				// Rename fires on the old path only; the new path arrives
				// as its own Create.
				emit(EventDeleted, rel)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reportExisting emits created events for .md files that landed in a new
// directory before it was watched.
func reportExisting(root, dir string, emit func(kind, rel string)) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".md") {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil || hidden(rel) {
			return nil
		}
		emit(EventCreated, rel)
		return nil
	})
}

// hidden reports whether any element of rel starts with a dot.
func hidden(rel string) bool {
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if strings.HasPrefix(part, ".") && part != "." {
			return true
		}
	}
	return false
}

func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
