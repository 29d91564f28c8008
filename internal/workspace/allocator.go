// Package workspace allocates session directories and note file paths inside
// the workspace root and creates session scaffolding on disk.
package workspace

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/starford/fathom/internal/models"
	"github.com/starford/fathom/internal/slug"
	"github.com/starford/fathom/internal/storage"
)

// MarkerFile is written into every session directory. It records the
// unsuffixed name the directory was allocated for.
const MarkerFile = ".session.json"

type sessionMarker struct {
	Type models.SessionType `json:"type"`
	Base string             `json:"base"`
	Slug string             `json:"slug"`
}

// NotesDir is the subdirectory holding mirror files, both at the workspace
// root (session-less notes) and inside each session.
const NotesDir = "notes"

// Allocator derives collision-free, deterministic paths under a workspace root.
type Allocator struct {
	fs storage.Provider
}

// NewAllocator creates an allocator over the given workspace provider.
func NewAllocator(fs storage.Provider) *Allocator {
	return &Allocator{fs: fs}
}

// SessionDir returns the next free session directory name for (t, topic),
// relative to the workspace root, and its slug.
//
// The bare name {type}-{slug} is used whenever it is free. Otherwise the
// suffix continues after the highest {base}-N whose marker records the same
// base, so suffixes only grow: with "spike-x" and "spike-x-3" on disk the
// next name is "spike-x-4" even if "spike-x-2" is gone. Directories of other
// topics that merely look suffixed ("spike-x-2024" for topic "x 2024") and
// unmarked directories are never counted, only stepped over when taken.
func (a *Allocator) SessionDir(t models.SessionType, topic string) (string, string, error) {
	base := sessionBase(t, topic)

	taken, err := a.fs.Exists(base)
	if err != nil {
		return "", "", fmt.Errorf("workspace: stat %s: %w", base, err)
	}
	if !taken {
		return base, trimType(base, t), nil
	}

	names, err := a.fs.ReadDirNames("")
	if err != nil {
		return "", "", fmt.Errorf("workspace: scan root: %w", err)
	}
	highest := 1
	for _, name := range names {
		n, ok := suffixOf(name, base)
		if !ok || n <= highest {
			continue
		}
		if m, ok := a.readMarker(name); ok && m.Base == base {
			highest = n
		}
	}

	for n := highest + 1; ; n++ {
		name := base + "-" + strconv.Itoa(n)
		taken, err := a.fs.Exists(name)
		if err != nil {
			return "", "", fmt.Errorf("workspace: stat %s: %w", name, err)
		}
		if !taken {
			return name, trimType(name, t), nil
		}
	}
}

func sessionBase(t models.SessionType, topic string) string {
	return string(t) + "-" + slug.OrDefault(slug.Make(topic, slug.DefaultMaxLen))
}

// writeMarker records base in the marker of dir.
func (a *Allocator) writeMarker(dir string, m sessionMarker) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return a.fs.Write(filepath.Join(dir, MarkerFile), data)
}

// readMarker loads the session marker of dir. ok is false when the marker is
// missing or unreadable.
func (a *Allocator) readMarker(dir string) (sessionMarker, bool) {
	var m sessionMarker
	data, err := a.fs.Read(filepath.Join(dir, MarkerFile))
	if err != nil {
		return m, false
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, false
	}
	return m, true
}

// NoteFile returns the mirror path for n: {session_dir}/notes when the note
// belongs to a session, {root}/notes otherwise.
func (a *Allocator) NoteFile(n models.Note) string {
	dir := NotesDir
	if n.SessionDir != "" {
		dir = filepath.Join(n.SessionDir, NotesDir)
	}
	return filepath.Join(dir, NoteFileName(n.ID, n.Topic))
}

// NoteFileName is the mirror file name for a note: {id:04d}-{slug}.md.
func NoteFileName(id int64, topic string) string {
	return fmt.Sprintf("%04d-%s.md", id, slug.OrDefault(slug.Make(topic, slug.DefaultMaxLen)))
}

// suffixOf parses "{base}-N" with N >= 2.
func suffixOf(name, base string) (int, bool) {
	rest, ok := strings.CutPrefix(name, base+"-")
	if !ok || rest == "" {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 2 || strconv.Itoa(n) != rest {
		return 0, false
	}
	return n, true
}

func trimType(name string, t models.SessionType) string {
	return strings.TrimPrefix(name, string(t)+"-")
}
