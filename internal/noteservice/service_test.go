package noteservice

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/fathom/internal/apperr"
	"github.com/starford/fathom/internal/mirror"
	"github.com/starford/fathom/internal/models"
	"github.com/starford/fathom/internal/testutil"
	"github.com/starford/fathom/internal/workspace"
)

type sinkRecorder struct {
	mu    sync.Mutex
	kinds []string
}

func (r *sinkRecorder) sink(kind string, _ any) {
	r.mu.Lock()
	r.kinds = append(r.kinds, kind)
	r.mu.Unlock()
}

func testService(t *testing.T, opts ...Option) (string, *Service) {
	t.Helper()
	root, fs := testutil.TestWorkspace(t)
	db := testutil.TestDB(t)
	sessions := workspace.NewManager(root, fs, testutil.Logger())
	mw := mirror.NewWriter(fs, sessions.Allocator())
	return root, NewService(db, mw, sessions, testutil.Logger(), opts...)
}

func TestAddNote_WritesMirror(t *testing.T) {
	root, svc := testService(t)
	res, err := svc.AddNote(context.Background(), models.Note{
		Topic: "TLS 1.3", Query: "0-RTT replay risk", Summary: "replayable",
		Tags: []string{"tls"}, Confidence: models.ConfidenceHigh,
	})
	if err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	if res.Note.ID != 1 {
		t.Errorf("id = %d, want 1", res.Note.ID)
	}
	want := filepath.Join("notes", "0001-tls-1-3.md")
	if res.Mirror != want {
		t.Errorf("mirror = %q, want %q", res.Mirror, want)
	}
	data, err := os.ReadFile(filepath.Join(root, want))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != mirror.Render(*res.Note) {
		t.Errorf("mirror content mismatch:\n%s", data)
	}
}

func TestAddNote_IntoSession(t *testing.T) {
	_, svc := testService(t)
	ctx := context.Background()
	sess, err := svc.CreateSession(ctx, models.SessionSpike, "Cache design")
	if err != nil {
		t.Fatal(err)
	}
	res, err := svc.AddNote(ctx, models.Note{
		Topic: "Cache design", Query: "q", Summary: "s",
		SessionDir: sess.Dir, SessionType: sess.Type,
	})
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(sess.Dir, "notes", "0001-cache-design.md")
	if res.Mirror != want {
		t.Errorf("mirror = %q, want %q", res.Mirror, want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("mirror file missing: %v", err)
	}
}

func TestAddNote_MirrorFailureDoesNotFail(t *testing.T) {
	root, svc := testService(t)
	ctx := context.Background()
	// A file where the notes directory should be blocks every mirror write.
	if err := os.WriteFile(filepath.Join(root, "notes"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := svc.AddNote(ctx, models.Note{Topic: "t", Query: "q", Summary: "s"})
	if err != nil {
		t.Fatalf("AddNote failed on mirror error: %v", err)
	}
	if res.Mirror != "" {
		t.Errorf("mirror = %q, want empty", res.Mirror)
	}
	if _, err := svc.Get(ctx, res.Note.ID); err != nil {
		t.Errorf("note not stored: %v", err)
	}
}

func TestAddNote_ValidationWritesNothing(t *testing.T) {
	root, svc := testService(t)
	_, err := svc.AddNote(context.Background(), models.Note{Topic: "t", Query: "q"})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if _, statErr := os.Stat(filepath.Join(root, "notes")); !os.IsNotExist(statErr) {
		t.Errorf("mirror dir created for rejected note")
	}
}

func TestEventSink(t *testing.T) {
	rec := &sinkRecorder{}
	_, svc := testService(t, WithEventSink(rec.sink))
	ctx := context.Background()

	if _, err := svc.CreateSession(ctx, models.SessionQuickLookup, "dns"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AddNote(ctx, models.Note{Topic: "dns", Query: "q", Summary: "s"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AddNote(ctx, models.Note{Topic: "", Query: "q", Summary: "s"}); err == nil {
		t.Fatal("expected validation error")
	}

	want := []string{EventSessionCreated, EventNoteAdded}
	if len(rec.kinds) != len(want) || rec.kinds[0] != want[0] || rec.kinds[1] != want[1] {
		t.Errorf("events = %v, want %v", rec.kinds, want)
	}
}

func TestQuery(t *testing.T) {
	_, svc := testService(t)
	ctx := context.Background()
	for _, n := range []models.Note{
		{Topic: "Cache design", Query: "q", Summary: "s", Tags: []string{"perf"}, SessionType: models.SessionSpike},
		{Topic: "Raft", Query: "q", Summary: "s", Tags: []string{"consensus"}},
	} {
		if _, err := svc.AddNote(ctx, n); err != nil {
			t.Fatal(err)
		}
	}

	cases := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"topic", Filter{Topic: "cache"}, 1},
		{"tag", Filter{Tag: "consensus"}, 1},
		{"session type", Filter{SessionType: "spike"}, 1},
		{"since", Filter{Since: "2000-01-01"}, 2},
		{"topic wins over tag", Filter{Topic: "raft", Tag: "perf"}, 1},
	}
	for _, tc := range cases {
		got, err := svc.Query(ctx, tc.filter)
		if err != nil {
			t.Errorf("%s: %v", tc.name, err)
			continue
		}
		if len(got) != tc.want {
			t.Errorf("%s: %d notes, want %d", tc.name, len(got), tc.want)
		}
	}

	if _, err := svc.Query(ctx, Filter{}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("empty filter err = %v", err)
	}
	if _, err := svc.Query(ctx, Filter{Since: "yesterday"}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("bad since err = %v", err)
	}
}

func TestParseSince(t *testing.T) {
	want := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2024-05-01", "2024-05-01T00:00:00", "2024-05-01T00:00:00Z", "2024-05-01T02:00:00+02:00", "2024-05-01T00:00:00.000000Z"} {
		got, err := ParseSince(in)
		if err != nil {
			t.Errorf("ParseSince(%q): %v", in, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("ParseSince(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestExportAndReindex(t *testing.T) {
	_, svc := testService(t)
	ctx := context.Background()
	if _, err := svc.AddNote(ctx, models.Note{Topic: "t", Query: "q", Summary: "s"}); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Export(ctx, "xml"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("xml export err = %v", err)
	}
	md, err := svc.Export(ctx, "md")
	if err != nil || md == "" {
		t.Errorf("md export = %q, %v", md, err)
	}

	n, err := svc.Reindex(ctx)
	if err != nil || n != 1 {
		t.Errorf("Reindex = %d, %v", n, err)
	}
	rep, err := svc.VerifyIndex(ctx)
	if err != nil || !rep.Consistent() {
		t.Errorf("VerifyIndex = %+v, %v", rep, err)
	}
}
