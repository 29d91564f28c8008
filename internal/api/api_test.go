package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/fathom/internal/checksum"
	"github.com/starford/fathom/internal/mirror"
	"github.com/starford/fathom/internal/models"
	"github.com/starford/fathom/internal/noteservice"
	"github.com/starford/fathom/internal/testutil"
	"github.com/starford/fathom/internal/workspace"
)

// testEnv sets up a temp workspace, SQLite DB, service, and router for testing.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) (*noteservice.Service, http.Handler) {
	t.Helper()
	svc, router, _ := testEnvWithWorkspace(t, authToken != "", authToken, nil)
	return svc, router
}

func testEnvWithWorkspace(t *testing.T, authEnabled bool, authToken string, sseHandler http.Handler) (*noteservice.Service, http.Handler, string) {
	t.Helper()
	root, fs := testutil.TestWorkspace(t)
	db := testutil.TestDB(t)
	sessions := workspace.NewManager(root, fs, testutil.Logger())
	svc := noteservice.NewService(db, mirror.NewWriter(fs, sessions.Allocator()), sessions, testutil.Logger())
	router := NewRouter(svc, authEnabled, authToken, sseHandler, root, fs)
	return svc, router, root
}

func do(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, rd)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func addNote(t *testing.T, router http.Handler, body map[string]any) AddNoteResponse {
	t.Helper()
	w := do(t, router, http.MethodPost, "/notes", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var res AddNoteResponse
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	return res
}

func TestCreateAndGetNote(t *testing.T) {
	_, router := testEnv(t, "")

	res := addNote(t, router, map[string]any{
		"topic":      "TLS 1.3",
		"query":      "0-RTT replay risk",
		"summary":    "0-RTT is replayable",
		"tags":       []string{"tls", "security"},
		"confidence": "high",
		"sources":    []map[string]string{{"url": "https://example.org", "title": "RFC 8446"}},
	})
	if res.Note.ID != 1 {
		t.Errorf("id = %d, want 1", res.Note.ID)
	}
	if res.Mirror != filepath.Join("notes", "0001-tls-1-3.md") {
		t.Errorf("mirror = %q", res.Mirror)
	}

	w := do(t, router, http.MethodGet, "/notes/1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var note models.Note
	if err := json.Unmarshal(w.Body.Bytes(), &note); err != nil {
		t.Fatal(err)
	}
	if note.Topic != "TLS 1.3" || note.Confidence != models.ConfidenceHigh || len(note.Tags) != 2 {
		t.Errorf("note = %+v", note)
	}
	sources, err := note.SourceList()
	if err != nil || len(sources) != 1 || sources[0].Title != "RFC 8446" {
		t.Errorf("sources = %v, %v (raw %q)", sources, err, note.Sources)
	}
}

func TestCreateNote_SourcesAsString(t *testing.T) {
	_, router := testEnv(t, "")
	res := addNote(t, router, map[string]any{"topic": "t", "query": "q", "summary": "s", "sources": "lab notebook p.4"})
	if res.Note.Sources != "lab notebook p.4" {
		t.Errorf("sources = %q", res.Note.Sources)
	}
}

func TestCreateNote_SessionDirOutsideWorkspace(t *testing.T) {
	_, router, root := testEnvWithWorkspace(t, false, "", nil)
	outside := t.TempDir()

	for _, dir := range []string{outside, filepath.Join(root, "..", filepath.Base(outside))} {
		res := addNote(t, router, map[string]any{
			"topic":       "Escape",
			"query":       "q",
			"summary":     "s",
			"session_dir": dir,
		})
		if res.Mirror != "" {
			t.Errorf("session_dir %q: mirror = %q, want none", dir, res.Mirror)
		}
		if res.Note == nil || res.Note.SessionDir != dir {
			t.Errorf("session_dir %q: note not stored as given: %+v", dir, res.Note)
		}
	}

	entries, _ := os.ReadDir(outside)
	if len(entries) != 0 {
		t.Errorf("mirror written outside workspace: %d entries", len(entries))
	}
}

func TestCreateNote_Validation(t *testing.T) {
	_, router := testEnv(t, "")

	cases := map[string]any{
		"missing summary": map[string]any{"topic": "t", "query": "q"},
		"bad confidence":  map[string]any{"topic": "t", "query": "q", "summary": "s", "confidence": "sure"},
		"comma tag":       map[string]any{"topic": "t", "query": "q", "summary": "s", "tags": []string{"a,b"}},
	}
	for name, body := range cases {
		w := do(t, router, http.MethodPost, "/notes", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", name, w.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/notes", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad JSON = %d, want 400", w.Code)
	}
}

func TestGetNote_NotFound(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/notes/99", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing note = %d, want 404", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"not found"`) {
		t.Errorf("body = %s", w.Body.String())
	}

	w = do(t, router, http.MethodGet, "/notes/abc", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad id = %d, want 400", w.Code)
	}
}

func TestNoMutationRoutes(t *testing.T) {
	_, router := testEnv(t, "")
	addNote(t, router, map[string]any{"topic": "t", "query": "q", "summary": "s"})

	for _, method := range []string{http.MethodPut, http.MethodPatch, http.MethodDelete} {
		w := do(t, router, method, "/notes/1", map[string]string{"summary": "x"})
		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s /notes/1 = %d, want 405", method, w.Code)
		}
	}
}

func TestListNotes(t *testing.T) {
	_, router := testEnv(t, "")
	for i := 0; i < 3; i++ {
		addNote(t, router, map[string]any{"topic": "t", "query": "q", "summary": "s"})
	}

	w := do(t, router, http.MethodGet, "/notes?limit=2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var resp NoteListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 2 || len(resp.Notes) != 2 || resp.Notes[0].ID != 3 {
		t.Errorf("list = %+v", resp)
	}
}

func TestSearchEndpoint(t *testing.T) {
	_, router := testEnv(t, "")
	addNote(t, router, map[string]any{"topic": "TLS 1.3", "query": "0-RTT replay risk", "summary": "s"})
	addNote(t, router, map[string]any{"topic": "Raft", "query": "leases", "summary": "s"})

	w := do(t, router, http.MethodGet, "/search?q=replay", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search status = %d, body = %s", w.Code, w.Body.String())
	}
	var notes []models.Note
	if err := json.Unmarshal(w.Body.Bytes(), &notes); err != nil {
		t.Fatal(err)
	}
	if len(notes) != 1 || notes[0].ID != 1 {
		t.Errorf("search = %+v", notes)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/search", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("search no query = %d, want 400", w.Code)
	}
}

func TestQueryEndpoint(t *testing.T) {
	_, router := testEnv(t, "")
	addNote(t, router, map[string]any{"topic": "Cache design", "query": "q", "summary": "s", "tags": []string{"perf"}})
	addNote(t, router, map[string]any{"topic": "Raft", "query": "q", "summary": "s"})

	w := do(t, router, http.MethodGet, "/query?tag=perf", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("query status = %d", w.Code)
	}
	var notes []models.Note
	_ = json.Unmarshal(w.Body.Bytes(), &notes)
	if len(notes) != 1 || notes[0].Topic != "Cache design" {
		t.Errorf("query = %+v", notes)
	}

	if w := do(t, router, http.MethodGet, "/query", nil); w.Code != http.StatusBadRequest {
		t.Errorf("empty query = %d, want 400", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/query?session_type=marathon", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad session type = %d, want 400", w.Code)
	}
}

func TestAggregates(t *testing.T) {
	_, router := testEnv(t, "")
	addNote(t, router, map[string]any{"topic": "x", "query": "q", "summary": "s", "tags": []string{"a", "b"}})
	addNote(t, router, map[string]any{"topic": "x", "query": "q", "summary": "s", "tags": []string{"b", "c"}})

	var tags []models.TagCount
	w := do(t, router, http.MethodGet, "/tags", nil)
	if err := json.Unmarshal(w.Body.Bytes(), &tags); err != nil {
		t.Fatal(err)
	}
	if len(tags) != 3 || tags[0].Tag != "b" || tags[0].Count != 2 {
		t.Errorf("tags = %+v", tags)
	}

	var topics []models.TopicCount
	w = do(t, router, http.MethodGet, "/topics", nil)
	if err := json.Unmarshal(w.Body.Bytes(), &topics); err != nil {
		t.Fatal(err)
	}
	if len(topics) != 1 || topics[0].Count != 2 {
		t.Errorf("topics = %+v", topics)
	}
}

func TestExportEndpoint(t *testing.T) {
	_, router := testEnv(t, "")
	addNote(t, router, map[string]any{"topic": "Raft", "query": "q", "summary": "s"})

	w := do(t, router, http.MethodGet, "/export?format=md", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Errorf("content type = %q", ct)
	}
	if !strings.HasPrefix(w.Body.String(), "# Research Notes\n") {
		t.Errorf("body = %q", w.Body.String())
	}

	w = do(t, router, http.MethodGet, "/export", nil)
	var notes []models.Note
	if err := json.Unmarshal(w.Body.Bytes(), &notes); err != nil || len(notes) != 1 {
		t.Errorf("json export = %v, %v", notes, err)
	}

	if w := do(t, router, http.MethodGet, "/export?format=xml", nil); w.Code != http.StatusBadRequest {
		t.Errorf("xml export = %d, want 400", w.Code)
	}
}

func TestCreateSession(t *testing.T) {
	_, router, root := testEnvWithWorkspace(t, false, "", nil)

	w := do(t, router, http.MethodPost, "/sessions", map[string]string{"type": "spike", "topic": "Cache design"})
	if w.Code != http.StatusCreated {
		t.Fatalf("session status = %d, body = %s", w.Code, w.Body.String())
	}
	var sess models.Session
	if err := json.Unmarshal(w.Body.Bytes(), &sess); err != nil {
		t.Fatal(err)
	}
	if sess.Dir != filepath.Join(root, "spike-cache-design") || sess.Slug != "cache-design" {
		t.Errorf("session = %+v", sess)
	}
	if _, err := os.Stat(filepath.Join(sess.Dir, "src")); err != nil {
		t.Errorf("src dir missing: %v", err)
	}

	w = do(t, router, http.MethodPost, "/sessions", map[string]string{"type": "marathon", "topic": "x"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad type = %d, want 400", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	body, _ := json.Marshal(map[string]string{"topic": "t", "query": "q", "summary": "s"})
	req := httptest.NewRequest(http.MethodPost, "/notes", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Errorf("authed create = %d, want 201", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	w := do(t, router, http.MethodGet, "/notes", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/notes", nil)
	if w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// sseStub writes headers and blocks until the request context is done.
var sseStub = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, router, _ := testEnvWithWorkspace(t, true, "secret", sseStub)

	w := do(t, router, http.MethodGet, "/events", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, router, _ := testEnvWithWorkspace(t, true, "tok", sseStub)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}

// Artifact tests.

func uploadFile(t *testing.T, router http.Handler, session, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.Copy(part, bytes.NewReader(content))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/sessions/"+session+"/artifacts", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUploadAndServeArtifact(t *testing.T) {
	_, router, root := testEnvWithWorkspace(t, false, "", nil)
	if w := do(t, router, http.MethodPost, "/sessions", map[string]string{"type": "spike", "topic": "bench"}); w.Code != http.StatusCreated {
		t.Fatalf("session status = %d", w.Code)
	}

	w := uploadFile(t, router, "spike-bench", "results.csv", []byte("a,b\n1,2\n"))
	if w.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp ArtifactUploadResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Size != 8 || resp.URL != "/api/sessions/spike-bench/artifacts/results.csv" || !checksum.Matches([]byte("a,b\n1,2\n"), resp.SHA256) {
		t.Errorf("upload response = %+v", resp)
	}
	if _, err := os.Stat(filepath.Join(root, "spike-bench", "artifacts", "results.csv")); err != nil {
		t.Errorf("artifact not on disk: %v", err)
	}

	w = do(t, router, http.MethodGet, "/sessions/spike-bench/artifacts/results.csv", nil)
	if w.Code != http.StatusOK || w.Body.String() != "a,b\n1,2\n" {
		t.Errorf("serve = %d %q", w.Code, w.Body.String())
	}
}

func TestArtifact_Errors(t *testing.T) {
	_, router := testEnv(t, "")

	if w := uploadFile(t, router, "spike-missing", "x.txt", []byte("x")); w.Code != http.StatusNotFound {
		t.Errorf("unknown session upload = %d, want 404", w.Code)
	}
	if w := uploadFile(t, router, "..", "x.txt", []byte("x")); w.Code != http.StatusBadRequest && w.Code != http.StatusNotFound {
		t.Errorf("traversal session upload = %d", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/sessions/spike-missing/artifacts/x.txt", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown session serve = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/sessions/spike-missing/artifacts/.hidden", nil); w.Code != http.StatusBadRequest {
		t.Errorf("dot-file serve = %d, want 400", w.Code)
	}
}

func TestPlainName(t *testing.T) {
	for _, bad := range []string{"", ".", "..", "../x", "a/b", ".env"} {
		if err := plainName("filename", bad); err == nil {
			t.Errorf("plainName(%q) accepted", bad)
		}
	}
	if err := plainName("filename", "report.pdf"); err != nil {
		t.Errorf("plainName rejected valid name: %v", err)
	}
}
