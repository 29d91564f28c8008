package api

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/fathom/internal/checksum"
	"github.com/starford/fathom/internal/storage"
)

const (
	artifactsDir   = "artifacts"
	maxUploadBytes = 50 << 20 // 50 MB
)

// ArtifactHandler stores and serves files in a session's artifacts directory.
type ArtifactHandler struct {
	root string
	fs   storage.Provider
}

// NewArtifactHandler creates a handler over the workspace root.
func NewArtifactHandler(root string, fs storage.Provider) *ArtifactHandler {
	return &ArtifactHandler{root: root, fs: fs}
}

// plainName rejects empty names, path separators, dot-files and traversal.
func plainName(kind, name string) error {
	if name == "" {
		return fmt.Errorf("%s is required", kind)
	}
	cleaned := filepath.Clean(name)
	if cleaned != name || cleaned != filepath.Base(cleaned) || strings.HasPrefix(cleaned, ".") {
		return fmt.Errorf("invalid %s: %s", kind, name)
	}
	return nil
}

// artifactPath validates session and file names and returns the artifact
// path relative to the workspace root. The session must already exist.
func (h *ArtifactHandler) artifactPath(session, file string) (string, int, error) {
	if err := plainName("session", session); err != nil {
		return "", http.StatusBadRequest, err
	}
	if err := plainName("filename", file); err != nil {
		return "", http.StatusBadRequest, err
	}
	dir := filepath.Join(session, artifactsDir)
	ok, err := h.fs.Exists(dir)
	if err != nil {
		return "", http.StatusInternalServerError, err
	}
	if !ok {
		return "", http.StatusNotFound, fmt.Errorf("session not found: %s", session)
	}
	return filepath.Join(dir, file), http.StatusOK, nil
}

// Serve handles GET /api/sessions/{session}/artifacts/{filename}.
func (h *ArtifactHandler) Serve(w http.ResponseWriter, r *http.Request) {
	rel, status, err := h.artifactPath(chi.URLParam(r, "session"), chi.URLParam(r, "filename"))
	if err != nil {
		writeJSON(w, status, errorBody(err.Error()))
		return
	}
	if ok, _ := h.fs.Exists(rel); !ok {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	http.ServeFile(w, r, filepath.Join(h.root, rel))
}

// Upload handles POST /api/sessions/{session}/artifacts (multipart/form-data,
// field "file"). An existing artifact with the same name is replaced.
func (h *ArtifactHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	session := chi.URLParam(r, "session")
	rel, status, err := h.artifactPath(session, header.Filename)
	if err != nil {
		writeJSON(w, status, errorBody(err.Error()))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read upload"))
		return
	}
	if err := h.fs.Write(rel, data); err != nil {
		writeError(w, "write artifact", err)
		return
	}

	writeJSON(w, http.StatusCreated, ArtifactUploadResponse{
		Filename: header.Filename,
		Size:     int64(len(data)),
		URL:      "/api/sessions/" + session + "/artifacts/" + header.Filename,
		SHA256:   checksum.Sum(data),
	})
}
