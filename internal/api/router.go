package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/fathom/internal/noteservice"
	"github.com/starford/fathom/internal/storage"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// root and fs locate session artifacts.
func NewRouter(svc *noteservice.Service, authEnabled bool, token string, sseHandler http.Handler, root string, fs storage.Provider) chi.Router {
	h := NewHandler(svc)
	ah := NewArtifactHandler(root, fs)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Notes are append-only: no update or delete routes.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Get("/notes/{id}", h.GetNote)

	r.Get("/search", h.Search)
	r.Get("/query", h.Query)
	r.Get("/topics", h.Topics)
	r.Get("/tags", h.Tags)
	r.Get("/export", h.Export)

	r.Post("/sessions", h.CreateSession)
	r.Post("/sessions/{session}/artifacts", ah.Upload)
	r.Get("/sessions/{session}/artifacts/{filename}", ah.Serve)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
