package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/fathom/internal/models"
	"github.com/starford/fathom/internal/noteservice"
	"github.com/starford/fathom/internal/store"
)

const maxBodyBytes = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *noteservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service) *Handler {
	return &Handler{svc: svc}
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List the newest notes
//	@Tags			notes
//	@Produce		json
//	@Param			limit	query		int		false	"Max notes (default 20)"
//	@Success		200		{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	notes, err := h.svc.List(r.Context(), limit)
	if err != nil {
		writeError(w, "list notes", err)
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: notes, Total: len(notes)})
}

// GetNote handles GET /api/notes/{id}.
//
//	@Summary		Get a single note by id
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		int	true	"Note id"
//	@Success		200	{object}	models.Note
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("id must be a positive integer"))
		return
	}
	note, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, "get note", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Add a research note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNoteRequest	true	"Note to add"
//	@Success		201		{object}	AddNoteResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	res, err := h.svc.AddNote(r.Context(), req.note())
	if err != nil {
		writeError(w, "add note", err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across notes
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search term"
//	@Param			limit	query		int		false	"Max results (0 = all)"
//	@Success		200		{array}		models.Note
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	notes, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

// Query handles GET /api/query.
//
//	@Summary		Filter notes by topic, tag, date or session type
//	@Tags			search
//	@Produce		json
//	@Param			topic			query		string	false	"Topic substring"
//	@Param			tag				query		string	false	"Tag substring"
//	@Param			since			query		string	false	"Date or timestamp"
//	@Param			session_type	query		string	false	"Exact session type"
//	@Success		200				{array}		models.Note
//	@Failure		400				{object}	errResponse
//	@Security		BearerAuth
//	@Router			/query [get]
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	notes, err := h.svc.Query(r.Context(), noteservice.Filter{
		Topic:       q.Get("topic"),
		Tag:         q.Get("tag"),
		Since:       q.Get("since"),
		SessionType: q.Get("session_type"),
	})
	if err != nil {
		writeError(w, "query", err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

// Topics handles GET /api/topics.
//
//	@Summary		Note counts per topic
//	@Tags			aggregates
//	@Produce		json
//	@Success		200	{array}	models.TopicCount
//	@Security		BearerAuth
//	@Router			/topics [get]
func (h *Handler) Topics(w http.ResponseWriter, r *http.Request) {
	topics, err := h.svc.Topics(r.Context())
	if err != nil {
		writeError(w, "topics", err)
		return
	}
	writeJSON(w, http.StatusOK, topics)
}

// Tags handles GET /api/tags.
//
//	@Summary		Note counts per tag
//	@Tags			aggregates
//	@Produce		json
//	@Success		200	{array}	models.TagCount
//	@Security		BearerAuth
//	@Router			/tags [get]
func (h *Handler) Tags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.svc.Tags(r.Context())
	if err != nil {
		writeError(w, "tags", err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

// Export handles GET /api/export.
//
//	@Summary		Export every note
//	@Tags			notes
//	@Produce		json,text/markdown
//	@Param			format	query	string	false	"json (default) or markdown"	Enums(json, md, markdown)
//	@Success		200
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/export [get]
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	out, err := h.svc.Export(r.Context(), format)
	if err != nil {
		writeError(w, "export", err)
		return
	}
	contentType := "application/json; charset=utf-8"
	if f, _ := store.ParseExportFormat(format); f == store.FormatMarkdown {
		contentType = "text/markdown; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(out))
}

// CreateSession handles POST /api/sessions.
//
//	@Summary		Scaffold a research session directory
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateSessionRequest	true	"Session to create"
//	@Success		201		{object}	models.Session
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions [post]
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	sess, err := h.svc.CreateSession(r.Context(), models.SessionType(req.Type), req.Topic)
	if err != nil {
		writeError(w, "create session", err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}
