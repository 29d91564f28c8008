package api

import (
	"encoding/json"

	"github.com/starford/fathom/internal/models"
	"github.com/starford/fathom/internal/noteservice"
)

// CreateNoteRequest is the request body for adding a note.
type CreateNoteRequest struct {
	Topic       string          `json:"topic" example:"TLS 1.3" validate:"required"`
	Query       string          `json:"query" example:"0-RTT replay risk" validate:"required"`
	Summary     string          `json:"summary" example:"0-RTT is replayable" validate:"required"`
	RawFindings string          `json:"raw_findings,omitempty"`
	Sources     json.RawMessage `json:"sources,omitempty" swaggertype:"array,object"`
	Tags        []string        `json:"tags,omitempty" example:"tls,security"`
	Confidence  string          `json:"confidence,omitempty" example:"high"`
	SessionDir  string          `json:"session_dir,omitempty"`
	SessionType string          `json:"session_type,omitempty" example:"deep-research"`
}

// note converts the request into a models.Note. Sources given as a JSON
// string are stored unquoted; any other JSON is stored verbatim.
func (r CreateNoteRequest) note() models.Note {
	sources := string(r.Sources)
	var text string
	if json.Unmarshal(r.Sources, &text) == nil {
		sources = text
	}
	if sources == "null" {
		sources = ""
	}
	return models.Note{
		Topic:       r.Topic,
		Query:       r.Query,
		Summary:     r.Summary,
		RawFindings: r.RawFindings,
		Sources:     sources,
		Tags:        r.Tags,
		Confidence:  models.Confidence(r.Confidence),
		SessionDir:  r.SessionDir,
		SessionType: models.SessionType(r.SessionType),
	}
}

// CreateSessionRequest is the request body for scaffolding a session.
type CreateSessionRequest struct {
	Type  string `json:"type" example:"spike" validate:"required"`
	Topic string `json:"topic" example:"Cache design" validate:"required"`
}

// AddNoteResponse is returned after a note is stored (aliased from the domain layer).
type AddNoteResponse = noteservice.AddResult

// NoteListResponse wraps note listings.
type NoteListResponse struct {
	Notes []*models.Note `json:"notes" validate:"required"`
	Total int            `json:"total" example:"42" validate:"required"`
}

// ArtifactUploadResponse is returned after a successful artifact upload.
type ArtifactUploadResponse struct {
	Filename string `json:"filename" example:"benchmark.csv" validate:"required"`
	Size     int64  `json:"size" example:"12345" validate:"required"`
	URL      string `json:"url" example:"/api/sessions/spike-cache-design/artifacts/benchmark.csv" validate:"required"`
	SHA256   string `json:"sha256" example:"ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"`
}
