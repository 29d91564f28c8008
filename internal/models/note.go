// Package models defines the domain types for fathom.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/fathom/internal/apperr"
)

// TagSeparator joins tags in their serialized form.
const TagSeparator = ","

// Confidence rates how much a note's summary can be trusted.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Confidences lists the accepted values.
var Confidences = []Confidence{ConfidenceLow, ConfidenceMedium, ConfidenceHigh}

// ParseConfidence maps s onto the enum. Empty input yields ConfidenceMedium.
func ParseConfidence(s string) (Confidence, error) {
	if s == "" {
		return ConfidenceMedium, nil
	}
	c := Confidence(s)
	for _, v := range Confidences {
		if c == v {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: confidence must be one of low, medium, high (got %q)", apperr.ErrValidation, s)
}

// SessionType classifies a research session.
type SessionType string

const (
	SessionDeepResearch SessionType = "deep-research"
	SessionQuickLookup  SessionType = "quick-lookup"
	SessionSpike        SessionType = "spike"
)

// SessionTypes lists the accepted values.
var SessionTypes = []SessionType{SessionDeepResearch, SessionQuickLookup, SessionSpike}

// ParseSessionType maps s onto the enum. Empty input yields an empty type,
// which is valid on notes without a session.
func ParseSessionType(s string) (SessionType, error) {
	if s == "" {
		return "", nil
	}
	t := SessionType(s)
	for _, v := range SessionTypes {
		if t == v {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: session type must be one of deep-research, quick-lookup, spike (got %q)", apperr.ErrValidation, s)
}

// Source is one entry of a note's serialized source list.
type Source struct {
	URL      string `json:"url"`
	Title    string `json:"title,omitempty"`
	Accessed string `json:"accessed,omitempty"`
}

// Note is one persisted research record.
type Note struct {
	ID          int64       `json:"id"`
	Topic       string      `json:"topic"`
	Query       string      `json:"query"`
	Summary     string      `json:"summary"`
	RawFindings string      `json:"raw_findings,omitempty"`
	Sources     string      `json:"sources,omitempty"`
	Tags        []string    `json:"tags"`
	Confidence  Confidence  `json:"confidence"`
	SessionDir  string      `json:"session_dir,omitempty"`
	SessionType SessionType `json:"session_type,omitempty"`
	CreatedAt   string      `json:"created_at"`
	UpdatedAt   string      `json:"updated_at"`
}

// Validate checks required fields and enum values. Errors wrap apperr.ErrValidation.
func (n *Note) Validate() error {
	err := validation.ValidateStruct(n,
		validation.Field(&n.Topic, validation.Required),
		validation.Field(&n.Query, validation.Required),
		validation.Field(&n.Summary, validation.Required),
		validation.Field(&n.Confidence, validation.Required, validation.In(toAny(Confidences)...)),
		validation.Field(&n.SessionType, validation.In(toAny(SessionTypes)...)),
		validation.Field(&n.Tags, validation.Each(validation.Required, validation.By(noSeparator))),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}
	return nil
}

// TagString returns the serialized tag list.
func (n *Note) TagString() string {
	return strings.Join(n.Tags, TagSeparator)
}

// SourceList decodes Sources. An empty payload yields no sources and no error.
func (n *Note) SourceList() ([]Source, error) {
	if strings.TrimSpace(n.Sources) == "" {
		return nil, nil
	}
	var out []Source
	if err := json.Unmarshal([]byte(n.Sources), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SplitTags parses a serialized tag list: pieces are trimmed and empty pieces dropped.
func SplitTags(s string) []string {
	out := []string{}
	for _, piece := range strings.Split(s, TagSeparator) {
		piece = strings.TrimSpace(piece)
		if piece != "" {
			out = append(out, piece)
		}
	}
	return out
}

// TopicCount is one row of the topic aggregate.
type TopicCount struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

// TagCount is one row of the tag aggregate.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

func noSeparator(value any) error {
	s, _ := value.(string)
	if strings.Contains(s, TagSeparator) {
		return errors.New("must not contain " + TagSeparator)
	}
	return nil
}

func toAny[T any](in []T) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
