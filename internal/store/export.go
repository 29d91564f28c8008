package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/starford/fathom/internal/apperr"
)

// ExportFormat selects the rendering used by Export.
type ExportFormat string

const (
	FormatJSON     ExportFormat = "json"
	FormatMarkdown ExportFormat = "markdown"
)

// ParseExportFormat accepts "json", "markdown" and "md". Empty means JSON.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch strings.ToLower(s) {
	case "", "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("%w: export format must be json or markdown (got %q)", apperr.ErrValidation, s)
}

// Export renders every note, newest first.
func (db *DB) Export(ctx context.Context, format ExportFormat) (string, error) {
	notes, err := db.All(ctx)
	if err != nil {
		return "", err
	}

	switch format {
	case FormatJSON:
		out, err := json.MarshalIndent(notes, "", "  ")
		if err != nil {
			return "", fmt.Errorf("store: export json: %w", err)
		}
		return string(out), nil
	case FormatMarkdown:
		lines := []string{"# Research Notes\n"}
		for _, n := range notes {
			lines = append(lines,
				fmt.Sprintf("## [%d] %s\n", n.ID, n.Topic),
				fmt.Sprintf("**Query:** %s", n.Query),
				fmt.Sprintf("**Confidence:** %s | **Date:** %s\n", n.Confidence, n.CreatedAt),
				n.Summary+"\n",
				"---\n",
			)
		}
		return strings.Join(lines, "\n"), nil
	}
	return "", fmt.Errorf("%w: unknown export format %q", apperr.ErrValidation, format)
}
