// Package mirror writes a human-readable Markdown copy of each note into the
// workspace and watches the workspace for out-of-band changes. Mirror files
// are write-only: nothing here feeds them back into the store.
package mirror

import (
	"fmt"
	"strings"

	"github.com/starford/fathom/internal/models"
)

// Render formats n as a mirror file. Lines are joined with "\n" and the
// result carries no trailing newline.
func Render(n models.Note) string {
	lines := []string{
		"# " + n.Topic,
		"\n**Query:** " + n.Query,
		"**Confidence:** " + string(n.Confidence),
		"**Date:** " + n.CreatedAt,
	}
	if len(n.Tags) > 0 {
		lines = append(lines, "**Tags:** "+n.TagString())
	}

	lines = append(lines, "\n## Summary\n\n"+n.Summary)

	if n.RawFindings != "" {
		lines = append(lines, "\n## Raw Findings\n\n"+n.RawFindings)
	}

	if n.Sources != "" {
		lines = append(lines, "\n## Sources\n")
		sources, err := n.SourceList()
		if err != nil {
			lines = append(lines, "- "+n.Sources)
		} else {
			for _, s := range sources {
				lines = append(lines, sourceLine(s))
			}
		}
	}

	return strings.Join(lines, "\n")
}

func sourceLine(s models.Source) string {
	title := s.Title
	if title == "" {
		title = s.URL
	}
	if title == "" {
		title = "Unknown"
	}
	line := fmt.Sprintf("- [%s](%s)", title, s.URL)
	if s.Accessed != "" {
		line += " (accessed " + s.Accessed + ")"
	}
	return line
}
