// Package slug turns arbitrary text into filesystem-safe tokens.
package slug

import (
	"regexp"
	"strings"
)

// DefaultMaxLen is the truncation length used for directory and file names.
const DefaultMaxLen = 50

// Fallback replaces an empty slug in path names.
const Fallback = "untitled"

var (
	invalidRe = regexp.MustCompile(`[^a-z0-9-]+`)
	dashRunRe = regexp.MustCompile(`-{2,}`)
)

// Make lower-cases text, maps every character outside [a-z0-9-] to '-',
// collapses dash runs, trims dashes at both ends and truncates to maxLen.
// The result is empty when text holds no ASCII letters or digits.
func Make(text string, maxLen int) string {
	s := invalidRe.ReplaceAllString(strings.ToLower(text), "-")
	s = dashRunRe.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if maxLen > 0 && len(s) > maxLen {
		s = strings.TrimRight(s[:maxLen], "-")
	}
	return s
}

// OrDefault returns s, or Fallback when s is empty.
func OrDefault(s string) string {
	if s == "" {
		return Fallback
	}
	return s
}
