// Package sanitize normalizes user-supplied identity strings before
// they are persisted or echoed back in API responses.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// strict strips all markup; display names are plain text.
var strict = bluemonday.StrictPolicy()

// DisplayName strips any markup from a name and collapses internal
// whitespace. The result is safe to store and render anywhere.
func DisplayName(s string) string {
	s = strict.Sanitize(s)
	// StrictPolicy escapes entities; undo that so "O'Brien" survives.
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

// LoginID lowercases and trims a login identifier.
func LoginID(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
