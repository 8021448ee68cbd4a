package reports

import (
	"regexp"
	"strings"
)

var unsafeRun = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Slug makes value safe for use in a filename: every run of characters
// outside [A-Za-z0-9._-] becomes one hyphen, leading and trailing hyphens are
// trimmed, and an empty result becomes "report".
func Slug(value string) string {
	cleaned := unsafeRun.ReplaceAllString(strings.TrimSpace(value), "-")
	cleaned = strings.Trim(cleaned, "-")
	if cleaned == "" {
		return "report"
	}
	return cleaned
}
