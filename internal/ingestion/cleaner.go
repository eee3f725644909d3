package ingestion

import "strings"

// CleanText normalizes whitespace: runs of spaces, tabs and newlines
// collapse to a single space and the result is trimmed. Nothing else is
// touched; broken PDF extraction is not repaired here.
func CleanText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
