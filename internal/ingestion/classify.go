package ingestion

import (
	"strings"
	"unicode"
)

// Categories assigned to extracted text blocks. Only these two survive
// ingestion; headers, footers and fragments are filtered out by length.
const (
	// CategoryNarrative marks ordinary paragraph prose.
	CategoryNarrative = "narrative"

	// CategoryListItem marks bulleted or numbered list entries.
	CategoryListItem = "list_item"
)

// MinFragmentLen is the minimum cleaned-text length, in bytes, for a block
// to be kept. Shorter blocks are page furniture (headings, footers, stray
// numbers) that add noise to retrieval.
const MinFragmentLen = 150

// Classify assigns a category to a cleaned text block. A block is a list
// item when it opens with a bullet glyph or an enumerator like "1." or
// "a)"; everything else is narrative.
func Classify(text string) string {
	if isListItem(text) {
		return CategoryListItem
	}
	return CategoryNarrative
}

func isListItem(text string) bool {
	if text == "" {
		return false
	}

	switch text[0] {
	case '-', '*':
		return len(text) > 1 && text[1] == ' '
	}
	if r := []rune(text)[0]; r == '•' || r == '●' || r == '▪' {
		return true
	}

	// Enumerators: one or more digits, or a single letter, followed by
	// "." or ")" and a space.
	head, _, found := strings.Cut(text, " ")
	if !found || len(head) < 2 {
		return false
	}
	mark := head[len(head)-1]
	if mark != '.' && mark != ')' {
		return false
	}
	body := head[:len(head)-1]
	if len(body) == 1 && unicode.IsLetter(rune(body[0])) {
		return true
	}
	for _, r := range body {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
