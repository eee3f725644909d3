// Package token provides deterministic token-length estimation for chunk
// sizing and prompt budgeting. Because the pipeline supports multiple
// embedding and generation backends with different tokenizers, it uses a
// fixed in-process estimator rather than any model's own vocabulary: a word
// is one token when short, and longer words are charged one extra token per
// started 4-character subword span. The estimate is used only for length
// bounds, never for encoding, so a fixed model-agnostic rule is sufficient.
// What matters is that indexing and re-indexing count identically.
package token

import (
	"strings"
	"unicode"
)

// charsPerSubword is the span length used to charge long words with extra
// tokens. 4 chars/token is the standard ratio for English prose and code;
// whole short words stay at one token, matching subword tokenizers closely
// enough for bound enforcement.
const charsPerSubword = 4

// Counter is the function type the chunker uses to measure text. It exists
// so tests can pin exact counts; production code passes Estimate.
type Counter func(text string) int

// Estimate returns the estimated token length of text.
// The empty string and all-whitespace strings estimate to zero.
func Estimate(text string) int {
	total := 0
	for _, field := range strings.FieldsFunc(text, splitRune) {
		n := len(field)
		if n == 0 {
			continue
		}
		// One token for the word, plus one per additional started
		// 4-character span for long words.
		total += 1 + (n-1)/charsPerSubword
	}
	return total
}

// splitRune reports whether r separates tokens: any whitespace, plus
// punctuation that subword tokenizers emit as standalone tokens would only
// inflate the count, so punctuation stays attached to its word.
func splitRune(r rune) bool {
	return unicode.IsSpace(r)
}
