package pipeline

import (
	"fmt"
	"strings"

	"github.com/evidentia/policyrag/internal/rag"
)

// BuildContext renders the retrieved chunks as a bulleted block for the
// answer prompt: one "- text" line per chunk, blocks separated by a blank
// line. An empty input yields an empty string.
func BuildContext(chunks []rag.ScoredChunk) string {
	if len(chunks) == 0 {
		return ""
	}
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = "- " + c.Text
	}
	return strings.Join(parts, "\n\n")
}

// FormatSources renders the numbered citation list shown to the caller:
// one "[i] Page X (score=0.xxx)" line per chunk, 1-based, in chunk order.
// A chunk with no page renders "Page N/A". The score shown is the rerank
// score when reranking ran, the retrieval score otherwise.
func FormatSources(chunks []rag.ScoredChunk) string {
	lines := make([]string, len(chunks))
	for i, c := range chunks {
		page := "N/A"
		if c.Meta.PageNumber > 0 {
			page = fmt.Sprintf("%d", c.Meta.PageNumber)
		}
		lines[i] = fmt.Sprintf("[%d] Page %s (score=%.3f)", i+1, page, c.RankScore())
	}
	return strings.Join(lines, "\n")
}
