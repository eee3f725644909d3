// Package chunker converts ingestion paragraphs into retrieval-ready
// chunks. Consecutive documents are merged into a running buffer until the
// merged text would exceed the token ceiling; buffers that reached the
// token floor are emitted, smaller ones are dropped as noise. The resulting
// chunks are the atomic units stored in the vector index.
package chunker

import (
	"strings"

	"github.com/evidentia/policyrag/internal/rag"
	"github.com/evidentia/policyrag/internal/token"
)

// Default token bounds for persisted chunks. Both are overridable via
// configuration; the defaults suit policy-manual prose where a retrieval
// unit should carry a complete clause but stay well inside an embedding
// model's input window.
const (
	// DefaultMaxTokens is the ceiling a merged buffer may reach.
	DefaultMaxTokens = 500

	// DefaultMinTokens is the floor a buffer must reach to be emitted.
	DefaultMinTokens = 150
)

// Chunker merges ordered Documents into token-bounded Chunks.
// The zero value is not usable; construct with New.
type Chunker struct {
	// maxTokens is the inclusive upper bound for a merged buffer.
	maxTokens int

	// minTokens is the inclusive lower bound for an emitted chunk.
	minTokens int

	// count measures token length. Injectable so tests can pin counts;
	// defaults to token.Estimate.
	count token.Counter
}

// Option customises a Chunker.
type Option func(*Chunker)

// WithCounter overrides the token counter. The counter must be
// deterministic: chunk bounds are an index-build invariant.
func WithCounter(c token.Counter) Option {
	return func(ch *Chunker) {
		if c != nil {
			ch.count = c
		}
	}
}

// New constructs a Chunker with the given token bounds. Non-positive
// bounds fall back to the defaults; a floor above the ceiling is clamped
// to the ceiling.
func New(maxTokens, minTokens int, opts ...Option) *Chunker {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if minTokens <= 0 {
		minTokens = DefaultMinTokens
	}
	if minTokens > maxTokens {
		minTokens = maxTokens
	}
	ch := &Chunker{
		maxTokens: maxTokens,
		minTokens: minTokens,
		count:     token.Estimate,
	}
	for _, opt := range opts {
		opt(ch)
	}
	return ch
}

// Chunk merges the ordered document sequence into chunks.
//
// The buffer is seeded from the first document. Each subsequent document is
// tentatively merged (joined with a single space); if the merged length
// stays within the ceiling the merge is kept and the incoming metadata is
// discarded; a chunk keeps the metadata of its first contributing
// document. On overflow the buffer is emitted if it reached the floor and
// silently dropped otherwise, and the buffer restarts from the current
// document either way. The final buffer is flushed under the same floor
// rule. An empty input produces an empty output; a single document below
// the floor produces no chunks; small fragments are treated as noise and
// the loss is accepted.
func (ch *Chunker) Chunk(docs []rag.Document) []rag.Chunk {
	var chunks []rag.Chunk

	var bufText string
	var bufMeta rag.Metadata

	for _, doc := range docs {
		if bufText == "" {
			bufText = doc.Text
			bufMeta = doc.Meta
			continue
		}

		merged := bufText + " " + doc.Text

		// Still within the ceiling: keep merging.
		if ch.count(merged) <= ch.maxTokens {
			bufText = merged
			continue
		}

		// Overflow: emit the buffer when it is meaningful.
		if ch.count(bufText) >= ch.minTokens {
			chunks = append(chunks, rag.Chunk{Text: bufText, Meta: bufMeta})
		}

		// Restart from the current document regardless of whether the
		// buffer was emitted; sub-floor buffers are not carried forward.
		bufText = doc.Text
		bufMeta = doc.Meta
	}

	// Flush the final buffer under the same floor rule.
	if bufText != "" && ch.count(bufText) >= ch.minTokens {
		chunks = append(chunks, rag.Chunk{Text: bufText, Meta: bufMeta})
	}

	return chunks
}

// Texts returns the chunk texts in order, for batched embedding.
func Texts(chunks []rag.Chunk) []string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = strings.Clone(c.Text)
	}
	return texts
}
