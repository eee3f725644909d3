package rag

// Metadata describes where a piece of text came from inside the source
// document. It travels with a Document into the Chunk that absorbs it and
// is what citation formatting reads at answer time.
type Metadata struct {
	// PageNumber is the 1-based page the text was extracted from.
	// Zero means the page is unknown and citations render the "N/A" sentinel.
	PageNumber int

	// Category classifies the extracted block (e.g. "narrative", "list_item").
	Category string
}

// Document is a raw extracted text unit produced by ingestion.
// Documents exist only during index build; they are merged into Chunks
// and discarded.
type Document struct {
	// Text is the cleaned paragraph text.
	Text string

	// Meta identifies the origin of the text.
	Meta Metadata
}

// Chunk is a token-bounded merge of one or more consecutive Documents.
// A Chunk keeps the Metadata of its first contributing Document and is
// immutable once created; it is the atomic retrieval unit.
type Chunk struct {
	// Text is the merged chunk text.
	Text string

	// Meta is the metadata of the first Document merged into this chunk.
	Meta Metadata
}

// EmbeddedChunk is a Chunk together with its dense vector representation.
// The embedding is L2-normalized at embedding time so inner product equals
// cosine similarity downstream.
type EmbeddedChunk struct {
	Chunk

	// Embedding is the fixed-dimension, unit-length vector for Text.
	Embedding []float32
}

// ScoredChunk is a Chunk annotated with retrieval and (optionally)
// reranking scores. Once Reranked is true, RerankScore supersedes Score
// for ordering and citation display.
type ScoredChunk struct {
	Chunk

	// Offset is the stable integer position of the chunk inside the index.
	Offset int

	// Score is the inner-product similarity assigned by the initial
	// vector search.
	Score float64

	// RerankScore is the pairwise relevance score assigned by the
	// reranker. Only meaningful when Reranked is true.
	RerankScore float64

	// Reranked reports whether RerankScore has been computed.
	Reranked bool
}

// RankScore returns the score that currently orders this chunk:
// RerankScore when the reranker has run, the retrieval Score otherwise.
func (c ScoredChunk) RankScore() float64 {
	if c.Reranked {
		return c.RerankScore
	}
	return c.Score
}

// QueryMetrics holds the per-request timing and evaluation measurements.
// Values are derived fresh for every request and never persisted.
type QueryMetrics struct {
	// RetrievalTimeMs is the wall-clock duration of query embedding plus
	// vector search, in milliseconds rounded to 2 decimals.
	RetrievalTimeMs float64 `json:"retrieval_time_ms"`

	// RerankTimeMs is the wall-clock duration of the rerank stage.
	RerankTimeMs float64 `json:"rerank_time_ms"`

	// GenerationTimeMs is the wall-clock duration of answer generation.
	GenerationTimeMs float64 `json:"generation_time_ms"`

	// FaithfulnessScore is the semantic alignment between the generated
	// answer and its context, in [0,1] rounded to 2 decimals.
	FaithfulnessScore float64 `json:"faithfulness_score"`

	// Answerable is true when FaithfulnessScore meets the configured
	// threshold.
	Answerable bool `json:"answerable"`
}

// Response is the unit returned to a caller for a single question.
type Response struct {
	// Answer is the generated answer text.
	Answer string `json:"answer"`

	// Sources is the numbered citation list aligned with the in-text
	// [1], [2], … markers the generator is instructed to emit.
	Sources string `json:"sources"`

	// Metrics are the per-request measurements.
	Metrics QueryMetrics `json:"metrics"`

	// Insight is an optional natural-language system-health summary
	// produced from Metrics and Sources. Empty when insight generation
	// is disabled.
	Insight string `json:"insight,omitempty"`
}
