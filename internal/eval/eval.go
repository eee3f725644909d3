// Package eval measures answer quality after generation. Faithfulness is
// the semantic alignment between the generated answer and the retrieved
// context, computed as cosine similarity of their embeddings. It catches
// answers the model produced from its own priors rather than from the
// supplied passages.
package eval

import (
	"context"
	"fmt"
	"math"

	"github.com/evidentia/policyrag/internal/rag"
)

// DefaultThreshold is the faithfulness score at or above which an answer
// counts as grounded in the context. Tuned for practical use, not for
// academic benchmarks.
const DefaultThreshold = 0.35

// Faithfulness scores answers against their retrieval context using an
// embedding model. It is safe for concurrent use if its Embedder is.
type Faithfulness struct {
	// embedder produces the vectors compared by cosine similarity.
	embedder rag.Embedder

	// threshold is the answerable cutoff.
	threshold float64
}

// Result is the outcome of a faithfulness evaluation.
type Result struct {
	// Score is the cosine similarity of answer and context embeddings,
	// rounded to two decimals and clamped to [0, 1] semantics by the
	// embedding space (normalized vectors never exceed 1).
	Score float64 `json:"faithfulness_score"`

	// Answerable is true when Score meets the configured threshold.
	Answerable bool `json:"answerable"`
}

// NewFaithfulness constructs a Faithfulness evaluator. A threshold of 0
// selects DefaultThreshold.
func NewFaithfulness(embedder rag.Embedder, threshold float64) (*Faithfulness, error) {
	if embedder == nil {
		return nil, fmt.Errorf("eval: embedder must not be nil")
	}
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("eval: threshold must be in [0, 1], got %v", threshold)
	}
	return &Faithfulness{embedder: embedder, threshold: threshold}, nil
}

// Evaluate embeds the answer and the context and returns their rounded
// cosine similarity plus the answerable verdict. An empty answer or empty
// context short-circuits to {0.0, false} without calling the embedder.
func (f *Faithfulness) Evaluate(ctx context.Context, answer, contextText string) (Result, error) {
	if answer == "" || contextText == "" {
		return Result{Score: 0.0, Answerable: false}, nil
	}

	vecs, err := f.embedder.Embed(ctx, []string{answer, contextText})
	if err != nil {
		return Result{}, fmt.Errorf("eval: embedding for faithfulness failed: %w", err)
	}
	if len(vecs) != 2 {
		return Result{}, fmt.Errorf("eval: expected 2 embeddings, got %d", len(vecs))
	}

	sim, err := Cosine(vecs[0], vecs[1])
	if err != nil {
		return Result{}, fmt.Errorf("eval: %w", err)
	}

	score := math.Round(sim*100) / 100
	return Result{
		Score:      score,
		Answerable: score >= f.threshold,
	}, nil
}

// Cosine returns the cosine similarity of two equal-length vectors.
// A zero vector on either side yields 0 rather than NaN.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("cosine of vectors with dimensions %d and %d: %w",
			len(a), len(b), rag.ErrDimensionMismatch)
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// RecallStats summarizes how confident retrieval was for a query.
type RecallStats struct {
	// AvgScore is the mean retrieval score across the returned chunks.
	AvgScore float64 `json:"avg_score"`
}

// Recall computes retrieval statistics for a result set. An empty set
// yields zeroed stats.
func Recall(chunks []rag.ScoredChunk) RecallStats {
	if len(chunks) == 0 {
		return RecallStats{}
	}
	var sum float64
	for _, c := range chunks {
		sum += c.Score
	}
	return RecallStats{AvgScore: sum / float64(len(chunks))}
}
