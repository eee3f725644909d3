// Package rag defines the data model and interfaces for the
// retrieval-augmented answering pipeline: embedding, vector indexing,
// retrieval, reranking, and generation. Concrete implementations (flat
// on-disk index, Qdrant, HTTP cross-encoder, eino chat models) satisfy
// these interfaces so the pipeline never depends on a specific backend.
package rag

import (
	"context"
	"io"
)

// Embedder converts text into dense vector embeddings.
// Implementations must be deterministic for a fixed model version, return
// vectors of a fixed dimension, and be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex stores embedded chunks and supports nearest-neighbor search.
// Entries are assigned sequential integer offsets in insertion order;
// offsets are stable for the lifetime of the index.
// Implementations must be safe for concurrent Search calls; Add must not
// run concurrently with Search (rebuilds swap in a fresh index instead).
type VectorIndex interface {
	// Add appends entries in the given order, assigning each the next
	// sequential offset. It may be called repeatedly before persisting.
	Add(ctx context.Context, entries []EmbeddedChunk) error

	// Search returns up to topK entries ranked by descending inner-product
	// similarity, ties broken by ascending offset. A topK larger than the
	// index returns every entry; an empty index returns an empty slice.
	Search(ctx context.Context, query []float32, topK int) ([]ScoredChunk, error)

	// Dim is the embedding dimension the index was built with.
	Dim() int

	// Len is the number of stored entries.
	Len() int
}

// Retriever fetches the most relevant chunks for a query. It combines
// query embedding and vector search and is the boundary across which the
// embedding model must stay pinned to the one used at index-build time.
type Retriever interface {
	// Retrieve returns the top-k most relevant chunks for the query.
	Retrieve(ctx context.Context, query string, topK int) ([]ScoredChunk, error)
}

// Reranker rescores a small candidate set with a pairwise query-document
// relevance model and returns the top-n, ordered by descending rerank
// score. It exists because single-vector similarity over-retrieves
// semantically-near-but-irrelevant passages.
type Reranker interface {
	// Rerank scores every (query, chunk) pair, attaches the rerank score,
	// stable-sorts descending, and truncates to topN.
	Rerank(ctx context.Context, query string, chunks []ScoredChunk, topN int) ([]ScoredChunk, error)
}

// Generator produces an answer for a fully assembled prompt. It is an
// external collaborator (hosted or local LLM); the pipeline owns prompt
// construction and treats the generator as a black box.
type Generator interface {
	// Generate returns the complete answer text for the prompt.
	Generate(ctx context.Context, prompt string) (string, error)

	// Stream writes answer tokens to w as they arrive and returns the
	// accumulated answer. Cancelling ctx stops consumption mid-stream.
	Stream(ctx context.Context, prompt string, w io.Writer) (string, error)
}
