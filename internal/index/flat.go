// Package index provides the vector index implementations behind the
// rag.VectorIndex interface: a flat in-memory inner-product index with an
// on-disk dump (the default, sized for a single policy corpus) and a
// Qdrant-backed index for deployments that outgrow the flat file.
package index

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/evidentia/policyrag/internal/rag"
)

// FlatIndex is an exact nearest-neighbor index over unit-length vectors.
// Search is a brute-force inner-product scan; with L2-normalized inputs
// that is exactly cosine similarity. Entries are stored at sequential
// integer offsets in insertion order; offsets are stable for the lifetime
// of the index and tie-break equal scores for deterministic results.
//
// Search is safe for concurrent use. Add is not safe to run concurrently
// with Search; rebuilds construct a fresh FlatIndex and swap it in.
type FlatIndex struct {
	// mu guards vectors and entries. Search takes the read lock so the
	// read-many/write-rarely access pattern stays cheap.
	mu sync.RWMutex

	// dim is the fixed embedding dimension, set at construction.
	dim int

	// vectors holds one embedding per entry, parallel to entries.
	vectors [][]float32

	// entries holds the chunk content and metadata, parallel to vectors.
	entries []rag.Chunk
}

// NewFlat constructs an empty FlatIndex for vectors of the given dimension.
func NewFlat(dim int) (*FlatIndex, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("index: dimension must be positive, got %d", dim)
	}
	return &FlatIndex{dim: dim}, nil
}

// Dim returns the embedding dimension the index was built with.
func (ix *FlatIndex) Dim() int { return ix.dim }

// Len returns the number of stored entries.
func (ix *FlatIndex) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Add appends entries in order, assigning each the next sequential offset.
// It may be called repeatedly before Save. A vector whose length differs
// from the index dimension fails the whole batch without partial insertion.
func (ix *FlatIndex) Add(_ context.Context, entries []rag.EmbeddedChunk) error {
	for i, e := range entries {
		if len(e.Embedding) != ix.dim {
			return fmt.Errorf("index: entry %d has dimension %d, index dimension is %d: %w",
				i, len(e.Embedding), ix.dim, rag.ErrDimensionMismatch)
		}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, e := range entries {
		ix.vectors = append(ix.vectors, e.Embedding)
		ix.entries = append(ix.entries, e.Chunk)
	}
	return nil
}

// Search returns up to topK entries ranked by descending inner-product
// similarity, ties broken by ascending offset. A topK larger than the
// index returns every entry. Searching an empty index returns an empty
// result, not an error.
func (ix *FlatIndex) Search(_ context.Context, query []float32, topK int) ([]rag.ScoredChunk, error) {
	if len(query) != ix.dim {
		return nil, fmt.Errorf("index: query has dimension %d, index dimension is %d: %w",
			len(query), ix.dim, rag.ErrDimensionMismatch)
	}
	if topK <= 0 {
		return []rag.ScoredChunk{}, nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	results := make([]rag.ScoredChunk, 0, len(ix.entries))
	for off, vec := range ix.vectors {
		results = append(results, rag.ScoredChunk{
			Chunk:  ix.entries[off],
			Offset: off,
			Score:  dot(query, vec),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Offset < results[j].Offset
	})

	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// dot returns the inner product of two equal-length vectors, accumulated
// in float64 to keep score ordering stable across platforms.
func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
