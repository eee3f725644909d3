package embedder

import (
	"context"
	"fmt"
	"math"

	"github.com/evidentia/policyrag/internal/rag"
)

// normalized wraps an Embedder so every returned vector is L2-normalized
// and has the pinned dimension. Stored and query vectors must be
// unit-length for the index's inner-product search to equal cosine
// similarity; enforcing it here keeps the invariant out of every caller.
type normalized struct {
	// inner is the backend embedder being wrapped.
	inner rag.Embedder

	// dim is the expected vector length. Zero disables the check (the
	// backend's model default is trusted and pinned by first use).
	dim int
}

// Normalized wraps inner so its output vectors are L2-normalized and
// checked against dim. A backend returning a vector of a different length
// is a configuration error; the pipeline must fail fast rather than
// silently truncate or pad.
func Normalized(inner rag.Embedder, dim int) rag.Embedder {
	return &normalized{inner: inner, dim: dim}
}

// Embed delegates to the wrapped embedder, then validates and normalizes
// each vector in place.
func (n *normalized) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := n.inner.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	for i, v := range vecs {
		if n.dim > 0 && len(v) != n.dim {
			return nil, fmt.Errorf("embedder: vector %d has dimension %d, configured dimension is %d: %w",
				i, len(v), n.dim, rag.ErrDimensionMismatch)
		}
		NormL2(v)
	}
	return vecs, nil
}

// NormL2 scales v to unit length in place. The zero vector is left
// untouched; normalizing it is undefined and downstream scoring treats
// it as similarity zero everywhere.
func NormL2(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
}
