package index

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/evidentia/policyrag/internal/rag"
)

// QdrantConfig holds connection parameters for a Qdrant-backed index.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantIndex implements rag.VectorIndex backed by a Qdrant collection.
// It exists for corpora that outgrow the flat on-disk dump; persistence is
// Qdrant's concern, so there is no Save/Load pair. Offsets are stored as
// numeric point IDs so the offset contract matches FlatIndex.
type QdrantIndex struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this index.
	cfg *QdrantConfig

	// next is the offset assigned to the next added entry. Maintained
	// locally: the index is write-once-then-read-many, and rebuilds
	// start from a fresh collection.
	next int
}

// NewQdrant creates a QdrantIndex, ensuring the target collection exists
// (creating it with inner-product distance if necessary).
func NewQdrant(ctx context.Context, cfg *QdrantConfig) (*QdrantIndex, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.VectorSize == 0 {
		return nil, fmt.Errorf("qdrant: vector size must be set")
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	ix := &QdrantIndex{client: client, cfg: cfg}
	if err := ix.ensureCollection(ctx); err != nil {
		return nil, err
	}
	ix.next = ix.countPoints(ctx)

	return ix, nil
}

// Client exposes the underlying gRPC client for health probing.
func (ix *QdrantIndex) Client() *qdrant.Client {
	return ix.client
}

// ensureCollection creates the Qdrant collection if it does not already
// exist. Dot-product distance is used because all stored vectors are
// L2-normalized upstream.
func (ix *QdrantIndex) ensureCollection(ctx context.Context) error {
	exists, err := ix.client.CollectionExists(ctx, ix.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = ix.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: ix.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     ix.cfg.VectorSize,
			Distance: qdrant.Distance_Dot,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", ix.cfg.Collection, err)
	}

	return nil
}

// countPoints returns the number of points in the collection, or 0 when
// the count cannot be determined.
func (ix *QdrantIndex) countPoints(ctx context.Context) int {
	exact := true
	n, err := ix.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: ix.cfg.Collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0
	}
	return int(n)
}

// Dim returns the configured embedding dimension.
func (ix *QdrantIndex) Dim() int { return int(ix.cfg.VectorSize) }

// Len returns the number of stored entries. Qdrant is queried with a
// background context; a transient failure reports 0, which readiness
// probes treat as "not ready" rather than an error.
func (ix *QdrantIndex) Len() int {
	return ix.countPoints(context.Background())
}

// Add upserts entries with sequential numeric point IDs so results map
// back to stable offsets, mirroring the flat index contract.
func (ix *QdrantIndex) Add(ctx context.Context, entries []rag.EmbeddedChunk) error {
	points := make([]*qdrant.PointStruct, 0, len(entries))
	for i, e := range entries {
		if len(e.Embedding) != ix.Dim() {
			return fmt.Errorf("qdrant: entry %d has dimension %d, collection dimension is %d: %w",
				i, len(e.Embedding), ix.Dim(), rag.ErrDimensionMismatch)
		}
		offset := ix.next + i
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(offset)),
			Vectors: qdrant.NewVectors(e.Embedding...),
			Payload: qdrant.NewValueMap(map[string]any{
				"text":        e.Text,
				"page_number": int64(e.Meta.PageNumber),
				"category":    e.Meta.Category,
			}),
		})
	}

	_, err := ix.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: ix.cfg.Collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}
	ix.next += len(entries)

	return nil
}

// Search performs an inner-product similarity search and returns the
// top-k results with their payload mapped back into chunks.
func (ix *QdrantIndex) Search(ctx context.Context, query []float32, topK int) ([]rag.ScoredChunk, error) {
	if len(query) != ix.Dim() {
		return nil, fmt.Errorf("qdrant: query has dimension %d, collection dimension is %d: %w",
			len(query), ix.Dim(), rag.ErrDimensionMismatch)
	}
	if topK <= 0 {
		return []rag.ScoredChunk{}, nil
	}

	limit := uint64(topK)
	results, err := ix.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: ix.cfg.Collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	chunks := make([]rag.ScoredChunk, 0, len(results))
	for _, r := range results {
		c := rag.ScoredChunk{
			Offset: int(r.Id.GetNum()),
			Score:  float64(r.Score),
		}
		if p := r.Payload; p != nil {
			if v, ok := p["text"]; ok {
				c.Text = v.GetStringValue()
			}
			if v, ok := p["page_number"]; ok {
				c.Meta.PageNumber = int(v.GetIntegerValue())
			}
			if v, ok := p["category"]; ok {
				c.Meta.Category = v.GetStringValue()
			}
		}
		chunks = append(chunks, c)
	}

	return chunks, nil
}

// Close closes the underlying Qdrant gRPC connection.
func (ix *QdrantIndex) Close() error {
	return ix.client.Close()
}
