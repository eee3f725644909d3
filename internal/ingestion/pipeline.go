// Package ingestion builds the searchable index from source PDFs. It
// extracts and filters text blocks per page, merges them into
// token-bounded chunks, embeds the chunks and loads them into a fresh
// vector index. This pipeline is invoked by the `policyrag ingest` CLI
// command.
package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/evidentia/policyrag/internal/chunker"
	"github.com/evidentia/policyrag/internal/index"
	"github.com/evidentia/policyrag/internal/logging"
	"github.com/evidentia/policyrag/internal/rag"
)

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// MaxTokens is the chunk token ceiling (default: chunker.DefaultMaxTokens).
	MaxTokens int

	// MinTokens is the chunk token floor (default: chunker.DefaultMinTokens).
	MinTokens int

	// EmbedBatchSize is how many chunk texts go to the embedder per call.
	// Defaults to 32 if zero.
	EmbedBatchSize int
}

// Pipeline orchestrates the extract, chunk, embed, and load flow for a set
// of PDF files.
type Pipeline struct {
	// embedder converts chunk texts into dense vector embeddings.
	embedder rag.Embedder

	// dim is the embedder's output dimension; the built index is pinned to it.
	dim int

	// chunk merges extracted documents into token-bounded chunks.
	chunk *chunker.Chunker

	// cfg holds the resolved pipeline configuration.
	cfg *Config

	// extract pulls documents out of one source file. Overridden in tests.
	extract func(path string) ([]rag.Document, error)
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(embedder rag.Embedder, dim int, cfg *Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if dim <= 0 {
		return nil, fmt.Errorf("ingestion: embedding dimension must be positive, got %d", dim)
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = chunker.DefaultMaxTokens
	}
	if cfg.MinTokens <= 0 {
		cfg.MinTokens = chunker.DefaultMinTokens
	}
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = 32
	}

	return &Pipeline{
		embedder: embedder,
		dim:      dim,
		chunk:    chunker.New(cfg.MaxTokens, cfg.MinTokens),
		cfg:      cfg,
		extract:  ExtractPDF,
	}, nil
}

// Build extracts every source PDF, chunks and embeds the results, and
// returns a fresh in-memory index ready to be persisted.
func (p *Pipeline) Build(ctx context.Context, paths []string, progress func(msg string)) (*index.FlatIndex, error) {
	ix, err := index.NewFlat(p.dim)
	if err != nil {
		return nil, fmt.Errorf("ingestion: %w", err)
	}
	if err := p.BuildInto(ctx, ix, paths, progress); err != nil {
		return nil, err
	}
	return ix, nil
}

// BuildInto extracts every source PDF, chunks and embeds the results, and
// loads them into target. The target must be empty: offsets are assigned
// sequentially from zero. Extraction runs one goroutine per file; a file
// that fails to extract is logged and skipped, but if every file fails the
// build errors. Chunk order follows the order of paths, so repeated builds
// over the same corpus produce identical offsets. Progress is reported via
// the optional callback.
func (p *Pipeline) BuildInto(ctx context.Context, target rag.VectorIndex, paths []string, progress func(msg string)) error {
	if progress == nil {
		progress = func(string) {}
	}
	if len(paths) == 0 {
		return fmt.Errorf("ingestion: no source files given")
	}
	log := logging.Component(ctx, "ingestion")

	// Extract all files concurrently, keeping results in path order.
	perFile := make([][]rag.Document, len(paths))
	errs := make([]error, len(paths))
	var wg sync.WaitGroup
	for i, path := range paths {
		wg.Add(1)
		go func() {
			defer wg.Done()
			perFile[i], errs[i] = p.extract(path)
		}()
	}
	wg.Wait()

	var docs []rag.Document
	failed := 0
	for i, path := range paths {
		if errs[i] != nil {
			failed++
			log.Warn("source skipped", slog.String("path", path), slog.Any("error", errs[i]))
			continue
		}
		progress(fmt.Sprintf("extracted %d blocks from %s", len(perFile[i]), path))
		docs = append(docs, perFile[i]...)
	}
	if failed == len(paths) {
		return fmt.Errorf("ingestion: all %d source files failed to extract", failed)
	}

	chunks := p.chunk.Chunk(docs)
	progress(fmt.Sprintf("merged %d blocks into %d chunks", len(docs), len(chunks)))
	if len(chunks) == 0 {
		return fmt.Errorf("ingestion: no chunks produced; sources contain no usable text")
	}

	for start := 0; start < len(chunks); start += p.cfg.EmbedBatchSize {
		end := start + p.cfg.EmbedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vectors, err := p.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("ingestion: embedding batch at %d failed: %w", start, err)
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf("ingestion: expected %d embeddings, got %d", len(batch), len(vectors))
		}

		entries := make([]rag.EmbeddedChunk, len(batch))
		for i, c := range batch {
			entries[i] = rag.EmbeddedChunk{Chunk: c, Embedding: vectors[i]}
		}
		if err := target.Add(ctx, entries); err != nil {
			return fmt.Errorf("ingestion: %w", err)
		}
		progress(fmt.Sprintf("embedded %d/%d chunks", end, len(chunks)))
	}

	return nil
}
