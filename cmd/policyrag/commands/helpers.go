package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/evidentia/policyrag/internal/embedder"
	"github.com/evidentia/policyrag/internal/eval"
	"github.com/evidentia/policyrag/internal/index"
	"github.com/evidentia/policyrag/internal/pipeline"
	"github.com/evidentia/policyrag/internal/provider"
	"github.com/evidentia/policyrag/internal/rag"
	"github.com/evidentia/policyrag/internal/reranker"
	"github.com/evidentia/policyrag/internal/server"
	"github.com/evidentia/policyrag/internal/store"
)

// defaultIndexDir is where the flat index dump lives unless INDEX_DIR is set.
const defaultIndexDir = "index"

// openIndex opens the configured vector index backend for querying.
// The returned close function releases backend connections; for the flat
// backend it is a no-op.
func openIndex(ctx context.Context, dim int, log *slog.Logger) (rag.VectorIndex, func(), error) {
	backend := getEnvOrDefault("INDEX_BACKEND", "flat")

	switch backend {
	case "flat":
		dir := getEnvOrDefault("INDEX_DIR", defaultIndexDir)
		ix, err := index.Load(dir)
		if err != nil {
			return nil, nil, fmt.Errorf("opening flat index at %s: %w", dir, err)
		}
		log.Info("flat index loaded",
			slog.String("dir", dir),
			slog.Int("chunks", ix.Len()),
			slog.Int("dim", ix.Dim()),
		)
		return ix, func() {}, nil

	case "qdrant":
		ix, err := index.NewQdrant(ctx, &index.QdrantConfig{
			Host:       getEnvOrDefault("QDRANT_HOST", "localhost"),
			Port:       getEnvInt("QDRANT_PORT", 6334),
			Collection: getEnvOrDefault("QDRANT_COLLECTION", "policyrag-chunks"),
			VectorSize: uint64(dim), //nolint:gosec // dimensions are bounded
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     os.Getenv("QDRANT_TLS") == "true",
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to qdrant: %w", err)
		}
		log.Info("qdrant index ready",
			slog.String("host", getEnvOrDefault("QDRANT_HOST", "localhost")),
			slog.String("collection", getEnvOrDefault("QDRANT_COLLECTION", "policyrag-chunks")),
		)
		return ix, func() { _ = ix.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown INDEX_BACKEND %q (want flat or qdrant)", backend)
	}
}

// buildPipeline assembles the full question-answering pipeline from the
// environment: embedder, index, retriever, optional reranker, generator and
// evaluator. The returned close function releases index connections.
func buildPipeline(ctx context.Context, log *slog.Logger) (*pipeline.Pipeline, rag.VectorIndex, func(), error) {
	emb, dim, err := embedder.NewFromEnv()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("initialising embedder: %w", err)
	}
	log.Info("embedder initialised",
		slog.String("provider", embedder.Backend()),
		slog.Int("dimensions", dim),
	)

	ix, closeIndex, err := openIndex(ctx, dim, log)
	if err != nil {
		return nil, nil, nil, err
	}

	topK := getEnvInt("RETRIEVAL_TOP_K", pipeline.DefaultTopK)
	retriever, err := rag.NewRetriever(emb, ix, dim, topK)
	if err != nil {
		closeIndex()
		return nil, nil, nil, fmt.Errorf("initialising retriever: %w", err)
	}

	// Reranking is optional: without RERANK_URL the pipeline keeps
	// retrieval order and truncates to top-n.
	var rr rag.Reranker
	if url := os.Getenv("RERANK_URL"); url != "" {
		rr = reranker.New(&reranker.Config{
			BaseURL: url,
			APIKey:  os.Getenv("RERANK_API_KEY"),
			Model:   os.Getenv("RERANK_MODEL"),
		})
		log.Info("reranker enabled", slog.String("url", url))
	} else {
		log.Info("reranker disabled", slog.String("reason", "RERANK_URL not set"))
	}

	chatModel, err := provider.NewFromEnv(ctx)
	if err != nil {
		closeIndex()
		return nil, nil, nil, fmt.Errorf("initialising model provider: %w", err)
	}
	gen, err := provider.NewGenerator(chatModel)
	if err != nil {
		closeIndex()
		return nil, nil, nil, fmt.Errorf("initialising generator: %w", err)
	}

	threshold := getEnvFloat("EVAL_THRESHOLD", eval.DefaultThreshold)
	evaluator, err := eval.NewFaithfulness(emb, threshold)
	if err != nil {
		closeIndex()
		return nil, nil, nil, fmt.Errorf("initialising evaluator: %w", err)
	}

	p, err := pipeline.New(&pipeline.Config{
		Retriever: retriever,
		Reranker:  rr,
		Generator: gen,
		Evaluator: evaluator,
		TopK:      topK,
		TopN:      getEnvInt("RERANK_TOP_N", pipeline.DefaultTopN),
		Insight:   os.Getenv("INSIGHT_ENABLED") == "true",
	})
	if err != nil {
		closeIndex()
		return nil, nil, nil, fmt.Errorf("assembling pipeline: %w", err)
	}

	return p, ix, closeIndex, nil
}

// buildPingers constructs the readiness probes for the HTTP server: the
// loaded index plus any HTTP dependencies that are configured.
func buildPingers(ix rag.VectorIndex) []server.Pinger {
	pingers := []server.Pinger{server.NewIndexPinger(ix)}

	if qx, isQdrant := ix.(*index.QdrantIndex); isQdrant {
		pingers = append(pingers, server.NewQdrantPinger(qx.Client()))
	}
	if url := os.Getenv("EMBEDDING_ENDPOINT"); url != "" {
		pingers = append(pingers, server.NewHTTPPinger(url, "embedder"))
	}
	if url := os.Getenv("RERANK_URL"); url != "" {
		pingers = append(pingers, server.NewHTTPPinger(url+"/v1/health", "reranker"))
	}

	return pingers
}

// openHistory opens the ask-history store. POLICYRAG_HISTORY_DB overrides
// the default path (~/.policyrag/history.db); "disabled" turns history off.
// Failures degrade to a nil store with a warning: history is never fatal.
func openHistory(log *slog.Logger) (store.HistoryStore, func()) {
	dbPath := os.Getenv("POLICYRAG_HISTORY_DB")
	if dbPath == "disabled" {
		log.Info("history: disabled via POLICYRAG_HISTORY_DB=disabled")
		return nil, func() {}
	}
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil, func() {}
		}
	}
	hs, err := store.Open(dbPath)
	if err != nil {
		log.Warn("history: failed to open store, disabling", slog.Any("error", err))
		return nil, func() {}
	}
	log.Info("history: store opened", slog.String("path", dbPath))
	return hs, func() { _ = hs.Close() }
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvFloat returns the float value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
