package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/evidentia/policyrag/internal/embedder"
	"github.com/evidentia/policyrag/internal/index"
	"github.com/evidentia/policyrag/internal/ingestion"
	"github.com/evidentia/policyrag/internal/logging"
)

// NewIngestCmd constructs the `policyrag ingest` command, which extracts,
// chunks and embeds policy PDFs into the vector index.
func NewIngestCmd() *cobra.Command {
	var outDir string
	var maxTokens int
	var minTokens int

	cmd := &cobra.Command{
		Use:   "ingest [pdf...]",
		Short: "Ingest policy PDFs into the vector index",
		Long: `Extract, chunk and embed policy PDF documents into the vector index.

Text is extracted per page, cleaned, filtered (fragments and list items are
dropped) and merged into token-bounded chunks before embedding. The built
index replaces any previous index at the output directory atomically.

Relevant environment variables:
  EMBEDDING_PROVIDER   Embedding backend: ollama, openai, azure (default: ollama)
  EMBEDDING_MODEL      Embedding model name
  INDEX_BACKEND        flat (local dump, default) or qdrant
  INDEX_DIR            Output directory for the flat index (default: index)
  QDRANT_*             Qdrant connection settings for the qdrant backend

Examples:
  policyrag ingest hr-policy.pdf
  policyrag ingest --out /var/lib/policyrag/index docs/*.pdf
  INDEX_BACKEND=qdrant policyrag ingest hr-policy.pdf`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if err := embedder.Validate(log); err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			emb, dim, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("ingest: failed to initialise embedder: %w", err)
			}
			log.Info("embedder initialised",
				slog.String("provider", embedder.Backend()),
				slog.Int("dimensions", dim),
			)

			// Flags override env, env overrides chunker defaults.
			if maxTokens == 0 {
				maxTokens = getEnvInt("CHUNK_MAX_TOKENS", 0)
			}
			if minTokens == 0 {
				minTokens = getEnvInt("CHUNK_MIN_TOKENS", 0)
			}

			p, err := ingestion.NewPipeline(emb, dim, &ingestion.Config{
				MaxTokens: maxTokens,
				MinTokens: minTokens,
			})
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			progress := func(msg string) { log.Info(msg) }

			if getEnvOrDefault("INDEX_BACKEND", "flat") == "qdrant" {
				ix, err := index.NewQdrant(ctx, &index.QdrantConfig{
					Host:       getEnvOrDefault("QDRANT_HOST", "localhost"),
					Port:       getEnvInt("QDRANT_PORT", 6334),
					Collection: getEnvOrDefault("QDRANT_COLLECTION", "policyrag-chunks"),
					VectorSize: uint64(dim), //nolint:gosec // dimensions are bounded
					APIKey:     os.Getenv("QDRANT_API_KEY"),
					UseTLS:     os.Getenv("QDRANT_TLS") == "true",
				})
				if err != nil {
					return fmt.Errorf("ingest: failed to connect to Qdrant: %w", err)
				}
				defer func() { _ = ix.Close() }()

				if err := p.BuildInto(ctx, ix, args, progress); err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
				log.Info("ingestion complete",
					slog.Int("sources", len(args)),
					slog.Int("chunks", ix.Len()),
				)
				return nil
			}

			ix, err := p.Build(ctx, args, progress)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			if outDir == "" {
				outDir = getEnvOrDefault("INDEX_DIR", defaultIndexDir)
			}
			if err := ix.Save(outDir); err != nil {
				return fmt.Errorf("ingest: saving index: %w", err)
			}

			log.Info("ingestion complete",
				slog.Int("sources", len(args)),
				slog.Int("chunks", ix.Len()),
				slog.String("index_dir", outDir),
			)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory for the flat index (default: $INDEX_DIR or ./index)")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "Chunk size ceiling in estimated tokens (default: 500)")
	cmd.Flags().IntVar(&minTokens, "min-tokens", 0, "Minimum chunk size in estimated tokens (default: 150)")

	return cmd
}
