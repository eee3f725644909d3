package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/evidentia/policyrag/internal/embedder"
	"github.com/evidentia/policyrag/internal/eval"
	"github.com/evidentia/policyrag/internal/logging"
	"github.com/evidentia/policyrag/internal/pipeline"
	"github.com/evidentia/policyrag/internal/rag"
)

// NewSearchCmd constructs the `policyrag search` command, which runs the
// retrieval stage only and prints the scored chunks. It exists for
// inspecting what the index returns before generation gets involved.
func NewSearchCmd() *cobra.Command {
	var topK int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the index and print the raw retrieved chunks",
		Long: `Run vector retrieval for a query and print the scored chunks without
generating an answer. Useful for judging retrieval quality and tuning
chunking parameters.

Examples:
  policyrag search "annual leave entitlement"
  policyrag search --top-k 20 "probation period"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			emb, dim, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("search: failed to initialise embedder: %w", err)
			}

			ix, closeIndex, err := openIndex(ctx, dim, log)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			defer closeIndex()

			retriever, err := rag.NewRetriever(emb, ix, dim, topK)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			chunks, err := retriever.Retrieve(ctx, args[0], topK)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			if jsonOut {
				return printJSON(chunks)
			}

			if len(chunks) == 0 {
				fmt.Println("no results")
				return nil
			}
			stats := eval.Recall(chunks)
			for i, c := range chunks {
				page := "N/A"
				if c.Meta.PageNumber > 0 {
					page = fmt.Sprintf("%d", c.Meta.PageNumber)
				}
				fmt.Printf("[%d] score=%.3f page=%s category=%s\n%s\n\n",
					i+1, c.Score, page, c.Meta.Category, c.Text)
			}
			fmt.Printf("%d chunks, avg score %.3f\n", len(chunks), stats.AvgScore)
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", pipeline.DefaultTopK, "Number of chunks to retrieve")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print results as JSON")

	return cmd
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
