package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/evidentia/policyrag/internal/logging"
)

// NewAskCmd constructs the `policyrag ask` command, which answers a single
// question from the indexed corpus and streams the answer to stdout.
func NewAskCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question about the indexed policy documents",
		Long: `Ask a natural language question about the indexed policy documents.

The answer is generated strictly from indexed content and streamed to
stdout, followed by the cited sources and quality metrics. Questions the
corpus cannot answer return "Not found in document".

Examples:
  policyrag ask "how many days of annual leave do employees get?"
  policyrag ask --json "what is the remote work policy?"
  INSIGHT_ENABLED=true policyrag ask "who approves expense claims?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			p, _, closeIndex, err := buildPipeline(ctx, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer closeIndex()

			history, closeHistory := openHistory(log)
			defer closeHistory()

			question := args[0]

			if jsonOut {
				resp, err := p.Answer(ctx, question)
				if err != nil {
					return fmt.Errorf("ask: %w", err)
				}
				if history != nil {
					if err := history.Record(ctx, question, resp); err != nil {
						log.Warn("history: record failed", slog.Any("error", err))
					}
				}
				return printJSON(resp)
			}

			resp, err := p.AnswerStream(ctx, question, os.Stdout)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			if history != nil {
				if err := history.Record(ctx, question, resp); err != nil {
					log.Warn("history: record failed", slog.Any("error", err))
				}
			}

			fmt.Println()
			fmt.Println()
			fmt.Println("Sources:")
			fmt.Println(resp.Sources)
			fmt.Printf("\nFaithfulness: %.2f (answerable: %t)\n",
				resp.Metrics.FaithfulnessScore, resp.Metrics.Answerable)
			fmt.Printf("Timings: retrieval %.2fms, rerank %.2fms, generation %.2fms\n",
				resp.Metrics.RetrievalTimeMs, resp.Metrics.RerankTimeMs, resp.Metrics.GenerationTimeMs)
			if resp.Insight != "" {
				fmt.Println("\nInsight:")
				fmt.Println(resp.Insight)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the full response as JSON instead of streaming text")

	return cmd
}
