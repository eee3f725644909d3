package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evidentia/policyrag/internal/logging"
)

// NewHistoryCmd constructs the `policyrag history` command, which prints
// the most recently answered questions from the local history database.
func NewHistoryCmd() *cobra.Command {
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently answered questions",
		Long: `Show the most recently answered questions with their faithfulness scores.

History is persisted to a local SQLite database; set POLICYRAG_HISTORY_DB
to change the path or to "disabled" to turn history off.

Examples:
  policyrag history
  policyrag history --limit 50`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()

			history, closeHistory := openHistory(log)
			defer closeHistory()
			if history == nil {
				return fmt.Errorf("history: store is disabled or unavailable")
			}

			recs, err := history.Recent(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("history: %w", err)
			}

			if jsonOut {
				return printJSON(recs)
			}

			if len(recs) == 0 {
				fmt.Println("no history")
				return nil
			}
			for _, r := range recs {
				fmt.Printf("%s  faithfulness=%.2f answerable=%t\nQ: %s\nA: %s\n\n",
					r.CreatedAt.Format("2006-01-02 15:04:05"),
					r.FaithfulnessScore, r.Answerable, r.Question, r.Answer)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of records to show")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print records as JSON")

	return cmd
}
