// Package commands defines all Cobra CLI commands for the policyrag binary.
package commands

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/evidentia/policyrag/internal/audit"
	"github.com/evidentia/policyrag/internal/config"
	"github.com/evidentia/policyrag/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "policyrag",
		Short: "policyrag answers questions about policy documents, with citations",
		Long: `policyrag is a retrieval-augmented question-answering system for policy PDFs.

It ingests PDF documents into a local vector index, answers natural language
questions strictly from the indexed content, cites page-level sources for
every answer, and scores each answer's faithfulness to its evidence.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.policyrag/config.yaml).
See 'policyrag --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Load .env if present so API keys do not need exporting.
			if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
				return err
			}

			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.policyrag/config.yaml)")

	root.AddCommand(
		NewIngestCmd(),
		NewAskCmd(),
		NewSearchCmd(),
		NewServeCmd(),
		NewHistoryCmd(),
		NewVersionCmd(),
	)

	return root
}
