// Command policyrag is the entry point for the policy document
// question-answering system. It provides a CLI interface (via Cobra) for
// ingesting policy PDFs, asking questions, and running the HTTP server.
package main

import (
	"fmt"
	"os"

	"github.com/evidentia/policyrag/cmd/policyrag/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
