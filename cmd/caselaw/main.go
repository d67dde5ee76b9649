// Command caselaw is the entry point for the case-law question-answering
// service. It serves POST /rag-chat and provides the offline corpus jobs
// (backfill, migrate) through a Cobra CLI.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/caselaw-rag/cmd/caselaw/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
