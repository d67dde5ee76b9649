// Package commands defines all Cobra CLI commands for the caselaw binary.
package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/54b3r/caselaw-rag/internal/audit"
	"github.com/54b3r/caselaw-rag/internal/config"
	"github.com/54b3r/caselaw-rag/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// envFile holds the --env-file flag value.
var envFile string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "caselaw",
		Short: "caselaw answers questions over a corpus of Russian court cases",
		Long: `caselaw is a retrieval-augmented question-answering service over court
case text. Each question is embedded, matched against the corpus and answered
by an LLM strictly from the retrieved fragments, with citations.

Configuration is read from the environment, a .env file and an optional YAML
file (~/.caselaw/config.yaml). Environment variables always win.
See 'caselaw --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))

			if err := config.LoadDotEnv(envFile, log); err != nil {
				return err
			}

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

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.caselaw/config.yaml)")
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to a .env file (default: ./.env)")

	root.AddCommand(
		NewServeCmd(),
		NewAskCmd(),
		NewBackfillCmd(),
		NewMigrateCmd(),
		NewDialogCmd(),
		NewTokenCmd(),
		NewVersionCmd(),
	)

	return root
}

// loadSettings resolves the typed configuration from the environment and
// builds the process logger from it. The logger also becomes slog's default.
func loadSettings() (*config.Settings, *slog.Logger, error) {
	s, err := config.Resolve(os.Getenv)
	if err != nil {
		return nil, nil, err
	}
	log := logging.New(s.Logging.Level, s.Logging.Format)
	slog.SetDefault(log)
	return s, log, nil
}
