package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/54b3r/caselaw-rag/internal/logging"
)

// NewMigrateCmd constructs the `caselaw migrate` command, which creates the
// PostgreSQL schema.
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema",
		Long: `Create the dialogs, messages and case_chunks tables and the pgvector index.

The embedding column width is the configured embedding dimension
(EMBEDDING_DIMENSIONS or the embedder default). Safe to run repeatedly.
The SQLite store migrates itself on open, so this is a no-op without
DATABASE_URL.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, log, err := loadSettings()
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			ctx := logging.WithLogger(cmd.Context(), log)

			b, err := openBackends(ctx, s, log)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			defer b.Close(log)

			if b.postgres == nil {
				log.Info("migrate: sqlite schema is applied on open, nothing to do")
				return nil
			}

			dims := s.Embedding.WithDefaults().Dimensions
			if err := b.postgres.Migrate(ctx, dims); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			log.Info("migrate: schema ready", slog.Int("dimensions", dims))
			return nil
		},
	}
}
