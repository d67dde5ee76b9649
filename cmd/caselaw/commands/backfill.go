package commands

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/54b3r/caselaw-rag/internal/backfill"
	"github.com/54b3r/caselaw-rag/internal/logging"
)

// NewBackfillCmd constructs the `caselaw backfill` command, which embeds
// every corpus chunk that has no embedding yet.
func NewBackfillCmd() *cobra.Command {
	var batchSize int
	var limit int

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Compute embeddings for chunks that have none",
		Long: `Embed every corpus chunk whose embedding is missing, oldest first.

Chunks are embedded in batches with the configured embedder. A failed batch is
counted and skipped; the run continues. With VECTOR_BACKEND=qdrant every
embedded chunk is also upserted into the Qdrant collection. The report
{updated, total, failed} is printed as JSON.

Examples:
  caselaw backfill
  caselaw backfill --batch-size 16 --limit 1000`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			s, log, err := loadSettings()
			if err != nil {
				return fmt.Errorf("backfill: %w", err)
			}
			ctx = logging.WithLogger(ctx, log)

			emb, err := newEmbedder(s, log)
			if err != nil {
				return fmt.Errorf("backfill: %w", err)
			}

			b, err := openBackends(ctx, s, log)
			if err != nil {
				return fmt.Errorf("backfill: %w", err)
			}
			defer b.Close(log)

			runner, err := backfill.New(b.db, emb, b.upserter(), backfill.Config{
				BatchSize: batchSize,
				Limit:     limit,
			}, log)
			if err != nil {
				return fmt.Errorf("backfill: %w", err)
			}

			report, runErr := runner.Run(ctx)
			log.Info("backfill finished",
				slog.Int("updated", report.Updated),
				slog.Int("total", report.Total),
				slog.Int("failed", report.Failed),
			)
			if err := json.NewEncoder(cmd.OutOrStdout()).Encode(report); err != nil {
				return fmt.Errorf("backfill: %w", err)
			}
			if runErr != nil {
				return fmt.Errorf("backfill: %w", runErr)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", backfill.DefaultBatchSize, "Texts per embedding request")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of chunks to process (0 = all)")

	return cmd
}
