package commands

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/54b3r/caselaw-rag/internal/logging"
	"github.com/54b3r/caselaw-rag/internal/store"
)

// NewDialogCmd constructs the `caselaw dialog` command group. Dialogs are
// owned by the chat client; this exists to seed them for local testing.
func NewDialogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dialog",
		Short: "Seed dialogs for local testing",
	}
	cmd.AddCommand(newDialogCreateCmd())
	return cmd
}

func newDialogCreateCmd() *cobra.Command {
	var userID string
	var title string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a dialog owned by a user and print its ID",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := uuid.Parse(userID); err != nil {
				return fmt.Errorf("dialog create: --user must be a UUID: %w", err)
			}

			s, log, err := loadSettings()
			if err != nil {
				return fmt.Errorf("dialog create: %w", err)
			}
			ctx := logging.WithLogger(cmd.Context(), log)

			b, err := openBackends(ctx, s, log)
			if err != nil {
				return fmt.Errorf("dialog create: %w", err)
			}
			defer b.Close(log)

			d, err := b.db.CreateDialog(ctx, userID, title)
			if err != nil {
				return fmt.Errorf("dialog create: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), d.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "Owner user ID (the token subject)")
	cmd.Flags().StringVar(&title, "title", store.DefaultDialogTitle, "Dialog title")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
