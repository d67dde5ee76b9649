package commands

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/54b3r/caselaw-rag/internal/auth"
	"github.com/54b3r/caselaw-rag/internal/rag"
)

// NewTokenCmd constructs the `caselaw token` command, which signs an identity
// token with AUTH_JWT_SECRET for local testing.
func NewTokenCmd() *cobra.Command {
	var userID string
	var email string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign an identity token for local testing",
		Long: `Sign an HS256 identity token with AUTH_JWT_SECRET, AUTH_JWT_ISSUER and
AUTH_JWT_AUDIENCE, and print it. Production tokens are issued by the identity
provider; this command exists for local development only.

Examples:
  caselaw token --user 8d1f7a52-3c1e-4b7a-9d2f-6a0e5b4c3d21
  export CASELAW_TOKEN=$(caselaw token --user "$USER_ID" --ttl 24h)`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID == "" {
				userID = uuid.NewString()
			}
			if _, err := uuid.Parse(userID); err != nil {
				return fmt.Errorf("token: --user must be a UUID: %w", err)
			}

			s, _, err := loadSettings()
			if err != nil {
				return fmt.Errorf("token: %w", err)
			}

			signed, err := auth.Sign(s.Auth, rag.Identity{UserID: userID, Email: email}, ttl)
			if err != nil {
				return fmt.Errorf("token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), signed)
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "Subject user ID (default: a new random UUID)")
	cmd.Flags().StringVar(&email, "email", "", "Optional email claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")

	return cmd
}
