package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/caselaw-rag/internal/logging"
	"github.com/54b3r/caselaw-rag/internal/rag"
)

// NewAskCmd constructs the `caselaw ask` command, which runs one turn through
// the same pipeline as POST /rag-chat without the HTTP server.
func NewAskCmd() *cobra.Command {
	var dialogID string
	var token string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer one question from the terminal",
		Long: `Answer one question against the corpus and print the answer with its sources.

The caller is checked exactly as on POST /rag-chat: the token must be valid and
the dialog must belong to its subject. Use 'caselaw token' and
'caselaw dialog create' to obtain both for local testing.

Examples:
  caselaw ask --dialog 3f0c2a4e-... --token "$TOKEN" "Каковы сроки исковой давности?"
  CASELAW_TOKEN=... caselaw ask --dialog 3f0c2a4e-... --json "Что такое неустойка?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, log, err := loadSettings()
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			ctx := logging.WithLogger(cmd.Context(), log)

			if token == "" {
				token = os.Getenv("CASELAW_TOKEN")
			}

			p, err := buildPipeline(ctx, s, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer p.Close(log)

			question := strings.TrimSpace(strings.Join(args, " "))
			answer, err := p.orchestrator.Answer(ctx, rag.Request{
				Token:    token,
				DialogID: dialogID,
				Message:  question,
			})
			if err != nil {
				return fmt.Errorf("ask: %s", rag.MessageOf(err, err.Error()))
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(answer)
			}

			fmt.Fprintln(out, answer.Content)
			if len(answer.Sources) > 0 {
				fmt.Fprintln(out, "\nИсточники:")
				for i, src := range answer.Sources {
					label := src.CaseNumber
					if label == "" {
						label = src.ID
					}
					sim := ""
					if src.Similarity != nil {
						sim = fmt.Sprintf(" (%.2f)", *src.Similarity)
					}
					fmt.Fprintf(out, "[%d] %s%s\n", i+1, label, sim)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&dialogID, "dialog", "d", "", "Dialog ID the question belongs to")
	cmd.Flags().StringVarP(&token, "token", "t", "", "Bearer identity token (default: $CASELAW_TOKEN)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw {content, sources} response")
	_ = cmd.MarkFlagRequired("dialog")

	return cmd
}
