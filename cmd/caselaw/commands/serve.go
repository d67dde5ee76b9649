package commands

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/54b3r/caselaw-rag/internal/logging"
	"github.com/54b3r/caselaw-rag/internal/server"
)

// NewServeCmd constructs the `caselaw serve` command, which starts the HTTP
// server exposing POST /rag-chat.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the caselaw HTTP server",
		Long: `Start the caselaw HTTP server.

Endpoints:
  POST /rag-chat     answer a question in a dialog (Bearer identity token)
  GET  /api/health   liveness
  GET  /api/ready    readiness of the store, the vector backend and the LLM
  GET  /metrics      Prometheus metrics

Examples:
  caselaw serve
  caselaw serve --port 9090
  DATABASE_URL=postgres://localhost/caselaw caselaw serve`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			s, log, err := loadSettings()
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			ctx = logging.WithLogger(ctx, log)

			if cmd.Flags().Changed("host") {
				s.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				s.Server.Port = port
			}

			log.Info("serve starting",
				slog.String("provider", string(s.Provider.Backend)),
				slog.String("vector_backend", s.Store.VectorBackend),
			)

			p, err := buildPipeline(ctx, s, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer p.Close(log)

			pingers := append(p.backends.pingers, server.NewLLMPinger(p.completer, string(s.Provider.Backend)))

			srv, err := server.New(p.orchestrator, &server.Config{
				Host:           s.Server.Host,
				Port:           s.Server.Port,
				Logger:         log,
				Pingers:        pingers,
				RateLimit:      s.Server.RateLimit,
				RateBurst:      s.Server.RateBurst,
				AllowedOrigins: s.Server.AllowedOrigins,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}
			if len(s.Server.AllowedOrigins) == 0 {
				log.Info("cors disabled", slog.String("reason", "CORS_ALLOWED_ORIGINS not set"))
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to (overrides SERVER_HOST)")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on (overrides SERVER_PORT)")

	return cmd
}
