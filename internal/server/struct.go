package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/caselaw-rag/internal/rag"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response. It must
	// cover a full embed, search and completion round.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [slog.Default] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on
	// POST /rag-chat (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// AllowedOrigins lists the origins allowed by CORS. Empty disables
	// cross-origin access.
	AllowedOrigins []string
	// MetricsRegistry receives the server's collectors. Defaults to
	// prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// answerer is the interface handleRagChat calls to run one turn.
// *rag.Orchestrator satisfies it; tests inject a fake.
type answerer interface {
	// Answer runs the access check and the retrieval-augmented completion.
	Answer(ctx context.Context, req rag.Request) (*rag.Answer, error)
}

// Server is the HTTP boundary in front of the question-answering core.
type Server struct {
	// answerer runs each turn; the orchestrator in production.
	answerer answerer
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// handler is the fully assembled router with middleware.
	handler http.Handler
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus collectors for this server instance.
	metrics *serverMetrics
	// validate checks decoded request bodies.
	validate *validator.Validate
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// chatRequest is the JSON body for POST /rag-chat.
type chatRequest struct {
	// DialogID is the dialog the question belongs to. Ownership is checked
	// by the guard; an absent or malformed ID is reported as not found.
	DialogID string `json:"dialog_id"`
	// Message is the user's question.
	Message string `json:"message" validate:"required"`
}

// messageResponse is the JSON body of every non-200 response.
type messageResponse struct {
	Message string `json:"message"`
}
