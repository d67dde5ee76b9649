// Package server implements the HTTP boundary of the question-answering
// service: POST /rag-chat, liveness and readiness probes and the Prometheus
// endpoint. The server is started by the `caselaw serve` CLI command.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// New constructs a Server that answers questions with a and applies the
// defaults for every zero field of cfg.
func New(a answerer, cfg *Config) (*Server, error) {
	if a == nil {
		return nil, fmt.Errorf("server: answerer must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 2 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		answerer: a,
		cfg:      cfg,
		log:      log,
		pingers:  cfg.Pingers,
		metrics:  newServerMetrics(cfg.MetricsRegistry),
		validate: newValidator(),
	}

	rl, stopRL := newRateLimiter(limiterConfig{
		rps:      cfg.RateLimit,
		burst:    cfg.RateBurst,
		onReject: s.metrics.rateLimitedTotal.Inc,
	})
	s.stopRL = stopRL
	s.handler = s.routes(rl)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}

	return s, nil
}

// routes assembles the router. Middleware order: request ID, logging and
// metrics, panic recovery, CORS.
func (s *Server) routes(rl *rateLimiter) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(func(next http.Handler) http.Handler { return s.observe(s.log, next) })
	r.Use(middleware.Recoverer)
	if len(s.cfg.AllowedOrigins) > 0 {
		// go-chi/cors treats an empty origin list as "*", so the middleware
		// is only mounted when origins are configured.
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:     s.cfg.AllowedOrigins,
			AllowedMethods:     []string{http.MethodPost, http.MethodOptions},
			AllowedHeaders:     []string{"Authorization", "Content-Type", "X-Client-Info", "Apikey"},
			ExposedHeaders:     []string{"X-Request-Id"},
			AllowCredentials:   false,
			MaxAge:             300,
			OptionsPassthrough: true,
		}))
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.With(rl.middleware).Post("/rag-chat", s.handleRagChat)
	// Preflight reaches this route after the CORS middleware set its headers.
	r.Options("/rag-chat", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/api/health", s.handleHealth)
	r.Get("/api/ready", s.handleReady)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	return r
}

// Handler returns the assembled router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.handler }

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.Close()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("caselaw server listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// Close stops background goroutines owned by the server. It does not close
// the listener; cancel the context passed to Start for that.
func (s *Server) Close() {
	if s.stopRL != nil {
		s.stopRL()
		s.stopRL = nil
	}
}

// newValidator returns a validator that reports fields by their JSON name.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
