package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/54b3r/caselaw-rag/internal/logging"
	"github.com/54b3r/caselaw-rag/internal/version"
)

// probeTimeout bounds each dependency probe run by /api/ready.
const probeTimeout = 5 * time.Second

// Pinger is a dependency probed by /api/ready: the relational store, Qdrant
// when it serves search, and the completion backend's credential preflight.
// Implementations must be safe for concurrent use.
type Pinger interface {
	Ping(ctx context.Context) error
	// Name labels the check in the response, e.g. "postgres" or "llm:github".
	Name() string
}

type readyCheck struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// readyResponse is the body of GET /api/ready. Checks keep registration order.
type readyResponse struct {
	Ready  bool         `json:"ready"`
	Checks []readyCheck `json:"checks"`
}

// probeAll runs every pinger concurrently, so a slow store and a slow vector
// index cost one probeTimeout rather than two.
func probeAll(ctx context.Context, pingers []Pinger) []readyCheck {
	checks := make([]readyCheck, len(pingers))
	var wg sync.WaitGroup
	for i, p := range pingers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
			defer cancel()
			checks[i] = readyCheck{Name: p.Name(), OK: true}
			if err := p.Ping(probeCtx); err != nil {
				checks[i].OK = false
				checks[i].Error = err.Error()
			}
		}()
	}
	wg.Wait()
	return checks
}

// handleReady answers 200 when the answer pipeline's backends are reachable
// and 503 otherwise. A missing LLM credential makes the service unready even
// though /rag-chat still serves its 503 for that case.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	resp := readyResponse{Ready: true, Checks: probeAll(r.Context(), s.pingers)}
	for _, c := range resp.Checks {
		if c.OK {
			continue
		}
		resp.Ready = false
		log.Warn("readiness probe failed",
			slog.String("dependency", c.Name),
			slog.String("error", c.Error),
		)
	}

	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// healthResponse is the JSON body returned by GET /api/health.
type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// handleHealth handles GET /api/health for liveness checks. It never probes
// dependencies.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Version: version.Get().Version})
}
