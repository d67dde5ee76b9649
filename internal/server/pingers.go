package server

import (
	"context"
	"fmt"
)

// pingFunc is the probe signature shared by the stores and the Qdrant client.
type pingFunc func(ctx context.Context) error

// funcPinger adapts a probe function to the Pinger interface.
type funcPinger struct {
	// name identifies the dependency in readiness responses.
	name string
	// ping is the probe.
	ping pingFunc
}

// NewPinger returns a Pinger named name that calls ping. The stores and the
// Qdrant searcher are wired with their own Ping method.
func NewPinger(name string, ping func(ctx context.Context) error) Pinger {
	return &funcPinger{name: name, ping: ping}
}

// Name returns the dependency label used in readiness responses.
func (p *funcPinger) Name() string { return p.name }

// Ping runs the probe and prefixes failures with the dependency name.
func (p *funcPinger) Ping(ctx context.Context) error {
	if err := p.ping(ctx); err != nil {
		return fmt.Errorf("%s: %w", p.name, err)
	}
	return nil
}

// preflighter is implemented by a completer that can report a missing
// credential without calling the backend.
type preflighter interface {
	Preflight() error
}

// LLMPinger reports whether the completion backend is configured. It never
// sends a generate request, so readiness probes consume no tokens.
type LLMPinger struct {
	// completer is checked with Preflight.
	completer preflighter
	// name identifies the backend in readiness responses (e.g. "github").
	name string
}

// NewLLMPinger constructs an LLMPinger for the given completer and backend name.
func NewLLMPinger(c preflighter, name string) *LLMPinger {
	return &LLMPinger{completer: c, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *LLMPinger) Name() string { return "llm:" + p.name }

// Ping returns the completer's preflight error.
func (p *LLMPinger) Ping(_ context.Context) error {
	if err := p.completer.Preflight(); err != nil {
		return fmt.Errorf("%s not configured: %w", p.name, err)
	}
	return nil
}
