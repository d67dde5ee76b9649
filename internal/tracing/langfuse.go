// Package tracing wires optional Langfuse tracing into completion calls.
package tracing

import (
	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"
)

// DefaultHost is the Langfuse endpoint used when none is configured.
const DefaultHost = "http://localhost:3000"

// Config holds Langfuse credentials. Tracing is enabled only when both keys
// are set.
type Config struct {
	Host      string
	PublicKey string
	SecretKey string
}

// Enabled reports whether both keys are present.
func (c Config) Enabled() bool {
	return c.PublicKey != "" && c.SecretKey != ""
}

// Setup initialises the Langfuse callback handler. Returns a flush function
// that must be called before process exit to ensure all traces are sent. If
// Langfuse is not configured, the handler and flush are nil and ok is false.
func Setup(cfg Config) (handler callbacks.Handler, flush func(), ok bool) {
	if !cfg.Enabled() {
		return nil, nil, false
	}
	host := cfg.Host
	if host == "" {
		host = DefaultHost
	}

	handler, flush = langfuse.NewLangfuseHandler(&langfuse.Config{
		Host:      host,
		PublicKey: cfg.PublicKey,
		SecretKey: cfg.SecretKey,
		Name:      "caselaw-rag-chat",
	})
	return handler, flush, true
}
