package commands

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/cloudwego/eino/callbacks"

	"github.com/54b3r/caselaw-rag/internal/config"
	"github.com/54b3r/caselaw-rag/internal/provider"
	"github.com/54b3r/caselaw-rag/internal/tracing"
)

// stubTracing replaces setupTracing for the duration of the test and returns
// a counter of flush calls.
func stubTracing(t *testing.T) *int {
	t.Helper()
	flushes := 0
	orig := setupTracing
	setupTracing = func(tracing.Config) (callbacks.Handler, func(), bool) {
		return nil, func() { flushes++ }, true
	}
	t.Cleanup(func() { setupTracing = orig })
	return &flushes
}

func TestBuildPipeline_FlushesTracingOnError(t *testing.T) {
	flushes := stubTracing(t)

	// An openai backend without a model is a hard configuration error.
	s := &config.Settings{Provider: provider.Config{Backend: provider.BackendOpenAI}}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	p, err := buildPipeline(context.Background(), s, log)
	if err == nil {
		p.Close(log)
		t.Fatal("expected error for incomplete provider config")
	}
	if *flushes != 1 {
		t.Errorf("flush calls = %d, want 1", *flushes)
	}
}
