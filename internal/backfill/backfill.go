// Package backfill computes embeddings for corpus chunks that were imported
// without one. It is an offline job run by `caselaw backfill` and never sits
// on the request path.
package backfill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/54b3r/caselaw-rag/internal/rag"
	"github.com/54b3r/caselaw-rag/internal/store"
)

// DefaultBatchSize is the number of chunks embedded per request.
const DefaultBatchSize = 32

// Source lists pending chunks and stores computed embeddings. Satisfied by
// the PostgreSQL and SQLite stores.
type Source interface {
	PendingChunks(ctx context.Context, limit int) ([]store.PendingChunk, error)
	SetEmbedding(ctx context.Context, id string, embedding []float32) error
	ChunkByID(ctx context.Context, id string) (rag.Chunk, error)
}

// Upserter mirrors an embedded chunk into an external vector index such as
// Qdrant.
type Upserter interface {
	Upsert(ctx context.Context, chunk rag.Chunk, embedding []float32) error
}

// Config tunes a run.
type Config struct {
	// BatchSize is the number of texts per Embed call. Defaults to DefaultBatchSize.
	BatchSize int
	// Limit caps how many pending chunks are processed. Zero means all.
	Limit int
}

// Report is the outcome of a run.
type Report struct {
	// Updated is the number of chunks whose embedding was written.
	Updated int `json:"updated"`
	// Total is the number of pending chunks found.
	Total int `json:"total"`
	// Failed is Total minus Updated.
	Failed int `json:"failed"`
}

// Runner embeds pending chunks in batches.
type Runner struct {
	source   Source
	embedder rag.Embedder
	upserter Upserter
	cfg      Config
	log      *slog.Logger
}

// New constructs a Runner. upserter may be nil.
func New(source Source, embedder rag.Embedder, upserter Upserter, cfg Config, log *slog.Logger) (*Runner, error) {
	if source == nil {
		return nil, fmt.Errorf("backfill: source must not be nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("backfill: embedder must not be nil")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if log == nil {
		log = slog.Default()
	}
	return &Runner{source: source, embedder: embedder, upserter: upserter, cfg: cfg, log: log}, nil
}

// Run embeds every pending chunk. A failed batch or a failed write is
// counted and logged, never fatal. Only listing the pending chunks or a
// cancelled context aborts the run.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	pending, err := r.source.PendingChunks(ctx, r.cfg.Limit)
	if err != nil {
		return Report{}, fmt.Errorf("backfill: list pending chunks: %w", err)
	}

	rep := Report{Total: len(pending)}
	if rep.Total == 0 {
		r.log.Info("backfill: nothing to embed")
		return rep, nil
	}

	for start := 0; start < len(pending); start += r.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			rep.Failed = rep.Total - rep.Updated
			return rep, err
		}
		end := min(start+r.cfg.BatchSize, len(pending))
		rep.Updated += r.batch(ctx, pending[start:end])
		r.log.Info("backfill: progress",
			slog.Int("done", end),
			slog.Int("total", rep.Total),
			slog.Int("updated", rep.Updated),
		)
	}
	rep.Failed = rep.Total - rep.Updated
	return rep, nil
}

// batch embeds one batch and writes each vector. It returns the number of
// chunks written.
func (r *Runner) batch(ctx context.Context, chunks []store.PendingChunk) int {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vecs, err := r.embedder.Embed(ctx, texts)
	if err == nil && len(vecs) != len(chunks) {
		err = fmt.Errorf("expected %d embeddings, got %d", len(chunks), len(vecs))
	}
	if err != nil {
		r.log.Warn("backfill: embed batch failed",
			slog.String("first_id", chunks[0].ID),
			slog.Int("size", len(chunks)),
			slog.String("error", err.Error()),
		)
		return 0
	}

	updated := 0
	for i, c := range chunks {
		if err := r.write(ctx, c.ID, vecs[i]); err != nil {
			r.log.Warn("backfill: write failed", slog.String("id", c.ID), slog.String("error", err.Error()))
			continue
		}
		updated++
	}
	return updated
}

// write mirrors the vector to the upserter, when set, before storing it in
// the source, so a chunk is never marked embedded while missing from the
// index.
func (r *Runner) write(ctx context.Context, id string, vec []float32) error {
	if r.upserter != nil {
		chunk, err := r.source.ChunkByID(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("chunk disappeared: %w", err)
			}
			return err
		}
		if err := r.upserter.Upsert(ctx, chunk, vec); err != nil {
			return err
		}
	}
	return r.source.SetEmbedding(ctx, id, vec)
}
