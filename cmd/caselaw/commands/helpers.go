package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/54b3r/caselaw-rag/internal/auth"
	"github.com/54b3r/caselaw-rag/internal/backfill"
	"github.com/54b3r/caselaw-rag/internal/config"
	"github.com/54b3r/caselaw-rag/internal/embedder"
	"github.com/54b3r/caselaw-rag/internal/provider"
	"github.com/54b3r/caselaw-rag/internal/rag"
	"github.com/54b3r/caselaw-rag/internal/server"
	"github.com/54b3r/caselaw-rag/internal/store"
	"github.com/54b3r/caselaw-rag/internal/tracing"
	"github.com/54b3r/caselaw-rag/internal/vector"
)

// relationalStore is what both the PostgreSQL and the SQLite store provide.
type relationalStore interface {
	auth.DialogOwnership
	rag.VectorSearcher
	CreateDialog(ctx context.Context, ownerID, title string) (store.Dialog, error)
	PendingChunks(ctx context.Context, limit int) ([]store.PendingChunk, error)
	SetEmbedding(ctx context.Context, id string, embedding []float32) error
	ChunkByID(ctx context.Context, id string) (rag.Chunk, error)
	Ping(ctx context.Context) error
	Close() error
}

// backends holds the opened storage handles of one process.
type backends struct {
	// db holds dialogs and chunks.
	db relationalStore
	// postgres is set when db is the PostgreSQL store.
	postgres *store.PostgresStore
	// qdrant is set when VECTOR_BACKEND=qdrant.
	qdrant *vector.QdrantStore
	// searcher serves the vector search of a turn.
	searcher rag.VectorSearcher
	// pingers probe every opened dependency.
	pingers []server.Pinger
}

// Close releases every handle, logging failures.
func (b *backends) Close(log *slog.Logger) {
	if b.qdrant != nil {
		if err := b.qdrant.Close(); err != nil {
			log.Warn("qdrant: close failed", slog.Any("error", err))
		}
	}
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			log.Warn("store: close failed", slog.Any("error", err))
		}
	}
}

// upserter returns the Qdrant store as a backfill mirror, or nil when Qdrant
// is not in use. The explicit nil keeps the interface value nil.
func (b *backends) upserter() backfill.Upserter {
	if b.qdrant == nil {
		return nil
	}
	return b.qdrant
}

// openBackends opens the relational store selected by DATABASE_URL and the
// vector backend selected by VECTOR_BACKEND.
func openBackends(ctx context.Context, s *config.Settings, log *slog.Logger) (*backends, error) {
	b := &backends{}

	if s.Store.UsesPostgres() {
		pg, err := store.OpenPostgres(ctx, store.PostgresConfig{
			DSN:          s.Store.DatabaseURL,
			MaxOpenConns: s.Store.MaxOpenConns,
		})
		if err != nil {
			return nil, err
		}
		b.db, b.postgres = pg, pg
		b.pingers = append(b.pingers, server.NewPinger("postgres", pg.Ping))
		log.Info("store: postgres opened")
	} else {
		path := s.Store.SQLitePath
		if path == "" {
			var err error
			if path, err = store.DefaultDBPath(); err != nil {
				return nil, err
			}
		}
		lite, err := store.OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		b.db = lite
		b.pingers = append(b.pingers, server.NewPinger("sqlite", lite.Ping))
		log.Info("store: sqlite opened", slog.String("path", path))
	}

	switch s.Store.VectorBackend {
	case config.VectorQdrant:
		qcfg := s.Store.Qdrant
		if qcfg.VectorSize == 0 {
			qcfg.VectorSize = uint64(s.Embedding.WithDefaults().Dimensions) //nolint:gosec // dimensions are bounded
		}
		q, err := vector.NewQdrantStore(ctx, &qcfg)
		if err != nil {
			b.Close(log)
			return nil, err
		}
		b.qdrant = q
		b.searcher = q
		b.pingers = append(b.pingers, server.NewPinger("qdrant", q.Ping))
		log.Info("vector: qdrant ready",
			slog.String("host", qcfg.Host),
			slog.Int("port", qcfg.Port),
			slog.String("collection", qcfg.Collection),
		)
	default:
		b.searcher = b.db
		log.Info("vector: searching the relational store", slog.String("backend", s.Store.VectorBackend))
	}

	return b, nil
}

// newEmbedder builds the configured embedder and logs configuration smells.
func newEmbedder(s *config.Settings, log *slog.Logger) (rag.Embedder, error) {
	embedder.Warn(log, s.Embedding)
	emb, err := embedder.New(s.Embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}
	cfg := s.Embedding.WithDefaults()
	log.Info("embedder initialised",
		slog.String("backend", cfg.Backend),
		slog.String("model", cfg.Model),
		slog.Int("dimensions", cfg.Dimensions),
	)
	return emb, nil
}

// pipeline is a fully wired question-answering stack.
type pipeline struct {
	orchestrator *rag.Orchestrator
	completer    *provider.Completer
	backends     *backends
	flush        func()
}

// Close flushes traces and releases storage handles.
func (p *pipeline) Close(log *slog.Logger) {
	if p.flush != nil {
		p.flush()
	}
	p.backends.Close(log)
}

// setupTracing is swapped in tests.
var setupTracing = tracing.Setup

// buildPipeline wires tracing, the completer, the embedder, the stores, the
// guard and the orchestrator from s. On error, pending traces are flushed.
func buildPipeline(ctx context.Context, s *config.Settings, log *slog.Logger) (_ *pipeline, err error) {
	var opts []provider.Option
	handler, flush, ok := setupTracing(s.Tracing)
	defer func() {
		if err != nil && flush != nil {
			flush()
		}
	}()
	if ok {
		opts = append(opts, provider.WithCallbacks(handler))
		log.Info("langfuse tracing enabled")
	} else {
		log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
	}

	completer, err := provider.NewCompleter(ctx, &s.Provider, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}
	if err := completer.Preflight(); err != nil {
		log.Warn("provider not configured, answers will fail with 503",
			slog.String("provider", string(s.Provider.Backend)),
			slog.Any("error", errors.Unwrap(err)),
		)
	} else {
		log.Info("provider initialised", slog.String("model", completer.Name()))
	}

	emb, err := newEmbedder(s, log)
	if err != nil {
		return nil, err
	}

	verifier, err := auth.NewVerifier(s.Auth)
	if err != nil {
		return nil, fmt.Errorf("AUTH_JWT_SECRET is required: %w", err)
	}

	b, err := openBackends(ctx, s, log)
	if err != nil {
		return nil, err
	}

	orch, err := rag.NewOrchestrator(rag.Deps{
		Guard:     auth.NewGuard(verifier, b.db),
		Embedder:  emb,
		Searcher:  b.searcher,
		Completer: completer,
	}, s.RAG)
	if err != nil {
		b.Close(log)
		return nil, err
	}

	return &pipeline{orchestrator: orch, completer: completer, backends: b, flush: flush}, nil
}
