package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // register "postgres" driver
	"github.com/pgvector/pgvector-go"

	"github.com/54b3r/caselaw-rag/internal/rag"
)

// PostgresStore is the production store backed by PostgreSQL with the
// pgvector extension. It is safe for concurrent use.
type PostgresStore struct {
	db *sql.DB
}

// PostgresConfig holds connection parameters for PostgresStore.
type PostgresConfig struct {
	// DSN is a lib/pq connection string or URL.
	DSN string

	// MaxOpenConns caps the connection pool. Zero keeps the driver default.
	MaxOpenConns int

	// ConnMaxLifetime recycles pooled connections. Zero keeps them forever.
	ConnMaxLifetime time.Duration
}

// OpenPostgres opens a connection pool and verifies it with a ping.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store: postgres dsn must not be empty")
	}
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("store: open postgres: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping postgres: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStore wraps an existing pool. Used by tests with sqlmock.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the schema if it does not exist. dimension is the
// embedding width of the configured embedder.
func (s *PostgresStore) Migrate(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("store: migrate: embedding dimension must be positive, got %d", dimension)
	}
	ddl := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS dialogs (
    id         uuid        PRIMARY KEY,
    user_id    uuid        NOT NULL,
    title      text        NOT NULL,
    created_at timestamptz NOT NULL DEFAULT now(),
    updated_at timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_dialogs_user ON dialogs (user_id, updated_at DESC);
CREATE TABLE IF NOT EXISTS case_chunks (
    id          uuid        PRIMARY KEY,
    content     text        NOT NULL,
    case_number text,
    embedding   vector(%d),
    created_at  timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_case_chunks_embedding
    ON case_chunks USING hnsw (embedding vector_cosine_ops);
`, dimension)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// OwnedDialog returns nil when dialogID exists and belongs to userID, and
// ErrNotFound otherwise.
func (s *PostgresStore) OwnedDialog(ctx context.Context, dialogID, userID string) error {
	const q = `SELECT 1 FROM dialogs WHERE id = $1 AND user_id = $2`
	var one int
	err := s.db.QueryRowContext(ctx, q, dialogID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("store: owned dialog: %w", err)
	}
	return nil
}

// Search returns at most topK chunks with cosine similarity >= threshold,
// best first. Ties are broken by insertion time, then id.
//
// Filter and order are written on the raw <=> distance so the planner can
// walk the HNSW index; similarity >= t is distance <= 1 - t.
func (s *PostgresStore) Search(ctx context.Context, query []float32, threshold float32, topK int) ([]rag.Match, error) {
	const q = `
SELECT id, content, COALESCE(case_number, ''), 1 - (embedding <=> $1) AS similarity
FROM   case_chunks
WHERE  embedding IS NOT NULL
  AND  embedding <=> $1 <= 1 - $2::float8
ORDER  BY embedding <=> $1 ASC, created_at ASC, id ASC
LIMIT  $3`

	rows, err := s.db.QueryContext(ctx, q, pgvector.NewVector(query), float64(threshold), topK)
	if err != nil {
		return nil, fmt.Errorf("store: search: %w", err)
	}
	defer rows.Close()

	matches := make([]rag.Match, 0, topK)
	for rows.Next() {
		var m rag.Match
		var sim float64
		if err := rows.Scan(&m.ID, &m.Content, &m.CaseNumber, &sim); err != nil {
			return nil, fmt.Errorf("store: search scan: %w", err)
		}
		m.Similarity = float32(sim)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: search rows: %w", err)
	}
	return matches, nil
}

// PendingChunks returns chunks without an embedding, oldest first. A
// non-positive limit returns all of them.
func (s *PostgresStore) PendingChunks(ctx context.Context, limit int) ([]PendingChunk, error) {
	q := `SELECT id, content FROM case_chunks WHERE embedding IS NULL ORDER BY created_at ASC, id ASC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: pending chunks: %w", err)
	}
	defer rows.Close()

	var out []PendingChunk
	for rows.Next() {
		var c PendingChunk
		if err := rows.Scan(&c.ID, &c.Content); err != nil {
			return nil, fmt.Errorf("store: pending chunks scan: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: pending chunks rows: %w", err)
	}
	return out, nil
}

// SetEmbedding stores the embedding of chunk id.
func (s *PostgresStore) SetEmbedding(ctx context.Context, id string, embedding []float32) error {
	const q = `UPDATE case_chunks SET embedding = $1 WHERE id = $2`
	res, err := s.db.ExecContext(ctx, q, pgvector.NewVector(embedding), id)
	if err != nil {
		return fmt.Errorf("store: set embedding %s: %w", id, err)
	}
	return requireAffected(res, id)
}

// ChunkByID returns a single chunk. Used to build vector payloads.
func (s *PostgresStore) ChunkByID(ctx context.Context, id string) (rag.Chunk, error) {
	const q = `SELECT id, content, COALESCE(case_number, '') FROM case_chunks WHERE id = $1`
	var c rag.Chunk
	err := s.db.QueryRowContext(ctx, q, id).Scan(&c.ID, &c.Content, &c.CaseNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return rag.Chunk{}, ErrNotFound
	}
	if err != nil {
		return rag.Chunk{}, fmt.Errorf("store: chunk %s: %w", id, err)
	}
	return c, nil
}

// CreateDialog inserts a dialog owned by ownerID.
func (s *PostgresStore) CreateDialog(ctx context.Context, ownerID, title string) (Dialog, error) {
	if title == "" {
		title = DefaultDialogTitle
	}
	d := Dialog{ID: uuid.NewString(), OwnerID: ownerID, Title: title}
	const q = `INSERT INTO dialogs (id, user_id, title) VALUES ($1, $2, $3) RETURNING created_at, updated_at`
	if err := s.db.QueryRowContext(ctx, q, d.ID, d.OwnerID, d.Title).Scan(&d.CreatedAt, &d.UpdatedAt); err != nil {
		return Dialog{}, fmt.Errorf("store: create dialog: %w", err)
	}
	return d, nil
}

// Ping reports whether the database is reachable. Satisfies server.Pinger.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store: postgres ping: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func requireAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected for %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
