package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/54b3r/caselaw-rag/internal/rag"
)

// SQLiteStore is a single-file store for local development and tests.
// Embeddings are stored as JSON arrays and ranked in process by
// rag.RankByCosine, so search cost is linear in the corpus size.
type SQLiteStore struct {
	db *sql.DB
}

// DefaultDBPath returns the default path for the local database.
// It resolves to ~/.caselaw/caselaw.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".caselaw")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "caselaw.db"), nil
}

// OpenSQLite opens (or creates) a SQLiteStore at path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// A single connection avoids SQLITE_BUSY and keeps :memory: databases alive.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS dialogs (
    id         TEXT    PRIMARY KEY,
    user_id    TEXT    NOT NULL,
    title      TEXT    NOT NULL,
    created_at INTEGER NOT NULL,  -- Unix nanoseconds
    updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS case_chunks (
    seq         INTEGER PRIMARY KEY AUTOINCREMENT,  -- insertion order
    id          TEXT    NOT NULL UNIQUE,
    content     TEXT    NOT NULL,
    case_number TEXT,
    embedding   TEXT                                -- JSON array of float32, NULL until embedded
);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// OwnedDialog returns nil when dialogID exists and belongs to userID, and
// ErrNotFound otherwise.
func (s *SQLiteStore) OwnedDialog(ctx context.Context, dialogID, userID string) error {
	const q = `SELECT 1 FROM dialogs WHERE id = ? AND user_id = ?`
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

// Search scores every embedded chunk against query and returns at most topK
// with similarity >= threshold, best first, insertion order on ties.
func (s *SQLiteStore) Search(ctx context.Context, query []float32, threshold float32, topK int) ([]rag.Match, error) {
	const q = `SELECT id, content, COALESCE(case_number, ''), embedding FROM case_chunks WHERE embedding IS NOT NULL ORDER BY seq ASC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("store: search: %w", err)
	}
	defer rows.Close()

	var candidates []rag.Candidate
	for rows.Next() {
		var c rag.Candidate
		var raw string
		if err := rows.Scan(&c.ID, &c.Content, &c.CaseNumber, &raw); err != nil {
			return nil, fmt.Errorf("store: search scan: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &c.Embedding); err != nil {
			return nil, fmt.Errorf("store: search: decode embedding of %s: %w", c.ID, err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: search rows: %w", err)
	}
	return rag.RankByCosine(query, candidates, threshold, topK), nil
}

// PendingChunks returns chunks without an embedding in insertion order. A
// non-positive limit returns all of them.
func (s *SQLiteStore) PendingChunks(ctx context.Context, limit int) ([]PendingChunk, error) {
	q := `SELECT id, content FROM case_chunks WHERE embedding IS NULL ORDER BY seq ASC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
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
func (s *SQLiteStore) SetEmbedding(ctx context.Context, id string, embedding []float32) error {
	b, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("store: encode embedding: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE case_chunks SET embedding = ? WHERE id = ?`, string(b), id)
	if err != nil {
		return fmt.Errorf("store: set embedding %s: %w", id, err)
	}
	return requireAffected(res, id)
}

// ChunkByID returns a single chunk.
func (s *SQLiteStore) ChunkByID(ctx context.Context, id string) (rag.Chunk, error) {
	const q = `SELECT id, content, COALESCE(case_number, '') FROM case_chunks WHERE id = ?`
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
func (s *SQLiteStore) CreateDialog(ctx context.Context, ownerID, title string) (Dialog, error) {
	if title == "" {
		title = DefaultDialogTitle
	}
	now := time.Now()
	d := Dialog{ID: uuid.NewString(), OwnerID: ownerID, Title: title, CreatedAt: now, UpdatedAt: now}
	const q = `INSERT INTO dialogs (id, user_id, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, d.ID, d.OwnerID, d.Title, now.UnixNano(), now.UnixNano()); err != nil {
		return Dialog{}, fmt.Errorf("store: create dialog: %w", err)
	}
	return d, nil
}

// Ping reports whether the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store: sqlite ping: %w", err)
	}
	return nil
}

// Close releases the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
