// Package vector provides vector search backends that live outside the
// relational store. Qdrant is the only one so far.
package vector

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/caselaw-rag/internal/rag"
)

const (
	payloadContent    = "content"
	payloadCaseNumber = "case_number"
)

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements rag.VectorSearcher backed by a Qdrant collection
// using cosine distance. Points carry the chunk text and case number in
// their payload, so a search needs no relational round trip.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig
}

// NewQdrantStore creates a QdrantStore, ensuring the target collection
// exists (creating it if necessary).
func NewQdrantStore(ctx context.Context, cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("qdrant: config must not be nil")
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("qdrant: collection must not be empty")
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	store := &QdrantStore{client: client, cfg: cfg}
	if err := store.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return store, nil
}

// ensureCollection creates the Qdrant collection if it does not already exist.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}
	if s.cfg.VectorSize == 0 {
		return fmt.Errorf("qdrant: collection %q is missing and vector size is unset", s.cfg.Collection)
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", s.cfg.Collection, err)
	}
	return nil
}

// Upsert stores or replaces the point for chunk with its embedding. Chunk IDs
// must be UUIDs.
func (s *QdrantStore) Upsert(ctx context.Context, chunk rag.Chunk, embedding []float32) error {
	payload := map[string]any{payloadContent: chunk.Content}
	if chunk.CaseNumber != "" {
		payload[payloadCaseNumber] = chunk.CaseNumber
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(chunk.ID),
			Vectors: qdrant.NewVectors(embedding...),
			Payload: qdrant.NewValueMap(payload),
		}},
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert %s failed: %w", chunk.ID, err)
	}
	return nil
}

// Search returns at most topK points with cosine score >= threshold, best
// first. Equal scores are ordered by point ID so results are reproducible.
func (s *QdrantStore) Search(ctx context.Context, query []float32, threshold float32, topK int) ([]rag.Match, error) {
	limit := uint64(topK)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          &limit,
		ScoreThreshold: &threshold,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	matches := toMatches(results)
	sortByScore(matches)
	return matches, nil
}

// sortByScore orders matches by descending score, then ascending ID.
func sortByScore(matches []rag.Match) {
	slices.SortStableFunc(matches, func(a, b rag.Match) int {
		if c := cmp.Compare(b.Similarity, a.Similarity); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// toMatches converts scored points into matches, reading the chunk text and
// case number from the payload.
func toMatches(points []*qdrant.ScoredPoint) []rag.Match {
	matches := make([]rag.Match, 0, len(points))
	for _, r := range points {
		m := rag.Match{Similarity: r.GetScore()}
		m.ID = r.GetId().GetUuid()
		if p := r.GetPayload(); p != nil {
			if v, ok := p[payloadContent]; ok {
				m.Content = v.GetStringValue()
			}
			if v, ok := p[payloadCaseNumber]; ok {
				m.CaseNumber = v.GetStringValue()
			}
		}
		matches = append(matches, m)
	}
	return matches
}

// Ping reports whether the Qdrant server is reachable. Satisfies server.Pinger.
func (s *QdrantStore) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant: health check failed: %w", err)
	}
	return nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}
