// Package rag implements the retrieval-augmented question-answering core for
// the case-law corpus: access check, query embedding, thresholded vector
// search, grounding-context assembly, completion and response shaping.
// Concrete backends (embedders, vector stores, LLM providers, token
// verification) satisfy the small interfaces defined here so the orchestrator
// never depends on a specific implementation.
package rag

import (
	"context"
)

// Chunk is a searchable fragment of a court case from the corpus.
type Chunk struct {
	// ID is the unique identifier of the chunk (a UUID in every shipped store).
	ID string

	// Content is the raw text of the fragment.
	Content string

	// CaseNumber is the court case number the fragment belongs to.
	// Empty means the chunk carries no case number.
	CaseNumber string
}

// Match is a chunk returned by a vector search together with its cosine
// similarity to the query. A []Match ordered by descending similarity is a
// retrieval result.
type Match struct {
	Chunk

	// Similarity is the cosine similarity between the query and the chunk
	// embeddings, in [-1, 1].
	Similarity float32
}

// Identity is the authenticated caller resolved from an identity token.
type Identity struct {
	// UserID is the stable subject identifier of the caller.
	UserID string

	// Email is informational and may be empty.
	Email string
}

// Embedder converts text into dense vector embeddings.
// Implementations must return L2-normalised vectors of a fixed dimension and
// must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorSearcher performs nearest-neighbour search over the corpus.
// Implementations must be safe to call from multiple goroutines.
type VectorSearcher interface {
	// Search returns at most topK chunks whose cosine similarity to query is
	// at least threshold, ordered by descending similarity with ties broken
	// by corpus insertion order.
	Search(ctx context.Context, query []float32, threshold float32, topK int) ([]Match, error)
}

// Completer is a text-completion capability reached over HTTP.
// Implementations must be safe to call from multiple goroutines.
type Completer interface {
	// Complete returns the model's reply to userPrompt under systemPrompt.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Authorizer validates the caller's identity token and that dialogID belongs
// to that identity. It must fail with KindUnauthenticated or KindNotFound
// errors and must not have side effects.
type Authorizer interface {
	// Authorize resolves token to an Identity owning dialogID.
	Authorize(ctx context.Context, token, dialogID string) (Identity, error)
}

// Preflighter is optionally implemented by a Completer that can report a
// missing credential before any retrieval cost is spent.
type Preflighter interface {
	// Preflight returns a KindGenerationUnavailable error when the completer
	// cannot possibly succeed.
	Preflight() error
}
