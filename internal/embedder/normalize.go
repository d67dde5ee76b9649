package embedder

import (
	"context"
	"fmt"

	"github.com/54b3r/caselaw-rag/internal/rag"
)

// Normalizing wraps an embedder so every returned vector has unit L2 norm.
// When Dimension is non-zero, vectors of any other length are rejected.
type Normalizing struct {
	// Inner produces the raw vectors.
	Inner rag.Embedder
	// Dimension is the required vector length; 0 disables the check.
	Dimension int
}

// Embed implements rag.Embedder.
func (n *Normalizing) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := n.Inner.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embedder: expected %d embeddings, got %d", len(texts), len(vecs))
	}
	out := make([][]float32, len(vecs))
	for i, v := range vecs {
		if len(v) == 0 {
			return nil, fmt.Errorf("embedder: embedding %d is empty", i)
		}
		if n.Dimension > 0 && len(v) != n.Dimension {
			return nil, fmt.Errorf("embedder: embedding %d has dimension %d, want %d", i, len(v), n.Dimension)
		}
		cp := make([]float32, len(v))
		copy(cp, v)
		rag.Normalize(cp)
		out[i] = cp
	}
	return out, nil
}
