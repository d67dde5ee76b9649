package rag

import (
	"cmp"
	"slices"
)

// Outcome classifies how a turn ended, for metrics and audit logging.
type Outcome string

const (
	// OutcomeResponded means the model produced an answer.
	OutcomeResponded Outcome = "responded"
	// OutcomeDegraded means retrieval succeeded but the model failed and
	// the apology message was returned instead.
	OutcomeDegraded Outcome = "degraded"
	// OutcomeRejected means the request failed validation or access checks.
	OutcomeRejected Outcome = "rejected"
	// OutcomeFailed means a backend failure ended the turn with an error.
	OutcomeFailed Outcome = "failed"
)

// OutcomeFor maps a turn error to its Outcome. A nil error is OutcomeResponded.
func OutcomeFor(err error) Outcome {
	switch KindOf(err) {
	case "":
		return OutcomeResponded
	case KindInvalidRequest, KindUnauthenticated, KindNotFound:
		return OutcomeRejected
	default:
		return OutcomeFailed
	}
}

// Source is a client-visible citation of one retrieved fragment.
type Source struct {
	// ID is the chunk identifier.
	ID string `json:"id"`
	// CaseNumber is omitted when the chunk has none.
	CaseNumber string `json:"case_number,omitempty"`
	// Content is the fragment text, cut to the configured excerpt length.
	Content string `json:"content"`
	// Similarity is omitted when unknown.
	Similarity *float32 `json:"similarity,omitempty"`
}

// Answer is the result of one successful or degraded turn.
type Answer struct {
	// Content is the model reply, or the apology message when degraded.
	Content string `json:"content"`
	// Sources is parallel to the context fragments. It is an empty, non-nil
	// slice when nothing was retrieved and nil on a degraded answer.
	Sources []Source `json:"sources"`
	// Outcome is OutcomeResponded or OutcomeDegraded.
	Outcome Outcome `json:"-"`
}

// ShapeMatches drops matches below threshold, orders the rest by descending
// similarity keeping the incoming order for ties, and caps the result at topK.
// Backends already do this; repeating it keeps the context and the sources
// correct regardless of which backend served the search.
func ShapeMatches(matches []Match, threshold float32, topK int) []Match {
	out := make([]Match, 0, min(len(matches), max(topK, 0)))
	for _, m := range matches {
		if m.Similarity >= threshold {
			out = append(out, m)
		}
	}
	slices.SortStableFunc(out, func(a, b Match) int {
		return cmp.Compare(b.Similarity, a.Similarity)
	})
	if topK >= 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}

// ProjectSources converts retrieval matches into client-visible citations in
// the same order. Content is cut to maxRunes runes; an empty CaseNumber stays
// empty so it is omitted from the JSON. The result is never nil.
func ProjectSources(matches []Match, maxRunes int) []Source {
	out := make([]Source, 0, len(matches))
	for _, m := range matches {
		sim := m.Similarity
		out = append(out, Source{
			ID:         m.ID,
			CaseNumber: m.CaseNumber,
			Content:    truncateRunes(m.Content, maxRunes),
			Similarity: &sim,
		})
	}
	return out
}

// truncateRunes returns the first n runes of s. n <= 0 disables truncation.
func truncateRunes(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
