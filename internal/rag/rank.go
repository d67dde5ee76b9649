package rag

import (
	"math"
)

// Candidate is a chunk together with its stored embedding, in corpus
// insertion order. It is the input of an in-process similarity search.
type Candidate struct {
	Chunk
	Embedding []float32
}

// RankByCosine scores every candidate against query and returns the topK
// candidates with similarity >= threshold, ordered by descending similarity.
// Candidates must be supplied in insertion order; ties keep that order.
// Candidates whose dimension differs from the query are skipped.
func RankByCosine(query []float32, candidates []Candidate, threshold float32, topK int) []Match {
	scored := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		if len(c.Embedding) != len(query) {
			continue
		}
		sim, ok := Cosine(query, c.Embedding)
		if !ok {
			continue
		}
		scored = append(scored, Match{Chunk: c.Chunk, Similarity: sim})
	}
	return ShapeMatches(scored, threshold, topK)
}

// Cosine returns the cosine similarity of a and b. ok is false when the
// vectors differ in length or either has zero magnitude.
func Cosine(a, b []float32) (sim float32, ok bool) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb))), true
}

// Normalize scales v to unit L2 length in place and returns it. A zero
// vector is returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
	return v
}
