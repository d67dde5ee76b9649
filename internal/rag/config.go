package rag

import (
	"time"

	"github.com/54b3r/caselaw-rag/internal/budget"
)

const (
	// DefaultTopK is the maximum number of fragments retrieved per question.
	DefaultTopK = 6

	// DefaultSimilarityThreshold is the minimum cosine similarity a fragment
	// needs to be considered relevant.
	DefaultSimilarityThreshold float32 = 0.5

	// DefaultSourceMaxRunes is the length at which source excerpts are cut.
	DefaultSourceMaxRunes = 500

	// DefaultApologyMessage is returned in place of an answer when the
	// completion backend fails after retrieval succeeded.
	DefaultApologyMessage = "Не удалось получить ответ. Попробуйте позже."

	// DefaultEmbedTimeout bounds the query embedding call.
	DefaultEmbedTimeout = 15 * time.Second

	// DefaultSearchTimeout bounds the vector search call.
	DefaultSearchTimeout = 10 * time.Second

	// DefaultCompletionTimeout bounds the completion call.
	DefaultCompletionTimeout = 60 * time.Second
)

// Config holds the tunables of the question-answering pipeline.
type Config struct {
	// TopK caps the number of fragments used as context and returned as sources.
	TopK int

	// SimilarityThreshold is the inclusive lower bound on match similarity.
	SimilarityThreshold float32

	// SourceMaxRunes is the excerpt length limit, counted in runes.
	SourceMaxRunes int

	// ApologyMessage is the content of a degraded answer.
	ApologyMessage string

	// StrictGeneration turns completion failures into KindGenerationFailed
	// errors instead of degraded answers.
	StrictGeneration bool

	// MaxPromptTokens bounds the estimated prompt size. Fragments that do not
	// fit are dropped from the tail, together with their sources; the top
	// fragment is truncated instead of dropped. Zero disables the budget.
	MaxPromptTokens int

	// EmbedTimeout bounds the embedding call. Zero means no extra bound.
	EmbedTimeout time.Duration

	// SearchTimeout bounds the vector search. Zero means no extra bound.
	SearchTimeout time.Duration

	// CompletionTimeout bounds the completion call. Zero means no extra bound.
	CompletionTimeout time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		TopK:                DefaultTopK,
		SimilarityThreshold: DefaultSimilarityThreshold,
		SourceMaxRunes:      DefaultSourceMaxRunes,
		ApologyMessage:      DefaultApologyMessage,
		MaxPromptTokens:     budget.DefaultMaxPromptTokens,
		EmbedTimeout:        DefaultEmbedTimeout,
		SearchTimeout:       DefaultSearchTimeout,
		CompletionTimeout:   DefaultCompletionTimeout,
	}
}

// withDefaults fills zero-valued fields that have no meaningful zero.
func (c Config) withDefaults() Config {
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}
	if c.SourceMaxRunes <= 0 {
		c.SourceMaxRunes = DefaultSourceMaxRunes
	}
	if c.ApologyMessage == "" {
		c.ApologyMessage = DefaultApologyMessage
	}
	return c
}
