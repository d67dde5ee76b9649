package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/54b3r/caselaw-rag/internal/budget"
	"github.com/54b3r/caselaw-rag/internal/logging"
)

// Request is one user turn addressed to a dialog.
type Request struct {
	// Token is the caller's bearer identity token, without the scheme.
	Token string
	// DialogID is the dialog the question belongs to.
	DialogID string
	// Message is the raw user question.
	Message string
}

// Deps are the collaborators the orchestrator drives. All are required.
type Deps struct {
	Guard     Authorizer
	Embedder  Embedder
	Searcher  VectorSearcher
	Completer Completer
}

// Orchestrator answers questions over the case-law corpus. It is safe for
// concurrent use; every call is independent and holds no shared mutable state.
type Orchestrator struct {
	deps Deps
	cfg  Config
}

// NewOrchestrator validates deps and returns a ready Orchestrator.
func NewOrchestrator(deps Deps, cfg Config) (*Orchestrator, error) {
	switch {
	case deps.Guard == nil:
		return nil, fmt.Errorf("rag: guard must not be nil")
	case deps.Embedder == nil:
		return nil, fmt.Errorf("rag: embedder must not be nil")
	case deps.Searcher == nil:
		return nil, fmt.Errorf("rag: searcher must not be nil")
	case deps.Completer == nil:
		return nil, fmt.Errorf("rag: completer must not be nil")
	}
	return &Orchestrator{deps: deps, cfg: cfg.withDefaults()}, nil
}

// Config returns the effective configuration.
func (o *Orchestrator) Config() Config { return o.cfg }

// Answer runs one turn: access check, query embedding, thresholded search,
// context assembly and completion. Embedding and search failures abort the
// turn. Completion failures return a degraded Answer carrying the apology
// message and nil sources, unless StrictGeneration is set. The returned error
// is always an *Error.
func (o *Orchestrator) Answer(ctx context.Context, req Request) (*Answer, error) {
	log := logging.FromContext(ctx)

	question := strings.TrimSpace(req.Message)
	if question == "" {
		return nil, NewError(KindInvalidRequest, "message is required", nil)
	}

	identity, err := o.deps.Guard.Authorize(ctx, req.Token, req.DialogID)
	if err != nil {
		return nil, classify(err, KindInternal, "Internal error")
	}
	log = log.With("user_id", identity.UserID, "dialog_id", req.DialogID)

	if p, ok := o.deps.Completer.(Preflighter); ok {
		if err := p.Preflight(); err != nil {
			return nil, classify(err, KindGenerationUnavailable, "LLM not configured")
		}
	}

	vector, err := o.embedQuery(ctx, question)
	if err != nil {
		log.Error("rag: query embedding failed", "error", err)
		return nil, classify(err, KindRetrievalUnavailable, "Search failed")
	}

	searchStart := time.Now()
	matches, err := o.search(ctx, vector)
	if err != nil {
		log.Error("rag: vector search failed", "error", err)
		return nil, classify(err, KindRetrievalUnavailable, "Search failed")
	}
	matches = ShapeMatches(matches, o.cfg.SimilarityThreshold, o.cfg.TopK)
	fitted := o.fitBudget(question, matches)
	matches = matches[:len(fitted)]
	log.Debug("rag: retrieval complete",
		"matches", len(matches),
		"duration_ms", time.Since(searchStart).Milliseconds(),
	)

	prompts := BuildPrompts(question, AssembleContext(fitted))
	log.Debug("rag: prompt assembled",
		"prompt_tokens_est", budget.EstimatePrompt(prompts.System, prompts.User),
		"has_context", len(matches) > 0,
	)

	content, err := o.complete(ctx, prompts)
	if err != nil {
		if KindOf(err) == KindGenerationUnavailable {
			return nil, err
		}
		if o.cfg.StrictGeneration {
			log.Error("rag: completion failed", "error", err)
			return nil, NewError(KindGenerationFailed, "Ошибка генерации ответа", err)
		}
		log.Warn("rag: completion failed, returning apology", "error", err)
		return &Answer{Content: o.cfg.ApologyMessage, Sources: nil, Outcome: OutcomeDegraded}, nil
	}

	return &Answer{
		Content: content,
		Sources: ProjectSources(matches, o.cfg.SourceMaxRunes),
		Outcome: OutcomeResponded,
	}, nil
}

// embedQuery embeds the question and requires exactly one non-empty vector.
func (o *Orchestrator) embedQuery(ctx context.Context, question string) ([]float32, error) {
	ctx, cancel := withTimeout(ctx, o.cfg.EmbedTimeout)
	defer cancel()

	vecs, err := o.deps.Embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("rag: embedder returned %d vectors for 1 input", len(vecs))
	}
	return vecs[0], nil
}

func (o *Orchestrator) search(ctx context.Context, vector []float32) ([]Match, error) {
	ctx, cancel := withTimeout(ctx, o.cfg.SearchTimeout)
	defer cancel()
	return o.deps.Searcher.Search(ctx, vector, o.cfg.SimilarityThreshold, o.cfg.TopK)
}

// complete calls the completer and treats a blank reply as a failure.
func (o *Orchestrator) complete(ctx context.Context, p Prompts) (string, error) {
	ctx, cancel := withTimeout(ctx, o.cfg.CompletionTimeout)
	defer cancel()

	content, err := o.deps.Completer.Complete(ctx, p.System, p.User)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(content) == "" {
		return "", errors.New("rag: completion returned empty content")
	}
	return content, nil
}

// fitBudget drops tail matches whose fragments would push the prompt past
// MaxPromptTokens. The best-ranked match always survives: when it alone is
// over budget its content is cut to what is left, but never below
// budget.MinFragmentTokens. The result is a prefix of matches, so sources
// projected from matches[:len(result)] stay parallel to the context.
func (o *Orchestrator) fitBudget(question string, matches []Match) []Match {
	if o.cfg.MaxPromptTokens <= 0 || len(matches) == 0 {
		return matches
	}
	fixed := budget.EstimatePrompt(systemPrompt, BuildPrompts(question, "x").User)
	fragments := make([]string, len(matches))
	for i, m := range matches {
		fragments[i] = AssembleContext([]Match{m}) + "\n\n"
	}
	if n := budget.FitFragments(fixed, fragments, o.cfg.MaxPromptTokens); n > 0 {
		return matches[:n]
	}

	top := matches[0]
	header := budget.Estimate(AssembleContext([]Match{{Chunk: Chunk{CaseNumber: top.CaseNumber}}}))
	left := max(o.cfg.MaxPromptTokens-fixed-header, budget.MinFragmentTokens)
	top.Content = budget.Truncate(top.Content, left)
	return []Match{top}
}

// classify returns err unchanged when it already carries a Kind, otherwise
// wraps it in an *Error of the given kind and message.
func classify(err error, kind Kind, message string) error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return NewError(kind, message, err)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
