package rag

import (
	"context"
	"errors"
	"sync"
)

// fakeGuard authorises a single (token, dialog) pair.
type fakeGuard struct {
	mu       sync.Mutex
	token    string
	dialogID string
	err      error
	calls    int
}

func (g *fakeGuard) Authorize(_ context.Context, token, dialogID string) (Identity, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return Identity{}, g.err
	}
	if token != g.token {
		return Identity{}, NewError(KindUnauthenticated, "Invalid or expired token", nil)
	}
	if dialogID != g.dialogID {
		return Identity{}, NewError(KindNotFound, "Dialog not found", nil)
	}
	return Identity{UserID: "user-1"}, nil
}

// fakeEmbedder returns a fixed vector and records its inputs.
type fakeEmbedder struct {
	mu     sync.Mutex
	vector []float32
	err    error
	inputs []string
}

func (e *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inputs = append(e.inputs, texts...)
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = e.vector
	}
	return out, nil
}

func (e *fakeEmbedder) calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.inputs)
}

// fakeSearcher returns canned matches verbatim, without filtering.
type fakeSearcher struct {
	mu        sync.Mutex
	matches   []Match
	err       error
	calls     int
	threshold float32
	topK      int
}

func (s *fakeSearcher) Search(_ context.Context, _ []float32, threshold float32, topK int) ([]Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.threshold = threshold
	s.topK = topK
	if s.err != nil {
		return nil, s.err
	}
	return append([]Match(nil), s.matches...), nil
}

// fakeCompleter returns a canned reply and records the prompts it received.
type fakeCompleter struct {
	mu           sync.Mutex
	reply        string
	err          error
	preflightErr error
	calls        int
	system       string
	user         string
}

func (c *fakeCompleter) Complete(_ context.Context, system, user string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.system = system
	c.user = user
	if c.err != nil {
		return "", c.err
	}
	return c.reply, nil
}

func (c *fakeCompleter) Preflight() error { return c.preflightErr }

// fixture bundles a ready orchestrator with its fakes.
type fixture struct {
	guard     *fakeGuard
	embedder  *fakeEmbedder
	searcher  *fakeSearcher
	completer *fakeCompleter
	orch      *Orchestrator
}

const (
	testToken  = "good-token"
	testDialog = "11111111-1111-1111-1111-111111111111"
)

func newFixture(cfg Config, matches []Match) *fixture {
	f := &fixture{
		guard:     &fakeGuard{token: testToken, dialogID: testDialog},
		embedder:  &fakeEmbedder{vector: []float32{1, 0, 0}},
		searcher:  &fakeSearcher{matches: matches},
		completer: &fakeCompleter{reply: "Ответ модели [1]."},
	}
	o, err := NewOrchestrator(Deps{
		Guard:     f.guard,
		Embedder:  f.embedder,
		Searcher:  f.searcher,
		Completer: f.completer,
	}, cfg)
	if err != nil {
		panic(err)
	}
	f.orch = o
	return f
}

func validRequest(msg string) Request {
	return Request{Token: testToken, DialogID: testDialog, Message: msg}
}

var errBackend = errors.New("backend exploded")
