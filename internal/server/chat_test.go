package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/54b3r/caselaw-rag/internal/rag"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

// fakeAnswerer implements the answerer interface for tests.
type fakeAnswerer struct {
	mu sync.Mutex
	// answer is returned when err is nil.
	answer *rag.Answer
	// err is returned as the error value.
	err error
	// calls records every request received.
	calls []rag.Request
}

func (f *fakeAnswerer) Answer(_ context.Context, req rag.Request) (*rag.Answer, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.answer, nil
}

func (f *fakeAnswerer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// newTestServer builds a Server around a with an isolated metrics registry.
// cfg may be nil.
func newTestServer(t *testing.T, a answerer, cfg *Config) *Server {
	t.Helper()
	if cfg == nil {
		cfg = &Config{}
	}
	reg := prometheus.NewRegistry()
	cfg.MetricsRegistry = reg
	cfg.MetricsGatherer = reg
	s, err := New(a, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

// postChat sends POST /rag-chat through the full router.
func postChat(t *testing.T, s *Server, auth, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/rag-chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

// decodeMessage decodes a {"message": ...} body.
func decodeMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body messageResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode message body %q: %v", w.Body.String(), err)
	}
	return body.Message
}

const validBody = `{"dialog_id":"3f0c2a4e-6a59-4d3e-8f3a-2b1f5f0b9c11","message":"Каковы сроки исковой давности?"}`

// ---------------------------------------------------------------------------
// POST /rag-chat: request validation
// ---------------------------------------------------------------------------

// TestRagChat_MissingBearer verifies that a request without a bearer token is
// rejected with 401 before the body is read.
func TestRagChat_MissingBearer(t *testing.T) {
	t.Parallel()

	a := &fakeAnswerer{}
	s := newTestServer(t, a, nil)

	for _, auth := range []string{"", "Basic dXNlcjpwYXNz", "Bearer "} {
		w := postChat(t, s, auth, `not json`)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("auth=%q: expected 401, got %d", auth, w.Code)
		}
		if got := decodeMessage(t, w); got != "Unauthorized" {
			t.Errorf("auth=%q: message: expected %q, got %q", auth, "Unauthorized", got)
		}
		if w.Header().Get("WWW-Authenticate") == "" {
			t.Errorf("auth=%q: expected WWW-Authenticate header on 401", auth)
		}
	}
	if a.callCount() != 0 {
		t.Errorf("answerer must not be called, got %d calls", a.callCount())
	}
}

// TestRagChat_InvalidJSON verifies that an undecodable body is a 400.
func TestRagChat_InvalidJSON(t *testing.T) {
	t.Parallel()

	a := &fakeAnswerer{}
	s := newTestServer(t, a, nil)

	w := postChat(t, s, "Bearer tok", `{"dialog_id":`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if got := decodeMessage(t, w); got != "Invalid JSON" {
		t.Errorf("message: expected %q, got %q", "Invalid JSON", got)
	}
	if a.callCount() != 0 {
		t.Error("answerer must not be called for invalid JSON")
	}
}

// TestRagChat_MissingMessage verifies that an absent message is a 400 with
// the field named by its JSON key.
func TestRagChat_MissingMessage(t *testing.T) {
	t.Parallel()

	a := &fakeAnswerer{}
	s := newTestServer(t, a, nil)

	w := postChat(t, s, "Bearer tok", `{"dialog_id":"d1"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if got := decodeMessage(t, w); got != "message is required" {
		t.Errorf("message: expected %q, got %q", "message is required", got)
	}
}

// TestRagChat_MethodNotAllowed verifies that non-POST methods get a JSON 405.
func TestRagChat_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeAnswerer{}, nil)

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		req := httptest.NewRequest(method, "/rag-chat", nil)
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)

		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s: expected 405, got %d", method, w.Code)
			continue
		}
		if got := decodeMessage(t, w); got != "Method not allowed" {
			t.Errorf("%s: message: expected %q, got %q", method, "Method not allowed", got)
		}
	}
}

// ---------------------------------------------------------------------------
// POST /rag-chat: responses
// ---------------------------------------------------------------------------

// TestRagChat_Success verifies the 200 body shape and that the bearer token,
// dialog ID and message are passed through unchanged.
func TestRagChat_Success(t *testing.T) {
	t.Parallel()

	sim := float32(0.81)
	a := &fakeAnswerer{answer: &rag.Answer{
		Content: "Три года [1].",
		Sources: []rag.Source{{ID: "c1", CaseNumber: "А40-123/2021", Content: "текст", Similarity: &sim}},
		Outcome: rag.OutcomeResponded,
	}}
	s := newTestServer(t, a, nil)

	w := postChat(t, s, "Bearer tok-123", validBody)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: expected application/json, got %q", ct)
	}

	var body struct {
		Content string       `json:"content"`
		Sources []rag.Source `json:"sources"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Content != "Три года [1]." {
		t.Errorf("content: got %q", body.Content)
	}
	if len(body.Sources) != 1 || body.Sources[0].CaseNumber != "А40-123/2021" {
		t.Errorf("sources: got %+v", body.Sources)
	}

	if a.callCount() != 1 {
		t.Fatalf("expected 1 answerer call, got %d", a.callCount())
	}
	got := a.calls[0]
	if got.Token != "tok-123" {
		t.Errorf("token: expected %q, got %q", "tok-123", got.Token)
	}
	if got.DialogID != "3f0c2a4e-6a59-4d3e-8f3a-2b1f5f0b9c11" {
		t.Errorf("dialog_id: got %q", got.DialogID)
	}
	if got.Message != "Каковы сроки исковой давности?" {
		t.Errorf("message: got %q", got.Message)
	}
}

// TestRagChat_DegradedSourcesNull verifies that a degraded answer encodes
// sources as JSON null with a 200 status.
func TestRagChat_DegradedSourcesNull(t *testing.T) {
	t.Parallel()

	a := &fakeAnswerer{answer: &rag.Answer{
		Content: rag.DefaultApologyMessage,
		Outcome: rag.OutcomeDegraded,
	}}
	s := newTestServer(t, a, nil)

	w := postChat(t, s, "Bearer tok", validBody)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"sources":null`) {
		t.Errorf("expected sources:null, got %s", w.Body.String())
	}
}

// TestRagChat_NoMatchesSourcesEmpty verifies that an answer with no retrieved
// fragments encodes sources as an empty array.
func TestRagChat_NoMatchesSourcesEmpty(t *testing.T) {
	t.Parallel()

	a := &fakeAnswerer{answer: &rag.Answer{
		Content: "Релевантных дел нет.",
		Sources: []rag.Source{},
		Outcome: rag.OutcomeResponded,
	}}
	s := newTestServer(t, a, nil)

	w := postChat(t, s, "Bearer tok", validBody)

	if !strings.Contains(w.Body.String(), `"sources":[]`) {
		t.Errorf("expected sources:[], got %s", w.Body.String())
	}
}

// TestRagChat_ErrorMapping verifies the status and message for every error
// kind the answerer can return, and that backend detail never leaks.
func TestRagChat_ErrorMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"invalid token", rag.NewError(rag.KindUnauthenticated, "Invalid or expired token", errors.New("sig")), 401, "Invalid or expired token"},
		{"foreign dialog", rag.NewError(rag.KindNotFound, "Dialog not found", nil), 404, "Dialog not found"},
		{"blank message", rag.NewError(rag.KindInvalidRequest, "message is required", nil), 400, "message is required"},
		{"search down", rag.NewError(rag.KindRetrievalUnavailable, "Search failed", errors.New("pq: connection refused")), 500, "Search failed"},
		{"llm missing", rag.NewError(rag.KindGenerationUnavailable, "LLM not configured", nil), 503, "LLM not configured"},
		{"llm failed strict", rag.NewError(rag.KindGenerationFailed, "Ошибка генерации ответа", errors.New("HTTP 500")), 502, "Ошибка генерации ответа"},
		{"ownership lookup", rag.NewError(rag.KindInternal, "Internal error", errors.New("db down")), 500, "Internal error"},
		{"unclassified", fmt.Errorf("secret backend detail"), 500, "Internal error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := newTestServer(t, &fakeAnswerer{err: tc.err}, nil)
			w := postChat(t, s, "Bearer tok", validBody)

			if w.Code != tc.wantStatus {
				t.Errorf("status: expected %d, got %d", tc.wantStatus, w.Code)
			}
			if got := decodeMessage(t, w); got != tc.wantMsg {
				t.Errorf("message: expected %q, got %q", tc.wantMsg, got)
			}
			for _, leak := range []string{"pq:", "db down", "secret backend detail", "HTTP 500"} {
				if strings.Contains(w.Body.String(), leak) {
					t.Errorf("body leaks %q: %s", leak, w.Body.String())
				}
			}
		})
	}
}

// TestStatusFor verifies the kind to status table.
func TestStatusFor(t *testing.T) {
	t.Parallel()

	cases := map[rag.Kind]int{
		rag.KindInvalidRequest:        http.StatusBadRequest,
		rag.KindUnauthenticated:       http.StatusUnauthorized,
		rag.KindNotFound:              http.StatusNotFound,
		rag.KindRetrievalUnavailable:  http.StatusInternalServerError,
		rag.KindGenerationUnavailable: http.StatusServiceUnavailable,
		rag.KindGenerationFailed:      http.StatusBadGateway,
		rag.KindInternal:              http.StatusInternalServerError,
		rag.Kind("unknown"):           http.StatusInternalServerError,
	}
	for kind, want := range cases {
		if got := statusFor(kind); got != want {
			t.Errorf("statusFor(%q): expected %d, got %d", kind, want, got)
		}
	}
}

// ---------------------------------------------------------------------------
// Middleware through the router
// ---------------------------------------------------------------------------

// TestRouter_RequestIDHeader verifies every response carries X-Request-Id.
func TestRouter_RequestIDHeader(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeAnswerer{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Header().Get("X-Request-Id") == "" {
		t.Error("expected X-Request-Id header")
	}
}

// TestRouter_RateLimited verifies that /rag-chat is rate limited per IP.
func TestRouter_RateLimited(t *testing.T) {
	t.Parallel()

	a := &fakeAnswerer{answer: &rag.Answer{Content: "ok", Sources: []rag.Source{}, Outcome: rag.OutcomeResponded}}
	s := newTestServer(t, a, &Config{RateLimit: 0.001, RateBurst: 1})

	first := postChat(t, s, "Bearer tok", validBody)
	if first.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", first.Code)
	}
	second := postChat(t, s, "Bearer tok", validBody)
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header on 429")
	}
	if got := decodeMessage(t, second); got != "Too many requests" {
		t.Errorf("message: expected %q, got %q", "Too many requests", got)
	}
	var m dto.Metric
	if err := s.metrics.rateLimitedTotal.Write(&m); err != nil {
		t.Fatalf("read rate_limited_total: %v", err)
	}
	if got := m.GetCounter().GetValue(); got != 1 {
		t.Errorf("rate_limited_total: expected 1, got %v", got)
	}
}

// TestRouter_CORSPreflight verifies that configured origins are echoed on a
// preflight request answered with 204.
func TestRouter_CORSPreflight(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeAnswerer{}, &Config{AllowedOrigins: []string{"https://app.example"}})

	req := httptest.NewRequest(http.MethodOptions, "/rag-chat", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "authorization,content-type")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Errorf("Access-Control-Allow-Origin: expected origin, got %q", got)
	}
	if w.Body.Len() != 0 {
		t.Errorf("preflight body must be empty, got %q", w.Body.String())
	}
}

// TestRouter_CORSDisabledByDefault verifies that no CORS headers are sent
// when no origins are configured.
func TestRouter_CORSDisabledByDefault(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeAnswerer{err: rag.NewError(rag.KindNotFound, "Dialog not found", nil)}, nil)

	req := httptest.NewRequest(http.MethodPost, "/rag-chat", strings.NewReader(validBody))
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("expected no Access-Control-Allow-Origin, got %q", got)
	}
}

// TestRouter_NotFoundJSON verifies unknown paths return a JSON 404.
func TestRouter_NotFoundJSON(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeAnswerer{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if got := decodeMessage(t, w); got != "Not found" {
		t.Errorf("message: got %q", got)
	}
}

// TestNew_NilAnswerer verifies the constructor rejects a nil answerer.
func TestNew_NilAnswerer(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, &Config{}); err == nil {
		t.Fatal("expected error for nil answerer")
	}
}
