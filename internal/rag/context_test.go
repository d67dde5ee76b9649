package rag

import (
	"strings"
	"testing"
)

func TestAssembleContext(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		matches []Match
		want    string
	}{
		{name: "empty", matches: nil, want: ""},
		{
			name: "single with case",
			matches: []Match{
				{Chunk: Chunk{ID: "1", Content: "текст", CaseNumber: "А40-1/2020"}, Similarity: 0.9},
			},
			want: "[1] Дело А40-1/2020. текст",
		},
		{
			name: "missing case number",
			matches: []Match{
				{Chunk: Chunk{ID: "1", Content: "первый", CaseNumber: "А40-1/2020"}, Similarity: 0.9},
				{Chunk: Chunk{ID: "2", Content: "второй"}, Similarity: 0.7},
			},
			want: "[1] Дело А40-1/2020. первый\n\n[2] второй",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := AssembleContext(tc.matches); got != tc.want {
				t.Errorf("AssembleContext = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestAssembleContext_NumberingMatchesSources(t *testing.T) {
	t.Parallel()
	matches := ShapeMatches(twoCaseMatches(), DefaultSimilarityThreshold, DefaultTopK)
	ctx := AssembleContext(matches)
	sources := ProjectSources(matches, DefaultSourceMaxRunes)

	blocks := strings.Split(ctx, "\n\n")
	if len(blocks) != len(sources) {
		t.Fatalf("blocks = %d, sources = %d", len(blocks), len(sources))
	}
	for i, b := range blocks {
		if !strings.Contains(b, sources[i].CaseNumber) {
			t.Errorf("block %d %q does not cite sources[%d] %q", i+1, b, i, sources[i].CaseNumber)
		}
	}
}

func TestAssembleContext_Deterministic(t *testing.T) {
	t.Parallel()
	m := twoCaseMatches()
	if AssembleContext(m) != AssembleContext(m) {
		t.Error("AssembleContext is not deterministic")
	}
}

func TestBuildPrompts(t *testing.T) {
	t.Parallel()

	with := BuildPrompts("Что такое неустойка?", "[1] Дело А. текст")
	if with.System != systemPrompt {
		t.Errorf("system prompt mismatch")
	}
	wantUser := "Контекст (фрагменты судебных дел):\n\n[1] Дело А. текст\n\n---\n\nВопрос пользователя: Что такое неустойка?"
	if with.User != wantUser {
		t.Errorf("user prompt = %q, want %q", with.User, wantUser)
	}

	without := BuildPrompts("Что такое неустойка?", "")
	if without.System != systemPrompt {
		t.Errorf("system prompt must not depend on context")
	}
	if !strings.HasPrefix(without.User, "Вопрос пользователя: Что такое неустойка?\n\n") {
		t.Errorf("user prompt = %q", without.User)
	}
	if !strings.HasSuffix(without.User, noContextNotice) {
		t.Errorf("user prompt lacks the no-context instruction: %q", without.User)
	}
}
