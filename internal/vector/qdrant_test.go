package vector

import (
	"context"
	"testing"

	"github.com/qdrant/go-client/qdrant"
)

func TestToMatches_ReadsPayload(t *testing.T) {
	t.Parallel()
	points := []*qdrant.ScoredPoint{
		{
			Id:    qdrant.NewIDUUID("11111111-1111-1111-1111-111111111111"),
			Score: 0.81,
			Payload: qdrant.NewValueMap(map[string]any{
				payloadContent:    "Срок исковой давности",
				payloadCaseNumber: "А40-123/2021",
			}),
		},
		{
			Id:      qdrant.NewIDUUID("22222222-2222-2222-2222-222222222222"),
			Score:   0.63,
			Payload: qdrant.NewValueMap(map[string]any{payloadContent: "без номера"}),
		},
	}

	got := toMatches(points)
	if len(got) != 2 {
		t.Fatalf("want 2 matches, got %d", len(got))
	}
	if got[0].ID != "11111111-1111-1111-1111-111111111111" || got[0].CaseNumber != "А40-123/2021" {
		t.Errorf("match[0] = %+v", got[0])
	}
	if got[0].Similarity != 0.81 {
		t.Errorf("similarity = %v", got[0].Similarity)
	}
	if got[1].CaseNumber != "" || got[1].Content != "без номера" {
		t.Errorf("match[1] = %+v", got[1])
	}
}

func TestToMatches_Empty(t *testing.T) {
	t.Parallel()
	got := toMatches(nil)
	if got == nil || len(got) != 0 {
		t.Errorf("want empty non-nil slice, got %#v", got)
	}
}

func TestSortByScore(t *testing.T) {
	t.Parallel()
	matches := toMatches([]*qdrant.ScoredPoint{
		{Id: qdrant.NewIDUUID("cccccccc-0000-0000-0000-000000000000"), Score: 0.7},
		{Id: qdrant.NewIDUUID("aaaaaaaa-0000-0000-0000-000000000000"), Score: 0.7},
		{Id: qdrant.NewIDUUID("bbbbbbbb-0000-0000-0000-000000000000"), Score: 0.9},
	})
	sortByScore(matches)

	want := []string{
		"bbbbbbbb-0000-0000-0000-000000000000",
		"aaaaaaaa-0000-0000-0000-000000000000",
		"cccccccc-0000-0000-0000-000000000000",
	}
	for i, id := range want {
		if matches[i].ID != id {
			t.Errorf("match[%d] = %s, want %s", i, matches[i].ID, id)
		}
	}
}

func TestNewQdrantStore_Validation(t *testing.T) {
	t.Parallel()
	if _, err := NewQdrantStore(context.Background(), nil); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := NewQdrantStore(context.Background(), &QdrantConfig{}); err == nil {
		t.Error("expected error for empty collection")
	}
}
