package usecase

import (
	"context"
	"testing"

	"github.com/vietcare/medsearch/internal/core/domain"
)

func searchFixtures(rerankerScores []float64, rerankerErr error) (*SearchUseCase, *fakeReranker) {
	embedder := &fakeEmbedder{}
	vector := &fakeVector{hits: map[string][]domain.Hit{
		vectorKey([]float32{1}): {
			{ID: "doc-a", Text: "a", Score: 1.0},
			{ID: "doc-b", Text: "b", Score: 0.9},
		},
	}}
	keyword := &fakeKeyword{hits: map[string][]domain.Hit{}}
	reranker := &fakeReranker{scores: rerankerScores, err: rerankerErr}
	return newSearchUC(embedder, vector, keyword, nil, reranker), reranker
}

func TestRerankBlendsAndReorders(t *testing.T) {
	// doc-b gets the stronger cross-encoder score and must overtake doc-a.
	uc, reranker := searchFixtures([]float64{0.1, 0.95}, nil)

	res, err := uc.Search(context.Background(), domain.SearchRequest{
		Query:                "q",
		IncludeLowConfidence: true,
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if reranker.calls != 1 {
		t.Fatalf("expected one rerank call, got %d", reranker.calls)
	}
	if !res.RerankApplied {
		t.Fatalf("expected rerank applied flag")
	}
	if res.Candidates[0].ID != "doc-b" {
		t.Fatalf("expected doc-b first after rerank, got %s", res.Candidates[0].ID)
	}

	// final' = 0.7*rerank + 0.3*prior, prior = 0.5*0.9 = 0.45
	want := 0.7*0.95 + 0.3*0.45
	if got := res.Candidates[0].FinalScore; !almostEqual(got, want) {
		t.Fatalf("expected blended score %v, got %v", want, got)
	}
}

func TestRerankUnavailableKeepsOrderUnchanged(t *testing.T) {
	uc, _ := searchFixtures(nil, domain.WrapError(domain.ErrRerankerUnavailable, "score", context.DeadlineExceeded))

	res, err := uc.Search(context.Background(), domain.SearchRequest{
		Query:                "q",
		IncludeLowConfidence: true,
	})
	if err != nil {
		t.Fatalf("expected graceful degradation, got %v", err)
	}
	if res.RerankApplied {
		t.Fatalf("expected rerank applied=false")
	}
	if res.Candidates[0].ID != "doc-a" || res.Candidates[1].ID != "doc-b" {
		t.Fatalf("expected pre-rerank order preserved, got %s,%s",
			res.Candidates[0].ID, res.Candidates[1].ID)
	}
	for _, c := range res.Candidates {
		if c.Reranked {
			t.Fatalf("candidate %s marked reranked despite fallback", c.ID)
		}
	}
}

func TestRerankSkippedOnRequest(t *testing.T) {
	uc, reranker := searchFixtures([]float64{0.1, 0.95}, nil)

	res, err := uc.Search(context.Background(), domain.SearchRequest{
		Query:                "q",
		SkipRerank:           true,
		IncludeLowConfidence: true,
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if reranker.calls != 0 {
		t.Fatalf("expected no rerank call, got %d", reranker.calls)
	}
	if res.RerankApplied {
		t.Fatalf("expected rerank applied=false when skipped")
	}
}

func TestRerankScoreCountMismatchFallsBack(t *testing.T) {
	uc, _ := searchFixtures([]float64{0.4}, nil)

	res, err := uc.Search(context.Background(), domain.SearchRequest{
		Query:                "q",
		IncludeLowConfidence: true,
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if res.RerankApplied {
		t.Fatalf("expected fallback on score count mismatch")
	}
}

func TestRerankResortsFullListWhenTopNSmaller(t *testing.T) {
	// Only the top candidate is rescored. A weak cross-encoder score must
	// push it behind the untouched tail, not leave the list out of order.
	cfg := DefaultRetrievalConfig()
	cfg.RerankTopN = 1
	embedder := &fakeEmbedder{}
	vector := &fakeVector{hits: map[string][]domain.Hit{
		vectorKey([]float32{1}): {
			{ID: "doc-a", Text: "a", Score: 1.0},
			{ID: "doc-b", Text: "b", Score: 0.9},
		},
	}}
	keyword := &fakeKeyword{hits: map[string][]domain.Hit{}}
	reranker := &fakeReranker{scores: []float64{0}}
	uc := NewSearchUseCase(cfg, DefaultLexicon(), embedder, vector, keyword, nil, reranker)

	res, err := uc.Search(context.Background(), domain.SearchRequest{
		Query:                "q",
		IncludeLowConfidence: true,
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if !res.RerankApplied {
		t.Fatalf("expected rerank applied flag")
	}
	if len(res.Candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(res.Candidates))
	}
	// doc-a blends to 0.3*0.5 = 0.15 and must drop behind doc-b's 0.45.
	if res.Candidates[0].ID != "doc-b" || res.Candidates[1].ID != "doc-a" {
		t.Fatalf("expected doc-b,doc-a order, got %s,%s",
			res.Candidates[0].ID, res.Candidates[1].ID)
	}
	for i := 1; i < len(res.Candidates); i++ {
		if res.Candidates[i].FinalScore > res.Candidates[i-1].FinalScore {
			t.Fatalf("scores not non-increasing: pos %d (%v) > pos %d (%v)",
				i, res.Candidates[i].FinalScore, i-1, res.Candidates[i-1].FinalScore)
		}
	}
}

func TestRerankReappliesScoreFloor(t *testing.T) {
	// doc-drop clears the 0.5 floor on priors alone, then a zero
	// cross-encoder score blends it down to 0.15. It must not be returned.
	embedder := &fakeEmbedder{}
	vector := &fakeVector{hits: map[string][]domain.Hit{
		vectorKey([]float32{1}): {
			{ID: "doc-keep", Text: "k", Score: 1.0},
			{ID: "doc-drop", Text: "d", Score: 1.0},
		},
	}}
	keyword := &fakeKeyword{hits: map[string][]domain.Hit{
		"q": {{ID: "doc-keep", Score: 1.0}},
	}}
	reranker := &fakeReranker{scores: []float64{0.9, 0}}
	uc := newSearchUC(embedder, vector, keyword, nil, reranker)

	res, err := uc.Search(context.Background(), domain.SearchRequest{Query: "q"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(res.Candidates) != 1 || res.Candidates[0].ID != "doc-keep" {
		t.Fatalf("expected only doc-keep above the floor, got %+v", res.Candidates)
	}
	for _, c := range res.Candidates {
		if c.FinalScore < 0.5 {
			t.Fatalf("blended result below threshold: %+v", c)
		}
	}
}

func almostEqual(a, b float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < 1e-9
}
