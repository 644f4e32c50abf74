package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/grounded-rag/internal/core/domain"
)

func TestOverlapScorerFractions(t *testing.T) {
	scores, err := OverlapScorer{}.Score(context.Background(), "cat dog", []string{
		"The Dog chased the CAT",
		"nothing relevant here",
		"a cat alone",
	})
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	want := []float64{1.0, 0.0, 0.5}
	for i := range want {
		if scores[i] != want[i] {
			t.Fatalf("score %d: expected %v, got %v", i, want[i], scores[i])
		}
	}
}

func TestOverlapScorerEmptyQuery(t *testing.T) {
	scores, _ := OverlapScorer{}.Score(context.Background(), "   ", []string{"text"})
	if scores[0] != 0 {
		t.Fatalf("expected 0 for empty query, got %v", scores[0])
	}
}

func TestRerankOrdersByRelevanceStable(t *testing.T) {
	scorer := &scorerFake{name: "learned", scores: []float64{0.2, 0.9, 0.2, -1.5}}
	r := NewReranker(scorer, nil, nil)

	out, err := r.Rerank(context.Background(), "q", []domain.RetrievalCandidate{
		candidate("a", "a"), candidate("b", "b"), candidate("c", "c"), candidate("d", "d"),
	}, 3)
	if err != nil {
		t.Fatalf("Rerank() error = %v", err)
	}
	got := []string{out[0].ChunkID, out[1].ChunkID, out[2].ChunkID}
	want := []string{"b", "a", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
	if out[0].RelevanceScore != 0.9 {
		t.Fatalf("expected relevance score carried, got %v", out[0].RelevanceScore)
	}
}

func TestRerankEmptyInputSkipsScorer(t *testing.T) {
	scorer := &scorerFake{name: "learned"}
	out, err := NewReranker(scorer, nil, nil).Rerank(context.Background(), "q", nil, 5)
	if err != nil {
		t.Fatalf("Rerank() error = %v", err)
	}
	if len(out) != 0 || scorer.calls != 0 {
		t.Fatalf("expected no output and no scorer call, got %d items, %d calls", len(out), scorer.calls)
	}
}

func TestRerankFallsBackToOverlap(t *testing.T) {
	metrics := &pipelineMetricsFake{}
	scorer := &scorerFake{name: "cross-encoder", err: errors.New("model server down")}
	r := NewReranker(scorer, metrics, nil)

	out, err := r.Rerank(context.Background(), "cat dog", []domain.RetrievalCandidate{
		candidate("x", "unrelated"), candidate("y", "cat and dog"),
	}, 5)
	if err != nil {
		t.Fatalf("Rerank() error = %v", err)
	}
	if out[0].ChunkID != "y" || out[0].RelevanceScore != 1.0 {
		t.Fatalf("expected overlap fallback ordering, got %#v", out)
	}
	if len(metrics.fallbacks) != 1 || metrics.fallbacks[0] != "cross-encoder" {
		t.Fatalf("expected fallback recorded, got %v", metrics.fallbacks)
	}
}

func TestRerankScoreCountMismatchFallsBack(t *testing.T) {
	scorer := &scorerFake{name: "cross-encoder", scores: []float64{1}}
	out, err := NewReranker(scorer, nil, nil).Rerank(context.Background(), "dog", []domain.RetrievalCandidate{
		candidate("x", "cat"), candidate("y", "dog"),
	}, 5)
	if err != nil {
		t.Fatalf("Rerank() error = %v", err)
	}
	if len(out) != 2 || out[0].ChunkID != "y" {
		t.Fatalf("expected overlap ordering after mismatch, got %#v", out)
	}
}

func TestRerankCancelledContextFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	scorer := &scorerFake{name: "cross-encoder", err: context.Canceled}
	_, err := NewReranker(scorer, nil, nil).Rerank(ctx, "q", []domain.RetrievalCandidate{candidate("a", "a")}, 5)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}
