package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/kirillkom/grounded-rag/internal/core/domain"
)

// axisEmbedder maps known words onto unit axes so similarity is predictable.
type axisEmbedder struct {
	err error
}

func (e axisEmbedder) vector(text string) []float32 {
	switch text {
	case "cats":
		return []float32{1, 0, 0}
	case "dogs":
		return []float32{0, 1, 0}
	case "cats and dogs":
		return []float32{0.7, 0.7, 0}
	default:
		return []float32{0, 0, 1}
	}
}

func (e axisEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		out = append(out, e.vector(text))
	}
	return out, nil
}

func (e axisEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.vector(text), nil
}

func chunk(id, text string) domain.Chunk {
	return domain.Chunk{ID: id, Text: text, Metadata: domain.ChunkMetadata{Source: id + ".txt"}}
}

func TestSearchOrdersBySimilarity(t *testing.T) {
	index := NewIndex(axisEmbedder{})
	ctx := context.Background()
	if err := index.Index(ctx, []domain.Chunk{chunk("c", "cats"), chunk("d", "dogs"), chunk("m", "cats and dogs")}); err != nil {
		t.Fatalf("Index() error = %v", err)
	}

	got, err := index.Search(ctx, "cats", 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 2 || got[0].ChunkID != "c" || got[1].ChunkID != "m" {
		t.Fatalf("unexpected order %+v", got)
	}
	if got[0].ScoreKind != domain.ScoreSimilarity || got[0].Score < 0.999 {
		t.Fatalf("unexpected top candidate %+v", got[0])
	}
}

func TestIndexReplacesSameChunkID(t *testing.T) {
	index := NewIndex(axisEmbedder{})
	ctx := context.Background()
	_ = index.Index(ctx, []domain.Chunk{chunk("a", "cats")})
	_ = index.Index(ctx, []domain.Chunk{chunk("a", "dogs")})
	if index.Len() != 1 {
		t.Fatalf("expected one entry, got %d", index.Len())
	}
	got, _ := index.Search(ctx, "dogs", 1)
	if got[0].Text != "dogs" {
		t.Fatalf("expected replaced text, got %q", got[0].Text)
	}
}

func TestDeleteAndClear(t *testing.T) {
	index := NewIndex(axisEmbedder{})
	ctx := context.Background()
	_ = index.Index(ctx, []domain.Chunk{chunk("a", "cats"), chunk("b", "dogs"), chunk("c", "other")})

	if err := index.Delete(ctx, []string{"b", "missing"}); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if index.Len() != 2 {
		t.Fatalf("expected 2 entries after delete, got %d", index.Len())
	}
	_ = index.Index(ctx, []domain.Chunk{chunk("c", "dogs")})
	if index.Len() != 2 {
		t.Fatalf("positions not rebuilt after delete, len=%d", index.Len())
	}

	if err := index.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	got, err := index.Search(ctx, "cats", 5)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty search after clear, got %v, %v", got, err)
	}
}

func TestEmbedderErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	index := NewIndex(axisEmbedder{err: boom})
	if err := index.Index(context.Background(), []domain.Chunk{chunk("a", "cats")}); !errors.Is(err, boom) {
		t.Fatalf("expected embed error, got %v", err)
	}
	if _, err := index.Search(context.Background(), "cats", 1); !errors.Is(err, boom) {
		t.Fatalf("expected embed error, got %v", err)
	}
}

func TestConcurrentIndexAndSearch(t *testing.T) {
	index := NewIndex(axisEmbedder{})
	ctx := context.Background()
	var wg sync.WaitGroup
	for n := 0; n < 8; n++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			_ = index.Index(ctx, []domain.Chunk{chunk(string(rune('a'+n)), "cats")})
		}(n)
		go func() {
			defer wg.Done()
			_, _ = index.Search(ctx, "cats", 3)
		}()
	}
	wg.Wait()
	if index.Len() != 8 {
		t.Fatalf("expected 8 entries, got %d", index.Len())
	}
}
