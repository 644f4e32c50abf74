package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/kirillkom/grounded-rag/internal/core/domain"
	"github.com/kirillkom/grounded-rag/internal/core/ports"
)

// Index keeps chunk embeddings in process and searches them by brute-force
// cosine similarity. It is rebuilt from the chunk store at startup.
type Index struct {
	embedder ports.Embedder

	mu      sync.RWMutex
	entries []entry
	byID    map[string]int
}

type entry struct {
	chunk  domain.Chunk
	vector []float32
	norm   float64
}

func NewIndex(embedder ports.Embedder) *Index {
	return &Index{embedder: embedder, byID: map[string]int{}}
}

func (i *Index) Index(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		texts = append(texts, chunk.Text)
	}
	vectors, err := i.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("chunks/vectors mismatch: %d chunks, %d vectors", len(chunks), len(vectors))
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	for n, chunk := range chunks {
		e := entry{chunk: chunk, vector: vectors[n], norm: norm(vectors[n])}
		if pos, ok := i.byID[chunk.ID]; ok {
			i.entries[pos] = e
			continue
		}
		i.byID[chunk.ID] = len(i.entries)
		i.entries = append(i.entries, e)
	}
	return nil
}

func (i *Index) Search(ctx context.Context, query string, limit int) ([]domain.RetrievalCandidate, error) {
	vector, err := i.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	queryNorm := norm(vector)

	i.mu.RLock()
	out := make([]domain.RetrievalCandidate, 0, len(i.entries))
	for _, e := range i.entries {
		out = append(out, domain.RetrievalCandidate{
			ChunkID:   e.chunk.ID,
			Text:      e.chunk.Text,
			Metadata:  e.chunk.Metadata,
			Score:     cosine(vector, queryNorm, e.vector, e.norm),
			ScoreKind: domain.ScoreSimilarity,
		})
	}
	i.mu.RUnlock()

	sort.SliceStable(out, func(a, b int) bool { return out[a].Score > out[b].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (i *Index) Delete(_ context.Context, chunkIDs []string) error {
	drop := make(map[string]struct{}, len(chunkIDs))
	for _, id := range chunkIDs {
		drop[id] = struct{}{}
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	kept := i.entries[:0]
	for _, e := range i.entries {
		if _, ok := drop[e.chunk.ID]; !ok {
			kept = append(kept, e)
		}
	}
	i.entries = kept
	i.byID = make(map[string]int, len(kept))
	for pos, e := range kept {
		i.byID[e.chunk.ID] = pos
	}
	return nil
}

func (i *Index) Clear(context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.entries = nil
	i.byID = map[string]int{}
	return nil
}

func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.entries)
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// cosine returns 0 for zero vectors and mismatched dimensions.
func cosine(a []float32, normA float64, b []float32, normB float64) float64 {
	if len(a) != len(b) || normA == 0 || normB == 0 {
		return 0
	}
	var dot float64
	for n := range a {
		dot += float64(a[n]) * float64(b[n])
	}
	return dot / (normA * normB)
}
