package qdrant

import (
	"context"
	"fmt"

	"github.com/kirillkom/grounded-rag/internal/core/domain"
	"github.com/kirillkom/grounded-rag/internal/core/ports"
)

// Index is the semantic half of hybrid retrieval: chunks are embedded with
// the configured embedder and stored as Qdrant points.
type Index struct {
	client   *Client
	embedder ports.Embedder
}

func NewIndex(client *Client, embedder ports.Embedder) *Index {
	return &Index{client: client, embedder: embedder}
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
	return i.client.Upsert(ctx, chunks, vectors)
}

func (i *Index) Search(ctx context.Context, query string, limit int) ([]domain.RetrievalCandidate, error) {
	vector, err := i.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return i.client.Search(ctx, vector, limit)
}

func (i *Index) Delete(ctx context.Context, chunkIDs []string) error {
	return i.client.Delete(ctx, chunkIDs)
}

func (i *Index) Clear(ctx context.Context) error {
	return i.client.DropCollection(ctx)
}
