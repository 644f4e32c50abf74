package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kirillkom/grounded-rag/internal/core/domain"
	"github.com/kirillkom/grounded-rag/internal/core/ports"
)

type CorpusConfig struct {
	// Origin identifies this process in corpus events.
	Origin string
	// LocalEmbeddings marks an embedding index private to this process; it
	// then follows corpus events like the lexical index does.
	LocalEmbeddings bool
}

// CorpusUseCase keeps the lexical index, the embedding index and the chunk
// store in step. Writers hold mu exclusively; retrieval holds ReadLocker so a
// query never sees one index cleared or rebuilt and the other not.
type CorpusUseCase struct {
	mu sync.RWMutex

	lexical   ports.LexicalIndex
	embedding ports.EmbeddingIndex
	chunks    ports.ChunkStore
	docs      ports.DocumentRepository
	queue     ports.MessageQueue
	cfg       CorpusConfig
	logger    *slog.Logger
}

func NewCorpusUseCase(
	lexical ports.LexicalIndex,
	embedding ports.EmbeddingIndex,
	chunks ports.ChunkStore,
	docs ports.DocumentRepository,
	queue ports.MessageQueue,
	cfg CorpusConfig,
	logger *slog.Logger,
) *CorpusUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &CorpusUseCase{
		lexical:   lexical,
		embedding: embedding,
		chunks:    chunks,
		docs:      docs,
		queue:     queue,
		cfg:       cfg,
		logger:    logger,
	}
}

// ReadLocker guards readers that search both indexes.
func (uc *CorpusUseCase) ReadLocker() sync.Locker {
	return uc.mu.RLocker()
}

// Ingest writes chunks to the embedding index, then the chunk store, then the
// lexical index. A chunk store failure removes the fresh embeddings again;
// if that removal fails too the error carries domain.ErrPartialIngestion.
func (uc *CorpusUseCase) Ingest(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "ingest chunks", errors.New("no chunks"))
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()

	if uc.embedding != nil {
		if err := uc.embedding.Index(ctx, chunks); err != nil {
			return fmt.Errorf("index embeddings: %w", err)
		}
	}

	if err := uc.chunks.SaveChunks(ctx, documentID, chunks); err != nil {
		if uc.embedding == nil {
			return fmt.Errorf("save chunks: %w", err)
		}
		if delErr := uc.embedding.Delete(context.WithoutCancel(ctx), chunkIDs(chunks)); delErr != nil {
			uc.logger.Error("ingest_compensation_failed",
				"document_id", documentID,
				"chunks", len(chunks),
				"error", delErr.Error(),
			)
			return domain.WrapError(
				domain.ErrPartialIngestion,
				"save chunks",
				fmt.Errorf("%w; remove embeddings: %v", err, delErr),
			)
		}
		return fmt.Errorf("save chunks: %w", err)
	}

	uc.lexical.Add(chunks)

	uc.publish(ctx, domain.CorpusEvent{Kind: domain.CorpusAppend, DocumentID: documentID})
	return nil
}

// Clear drops every index, chunk and document.
func (uc *CorpusUseCase) Clear(ctx context.Context) error {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if uc.embedding != nil {
		if err := uc.embedding.Clear(ctx); err != nil {
			return fmt.Errorf("clear embedding index: %w", err)
		}
	}
	if err := uc.chunks.DeleteAll(ctx); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if err := uc.docs.DeleteAll(ctx); err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	uc.lexical.Clear()

	uc.publish(ctx, domain.CorpusEvent{Kind: domain.CorpusClear})
	return nil
}

// Rebuild reloads the lexical index from the chunk store and tells other
// processes to do the same.
func (uc *CorpusUseCase) Rebuild(ctx context.Context) error {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if err := uc.rebuildLocked(ctx); err != nil {
		return err
	}
	uc.publish(ctx, domain.CorpusEvent{Kind: domain.CorpusRebuild})
	return nil
}

// LoadFromStore rebuilds local state at startup without publishing.
func (uc *CorpusUseCase) LoadFromStore(ctx context.Context) (int, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if err := uc.rebuildLocked(ctx); err != nil {
		return 0, err
	}
	return uc.lexical.Len(), nil
}

// ApplyEvent mirrors a corpus change made by another process. Events from
// this process are ignored.
func (uc *CorpusUseCase) ApplyEvent(ctx context.Context, event domain.CorpusEvent) error {
	if event.Origin == uc.cfg.Origin {
		return nil
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()

	switch event.Kind {
	case domain.CorpusAppend:
		chunks, err := uc.chunks.ListByDocument(ctx, event.DocumentID)
		if err != nil {
			return fmt.Errorf("load chunks for %s: %w", event.DocumentID, err)
		}
		if len(chunks) == 0 {
			return nil
		}
		if uc.cfg.LocalEmbeddings && uc.embedding != nil {
			if err := uc.embedding.Index(ctx, chunks); err != nil {
				return fmt.Errorf("index embeddings: %w", err)
			}
		}
		uc.lexical.Add(chunks)
	case domain.CorpusClear:
		if uc.cfg.LocalEmbeddings && uc.embedding != nil {
			if err := uc.embedding.Clear(ctx); err != nil {
				return fmt.Errorf("clear embedding index: %w", err)
			}
		}
		uc.lexical.Clear()
	case domain.CorpusRebuild:
		return uc.rebuildLocked(ctx)
	default:
		return domain.WrapError(domain.ErrInvalidInput, "apply corpus event", fmt.Errorf("unknown kind %q", event.Kind))
	}

	uc.logger.Info("corpus_event_applied", "kind", string(event.Kind), "origin", event.Origin, "document_id", event.DocumentID)
	return nil
}

func (uc *CorpusUseCase) rebuildLocked(ctx context.Context) error {
	chunks, err := uc.chunks.ListChunks(ctx)
	if err != nil {
		return fmt.Errorf("list chunks: %w", err)
	}
	if uc.cfg.LocalEmbeddings && uc.embedding != nil {
		if err := uc.embedding.Clear(ctx); err != nil {
			return fmt.Errorf("clear embedding index: %w", err)
		}
		if len(chunks) > 0 {
			if err := uc.embedding.Index(ctx, chunks); err != nil {
				return fmt.Errorf("index embeddings: %w", err)
			}
		}
	}
	uc.lexical.Build(chunks)
	return nil
}

// publish is best effort; replicas catch up on their next rebuild.
func (uc *CorpusUseCase) publish(ctx context.Context, event domain.CorpusEvent) {
	if uc.queue == nil {
		return
	}
	event.Origin = uc.cfg.Origin
	if err := uc.queue.PublishCorpusEvent(ctx, event); err != nil {
		uc.logger.Warn("corpus_event_publish_failed", "kind", string(event.Kind), "error", err.Error())
	}
}

func chunkIDs(chunks []domain.Chunk) []string {
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	return ids
}
