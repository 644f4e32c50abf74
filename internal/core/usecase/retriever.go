package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/grounded-rag/internal/core/domain"
	"github.com/kirillkom/grounded-rag/internal/core/ports"
)

type RetrievalConfig struct {
	TopK             int
	RRFK             int
	EmbeddingTimeout time.Duration
}

// HybridRetriever queries the lexical and embedding indexes concurrently and
// fuses both rankings. A failing or missing embedding index degrades the
// result to lexical-only instead of failing the query.
type HybridRetriever struct {
	lexical   ports.LexicalIndex
	embedding ports.EmbeddingIndex
	cfg       RetrievalConfig
	metrics   ports.PipelineMetrics
	logger    *slog.Logger
	guard     sync.Locker
}

func NewHybridRetriever(
	lexical ports.LexicalIndex,
	embedding ports.EmbeddingIndex,
	cfg RetrievalConfig,
	metrics ports.PipelineMetrics,
	logger *slog.Logger,
) *HybridRetriever {
	if cfg.TopK <= 0 {
		cfg.TopK = 20
	}
	if cfg.RRFK <= 0 {
		cfg.RRFK = defaultRRFK
	}
	if cfg.EmbeddingTimeout <= 0 {
		cfg.EmbeddingTimeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HybridRetriever{
		lexical:   lexical,
		embedding: embedding,
		cfg:       cfg,
		metrics:   pipelineMetricsOrNoop(metrics),
		logger:    logger,
	}
}

// WithCorpusLock makes Retrieve hold l across both index lookups.
func (r *HybridRetriever) WithCorpusLock(l sync.Locker) *HybridRetriever {
	r.guard = l
	return r
}

func (r *HybridRetriever) Retrieve(ctx context.Context, query string, topK int) ([]domain.RetrievalCandidate, error) {
	if topK <= 0 {
		topK = r.cfg.TopK
	}
	if r.guard != nil {
		r.guard.Lock()
		defer r.guard.Unlock()
	}

	var lexical, semantic []domain.RetrievalCandidate

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lexical = r.lexical.Search(query, topK)
		return nil
	})
	if r.embedding != nil {
		g.Go(func() error {
			res, err := r.searchEmbedding(gctx, query, topK)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				r.metrics.RetrievalDegraded("embedding")
				r.logger.Warn("retrieval_degraded", "backend", "embedding", "error", err.Error())
				return nil
			}
			semantic = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(lexical) == 0 && r.lexical.Len() == 0 {
		r.metrics.RetrievalDegraded("lexical")
		r.logger.Debug("retrieval_degraded", "backend", "lexical", "reason", "empty index")
	}

	return trimCandidates(fuseRRF(r.cfg.RRFK, lexical, semantic), topK), nil
}

func (r *HybridRetriever) searchEmbedding(ctx context.Context, query string, topK int) ([]domain.RetrievalCandidate, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.EmbeddingTimeout)
	defer cancel()
	return r.embedding.Search(ctx, query, topK)
}
