package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/kirillkom/grounded-rag/internal/core/domain"
	"github.com/kirillkom/grounded-rag/internal/core/ports"
)

// OverlapScorer scores the share of distinct query tokens found in the text.
// Tokens are whitespace-split and lowercased.
type OverlapScorer struct{}

func (OverlapScorer) Name() string { return "overlap" }

func (OverlapScorer) Score(_ context.Context, query string, texts []string) ([]float64, error) {
	queryTokens := toTokenSet(query)
	out := make([]float64, len(texts))
	for i, text := range texts {
		out[i] = tokenOverlap(queryTokens, toTokenSet(text))
	}
	return out, nil
}

// Reranker reorders candidates by a relevance scorer. When the primary scorer
// fails, the overlap scorer takes over for that call.
type Reranker struct {
	primary  ports.RelevanceScorer
	fallback ports.RelevanceScorer
	metrics  ports.PipelineMetrics
	logger   *slog.Logger
}

func NewReranker(primary ports.RelevanceScorer, metrics ports.PipelineMetrics, logger *slog.Logger) *Reranker {
	if primary == nil {
		primary = OverlapScorer{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reranker{
		primary:  primary,
		fallback: OverlapScorer{},
		metrics:  pipelineMetricsOrNoop(metrics),
		logger:   logger,
	}
}

func (r *Reranker) Rerank(
	ctx context.Context,
	query string,
	candidates []domain.RetrievalCandidate,
	topK int,
) ([]domain.RerankedCandidate, error) {
	if len(candidates) == 0 {
		return []domain.RerankedCandidate{}, nil
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Text
	}

	scores, err := r.score(ctx, query, texts)
	if err != nil {
		return nil, err
	}

	out := make([]domain.RerankedCandidate, len(candidates))
	for i, c := range candidates {
		out[i] = domain.RerankedCandidate{RetrievalCandidate: c, RelevanceScore: scores[i]}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RelevanceScore > out[j].RelevanceScore
	})
	return trimCandidates(out, topK), nil
}

func (r *Reranker) score(ctx context.Context, query string, texts []string) ([]float64, error) {
	scores, err := r.primary.Score(ctx, query, texts)
	if err == nil && len(scores) != len(texts) {
		err = fmt.Errorf("scorer %s returned %d scores for %d texts", r.primary.Name(), len(scores), len(texts))
	}
	if err == nil {
		return scores, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if r.primary.Name() == r.fallback.Name() {
		return nil, fmt.Errorf("rerank: %w", err)
	}

	r.metrics.RerankFallback(r.primary.Name())
	r.logger.Warn("rerank_fallback", "scorer", r.primary.Name(), "fallback", r.fallback.Name(), "error", err.Error())
	return r.fallback.Score(ctx, query, texts)
}

func tokenOverlap(query, text map[string]struct{}) float64 {
	if len(query) == 0 || len(text) == 0 {
		return 0
	}
	matches := 0
	for token := range query {
		if _, ok := text[token]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(query))
}

func toTokenSet(s string) map[string]struct{} {
	tokens := strings.Fields(strings.ToLower(s))
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[token] = struct{}{}
	}
	return out
}
