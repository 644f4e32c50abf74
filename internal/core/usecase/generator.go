package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/kirillkom/grounded-rag/internal/core/domain"
	"github.com/kirillkom/grounded-rag/internal/core/ports"
)

type GenerationConfig struct {
	ConfidenceThreshold int
	Draft               domain.CompletionOptions
	Verify              domain.CompletionOptions
	CallTimeout         time.Duration
}

func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		ConfidenceThreshold: 7,
		Draft:               domain.CompletionOptions{Temperature: 0.3, MaxTokens: 1000},
		Verify:              domain.CompletionOptions{Temperature: 0.1, MaxTokens: 300},
		CallTimeout:         60 * time.Second,
	}
}

// VerifiedGenerator drafts an answer, has the same model judge it against
// the context and caveats answers whose confidence is under the threshold.
type VerifiedGenerator struct {
	completer ports.CompletionService
	cfg       GenerationConfig
	metrics   ports.PipelineMetrics
	logger    *slog.Logger
}

func NewVerifiedGenerator(
	completer ports.CompletionService,
	cfg GenerationConfig,
	metrics ports.PipelineMetrics,
	logger *slog.Logger,
) *VerifiedGenerator {
	defaults := DefaultGenerationConfig()
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = defaults.ConfidenceThreshold
	}
	if cfg.Draft.MaxTokens <= 0 {
		cfg.Draft = defaults.Draft
	}
	if cfg.Verify.MaxTokens <= 0 {
		cfg.Verify = defaults.Verify
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaults.CallTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &VerifiedGenerator{
		completer: completer,
		cfg:       cfg,
		metrics:   pipelineMetricsOrNoop(metrics),
		logger:    logger,
	}
}

func (g *VerifiedGenerator) Generate(
	ctx context.Context,
	query string,
	candidates []domain.RerankedCandidate,
	history []domain.ConversationTurn,
) (*domain.VerifiedAnswer, error) {
	draft, err := g.complete(ctx, buildDraftPrompt(query, candidates, history), g.cfg.Draft)
	if err != nil {
		return nil, domain.WrapError(domain.ErrGeneration, "draft answer", err)
	}

	judged, err := g.complete(ctx, buildJudgePrompt(query, draft, candidates), g.cfg.Verify)
	if err != nil {
		return nil, domain.WrapError(domain.ErrGeneration, "verify answer", err)
	}

	result := &domain.VerifiedAnswer{Sources: buildSources(candidates)}

	verdict, err := ParseVerdict(judged)
	if err != nil {
		verdict = DefaultVerdict()
		result.VerificationInconclusive = true
		g.metrics.VerificationFallback()
		g.logger.Warn("verification_parse_failed", "error", err.Error(), "response_chars", len(judged))
	}

	result.Answer = draft
	result.Confidence = verdict.Confidence
	result.IsGrounded = verdict.IsGrounded
	result.VerificationNote = verdict.Explanation

	if verdict.Confidence < g.cfg.ConfidenceThreshold {
		result.Answer = lowConfidenceNotice + draft
		result.GateTripped = true
		g.metrics.GateTripped()
		g.logger.Info("confidence_gate_tripped", "confidence", verdict.Confidence, "threshold", g.cfg.ConfidenceThreshold)
	}
	return result, nil
}

func (g *VerifiedGenerator) complete(ctx context.Context, prompt string, opts domain.CompletionOptions) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
	defer cancel()
	return g.completer.Complete(ctx, prompt, opts)
}
