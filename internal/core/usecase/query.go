package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/grounded-rag/internal/core/domain"
	"github.com/kirillkom/grounded-rag/internal/core/ports"
)

const noDocumentsAnswer = "I don't have any documents to answer from. Please upload documents first."

type QueryConfig struct {
	TopKRetrieval int
	TopKRerank    int
	HistoryTurns  int
}

type QueryUseCase struct {
	retriever     *HybridRetriever
	reranker      *Reranker
	generator     *VerifiedGenerator
	conversations ports.ConversationStore
	cfg           QueryConfig
	metrics       ports.PipelineMetrics
	logger        *slog.Logger
	now           func() time.Time
}

func NewQueryUseCase(
	retriever *HybridRetriever,
	reranker *Reranker,
	generator *VerifiedGenerator,
	conversations ports.ConversationStore,
	cfg QueryConfig,
	metrics ports.PipelineMetrics,
	logger *slog.Logger,
) *QueryUseCase {
	if cfg.TopKRetrieval <= 0 {
		cfg.TopKRetrieval = 20
	}
	if cfg.TopKRerank <= 0 {
		cfg.TopKRerank = 5
	}
	if cfg.HistoryTurns < 0 {
		cfg.HistoryTurns = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryUseCase{
		retriever:     retriever,
		reranker:      reranker,
		generator:     generator,
		conversations: conversations,
		cfg:           cfg,
		metrics:       pipelineMetricsOrNoop(metrics),
		logger:        logger,
		now:           time.Now,
	}
}

// Answer runs retrieve, rerank, draft, verify and gate for one question and
// records both turns of the exchange.
func (uc *QueryUseCase) Answer(ctx context.Context, req domain.QueryRequest) (*domain.QueryResult, error) {
	started := uc.now()
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer query", errors.New("query is required"))
	}

	conversationID := strings.TrimSpace(req.ConversationID)
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	history, err := uc.recentTurns(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if err := uc.appendTurn(ctx, conversationID, domain.RoleUser, query, nil); err != nil {
		return nil, err
	}

	candidates, err := uc.retriever.Retrieve(ctx, query, uc.cfg.TopKRetrieval)
	if err != nil {
		uc.metrics.QueryCompleted("error", 0, 0, uc.now().Sub(started))
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	if len(candidates) == 0 {
		uc.metrics.QueryCompleted("no_documents", 0, 0, uc.now().Sub(started))
		return &domain.QueryResult{
			Answer:         noDocumentsAnswer,
			Confidence:     0,
			Sources:        []domain.SourceRef{},
			ConversationID: conversationID,
		}, nil
	}

	reranked, err := uc.reranker.Rerank(ctx, query, candidates, uc.cfg.TopKRerank)
	if err != nil {
		uc.metrics.QueryCompleted("error", 0, len(candidates), uc.now().Sub(started))
		return nil, err
	}

	answer, err := uc.generator.Generate(ctx, query, reranked, history)
	if err != nil {
		uc.metrics.QueryCompleted("error", 0, len(candidates), uc.now().Sub(started))
		return nil, err
	}

	if err := uc.appendTurn(ctx, conversationID, domain.RoleAssistant, answer.Answer, map[string]any{
		"confidence": answer.Confidence,
	}); err != nil {
		return nil, err
	}

	outcome := "answered"
	if answer.GateTripped {
		outcome = "low_confidence"
	}
	uc.metrics.QueryCompleted(outcome, answer.Confidence, len(candidates), uc.now().Sub(started))

	return &domain.QueryResult{
		Answer:           answer.Answer,
		Confidence:       answer.Confidence,
		IsGrounded:       answer.IsGrounded,
		VerificationNote: answer.VerificationNote,
		Sources:          answer.Sources,
		ConversationID:   conversationID,
	}, nil
}

// Search returns reranked candidates without generating an answer.
func (uc *QueryUseCase) Search(ctx context.Context, query string, topK int) ([]domain.RerankedCandidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", errors.New("query is required"))
	}
	if topK <= 0 {
		topK = uc.cfg.TopKRerank
	}

	candidates, err := uc.retriever.Retrieve(ctx, query, uc.cfg.TopKRetrieval)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	return uc.reranker.Rerank(ctx, query, candidates, topK)
}

func (uc *QueryUseCase) History(ctx context.Context, conversationID string) ([]domain.ConversationTurn, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "conversation history", errors.New("conversation id is required"))
	}
	if uc.conversations == nil {
		return []domain.ConversationTurn{}, nil
	}
	turns, err := uc.conversations.ListTurns(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list conversation turns: %w", err)
	}
	if turns == nil {
		turns = []domain.ConversationTurn{}
	}
	return turns, nil
}

func (uc *QueryUseCase) recentTurns(ctx context.Context, conversationID string) ([]domain.ConversationTurn, error) {
	if uc.conversations == nil || uc.cfg.HistoryTurns == 0 {
		return nil, nil
	}
	turns, err := uc.conversations.RecentTurns(ctx, conversationID, uc.cfg.HistoryTurns)
	if err != nil {
		return nil, fmt.Errorf("load conversation context: %w", err)
	}
	return turns, nil
}

func (uc *QueryUseCase) appendTurn(ctx context.Context, conversationID, role, content string, metadata map[string]any) error {
	if uc.conversations == nil {
		return nil
	}
	err := uc.conversations.AppendTurn(ctx, domain.ConversationTurn{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Metadata:       metadata,
		CreatedAt:      uc.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("append %s turn: %w", role, err)
	}
	return nil
}
