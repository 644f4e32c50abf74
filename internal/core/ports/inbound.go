package ports

import (
	"context"
	"io"

	"github.com/kirillkom/grounded-rag/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error)
}

// QueryService is the inbound contract for the verified RAG pipeline.
type QueryService interface {
	Answer(ctx context.Context, req domain.QueryRequest) (*domain.QueryResult, error)
	Search(ctx context.Context, query string, topK int) ([]domain.RerankedCandidate, error)
	History(ctx context.Context, conversationID string) ([]domain.ConversationTurn, error)
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous document processing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// CorpusManager owns whole-corpus mutations.
type CorpusManager interface {
	Clear(ctx context.Context) error
	Rebuild(ctx context.Context) error
	ApplyEvent(ctx context.Context, event domain.CorpusEvent) error
}
