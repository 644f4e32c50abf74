package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/grounded-rag/internal/core/domain"
)

// DocumentRepository persists and reads document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	MarkReady(ctx context.Context, id string, chunkCount int) error
	DeleteAll(ctx context.Context) error
}

// ChunkStore is the durable copy of every indexed chunk. The in-memory
// lexical index is rebuilt from it.
type ChunkStore interface {
	SaveChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error
	ListChunks(ctx context.Context) ([]domain.Chunk, error)
	ListByDocument(ctx context.Context, documentID string) ([]domain.Chunk, error)
	DeleteAll(ctx context.Context) error
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Path(key string) string
}

// MessageQueue publishes/consumes ingestion and corpus events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
	PublishCorpusEvent(ctx context.Context, event domain.CorpusEvent) error
	SubscribeCorpusEvents(ctx context.Context, handler func(context.Context, domain.CorpusEvent) error) error
}

// DocumentLoader extracts raw text from a file. Unknown extensions fail with
// *domain.UnsupportedFormatError.
type DocumentLoader interface {
	Load(ctx context.Context, path string) (string, error)
	Supports(path string) bool
}

// Chunker splits extracted text into sentence-aligned chunks. Chunk leaves
// ids empty; ChunkDocument rejects too-short text and assigns
// "<stem>_chunk_<i>" ids.
type Chunker interface {
	Chunk(text string, metadata domain.ChunkMetadata) []domain.Chunk
	ChunkDocument(text, stem string, metadata domain.ChunkMetadata) ([]domain.Chunk, error)
}

// LexicalIndex is a keyword index safe for concurrent reads. Build replaces
// the corpus, Add extends it.
type LexicalIndex interface {
	Build(chunks []domain.Chunk)
	Add(chunks []domain.Chunk)
	Search(query string, limit int) []domain.RetrievalCandidate
	Clear()
	Len() int
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingIndex indexes chunks semantically and returns candidates ordered
// best-first. Only rank order is consumed downstream.
type EmbeddingIndex interface {
	Index(ctx context.Context, chunks []domain.Chunk) error
	Search(ctx context.Context, query string, limit int) ([]domain.RetrievalCandidate, error)
	Delete(ctx context.Context, chunkIDs []string) error
	Clear(ctx context.Context) error
}

// CompletionService drafts and judges answers.
type CompletionService interface {
	Complete(ctx context.Context, prompt string, opts domain.CompletionOptions) (string, error)
	Model() string
}

// RelevanceScorer scores (query, text) pairs; larger is more relevant.
type RelevanceScorer interface {
	Score(ctx context.Context, query string, texts []string) ([]float64, error)
	Name() string
}

// ConversationStore persists conversation turns.
type ConversationStore interface {
	AppendTurn(ctx context.Context, turn domain.ConversationTurn) error
	RecentTurns(ctx context.Context, conversationID string, limit int) ([]domain.ConversationTurn, error)
	ListTurns(ctx context.Context, conversationID string) ([]domain.ConversationTurn, error)
}

// PipelineMetrics receives query pipeline signals. Implementations must be
// safe for concurrent use.
type PipelineMetrics interface {
	RetrievalDegraded(backend string)
	RerankFallback(scorer string)
	VerificationFallback()
	GateTripped()
	QueryCompleted(outcome string, confidence int, retrieved int, duration time.Duration)
}

// IngestMetrics receives document ingestion signals.
type IngestMetrics interface {
	StartDocument()
	FinishDocument(duration time.Duration, chunks int, err error)
}
