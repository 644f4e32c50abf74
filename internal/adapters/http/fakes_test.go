package httpadapter

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/kirillkom/grounded-rag/internal/config"
	"github.com/kirillkom/grounded-rag/internal/core/domain"
)

type ingestFake struct {
	err      error
	filename string
	body     string
}

func (f *ingestFake) Upload(_ context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	f.filename = filename
	f.body = string(raw)

	now := time.Now().UTC()
	return &domain.Document{
		ID:          "doc-1",
		Filename:    filename,
		FileType:    "txt",
		MimeType:    mimeType,
		StoragePath: "doc-1_" + filename,
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

type queryFake struct {
	err     error
	lastReq domain.QueryRequest
	turns   []domain.ConversationTurn
}

func (f *queryFake) Answer(_ context.Context, req domain.QueryRequest) (*domain.QueryResult, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = "conv-new"
	}
	return &domain.QueryResult{
		Answer:         "Paris is the capital.",
		Confidence:     9,
		IsGrounded:     true,
		Sources:        []domain.SourceRef{{Source: "geo.txt", TextPreview: "Paris is..."}},
		ConversationID: conversationID,
	}, nil
}

func (f *queryFake) Search(context.Context, string, int) ([]domain.RerankedCandidate, error) {
	return nil, f.err
}

func (f *queryFake) History(_ context.Context, conversationID string) ([]domain.ConversationTurn, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.turns, nil
}

type docsFake struct {
	err error
}

func (f docsFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Document{ID: id, Filename: "a.txt", Status: domain.StatusReady, ChunkCount: 3}, nil
}

type corpusFake struct {
	err     error
	cleared int
}

func (f *corpusFake) Clear(context.Context) error {
	f.cleared++
	return f.err
}

func (f *corpusFake) Rebuild(context.Context) error { return f.err }

func (f *corpusFake) ApplyEvent(context.Context, domain.CorpusEvent) error { return f.err }

func newTestHandler(cfg config.Config) http.Handler {
	return NewRouter(cfg, &ingestFake{}, &queryFake{}, docsFake{}, &corpusFake{}).Handler()
}
