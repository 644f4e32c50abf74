package usecase

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/grounded-rag/internal/core/domain"
	"github.com/kirillkom/grounded-rag/internal/core/ports"
)

type IngestDocumentUseCase struct {
	repo    ports.DocumentRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
	loader  ports.DocumentLoader
}

func NewIngestDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
	loader ports.DocumentLoader,
) *IngestDocumentUseCase {
	return &IngestDocumentUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
		loader:  loader,
	}
}

// Upload stores the file, records it as uploaded and queues it for
// processing. Unsupported extensions and empty bodies are rejected before
// anything is written. A document that cannot be queued is marked failed so
// its status never hangs at uploaded.
func (uc *IngestDocumentUseCase) Upload(
	ctx context.Context,
	filename, mimeType string,
	body io.Reader,
) (*domain.Document, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", errors.New("filename is required"))
	}
	if !uc.loader.Supports(filename) {
		return nil, &domain.UnsupportedFormatError{Extension: fileExtension(filename)}
	}

	reader := bufio.NewReader(body)
	if _, err := reader.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", errors.New("file is empty"))
		}
		return nil, fmt.Errorf("read upload: %w", err)
	}

	if strings.TrimSpace(mimeType) == "" || mimeType == "application/octet-stream" {
		if guessed := mime.TypeByExtension(fileExtension(filename)); guessed != "" {
			mimeType = guessed
		}
	}

	now := time.Now().UTC()
	doc := &domain.Document{
		ID:        uuid.NewString(),
		Filename:  filepath.Base(filename),
		FileType:  strings.TrimPrefix(fileExtension(filename), "."),
		MimeType:  mimeType,
		Status:    domain.StatusUploaded,
		CreatedAt: now,
		UpdatedAt: now,
	}
	doc.StoragePath = doc.ID + "_" + sanitizeFilename(filename)

	if err := uc.storage.Save(ctx, doc.StoragePath, reader); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}
	if err := uc.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document metadata: %w", err)
	}

	if err := uc.queue.PublishDocumentIngested(ctx, doc.ID); err != nil {
		reason := "queue unavailable: " + err.Error()
		if markErr := uc.repo.UpdateStatus(context.WithoutCancel(ctx), doc.ID, domain.StatusFailed, reason); markErr != nil {
			err = fmt.Errorf("%w; mark failed: %v", err, markErr)
		}
		return nil, domain.WrapError(domain.ErrTemporary, "publish ingestion event", err)
	}
	return doc, nil
}

func fileExtension(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "document.bin"
	}
	return base
}
