package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/grounded-rag/internal/core/domain"
	"github.com/kirillkom/grounded-rag/internal/core/ports"
)

type ProcessDocumentUseCase struct {
	repo    ports.DocumentRepository
	storage ports.ObjectStorage
	loader  ports.DocumentLoader
	chunker ports.Chunker
	corpus  *CorpusUseCase
	metrics ports.IngestMetrics
	logger  *slog.Logger
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	loader ports.DocumentLoader,
	chunker ports.Chunker,
	corpus *CorpusUseCase,
	metrics ports.IngestMetrics,
	logger *slog.Logger,
) *ProcessDocumentUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessDocumentUseCase{
		repo:    repo,
		storage: storage,
		loader:  loader,
		chunker: chunker,
		corpus:  corpus,
		metrics: ingestMetricsOrNoop(metrics),
		logger:  logger,
	}
}

// ProcessByID runs an uploaded document through load, chunk and ingest.
func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	doc, err := uc.loadDocument(ctx, documentID)
	if err != nil {
		return err
	}
	// Chunk ids derive from the storage key so two uploads named alike
	// never collide.
	return uc.process(ctx, doc, uc.storage.Path(doc.StoragePath), chunkStem(doc.StoragePath))
}

// IngestDirectory processes every supported file directly under dir that is
// not already ready. Per-file failures are logged and counted, not returned.
func (uc *ProcessDocumentUseCase) IngestDirectory(ctx context.Context, dir string) (ingested, failed int, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("read documents dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !uc.loader.Supports(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	stems := directoryStems(names)

	for _, name := range names {
		if ctx.Err() != nil {
			return ingested, failed, ctx.Err()
		}

		path, err := filepath.Abs(filepath.Join(dir, name))
		if err != nil {
			path = filepath.Join(dir, name)
		}

		done, err := uc.ingestFile(ctx, path, stems[name])
		switch {
		case err != nil:
			failed++
			uc.logger.Error("document_ingest_failed", "path", path, "error", err.Error())
		case done:
			ingested++
		}
	}
	return ingested, failed, nil
}

func (uc *ProcessDocumentUseCase) ingestFile(ctx context.Context, path, stem string) (bool, error) {
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+path)).String()

	existing, err := uc.repo.GetByID(ctx, id)
	switch {
	case err == nil && existing.Status == domain.StatusReady:
		return false, nil
	case errors.Is(err, domain.ErrDocumentNotFound):
		existing = nil
	case err != nil:
		return false, fmt.Errorf("fetch document by id: %w", err)
	}

	if existing == nil {
		now := time.Now().UTC()
		name := filepath.Base(path)
		existing = &domain.Document{
			ID:          id,
			Filename:    name,
			FileType:    strings.TrimPrefix(fileExtension(name), "."),
			StoragePath: path,
			Status:      domain.StatusUploaded,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := uc.repo.Create(ctx, existing); err != nil {
			return false, fmt.Errorf("create document metadata: %w", err)
		}
	}

	if err := uc.process(ctx, existing, path, stem); err != nil {
		return false, err
	}
	return true, nil
}

func (uc *ProcessDocumentUseCase) process(ctx context.Context, doc *domain.Document, path, stem string) (err error) {
	started := time.Now()
	chunkCount := 0
	uc.metrics.StartDocument()
	defer func() {
		uc.metrics.FinishDocument(time.Since(started), chunkCount, err)
	}()

	if err := uc.markStatus(ctx, doc.ID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	chunks, err := uc.processPipeline(ctx, doc, path, stem)
	if err != nil {
		if failErr := uc.markFailed(ctx, doc.ID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}
	chunkCount = len(chunks)

	if err := uc.repo.MarkReady(ctx, doc.ID, chunkCount); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}

	uc.logger.Info("document_processed",
		"document_id", doc.ID,
		"filename", doc.Filename,
		"chunks", chunkCount,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return nil
}

func (uc *ProcessDocumentUseCase) processPipeline(ctx context.Context, doc *domain.Document, path, stem string) ([]domain.Chunk, error) {
	text, err := uc.extractText(ctx, path)
	if err != nil {
		return nil, err
	}

	chunks, err := uc.chunk(text, stem, domain.ChunkMetadata{
		DocumentID: doc.ID,
		Source:     doc.Filename,
		FileType:   fileExtension(doc.Filename),
		FilePath:   path,
	})
	if err != nil {
		return nil, err
	}

	if err := uc.corpus.Ingest(ctx, doc.ID, chunks); err != nil {
		return nil, fmt.Errorf("ingest chunks: %w", err)
	}
	return chunks, nil
}

func (uc *ProcessDocumentUseCase) loadDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	return doc, nil
}

func (uc *ProcessDocumentUseCase) extractText(ctx context.Context, path string) (string, error) {
	text, err := uc.loader.Load(ctx, path)
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	return text, nil
}

func (uc *ProcessDocumentUseCase) chunk(text, stem string, metadata domain.ChunkMetadata) ([]domain.Chunk, error) {
	chunks, err := uc.chunker.ChunkDocument(text, stem, metadata)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chunk document", errors.New("chunking produced zero chunks"))
	}
	return chunks, nil
}

func (uc *ProcessDocumentUseCase) markStatus(ctx context.Context, documentID string, status domain.DocumentStatus, errMessage string) error {
	return uc.repo.UpdateStatus(ctx, documentID, status, errMessage)
}

func (uc *ProcessDocumentUseCase) markFailed(ctx context.Context, documentID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.markStatus(ctx, documentID, domain.StatusFailed, processErr.Error())
}

func chunkStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// directoryStems maps each file name to a chunk id stem unique within the
// directory. Files sharing a base name ("notes.txt", "notes.pdf") get their
// extension appended ("notes_txt", "notes_pdf").
func directoryStems(names []string) map[string]string {
	shared := make(map[string]int, len(names))
	for _, name := range names {
		shared[chunkStem(name)]++
	}

	used := make(map[string]bool, len(names))
	for stem, n := range shared {
		if n == 1 {
			used[stem] = true
		}
	}

	stems := make(map[string]string, len(names))
	for _, name := range names {
		stem := chunkStem(name)
		if shared[stem] == 1 {
			stems[name] = stem
			continue
		}
		base := stem + "_" + strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
		candidate := base
		for i := 2; used[candidate]; i++ {
			candidate = fmt.Sprintf("%s_%d", base, i)
		}
		used[candidate] = true
		stems[name] = candidate
	}
	return stems
}
