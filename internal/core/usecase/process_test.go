package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/grounded-rag/internal/core/domain"
	"github.com/kirillkom/grounded-rag/internal/infrastructure/chunking"
	"github.com/kirillkom/grounded-rag/internal/infrastructure/lexical"
)

const longText = "Solar panels convert sunlight into electricity. They are mounted on roofs. " +
	"Inverters turn direct current into alternating current. Batteries store the surplus for the night."

type ingestMetricsFake struct {
	started  int
	finished int
	chunks   int
	lastErr  error
}

func (f *ingestMetricsFake) StartDocument() { f.started++ }
func (f *ingestMetricsFake) FinishDocument(_ time.Duration, chunks int, err error) {
	f.finished++
	f.chunks = chunks
	f.lastErr = err
}

type processFixture struct {
	repo    *docRepoFake
	store   *chunkStoreFake
	lexical *lexicalFake
	loader  *loaderFake
	metrics *ingestMetricsFake
	uc      *ProcessDocumentUseCase
}

func newProcessFixture(texts map[string]string) *processFixture {
	f := &processFixture{
		repo:    newDocRepoFake(),
		store:   newChunkStoreFake(),
		lexical: &lexicalFake{},
		loader:  &loaderFake{texts: texts},
		metrics: &ingestMetricsFake{},
	}
	corpus := NewCorpusUseCase(f.lexical, nil, f.store, f.repo, nil, CorpusConfig{Origin: "test"}, nil)
	f.uc = NewProcessDocumentUseCase(
		f.repo,
		&storageFake{root: "/data/uploads"},
		f.loader,
		chunking.NewSentenceChunker(12, 3),
		corpus,
		f.metrics,
		nil,
	)
	return f
}

func TestProcessByIDSuccess(t *testing.T) {
	f := newProcessFixture(map[string]string{"solar.txt": longText})
	_ = f.repo.Create(context.Background(), &domain.Document{
		ID:          "doc-1",
		Filename:    "solar.txt",
		StoragePath: "abc123_solar.txt",
		Status:      domain.StatusUploaded,
	})

	if err := f.uc.ProcessByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}

	if f.loader.loaded[0] != "/data/uploads/abc123_solar.txt" {
		t.Fatalf("unexpected load path: %v", f.loader.loaded)
	}
	stored := f.store.byDoc["doc-1"]
	if len(stored) < 2 {
		t.Fatalf("expected several chunks, got %d", len(stored))
	}
	if stored[0].ID != "abc123_solar_chunk_0" {
		t.Fatalf("expected storage-key stem in chunk id, got %s", stored[0].ID)
	}
	if stored[0].Metadata.Source != "solar.txt" || stored[0].Metadata.DocumentID != "doc-1" || stored[0].Metadata.FileType != ".txt" {
		t.Fatalf("unexpected metadata: %#v", stored[0].Metadata)
	}
	if f.lexical.Len() != len(stored) {
		t.Fatalf("expected lexical index to hold %d chunks, got %d", len(stored), f.lexical.Len())
	}
	if f.repo.docs["doc-1"].Status != domain.StatusReady || f.repo.readyCount != len(stored) {
		t.Fatalf("expected ready with chunk count, got %#v", f.repo.docs["doc-1"])
	}
	if f.metrics.started != 1 || f.metrics.finished != 1 || f.metrics.lastErr != nil {
		t.Fatalf("unexpected metrics: %#v", f.metrics)
	}
}

func TestProcessByIDShortTextFails(t *testing.T) {
	f := newProcessFixture(map[string]string{"blank.pdf": "   Page 1   "})
	_ = f.repo.Create(context.Background(), &domain.Document{ID: "doc-2", Filename: "blank.pdf", StoragePath: "k_blank.pdf"})

	err := f.uc.ProcessByID(context.Background(), "doc-2")
	if !errors.Is(err, domain.ErrContentExtraction) {
		t.Fatalf("expected content extraction error, got %v", err)
	}
	doc := f.repo.docs["doc-2"]
	if doc.Status != domain.StatusFailed || !strings.Contains(doc.Error, "extracted only 6 characters") {
		t.Fatalf("expected failed status with char count, got %#v", doc)
	}
	if len(f.store.byDoc) != 0 || f.lexical.Len() != 0 {
		t.Fatalf("no index mutation expected")
	}
	if f.metrics.lastErr == nil {
		t.Fatalf("expected error recorded in metrics")
	}
}

func TestProcessByIDLoaderErrorMarksFailed(t *testing.T) {
	f := newProcessFixture(nil)
	f.loader.err = errors.New("loader exploded")
	_ = f.repo.Create(context.Background(), &domain.Document{ID: "doc-3", Filename: "x.txt", StoragePath: "k_x.txt"})

	err := f.uc.ProcessByID(context.Background(), "doc-3")
	if err == nil || !strings.Contains(err.Error(), "loader exploded") {
		t.Fatalf("expected loader error, got %v", err)
	}
	calls := 0
	for _, s := range f.repo.statusCalls {
		if s == domain.StatusFailed {
			calls++
		}
	}
	if calls != 1 {
		t.Fatalf("expected one failed status update, got %v", f.repo.statusCalls)
	}
}

func TestProcessByIDMissingDocument(t *testing.T) {
	f := newProcessFixture(nil)
	if err := f.uc.ProcessByID(context.Background(), "nope"); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestIngestDirectorySkipsReadyAndUnsupported(t *testing.T) {
	dir := t.TempDir()
	for name, body := range map[string]string{
		"a.txt":     longText,
		"b.txt":     "tiny",
		"notes.xyz": longText,
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested.txt"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	f := newProcessFixture(map[string]string{"a.txt": longText, "b.txt": "tiny"})

	ingested, failed, err := f.uc.IngestDirectory(context.Background(), dir)
	if err != nil {
		t.Fatalf("IngestDirectory() error = %v", err)
	}
	if ingested != 1 || failed != 1 {
		t.Fatalf("expected 1 ingested and 1 failed, got %d/%d", ingested, failed)
	}
	if len(f.loader.loaded) != 2 {
		t.Fatalf("expected only supported files loaded, got %v", f.loader.loaded)
	}
	var stored []domain.Chunk
	for _, chunks := range f.store.byDoc {
		stored = append(stored, chunks...)
	}
	if len(stored) == 0 || !strings.HasPrefix(stored[0].ID, "a_chunk_") {
		t.Fatalf("expected file-stem chunk ids, got %#v", stored)
	}

	ingested, failed, err = f.uc.IngestDirectory(context.Background(), dir)
	if err != nil {
		t.Fatalf("second IngestDirectory() error = %v", err)
	}
	if ingested != 0 || failed != 1 {
		t.Fatalf("expected ready document skipped on second run, got %d/%d", ingested, failed)
	}
}

func TestIngestDirectorySharedStemKeepsChunksDistinct(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"notes.txt", "notes.pdf", "other.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(longText), 0o644); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
	}

	repo := newDocRepoFake()
	store := newChunkStoreFake()
	index := lexical.NewBM25Index()
	corpus := NewCorpusUseCase(index, nil, store, repo, nil, CorpusConfig{Origin: "test"}, nil)
	uc := NewProcessDocumentUseCase(
		repo,
		&storageFake{root: "/data/uploads"},
		&loaderFake{texts: map[string]string{"notes.txt": longText, "notes.pdf": longText, "other.txt": longText}},
		chunking.NewSentenceChunker(12, 3),
		corpus,
		nil,
		nil,
	)

	ingested, failed, err := uc.IngestDirectory(context.Background(), dir)
	if err != nil || ingested != 3 || failed != 0 {
		t.Fatalf("expected 3 ingested, got %d/%d err=%v", ingested, failed, err)
	}

	seen := map[string]bool{}
	total := 0
	for _, chunks := range store.byDoc {
		for _, c := range chunks {
			if seen[c.ID] {
				t.Fatalf("duplicate chunk id %q", c.ID)
			}
			seen[c.ID] = true
			total++
		}
	}
	if index.Len() != total {
		t.Fatalf("expected %d chunks in lexical index, got %d", total, index.Len())
	}
	for _, id := range []string{"notes_pdf_chunk_0", "notes_txt_chunk_0", "other_chunk_0"} {
		if !seen[id] {
			t.Fatalf("expected chunk %q, got %v", id, seen)
		}
	}
}

func TestDirectoryStems(t *testing.T) {
	got := directoryStems([]string{"a.txt", "notes.PDF", "notes.txt", "notes_txt.md", "report.docx"})
	want := map[string]string{
		"a.txt":        "a",
		"notes.PDF":    "notes_pdf",
		"notes.txt":    "notes_txt_2",
		"notes_txt.md": "notes_txt",
		"report.docx":  "report",
	}
	for name, stem := range want {
		if got[name] != stem {
			t.Fatalf("%s: got stem %q, want %q", name, got[name], stem)
		}
	}
}

func TestIngestDirectoryMissingDirIsNoop(t *testing.T) {
	f := newProcessFixture(nil)
	ingested, failed, err := f.uc.IngestDirectory(context.Background(), filepath.Join(t.TempDir(), "missing"))
	if err != nil || ingested != 0 || failed != 0 {
		t.Fatalf("expected no-op, got %d/%d err=%v", ingested, failed, err)
	}
}
