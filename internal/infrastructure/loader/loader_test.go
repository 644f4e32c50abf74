package loader

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirillkom/grounded-rag/internal/core/domain"
)

type runnerFake struct {
	out  []byte
	err  error
	args []string
}

func (f *runnerFake) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.args = append([]string{name}, args...)
	return f.out, f.err
}

func writeFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestRegistrySupports(t *testing.T) {
	r := NewRegistry(Config{})
	for _, path := range []string{"a.txt", "b.PDF", "c.md", "d.docx", "e.xlsx", "f.png", "g.JPEG"} {
		if !r.Supports(path) {
			t.Fatalf("expected %s to be supported", path)
		}
	}
	for _, path := range []string{"a.exe", "noext", "c.pptx"} {
		if r.Supports(path) {
			t.Fatalf("expected %s to be unsupported", path)
		}
	}
}

func TestRegistryLoadUnsupported(t *testing.T) {
	r := NewRegistry(Config{})
	_, err := r.Load(context.Background(), "/tmp/archive.rar")
	var unsupported *domain.UnsupportedFormatError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedFormatError, got %v", err)
	}
	if unsupported.Extension != ".rar" {
		t.Fatalf("unexpected extension %q", unsupported.Extension)
	}
	if !errors.Is(err, domain.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat kind")
	}
}

func TestLoadPlainText(t *testing.T) {
	path := writeFile(t, "notes.txt", []byte("hello world"))
	got, err := NewRegistry(Config{}).Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != "hello world" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestLoadPlainTextRejectsInvalidUTF8(t *testing.T) {
	path := writeFile(t, "bad.txt", []byte{0xff, 0xfe, 0xfd})
	_, err := NewRegistry(Config{}).Load(context.Background(), path)
	if !errors.Is(err, domain.ErrContentExtraction) {
		t.Fatalf("expected ErrContentExtraction, got %v", err)
	}
}

func TestMarkdownText(t *testing.T) {
	src := "# Title\n\nSome *emphasis* and `code`.\n\n```go\nfmt.Println(1)\n```\n"
	got, err := markdownText([]byte(src))
	if err != nil {
		t.Fatalf("markdown: %v", err)
	}
	for _, want := range []string{"Title", "Some emphasis and code.", "fmt.Println(1)"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in %q", want, got)
		}
	}
	if strings.Contains(got, "#") || strings.Contains(got, "*") || strings.Contains(got, "```") {
		t.Fatalf("markup leaked into %q", got)
	}
}

func TestLoadDOCX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.docx")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("zip entry: %v", err)
	}
	_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>First </w:t></w:r><w:r><w:t>paragraph.</w:t></w:r></w:p>
<w:p><w:r><w:t>Second paragraph.</w:t></w:r></w:p>
</w:body>
</w:document>`))
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("file close: %v", err)
	}

	got, err := NewRegistry(Config{}).Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != "First paragraph.\nSecond paragraph." {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestLoadDOCXMissingDocumentXML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.docx")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	zw := zip.NewWriter(f)
	_ = zw.Close()
	_ = f.Close()

	_, err = loadDOCX(context.Background(), path)
	if !errors.Is(err, domain.ErrContentExtraction) {
		t.Fatalf("expected ErrContentExtraction, got %v", err)
	}
}

func TestOCRDisabledReturnsPlaceholder(t *testing.T) {
	runner := &runnerFake{}
	l := newOCRLoader(Config{OCREnabled: false, Runner: runner})
	got, err := l.Load(context.Background(), "scan.png")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != ocrUnavailableText {
		t.Fatalf("unexpected text %q", got)
	}
	if runner.args != nil {
		t.Fatalf("runner should not be called when OCR is disabled")
	}
}

func TestOCRMissingBinaryReturnsPlaceholder(t *testing.T) {
	l := newOCRLoader(Config{OCREnabled: true, Runner: &runnerFake{}})
	l.lookup = func(string) (string, error) { return "", errors.New("not found") }
	got, _ := l.Load(context.Background(), "scan.png")
	if got != ocrUnavailableText {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestOCRRunnerFailureReturnsPlaceholder(t *testing.T) {
	l := newOCRLoader(Config{OCREnabled: true, Runner: &runnerFake{err: errors.New("exit 1")}})
	l.lookup = func(p string) (string, error) { return p, nil }
	got, err := l.Load(context.Background(), "scan.png")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != ocrFailedText {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestOCRShortOutput(t *testing.T) {
	l := newOCRLoader(Config{OCREnabled: true, Runner: &runnerFake{out: []byte("  ab \n")}})
	l.lookup = func(p string) (string, error) { return p, nil }
	got, _ := l.Load(context.Background(), "scan.png")
	if got != ocrNoTextText {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestOCRReturnsRecognizedText(t *testing.T) {
	runner := &runnerFake{out: []byte("  Invoice number 42 due in March\n")}
	l := newOCRLoader(Config{OCREnabled: true, TesseractPath: "/usr/bin/tesseract", Runner: runner})
	l.lookup = func(p string) (string, error) { return p, nil }
	got, err := l.Load(context.Background(), "scan.png")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != "Invoice number 42 due in March" {
		t.Fatalf("unexpected text %q", got)
	}
	want := []string{"/usr/bin/tesseract", "scan.png", "stdout"}
	if strings.Join(runner.args, " ") != strings.Join(want, " ") {
		t.Fatalf("unexpected command %v", runner.args)
	}
}
