package loader

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kirillkom/grounded-rag/internal/core/domain"
)

// Func extracts raw text from the file at path.
type Func func(ctx context.Context, path string) (string, error)

type Config struct {
	OCREnabled    bool
	TesseractPath string
	Runner        CommandRunner
}

// Registry dispatches on the lowercased file extension.
type Registry struct {
	loaders map[string]Func
}

func NewRegistry(cfg Config) *Registry {
	ocr := newOCRLoader(cfg)
	r := &Registry{loaders: map[string]Func{}}
	r.Register(loadPlainText, ".txt")
	r.Register(loadMarkdown, ".md", ".markdown")
	r.Register(loadPDF, ".pdf")
	r.Register(loadDOCX, ".docx", ".doc")
	r.Register(loadXLSX, ".xlsx")
	r.Register(ocr.Load, ".png", ".jpg", ".jpeg", ".tiff", ".bmp")
	return r
}

func (r *Registry) Register(fn Func, extensions ...string) {
	for _, ext := range extensions {
		r.loaders[strings.ToLower(ext)] = fn
	}
}

func (r *Registry) Supports(path string) bool {
	_, ok := r.loaders[extension(path)]
	return ok
}

func (r *Registry) Extensions() []string {
	out := make([]string, 0, len(r.loaders))
	for ext := range r.loaders {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) Load(ctx context.Context, path string) (string, error) {
	ext := extension(path)
	fn, ok := r.loaders[ext]
	if !ok {
		return "", &domain.UnsupportedFormatError{Extension: ext}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fn(ctx, path)
}

func extension(path string) string {
	return strings.ToLower(filepath.Ext(path))
}
