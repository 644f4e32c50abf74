package loader

import (
	"context"
	"os/exec"
	"strings"
	"unicode/utf8"
)

const (
	ocrUnavailableText = "OCR functionality is not available on this server. Image text extraction is disabled. Please upload PDF, DOCX, or TXT files for text-based content."
	ocrFailedText      = "OCR functionality is not available on this server. Image text extraction failed. Please upload PDF, DOCX, or TXT files for text-based content."
	ocrNoTextText      = "No text could be extracted from this image. The image may be blank, contain only graphics, or have low quality text."
	ocrMinChars        = 10
)

// CommandRunner runs an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// ocrLoader shells out to tesseract. It never fails: when OCR is disabled,
// missing or broken it returns an explanatory placeholder text instead.
type ocrLoader struct {
	enabled bool
	binary  string
	runner  CommandRunner
	lookup  func(string) (string, error)
}

func newOCRLoader(cfg Config) *ocrLoader {
	binary := strings.TrimSpace(cfg.TesseractPath)
	if binary == "" {
		binary = "tesseract"
	}
	runner := cfg.Runner
	if runner == nil {
		runner = execRunner{}
	}
	return &ocrLoader{
		enabled: cfg.OCREnabled,
		binary:  binary,
		runner:  runner,
		lookup:  exec.LookPath,
	}
}

func (l *ocrLoader) Load(ctx context.Context, path string) (string, error) {
	if !l.enabled {
		return ocrUnavailableText, nil
	}
	if _, err := l.lookup(l.binary); err != nil {
		return ocrUnavailableText, nil
	}

	out, err := l.runner.Run(ctx, l.binary, path, "stdout")
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return ocrFailedText, nil
	}

	text := strings.TrimSpace(string(out))
	if utf8.RuneCountInString(text) < ocrMinChars {
		return ocrNoTextText, nil
	}
	return text, nil
}
