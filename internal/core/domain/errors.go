package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound  = errors.New("document not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrContentExtraction = errors.New("content extraction failed")
	ErrGeneration        = errors.New("generation failed")
	ErrPartialIngestion  = errors.New("partial ingestion")
	ErrTemporary         = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// ContentExtractionError reports a document whose extracted text is below the
// minimum viable length.
type ContentExtractionError struct {
	Source string
	Chars  int
}

func (e *ContentExtractionError) Error() string {
	return fmt.Sprintf(
		"document %q appears to be empty or contains too little text: extracted only %d characters",
		e.Source, e.Chars,
	)
}

func (e *ContentExtractionError) Is(target error) bool {
	return target == ErrContentExtraction
}

type UnsupportedFormatError struct {
	Extension string
}

func (e *UnsupportedFormatError) Error() string {
	ext := e.Extension
	if ext == "" {
		ext = "(none)"
	}
	return "unsupported file format: " + ext
}

func (e *UnsupportedFormatError) Is(target error) bool {
	return target == ErrUnsupportedFormat
}
