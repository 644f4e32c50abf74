package loader

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"github.com/kirillkom/grounded-rag/internal/core/domain"
)

type docxDocument struct {
	Body struct {
		Paragraphs []docxParagraph `xml:"p"`
	} `xml:"body"`
}

type docxParagraph struct {
	Runs []struct {
		Text []struct {
			Content string `xml:",chardata"`
		} `xml:"t"`
	} `xml:"r"`
}

// loadDOCX reads word/document.xml and joins paragraph text with newlines.
func loadDOCX(_ context.Context, path string) (string, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return "", domain.WrapError(domain.ErrContentExtraction, "open docx", err)
	}
	defer archive.Close()

	for _, file := range archive.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", domain.WrapError(domain.ErrContentExtraction, "open word/document.xml", err)
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", domain.WrapError(domain.ErrContentExtraction, "read word/document.xml", err)
		}
		return parseDocumentXML(raw)
	}
	return "", domain.WrapError(domain.ErrContentExtraction, "open docx", errors.New("word/document.xml not found"))
}

func parseDocumentXML(raw []byte) (string, error) {
	var doc docxDocument
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return "", domain.WrapError(domain.ErrContentExtraction, "parse word/document.xml", err)
	}

	paragraphs := make([]string, 0, len(doc.Body.Paragraphs))
	for _, p := range doc.Body.Paragraphs {
		var b strings.Builder
		for _, run := range p.Runs {
			for _, t := range run.Text {
				b.WriteString(t.Content)
			}
		}
		paragraphs = append(paragraphs, b.String())
	}
	return strings.Join(paragraphs, "\n"), nil
}
