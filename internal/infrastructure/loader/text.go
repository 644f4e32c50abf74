package loader

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/kirillkom/grounded-rag/internal/core/domain"
)

func loadPlainText(_ context.Context, path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", domain.WrapError(domain.ErrContentExtraction, "read text file", err)
	}
	if !utf8.Valid(raw) {
		return "", domain.WrapError(domain.ErrContentExtraction, "read text file", errors.New("file is not valid utf-8"))
	}
	return string(raw), nil
}

// loadMarkdown keeps the readable text of a markdown file: inline text,
// code block bodies and one line break per block.
func loadMarkdown(_ context.Context, path string) (string, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return "", domain.WrapError(domain.ErrContentExtraction, "read markdown file", err)
	}
	return markdownText(src)
}

func markdownText(src []byte) (string, error) {
	root := goldmark.New().Parser().Parse(text.NewReader(src))

	var b bytes.Buffer
	err := ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock {
				b.WriteByte('\n')
			}
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Text:
			b.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(node.Value)
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				segment := lines.At(i)
				b.Write(segment.Value(src))
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", domain.WrapError(domain.ErrContentExtraction, "walk markdown", err)
	}
	return strings.TrimSpace(b.String()), nil
}
