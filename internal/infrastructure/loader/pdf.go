package loader

import (
	"context"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/grounded-rag/internal/core/domain"
)

// loadPDF concatenates the plain text of every page, one page per line
// block. Pages that fail to decode are skipped.
func loadPDF(ctx context.Context, path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", domain.WrapError(domain.ErrContentExtraction, "open pdf", err)
	}
	defer f.Close()

	var b strings.Builder
	total := r.NumPage()
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(content)
		b.WriteString("\n")
	}
	return b.String(), nil
}
