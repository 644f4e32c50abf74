package loader

import (
	"context"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/grounded-rag/internal/core/domain"
)

// loadXLSX renders every sheet as "Sheet: name" followed by one line per
// non-empty row with cells separated by " | ".
func loadXLSX(ctx context.Context, path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", domain.WrapError(domain.ErrContentExtraction, "open xlsx", err)
	}
	defer f.Close()

	var b strings.Builder
	for _, sheet := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", domain.WrapError(domain.ErrContentExtraction, "read sheet "+sheet, err)
		}
		b.WriteString("Sheet: ")
		b.WriteString(sheet)
		b.WriteString("\n")
		for _, row := range rows {
			cells := make([]string, 0, len(row))
			for _, cell := range row {
				if cell = strings.TrimSpace(cell); cell != "" {
					cells = append(cells, cell)
				}
			}
			if len(cells) == 0 {
				continue
			}
			b.WriteString(strings.Join(cells, " | "))
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}
