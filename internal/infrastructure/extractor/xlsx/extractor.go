package xlsx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/duplicate-detector/internal/core/domain"
)

// Extractor maps every worksheet to one page, in workbook order. Rows are
// joined by newlines and cells by tabs.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) ExtractPages(ctx context.Context, documentID, filename string, body io.Reader) ([]domain.PageInput, error) {
	book, err := excelize.OpenReader(body)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract xlsx", fmt.Errorf("open %s: %w", filename, err))
	}
	defer book.Close()

	sheets := book.GetSheetList()
	pages := make([]domain.PageInput, 0, len(sheets))
	for idx, sheet := range sheets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := book.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		content := joinRows(rows)
		if content == "" {
			continue
		}
		pages = append(pages, domain.PageInput{DocumentID: documentID, Page: idx + 1, Content: content})
	}
	if len(pages) == 0 {
		return nil, domain.WrapError(domain.ErrEmptyInput, "extract xlsx", errors.New("no cell text found in "+filename))
	}
	return pages, nil
}

func joinRows(rows [][]string) string {
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		cells := make([]string, 0, len(row))
		for _, cell := range row {
			cells = append(cells, strings.TrimSpace(cell))
		}
		line := strings.TrimRight(strings.Join(cells, "\t"), "\t")
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
