package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/duplicate-detector/internal/core/domain"
)

const maxDocumentBytes = 64 << 20

// Extractor turns every PDF page with extractable text into one PageInput.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) ExtractPages(ctx context.Context, documentID, filename string, body io.Reader) ([]domain.PageInput, error) {
	raw, err := io.ReadAll(io.LimitReader(body, maxDocumentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	if len(raw) > maxDocumentBytes {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract pdf", fmt.Errorf("%s exceeds %d bytes", filename, maxDocumentBytes))
	}

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract pdf", fmt.Errorf("open %s: %w", filename, err))
	}

	total := reader.NumPage()
	pages := make([]domain.PageInput, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, pageErr := page.GetPlainText(nil)
		if pageErr != nil {
			continue
		}
		content = normalizeWhitespace(content)
		if content == "" {
			continue
		}
		pages = append(pages, domain.PageInput{DocumentID: documentID, Page: i, Content: content})
	}
	if len(pages) == 0 {
		return nil, domain.WrapError(domain.ErrEmptyInput, "extract pdf", errors.New("no extractable text found in "+filename))
	}
	return pages, nil
}

func normalizeWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
