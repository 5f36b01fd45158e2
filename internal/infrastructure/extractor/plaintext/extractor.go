package plaintext

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/duplicate-detector/internal/core/domain"
)

const (
	maxDocumentBytes = 32 << 20
	pageBreak        = "\f"
)

// Extractor reads UTF-8 text. Pages are separated by form feeds; a .json file
// may instead carry an array of {"page","content"} objects.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) ExtractPages(ctx context.Context, documentID, filename string, body io.Reader) ([]domain.PageInput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(io.LimitReader(body, maxDocumentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read source document: %w", err)
	}
	if len(raw) > maxDocumentBytes {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract text", fmt.Errorf("%s exceeds %d bytes", filename, maxDocumentBytes))
	}
	if !utf8.Valid(raw) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract text", fmt.Errorf("unsupported binary format: %s", filename))
	}

	if strings.EqualFold(filepath.Ext(filename), ".json") {
		if pages, ok := decodePageArray(documentID, raw); ok {
			return nonEmpty(filename, pages)
		}
	}

	parts := strings.Split(string(raw), pageBreak)
	pages := make([]domain.PageInput, 0, len(parts))
	for idx, part := range parts {
		pages = append(pages, domain.PageInput{DocumentID: documentID, Page: idx + 1, Content: strings.TrimSpace(part)})
	}
	return nonEmpty(filename, pages)
}

func decodePageArray(documentID string, raw []byte) ([]domain.PageInput, bool) {
	var items []struct {
		Page    int    `json:"page"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	pages := make([]domain.PageInput, 0, len(items))
	for idx, item := range items {
		page := item.Page
		if page < 1 {
			page = idx + 1
		}
		pages = append(pages, domain.PageInput{DocumentID: documentID, Page: page, Content: strings.TrimSpace(item.Content)})
	}
	return pages, true
}

func nonEmpty(filename string, pages []domain.PageInput) ([]domain.PageInput, error) {
	out := pages[:0]
	for _, page := range pages {
		if page.Content != "" {
			out = append(out, page)
		}
	}
	if len(out) == 0 {
		return nil, domain.WrapError(domain.ErrEmptyInput, "extract text", errors.New("no text found in "+filename))
	}
	return out, nil
}
