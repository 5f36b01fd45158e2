package usecase

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/kirillkom/duplicate-detector/internal/core/domain"
)

// AggregatePages groups page inputs by document id in first-seen order and
// builds each document's combined content with ascending pages. The original
// inputs are returned unchanged for downstream page tracking.
func AggregatePages(pages []domain.PageInput, logger *slog.Logger) ([]domain.DocumentRecord, []domain.PageInput, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(pages) == 0 {
		return nil, nil, domain.WrapError(domain.ErrEmptyInput, "aggregate pages", errors.New("page input list is empty"))
	}

	order := make([]string, 0)
	grouped := make(map[string]map[int]string)
	for idx, page := range pages {
		docID := strings.TrimSpace(page.DocumentID)
		if docID == "" {
			return nil, nil, domain.WrapError(domain.ErrInvalidInput, "aggregate pages", fmt.Errorf("page input %d has empty documentId", idx))
		}
		if page.Page < 1 {
			return nil, nil, domain.WrapError(domain.ErrInvalidInput, "aggregate pages", fmt.Errorf("page input %d for document %s has page %d, pages are 1-based", idx, docID, page.Page))
		}

		docPages, ok := grouped[docID]
		if !ok {
			docPages = make(map[int]string)
			grouped[docID] = docPages
			order = append(order, docID)
		}
		if _, dup := docPages[page.Page]; dup {
			logger.Warn("duplicate_page_input", "document_id", docID, "page", page.Page)
		}
		docPages[page.Page] = page.Content
	}

	records := make([]domain.DocumentRecord, 0, len(order))
	for _, docID := range order {
		record := buildDocumentRecord(docID, grouped[docID])
		logger.Debug("document_aggregated",
			"document_id", docID,
			"pages", len(record.PageOrder),
			"combined_length", len(record.CombinedContent),
		)
		records = append(records, record)
	}

	input := make([]domain.PageInput, len(pages))
	copy(input, pages)
	return records, input, nil
}

func buildDocumentRecord(docID string, pages map[int]string) domain.DocumentRecord {
	pageOrder := make([]int, 0, len(pages))
	for page := range pages {
		pageOrder = append(pageOrder, page)
	}
	sort.Ints(pageOrder)

	var b strings.Builder
	spans := make([]domain.PageSpan, 0, len(pageOrder))
	for _, page := range pageOrder {
		content := pages[page]
		if strings.TrimSpace(content) == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(domain.PageDelimiter)
		}
		start := b.Len()
		b.WriteString(content)
		spans = append(spans, domain.PageSpan{Start: start, End: b.Len(), Page: page})
	}

	return domain.DocumentRecord{
		DocumentID:      docID,
		CombinedContent: b.String(),
		Pages:           pages,
		PageOrder:       pageOrder,
		Spans:           spans,
	}
}
