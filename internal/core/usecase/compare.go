package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/duplicate-detector/internal/core/domain"
	"github.com/kirillkom/duplicate-detector/internal/core/ports"
)

type DirectComparator struct {
	comparer ports.DocumentComparer
	logger   *slog.Logger
}

func NewDirectComparator(comparer ports.DocumentComparer, logger *slog.Logger) *DirectComparator {
	if logger == nil {
		logger = slog.Default()
	}
	return &DirectComparator{comparer: comparer, logger: logger}
}

type documentPair struct {
	left, right int
}

// CompareDocuments runs whole-document comparison for every unordered pair of
// distinct documents on the pool. A failing pair is logged and skipped.
func (c *DirectComparator) CompareDocuments(ctx context.Context, pool *WorkerPool, documents []domain.DocumentRecord) []domain.DuplicateFinding {
	pairs := make([]documentPair, 0)
	for i := 0; i < len(documents); i++ {
		for j := i + 1; j < len(documents); j++ {
			if documents[i].DocumentID == documents[j].DocumentID {
				continue
			}
			pairs = append(pairs, documentPair{left: i, right: j})
		}
	}
	if len(pairs) == 0 {
		c.logger.Info("direct_compare_no_pairs", "documents", len(documents))
		return []domain.DuplicateFinding{}
	}

	perPair := make([][]domain.DuplicateFinding, len(pairs))
	pool.ForEach(ctx, len(pairs), func(taskCtx context.Context, idx int) error {
		findings, err := c.comparePair(taskCtx, documents[pairs[idx].left], documents[pairs[idx].right])
		if err != nil {
			return err
		}
		perPair[idx] = findings
		return nil
	}, func(idx int, err error) {
		c.logger.Error("direct_compare_pair_failed",
			"document_id_1", documents[pairs[idx].left].DocumentID,
			"document_id_2", documents[pairs[idx].right].DocumentID,
			"error", err,
		)
		perPair[idx] = nil
	})

	out := make([]domain.DuplicateFinding, 0)
	for _, findings := range perPair {
		out = append(out, findings...)
	}
	return out
}

func (c *DirectComparator) comparePair(ctx context.Context, left, right domain.DocumentRecord) ([]domain.DuplicateFinding, error) {
	if c.comparer == nil {
		return nil, fmt.Errorf("document comparer is not configured")
	}
	if strings.TrimSpace(left.CombinedContent) == "" || strings.TrimSpace(right.CombinedContent) == "" {
		return nil, nil
	}

	matches, err := c.comparer.CompareDocuments(ctx, left, right)
	if err != nil {
		return nil, fmt.Errorf("compare documents %s/%s: %w", left.DocumentID, right.DocumentID, err)
	}

	out := make([]domain.DuplicateFinding, 0, len(matches))
	for _, match := range matches {
		content1 := strings.TrimSpace(match.Content1)
		content2 := strings.TrimSpace(match.Content2)
		if content1 == "" || content2 == "" {
			continue
		}
		out = append(out, domain.DuplicateFinding{
			DocumentID1: left.DocumentID,
			DocumentID2: right.DocumentID,
			Page1:       c.pageOf(left, content1),
			Page2:       c.pageOf(right, content2),
			Content1:    content1,
			Content2:    content2,
			Score:       domain.ClampScore(match.Score),
			Reason:      strings.TrimSpace(match.Reason),
			Category:    normalizeCategory(match.Category),
		})
	}
	return out, nil
}

// pageOf locates an excerpt in the document; excerpts that do not occur
// verbatim are attributed to the first page.
func (c *DirectComparator) pageOf(doc domain.DocumentRecord, excerpt string) int {
	offset := locateExcerpt(doc.CombinedContent, excerpt, 0)
	if offset < 0 {
		c.logger.Warn("direct_excerpt_not_found", "document_id", doc.DocumentID, "fallback_page", doc.FirstPage())
		return doc.FirstPage()
	}
	page, _ := doc.PageAt(offset)
	return page
}
