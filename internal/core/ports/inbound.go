package ports

import (
	"context"

	"github.com/kirillkom/duplicate-detector/internal/core/domain"
)

// DuplicateAnalyzer is the inbound contract for one duplicate-detection execution.
type DuplicateAnalyzer interface {
	AnalyzeDocuments(ctx context.Context, pages []domain.PageInput) ([]domain.DuplicateFinding, error)
}
