package pdf

import (
	"context"
	"strings"
	"testing"

	"github.com/kirillkom/duplicate-detector/internal/core/domain"
)

func TestExtractPagesRejectsNonPDF(t *testing.T) {
	_, err := NewExtractor().ExtractPages(context.Background(), "1", "fake.pdf", strings.NewReader("plain text, not a pdf"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestNormalizeWhitespace(t *testing.T) {
	got := normalizeWhitespace("  a   b \n\n\t c  ")
	if got != "a b\nc" {
		t.Fatalf("unexpected normalization %q", got)
	}
}
