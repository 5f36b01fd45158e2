package usecase

import (
	"strings"

	"github.com/kirillkom/duplicate-detector/internal/core/domain"
)

// CanonicalKey identifies a finding by its unordered pair of trimmed,
// lower-cased contents.
func CanonicalKey(f domain.DuplicateFinding) string {
	a := strings.ToLower(strings.TrimSpace(f.Content1))
	b := strings.ToLower(strings.TrimSpace(f.Content2))
	if b < a {
		a, b = b, a
	}
	return a + "\x00" + b
}

// DeduplicateFindings keeps the first finding per canonical key and preserves
// input order.
func DeduplicateFindings(findings []domain.DuplicateFinding) []domain.DuplicateFinding {
	seen := make(map[string]struct{}, len(findings))
	out := make([]domain.DuplicateFinding, 0, len(findings))
	for _, f := range findings {
		key := CanonicalKey(f)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, f)
	}
	return out
}
