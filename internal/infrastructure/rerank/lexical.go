package rerank

import (
	"context"
	"strings"
	"unicode"
)

// Lexical scores candidates by token overlap with the query:
// |A∩B| / min(|A|,|B|) over lower-cased alphanumeric tokens, with every CJK
// rune counted as its own token.
type Lexical struct{}

func NewLexical() *Lexical {
	return &Lexical{}
}

func (l *Lexical) Rerank(ctx context.Context, query string, candidates []string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	queryTokens := toTokenSet(query)
	out := make([]float64, len(candidates))
	for i, candidate := range candidates {
		out[i] = overlapCoefficient(queryTokens, toTokenSet(candidate))
	}
	return out, nil
}

func overlapCoefficient(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(large) < len(small) {
		small, large = large, small
	}
	matches := 0
	for token := range small {
		if _, ok := large[token]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(small))
}

func toTokenSet(s string) map[string]struct{} {
	tokens := splitTokens(s)
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[token] = struct{}{}
	}
	return out
}

func splitTokens(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, 16)
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	for _, r := range s {
		r = unicode.ToLower(r)
		switch {
		case isCJK(r):
			flush()
			tokens = append(tokens, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}

func isCJK(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul)
}
