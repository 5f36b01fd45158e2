package prompt

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/kirillkom/duplicate-detector/internal/core/domain"
)

var (
	codeFenceRegex     = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")
	trailingCommaRegex = regexp.MustCompile(`,(\s*[}\]])`)
)

var ErrMalformedAnswer = errors.New("malformed model answer")

// Decode parses a JSON object out of a model answer. It tries the raw text,
// then the content of a code fence, then the outermost {...} span, each with
// trailing commas removed on a second attempt.
func Decode[T any](raw string) (T, error) {
	var out T
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return out, fmt.Errorf("%w: empty answer", ErrMalformedAnswer)
	}

	candidates := []string{trimmed}
	if m := codeFenceRegex.FindStringSubmatch(trimmed); len(m) == 2 {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	candidates = append(candidates, ExtractJSONObject(trimmed))

	var lastErr error
	for _, candidate := range candidates {
		for _, text := range []string{candidate, trailingCommaRegex.ReplaceAllString(candidate, "$1")} {
			var value T
			if err := json.Unmarshal([]byte(text), &value); err != nil {
				lastErr = err
				continue
			}
			return value, nil
		}
	}
	return out, fmt.Errorf("%w: %v", ErrMalformedAnswer, lastErr)
}

// ExtractJSONObject returns the outermost {...} span of raw, or raw itself.
func ExtractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

type pairAnswer struct {
	Results []struct {
		Index       int     `json:"index"`
		IsDuplicate bool    `json:"is_duplicate"`
		Score       float64 `json:"score"`
		Reason      string  `json:"reason"`
		Category    string  `json:"category"`
	} `json:"results"`
}

// PairJudgements maps a PairVerification answer back onto the n pairs it was
// asked about. Every pair must be answered exactly once.
func PairJudgements(raw string, n int) ([]domain.PairJudgement, error) {
	answer, err := Decode[pairAnswer](raw)
	if err != nil {
		return nil, err
	}

	out := make([]domain.PairJudgement, n)
	seen := make([]bool, n)
	for _, result := range answer.Results {
		idx := result.Index - 1
		if idx < 0 || idx >= n {
			return nil, fmt.Errorf("%w: result index %d outside 1..%d", ErrMalformedAnswer, result.Index, n)
		}
		if seen[idx] {
			return nil, fmt.Errorf("%w: pair %d answered twice", ErrMalformedAnswer, result.Index)
		}
		seen[idx] = true
		out[idx] = domain.PairJudgement{
			IsDuplicate: result.IsDuplicate,
			Score:       domain.ClampScore(result.Score),
			Reason:      strings.TrimSpace(result.Reason),
			Category:    strings.ToLower(strings.TrimSpace(result.Category)),
		}
	}
	for idx, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("%w: pair %d not answered", ErrMalformedAnswer, idx+1)
		}
	}
	return out, nil
}

type documentAnswer struct {
	Duplicates []domain.DocumentMatch `json:"duplicates"`
}

// DocumentMatches parses a DocumentComparison answer. Entries with an empty
// excerpt are dropped.
func DocumentMatches(raw string) ([]domain.DocumentMatch, error) {
	answer, err := Decode[documentAnswer](raw)
	if err != nil {
		return nil, err
	}
	out := make([]domain.DocumentMatch, 0, len(answer.Duplicates))
	for _, match := range answer.Duplicates {
		if strings.TrimSpace(match.Content1) == "" || strings.TrimSpace(match.Content2) == "" {
			continue
		}
		match.Score = domain.ClampScore(match.Score)
		out = append(out, match)
	}
	return out, nil
}
