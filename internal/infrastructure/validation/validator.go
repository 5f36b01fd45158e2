package validation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/duplicate-detector/internal/core/domain"
	"github.com/kirillkom/duplicate-detector/internal/core/ports"
)

const reviewBatchSize = 20

type Policy struct {
	MinScore        float64
	RequireVerbatim bool
	// ReviewBelow sends findings scoring under it back to the reviewer.
	// Zero disables review.
	ReviewBelow float64
}

// Validator is the reference validation policy. It only removes findings or
// clamps their score.
type Validator struct {
	policy   Policy
	reviewer ports.PairVerifier
	logger   *slog.Logger
}

func NewValidator(policy Policy, reviewer ports.PairVerifier, logger *slog.Logger) (*Validator, error) {
	if policy.MinScore < 0 || policy.MinScore > 1 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "new validator", fmt.Errorf("min score %.3f outside [0,1]", policy.MinScore))
	}
	if policy.ReviewBelow < 0 || policy.ReviewBelow > 1 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "new validator", fmt.Errorf("review threshold %.3f outside [0,1]", policy.ReviewBelow))
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{policy: policy, reviewer: reviewer, logger: logger}, nil
}

func (v *Validator) Validate(ctx context.Context, documents []domain.DocumentRecord, findings []domain.DuplicateFinding) ([]domain.DuplicateFinding, error) {
	normalized := make(map[string]string, len(documents))
	for _, doc := range documents {
		normalized[doc.DocumentID] = normalizeSpace(doc.CombinedContent)
	}

	kept := make([]domain.DuplicateFinding, 0, len(findings))
	for _, f := range findings {
		if reason := v.rejectReason(f, normalized); reason != "" {
			v.logger.Debug("finding_rejected",
				"reason", reason,
				"document_id_1", f.DocumentID1,
				"document_id_2", f.DocumentID2,
				"score", f.Score,
			)
			continue
		}
		f.Score = domain.ClampScore(f.Score)
		kept = append(kept, f)
	}

	if v.reviewer == nil || v.policy.ReviewBelow <= 0 {
		v.logger.Info("findings_validated", "input", len(findings), "kept", len(kept))
		return kept, nil
	}

	reviewed, err := v.review(ctx, kept)
	if err != nil {
		return nil, err
	}
	v.logger.Info("findings_validated", "input", len(findings), "kept", len(reviewed))
	return reviewed, nil
}

func (v *Validator) rejectReason(f domain.DuplicateFinding, normalized map[string]string) string {
	if f.DocumentID1 == f.DocumentID2 {
		return "self_pair"
	}
	content1, ok1 := normalized[f.DocumentID1]
	content2, ok2 := normalized[f.DocumentID2]
	if !ok1 || !ok2 {
		return "unknown_document"
	}
	if domain.ClampScore(f.Score) < v.policy.MinScore {
		return "below_min_score"
	}
	if v.policy.RequireVerbatim {
		if !strings.Contains(content1, normalizeSpace(f.Content1)) || !strings.Contains(content2, normalizeSpace(f.Content2)) {
			return "excerpt_not_in_document"
		}
	}
	return ""
}

// review re-verifies low-score findings and drops those the reviewer rejects.
func (v *Validator) review(ctx context.Context, findings []domain.DuplicateFinding) ([]domain.DuplicateFinding, error) {
	pending := make([]int, 0)
	for idx, f := range findings {
		if f.Score < v.policy.ReviewBelow {
			pending = append(pending, idx)
		}
	}
	if len(pending) == 0 {
		return findings, nil
	}

	rejected := make(map[int]bool, len(pending))
	for start := 0; start < len(pending); start += reviewBatchSize {
		end := start + reviewBatchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]
		pairs := make([]domain.CandidatePair, len(batch))
		for i, idx := range batch {
			f := findings[idx]
			pairs[i] = domain.CandidatePair{
				Left:  domain.PairSide{DocumentID: f.DocumentID1, Page: f.Page1, Content: f.Content1},
				Right: domain.PairSide{DocumentID: f.DocumentID2, Page: f.Page2, Content: f.Content2},
			}
		}

		judgements, err := v.reviewer.VerifyPairs(ctx, pairs)
		if err != nil {
			return nil, fmt.Errorf("review findings: %w", err)
		}
		if len(judgements) != len(pairs) {
			return nil, fmt.Errorf("review findings: judgements/pairs mismatch: %d/%d", len(judgements), len(pairs))
		}
		for i, judgement := range judgements {
			if !judgement.IsDuplicate {
				rejected[batch[i]] = true
			}
		}
	}

	out := make([]domain.DuplicateFinding, 0, len(findings)-len(rejected))
	for idx, f := range findings {
		if rejected[idx] {
			continue
		}
		out = append(out, f)
	}
	v.logger.Info("findings_reviewed", "reviewed", len(pending), "rejected", len(rejected))
	return out, nil
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
