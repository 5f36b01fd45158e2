package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/duplicate-detector/internal/core/domain"
	"github.com/kirillkom/duplicate-detector/internal/core/ports"
)

const defaultMaxPairsPerRequest = 20

type CandidateVerifier struct {
	verifier           ports.PairVerifier
	maxPairsPerRequest int
	logger             *slog.Logger
}

func NewCandidateVerifier(verifier ports.PairVerifier, maxPairsPerRequest int, logger *slog.Logger) *CandidateVerifier {
	if maxPairsPerRequest <= 0 {
		maxPairsPerRequest = defaultMaxPairsPerRequest
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CandidateVerifier{
		verifier:           verifier,
		maxPairsPerRequest: maxPairsPerRequest,
		logger:             logger,
	}
}

// VerifyClusters asks the reasoning capability to judge every cross-document
// segment pair inside each cluster. Clusters are verified concurrently on the
// pool; a failing cluster contributes no findings. Findings are returned in
// cluster order.
func (v *CandidateVerifier) VerifyClusters(ctx context.Context, pool *WorkerPool, clusters []domain.Cluster) []domain.DuplicateFinding {
	perCluster := make([][]domain.DuplicateFinding, len(clusters))
	pool.ForEach(ctx, len(clusters), func(taskCtx context.Context, idx int) error {
		findings, err := v.verifyCluster(taskCtx, clusters[idx])
		if err != nil {
			return err
		}
		perCluster[idx] = findings
		return nil
	}, func(idx int, err error) {
		v.logger.Error("cluster_verification_failed",
			"cluster", idx,
			"segments", len(clusters[idx].Segments),
			"error", err,
		)
		perCluster[idx] = nil
	})

	out := make([]domain.DuplicateFinding, 0)
	for _, findings := range perCluster {
		out = append(out, findings...)
	}
	return out
}

func (v *CandidateVerifier) verifyCluster(ctx context.Context, cluster domain.Cluster) ([]domain.DuplicateFinding, error) {
	if v.verifier == nil {
		return nil, fmt.Errorf("pair verifier is not configured")
	}
	pairs := crossDocumentPairs(cluster)
	if len(pairs) == 0 {
		return nil, nil
	}

	findings := make([]domain.DuplicateFinding, 0)
	for start := 0; start < len(pairs); start += v.maxPairsPerRequest {
		end := start + v.maxPairsPerRequest
		if end > len(pairs) {
			end = len(pairs)
		}
		batch := pairs[start:end]

		judgements, err := v.verifier.VerifyPairs(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("verify pairs %d-%d: %w", start, end, err)
		}
		if len(judgements) != len(batch) {
			return nil, fmt.Errorf("verify pairs %d-%d: judgements/pairs mismatch: %d/%d", start, end, len(judgements), len(batch))
		}

		for i, judgement := range judgements {
			if !judgement.IsDuplicate {
				continue
			}
			findings = append(findings, findingFromPair(batch[i], judgement))
		}
	}
	return findings, nil
}

// crossDocumentPairs lists every in-cluster segment pair from different
// documents, earlier segment on the left.
func crossDocumentPairs(cluster domain.Cluster) []domain.CandidatePair {
	out := make([]domain.CandidatePair, 0)
	for i := 0; i < len(cluster.Segments); i++ {
		for j := i + 1; j < len(cluster.Segments); j++ {
			left, right := cluster.Segments[i], cluster.Segments[j]
			if left.DocumentID == right.DocumentID {
				continue
			}
			out = append(out, domain.CandidatePair{
				Left:  domain.PairSide{DocumentID: left.DocumentID, Page: left.Page, Content: left.Content},
				Right: domain.PairSide{DocumentID: right.DocumentID, Page: right.Page, Content: right.Content},
			})
		}
	}
	return out
}

func findingFromPair(pair domain.CandidatePair, judgement domain.PairJudgement) domain.DuplicateFinding {
	return domain.DuplicateFinding{
		DocumentID1: pair.Left.DocumentID,
		DocumentID2: pair.Right.DocumentID,
		Page1:       pair.Left.Page,
		Page2:       pair.Right.Page,
		Content1:    pair.Left.Content,
		Content2:    pair.Right.Content,
		Score:       domain.ClampScore(judgement.Score),
		Reason:      strings.TrimSpace(judgement.Reason),
		Category:    normalizeCategory(judgement.Category),
	}
}

func normalizeCategory(category string) string {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		return domain.CategoryParaphrase
	}
	return category
}
