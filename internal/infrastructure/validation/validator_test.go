package validation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/duplicate-detector/internal/core/domain"
)

type stubReviewer struct {
	accept func(domain.CandidatePair) bool
	err    error
	calls  int
}

func (r *stubReviewer) VerifyPairs(_ context.Context, pairs []domain.CandidatePair) ([]domain.PairJudgement, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	out := make([]domain.PairJudgement, len(pairs))
	for i, pair := range pairs {
		out[i] = domain.PairJudgement{IsDuplicate: r.accept(pair), Score: 0.9}
	}
	return out, nil
}

var testDocuments = []domain.DocumentRecord{
	{DocumentID: "1", CombinedContent: "Payment is due\n within thirty days.\n\nOther text."},
	{DocumentID: "2", CombinedContent: "Payment is due within   thirty days."},
}

func finding(doc1, doc2, content1, content2 string, score float64) domain.DuplicateFinding {
	return domain.DuplicateFinding{
		DocumentID1: doc1, DocumentID2: doc2,
		Page1: 1, Page2: 1,
		Content1: content1, Content2: content2,
		Score: score, Category: domain.CategoryVerbatim,
	}
}

func TestValidatorFiltersInOrder(t *testing.T) {
	v, err := NewValidator(Policy{MinScore: 0.5, RequireVerbatim: true}, nil, nil)
	require.NoError(t, err)

	findings := []domain.DuplicateFinding{
		finding("1", "2", "Payment is due within thirty days.", "Payment is due within thirty days.", 1.3),
		finding("1", "1", "Other text.", "Other text.", 0.9),
		finding("1", "ghost", "Other text.", "x", 0.9),
		finding("1", "2", "Other text.", "Payment is due", 0.2),
		finding("1", "2", "Invented sentence.", "Payment is due", 0.9),
	}

	got, err := v.Validate(context.Background(), testDocuments, findings)

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1.0, got[0].Score)
	assert.Equal(t, "Payment is due within thirty days.", got[0].Content1)
}

func TestValidatorWithoutVerbatimKeepsParaphrases(t *testing.T) {
	v, err := NewValidator(Policy{MinScore: 0.5}, nil, nil)
	require.NoError(t, err)

	got, err := v.Validate(context.Background(), testDocuments, []domain.DuplicateFinding{
		finding("1", "2", "rephrased", "Payment is due", 0.7),
	})

	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestValidatorReviewDropsRejectedLowScores(t *testing.T) {
	reviewer := &stubReviewer{accept: func(pair domain.CandidatePair) bool {
		return pair.Left.Content != "Other text."
	}}
	v, err := NewValidator(Policy{MinScore: 0, ReviewBelow: 0.8}, reviewer, nil)
	require.NoError(t, err)

	got, err := v.Validate(context.Background(), testDocuments, []domain.DuplicateFinding{
		finding("1", "2", "Payment is due", "Payment is due", 0.95),
		finding("1", "2", "Other text.", "Payment is due", 0.6),
		finding("2", "1", "thirty days", "thirty days", 0.6),
	})

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Payment is due", got[0].Content1)
	assert.Equal(t, "thirty days", got[1].Content1)
	assert.Equal(t, 1, reviewer.calls)
}

func TestValidatorReviewerErrorFails(t *testing.T) {
	reviewer := &stubReviewer{err: errors.New("reasoning down")}
	v, err := NewValidator(Policy{ReviewBelow: 0.8}, reviewer, nil)
	require.NoError(t, err)

	_, err = v.Validate(context.Background(), testDocuments, []domain.DuplicateFinding{
		finding("1", "2", "a", "b", 0.5),
	})

	require.Error(t, err)
}

func TestNewValidatorRejectsInvalidPolicy(t *testing.T) {
	_, err := NewValidator(Policy{MinScore: 1.5}, nil, nil)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrInvalidInput))
}
