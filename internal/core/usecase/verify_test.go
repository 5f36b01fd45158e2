package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/duplicate-detector/internal/core/domain"
)

// stubReasoner answers pair and document questions by exact text equality.
type stubReasoner struct {
	mu           sync.Mutex
	pairRequests [][]domain.CandidatePair
	compareCalls int
	failPairsOn  string
	shortAnswers bool
	compareErr   error
	blockCompare bool
	reason       string
}

func (r *stubReasoner) VerifyPairs(_ context.Context, pairs []domain.CandidatePair) ([]domain.PairJudgement, error) {
	r.mu.Lock()
	r.pairRequests = append(r.pairRequests, pairs)
	r.mu.Unlock()

	out := make([]domain.PairJudgement, 0, len(pairs))
	for _, pair := range pairs {
		if r.failPairsOn != "" && strings.Contains(pair.Left.Content, r.failPairsOn) {
			return nil, errors.New("reasoning capability unavailable")
		}
		same := strings.EqualFold(strings.TrimSpace(pair.Left.Content), strings.TrimSpace(pair.Right.Content))
		judgement := domain.PairJudgement{IsDuplicate: same, Reason: r.reasonOr("identical text")}
		if same {
			judgement.Score = 1.2
			judgement.Category = "Verbatim"
		}
		out = append(out, judgement)
	}
	if r.shortAnswers && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (r *stubReasoner) CompareDocuments(ctx context.Context, left, right domain.DocumentRecord) ([]domain.DocumentMatch, error) {
	r.mu.Lock()
	r.compareCalls++
	r.mu.Unlock()

	if r.blockCompare {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if r.compareErr != nil {
		return nil, r.compareErr
	}
	out := make([]domain.DocumentMatch, 0)
	for _, paragraph := range strings.Split(left.CombinedContent, domain.PageDelimiter) {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" || !strings.Contains(right.CombinedContent, paragraph) {
			continue
		}
		out = append(out, domain.DocumentMatch{
			Content1: paragraph,
			Content2: paragraph,
			Score:    0.97,
			Reason:   r.reasonOr("same paragraph in both documents"),
			Category: domain.CategoryVerbatim,
		})
	}
	return out, nil
}

func (r *stubReasoner) reasonOr(fallback string) string {
	if r.reason != "" {
		return r.reason
	}
	return fallback
}

func TestVerifyClustersBuildsCrossDocumentPairsOnly(t *testing.T) {
	reasoner := &stubReasoner{}
	cluster := domain.Cluster{Segments: []domain.Segment{
		{ID: "a1", DocumentID: "a", Page: 1, Content: "shared"},
		{ID: "a2", DocumentID: "a", Page: 2, Content: "shared"},
		{ID: "b1", DocumentID: "b", Page: 4, Content: "shared"},
	}}

	findings := NewCandidateVerifier(reasoner, 20, nil).VerifyClusters(context.Background(), NewWorkerPool(2), []domain.Cluster{cluster})

	require.Len(t, reasoner.pairRequests, 1)
	require.Len(t, reasoner.pairRequests[0], 2, "a1/a2 is a same-document pair")
	require.Len(t, findings, 2)
	assert.Equal(t, "a", findings[0].DocumentID1)
	assert.Equal(t, "b", findings[0].DocumentID2)
	assert.Equal(t, 1, findings[0].Page1)
	assert.Equal(t, 4, findings[0].Page2)
	assert.Equal(t, 1.0, findings[0].Score, "score is clamped")
	assert.Equal(t, domain.CategoryVerbatim, findings[0].Category)
	assert.Equal(t, 2, findings[1].Page1)
}

func TestVerifyClustersChunksLargeClusters(t *testing.T) {
	reasoner := &stubReasoner{}
	segments := make([]domain.Segment, 0)
	for i := 0; i < 4; i++ {
		segments = append(segments,
			domain.Segment{DocumentID: "a", Page: 1, Content: "x"},
			domain.Segment{DocumentID: "b", Page: 1, Content: "x"},
		)
	}

	findings := NewCandidateVerifier(reasoner, 5, nil).VerifyClusters(context.Background(), nil, []domain.Cluster{{Segments: segments}})

	// 4 a-segments x 4 b-segments = 16 pairs in requests of at most 5.
	require.Len(t, reasoner.pairRequests, 4)
	require.Len(t, findings, 16)
}

func TestVerifyClustersIsolatesFailingCluster(t *testing.T) {
	reasoner := &stubReasoner{failPairsOn: "poison"}
	clusters := []domain.Cluster{
		{Segments: []domain.Segment{{DocumentID: "a", Content: "poison"}, {DocumentID: "b", Content: "poison"}}},
		{Segments: []domain.Segment{{DocumentID: "a", Content: "fine"}, {DocumentID: "c", Content: "fine"}}},
	}

	findings := NewCandidateVerifier(reasoner, 20, nil).VerifyClusters(context.Background(), NewWorkerPool(4), clusters)

	require.Len(t, findings, 1)
	require.Equal(t, "c", findings[0].DocumentID2)
}

func TestVerifyClustersRejectsJudgementCountMismatch(t *testing.T) {
	reasoner := &stubReasoner{shortAnswers: true}
	clusters := []domain.Cluster{
		{Segments: []domain.Segment{{DocumentID: "a", Content: "x"}, {DocumentID: "b", Content: "x"}}},
	}

	findings := NewCandidateVerifier(reasoner, 20, nil).VerifyClusters(context.Background(), nil, clusters)

	require.Empty(t, findings)
}

func TestCompareDocumentsLocatesPages(t *testing.T) {
	docs := aggregateForTest(t, []domain.PageInput{
		{DocumentID: "a", Page: 1, Content: "intro of a"},
		{DocumentID: "a", Page: 2, Content: "shared paragraph"},
		{DocumentID: "b", Page: 5, Content: "shared paragraph"},
		{DocumentID: "c", Page: 1, Content: "unrelated"},
	})
	reasoner := &stubReasoner{}

	findings := NewDirectComparator(reasoner, nil).CompareDocuments(context.Background(), NewWorkerPool(4), docs)

	require.Equal(t, 3, reasoner.compareCalls)
	require.Len(t, findings, 1)
	assert.Equal(t, "a", findings[0].DocumentID1)
	assert.Equal(t, "b", findings[0].DocumentID2)
	assert.Equal(t, 2, findings[0].Page1)
	assert.Equal(t, 5, findings[0].Page2)
}

func TestCompareDocumentsSkipsFailingPairs(t *testing.T) {
	docs := aggregateForTest(t, []domain.PageInput{
		{DocumentID: "a", Page: 1, Content: "same"},
		{DocumentID: "b", Page: 1, Content: "same"},
	})
	reasoner := &stubReasoner{compareErr: errors.New("timeout")}

	findings := NewDirectComparator(reasoner, nil).CompareDocuments(context.Background(), nil, docs)

	require.NotNil(t, findings)
	require.Empty(t, findings)
}

func TestCompareDocumentsSingleDocumentHasNoPairs(t *testing.T) {
	docs := aggregateForTest(t, []domain.PageInput{{DocumentID: "solo", Page: 1, Content: "text"}})
	reasoner := &stubReasoner{}

	findings := NewDirectComparator(reasoner, nil).CompareDocuments(context.Background(), nil, docs)

	require.Empty(t, findings)
	require.Zero(t, reasoner.compareCalls)
}
