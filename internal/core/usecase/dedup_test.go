package usecase

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kirillkom/duplicate-detector/internal/core/domain"
)

func TestCanonicalKeyIsOrderInsensitive(t *testing.T) {
	ab := domain.DuplicateFinding{Content1: "  Alpha text ", Content2: "beta TEXT"}
	ba := domain.DuplicateFinding{Content1: "Beta text", Content2: "alpha text"}

	require.Equal(t, CanonicalKey(ab), CanonicalKey(ba))
	require.NotEqual(t, CanonicalKey(ab), CanonicalKey(domain.DuplicateFinding{Content1: "alpha text", Content2: "gamma"}))
}

func TestDeduplicateFindingsKeepsFirstAndIsIdempotent(t *testing.T) {
	findings := []domain.DuplicateFinding{
		{DocumentID1: "1", DocumentID2: "2", Content1: "A", Content2: "B", Reason: "cluster"},
		{DocumentID1: "2", DocumentID2: "1", Content1: "b", Content2: "a ", Reason: "direct"},
		{DocumentID1: "1", DocumentID2: "3", Content1: "A", Content2: "C", Reason: "direct"},
	}

	once := DeduplicateFindings(findings)
	require.Len(t, once, 2)
	require.Equal(t, "cluster", once[0].Reason)
	require.Equal(t, "C", once[1].Content2)

	require.Equal(t, once, DeduplicateFindings(once))
}

func TestDeduplicateFindingsEmpty(t *testing.T) {
	out := DeduplicateFindings(nil)
	require.NotNil(t, out)
	require.Empty(t, out)
}
