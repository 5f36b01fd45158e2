package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/duplicate-detector/internal/core/domain"
)

// Embedder builds vectors for texts. Vectors are returned in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Chunker splits a document's combined content at semantic breakpoints.
type Chunker interface {
	Split(ctx context.Context, text string) ([]domain.TextChunk, error)
}

// Reranker scores candidate texts against a query, one score in [0,1] per
// candidate, in candidate order.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []string) ([]float64, error)
}

// PairVerifier judges candidate segment pairs. Judgements are returned
// position-for-position with pairs.
type PairVerifier interface {
	VerifyPairs(ctx context.Context, pairs []domain.CandidatePair) ([]domain.PairJudgement, error)
}

// DocumentComparer finds duplicated excerpts between two whole documents.
type DocumentComparer interface {
	CompareDocuments(ctx context.Context, left, right domain.DocumentRecord) ([]domain.DocumentMatch, error)
}

// Validator is the final policy pass over merged findings. It may drop or
// annotate findings but never introduce new document pairs.
type Validator interface {
	Validate(ctx context.Context, documents []domain.DocumentRecord, findings []domain.DuplicateFinding) ([]domain.DuplicateFinding, error)
}

// PageExtractor turns an uploaded file into page-level text.
type PageExtractor interface {
	ExtractPages(ctx context.Context, documentID, filename string, body io.Reader) ([]domain.PageInput, error)
}

// AnalysisObserver receives pipeline telemetry.
type AnalysisObserver interface {
	ObserveExecution(status string, duration time.Duration)
	ObserveStrategy(strategy string, findings int, err error)
	ObserveDegradedEmbeddingBatch()
	ObserveEligibleClusters(count int)
}
