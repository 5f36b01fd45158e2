package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/duplicate-detector/internal/core/domain"
	"github.com/kirillkom/duplicate-detector/internal/core/ports"
)

const (
	defaultEmbeddingBatchSize = 10
	defaultEmbeddingDimension = 1024
)

type EmbeddingGenerator struct {
	embedder  ports.Embedder
	batchSize int
	dimension int
	observer  ports.AnalysisObserver
	logger    *slog.Logger
}

func NewEmbeddingGenerator(embedder ports.Embedder, batchSize, dimension int, observer ports.AnalysisObserver, logger *slog.Logger) *EmbeddingGenerator {
	if batchSize <= 0 {
		batchSize = defaultEmbeddingBatchSize
	}
	if dimension <= 0 {
		dimension = defaultEmbeddingDimension
	}
	if observer == nil {
		observer = noopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EmbeddingGenerator{
		embedder:  embedder,
		batchSize: batchSize,
		dimension: dimension,
		observer:  observer,
		logger:    logger,
	}
}

// Generate returns a copy of segments with embeddings assigned to every
// segment with usable content. A failed batch gets zero vectors and does not
// stop the remaining batches.
func (g *EmbeddingGenerator) Generate(ctx context.Context, pool *WorkerPool, segments []domain.Segment) []domain.Segment {
	out := make([]domain.Segment, len(segments))
	copy(out, segments)

	valid := make([]int, 0, len(out))
	for idx, seg := range out {
		if strings.TrimSpace(seg.Content) == "" {
			g.logger.Warn("embedding_skip_invalid_segment", "segment_id", seg.ID, "index", idx)
			continue
		}
		valid = append(valid, idx)
	}
	if len(valid) == 0 {
		g.logger.Warn("embedding_no_valid_segments", "segments", len(out))
		return out
	}

	batches := make([][]int, 0, len(valid)/g.batchSize+1)
	for start := 0; start < len(valid); start += g.batchSize {
		end := start + g.batchSize
		if end > len(valid) {
			end = len(valid)
		}
		batches = append(batches, valid[start:end])
	}

	pool.ForEach(ctx, len(batches), func(taskCtx context.Context, batchIdx int) error {
		return g.embedBatch(taskCtx, out, batches[batchIdx])
	}, func(batchIdx int, err error) {
		g.logger.Error("embedding_batch_failed",
			"batch", batchIdx+1,
			"batches", len(batches),
			"segments", len(batches[batchIdx]),
			"error", err,
		)
		g.observer.ObserveDegradedEmbeddingBatch()
		for _, idx := range batches[batchIdx] {
			out[idx].Embedding = domain.ZeroVector(g.dimension)
		}
	})

	g.logger.Info("embeddings_generated", "segments", len(valid), "batches", len(batches))
	return out
}

// embedBatch writes only to the indices it owns, so batches can run in parallel.
func (g *EmbeddingGenerator) embedBatch(ctx context.Context, out []domain.Segment, indices []int) error {
	if g.embedder == nil {
		return errors.New("embedder is not configured")
	}
	texts := make([]string, len(indices))
	for i, idx := range indices {
		texts[i] = strings.TrimSpace(out[idx].Content)
	}

	vectors, err := g.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed batch: %w", err)
	}
	if len(vectors) != len(texts) {
		return fmt.Errorf("embed batch: vectors/segments mismatch: %d/%d", len(vectors), len(texts))
	}
	for i, vector := range vectors {
		if len(vector) != g.dimension {
			return fmt.Errorf("embed batch: vector %d has dimension %d, expected %d", i, len(vector), g.dimension)
		}
	}
	for i, idx := range indices {
		vector := make([]float32, len(vectors[i]))
		copy(vector, vectors[i])
		out[idx].Embedding = vector
	}
	return nil
}
