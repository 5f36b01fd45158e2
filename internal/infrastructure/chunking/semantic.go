package chunking

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kirillkom/duplicate-detector/internal/core/domain"
	"github.com/kirillkom/duplicate-detector/internal/core/ports"
)

const (
	defaultBreakpointPercentile = 95.0
	defaultBufferSize           = 1
	defaultEmbedBatchSize       = 10
)

// SemanticChunker groups consecutive sentences and cuts where the embedding
// distance between neighbouring sentence windows exceeds a percentile of all
// such distances.
type SemanticChunker struct {
	embedder   ports.Embedder
	percentile float64
	bufferSize int
	batchSize  int
}

type Options struct {
	BreakpointPercentile float64
	BufferSize           int
	EmbedBatchSize       int
}

func NewSemanticChunker(embedder ports.Embedder, opts Options) *SemanticChunker {
	if opts.BreakpointPercentile <= 0 || opts.BreakpointPercentile > 100 {
		opts.BreakpointPercentile = defaultBreakpointPercentile
	}
	if opts.BufferSize < 0 {
		opts.BufferSize = defaultBufferSize
	}
	if opts.EmbedBatchSize <= 0 {
		opts.EmbedBatchSize = defaultEmbedBatchSize
	}
	return &SemanticChunker{
		embedder:   embedder,
		percentile: opts.BreakpointPercentile,
		bufferSize: opts.BufferSize,
		batchSize:  opts.EmbedBatchSize,
	}
}

// Split returns chunks that are exact substrings of text with their offsets.
// Any embedding failure is returned so callers can fall back.
func (c *SemanticChunker) Split(ctx context.Context, text string) ([]domain.TextChunk, error) {
	sentences := domain.SplitSentences(text)
	if len(sentences) <= 1 {
		return sentences, nil
	}
	if c.embedder == nil {
		return nil, fmt.Errorf("semantic chunker: embedder is not configured")
	}

	windows := c.sentenceWindows(sentences)
	vectors, err := c.embedWindows(ctx, windows)
	if err != nil {
		return nil, err
	}

	distances := make([]float64, 0, len(vectors)-1)
	for i := 0; i < len(vectors)-1; i++ {
		distances = append(distances, 1-domain.CosineSimilarity(vectors[i], vectors[i+1]))
	}
	threshold := percentile(distances, c.percentile)

	out := make([]domain.TextChunk, 0, 4)
	groupStart := 0
	for i, distance := range distances {
		if distance > threshold {
			out = append(out, joinSentences(text, sentences[groupStart:i+1]))
			groupStart = i + 1
		}
	}
	if groupStart < len(sentences) {
		out = append(out, joinSentences(text, sentences[groupStart:]))
	}
	return out, nil
}

func (c *SemanticChunker) sentenceWindows(sentences []domain.TextChunk) []string {
	windows := make([]string, len(sentences))
	for i := range sentences {
		from := i - c.bufferSize
		if from < 0 {
			from = 0
		}
		to := i + c.bufferSize
		if to > len(sentences)-1 {
			to = len(sentences) - 1
		}
		parts := make([]string, 0, to-from+1)
		for j := from; j <= to; j++ {
			parts = append(parts, sentences[j].Text)
		}
		windows[i] = strings.Join(parts, " ")
	}
	return windows
}

func (c *SemanticChunker) embedWindows(ctx context.Context, windows []string) ([][]float32, error) {
	out := make([][]float32, 0, len(windows))
	for start := 0; start < len(windows); start += c.batchSize {
		end := start + c.batchSize
		if end > len(windows) {
			end = len(windows)
		}
		vectors, err := c.embedder.Embed(ctx, windows[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed sentence windows: %w", err)
		}
		if len(vectors) != end-start {
			return nil, fmt.Errorf("embed sentence windows: vectors/windows mismatch: %d/%d", len(vectors), end-start)
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func joinSentences(text string, group []domain.TextChunk) domain.TextChunk {
	first := group[0]
	last := group[len(group)-1]
	return domain.TextChunk{
		Text:   text[first.Offset : last.Offset+len(last.Text)],
		Offset: first.Offset,
	}
}

// percentile uses linear interpolation between closest ranks.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(rank)
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}
