package chunking

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// topicEmbedder maps each window onto an axis chosen by keyword so adjacent
// windows about the same topic are identical and topic changes are orthogonal.
type topicEmbedder struct {
	calls int
	err   error
}

func (e *topicEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		v := []float32{0, 0, 0}
		if strings.Contains(text, "cat") {
			v[0] = 1
		}
		if strings.Contains(text, "rocket") {
			v[1] = 1
		}
		if v[0] == 0 && v[1] == 0 {
			v[2] = 1
		}
		out = append(out, v)
	}
	return out, nil
}

func TestSemanticChunkerCutsOnTopicChange(t *testing.T) {
	text := "The cat sleeps. The cat purrs. The cat eats. The rocket launches. The rocket flies. The rocket lands."
	chunker := NewSemanticChunker(&topicEmbedder{}, Options{BreakpointPercentile: 50, BufferSize: 0, EmbedBatchSize: 2})

	chunks, err := chunker.Split(context.Background(), text)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %+v", len(chunks), chunks)
	}
	if chunks[0].Text != "The cat sleeps. The cat purrs. The cat eats." {
		t.Fatalf("unexpected first chunk %q", chunks[0].Text)
	}
	if text[chunks[1].Offset:chunks[1].Offset+len(chunks[1].Text)] != chunks[1].Text {
		t.Fatalf("chunk offset does not point at chunk text: %+v", chunks[1])
	}
	if !strings.HasPrefix(chunks[1].Text, "The rocket launches.") {
		t.Fatalf("unexpected second chunk %q", chunks[1].Text)
	}
}

func TestSemanticChunkerSingleSentenceSkipsEmbedding(t *testing.T) {
	embedder := &topicEmbedder{}
	chunker := NewSemanticChunker(embedder, Options{})

	chunks, err := chunker.Split(context.Background(), "  only one sentence here  ")
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(chunks) != 1 || chunks[0].Text != "only one sentence here" || chunks[0].Offset != 2 {
		t.Fatalf("unexpected chunks: %+v", chunks)
	}
	if embedder.calls != 0 {
		t.Fatalf("expected no embed calls, got %d", embedder.calls)
	}
}

func TestSemanticChunkerPropagatesEmbeddingError(t *testing.T) {
	chunker := NewSemanticChunker(&topicEmbedder{err: errors.New("embedding down")}, Options{})

	_, err := chunker.Split(context.Background(), "First sentence. Second sentence.")
	if err == nil || !strings.Contains(err.Error(), "embedding down") {
		t.Fatalf("expected embedding error, got %v", err)
	}
}

func TestPercentileInterpolates(t *testing.T) {
	got := percentile([]float64{4, 1, 3, 2}, 50)
	if got != 2.5 {
		t.Fatalf("expected 2.5, got %v", got)
	}
	if percentile([]float64{1, 2, 3}, 100) != 3 {
		t.Fatalf("expected max at 100th percentile")
	}
}
