package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kirillkom/duplicate-detector/internal/core/domain"
)

// paragraphChunker splits on blank lines and can be told to fail or panic for
// specific inputs.
type paragraphChunker struct {
	failOn      string
	panicOn     string
	dropOffsets bool
}

func (c *paragraphChunker) Split(_ context.Context, text string) ([]domain.TextChunk, error) {
	if c.failOn != "" && strings.Contains(text, c.failOn) {
		return nil, errors.New("embedding capability unavailable")
	}
	if c.panicOn != "" && strings.Contains(text, c.panicOn) {
		panic("chunker exploded")
	}
	out := make([]domain.TextChunk, 0)
	offset := 0
	for _, part := range strings.Split(text, domain.PageDelimiter) {
		chunk := domain.TextChunk{Text: part, Offset: offset}
		if c.dropOffsets {
			chunk.Offset = -1
		}
		out = append(out, chunk)
		offset += len(part) + len(domain.PageDelimiter)
	}
	return out, nil
}

func aggregateForTest(t *testing.T, pages []domain.PageInput) []domain.DocumentRecord {
	t.Helper()
	docs, _, err := AggregatePages(pages, nil)
	require.NoError(t, err)
	return docs
}

func TestSegmentDocumentsAttributesPages(t *testing.T) {
	docs := aggregateForTest(t, []domain.PageInput{
		{DocumentID: "a", Page: 3, Content: "third page text"},
		{DocumentID: "a", Page: 1, Content: "first page text"},
		{DocumentID: "b", Page: 2, Content: "only page of b"},
	})

	for _, dropOffsets := range []bool{false, true} {
		segmenter := NewSegmenter(&paragraphChunker{dropOffsets: dropOffsets}, nil)
		segments := segmenter.SegmentDocuments(context.Background(), NewWorkerPool(2), docs)

		require.Len(t, segments, 3)
		require.Equal(t, "a", segments[0].DocumentID)
		require.Equal(t, 1, segments[0].Page)
		require.Equal(t, "first page text", segments[0].Content)
		require.Equal(t, 3, segments[1].Page)
		require.Equal(t, 2, segments[1].ChunkIndex)
		require.Equal(t, "doc_a_page_3_semantic_chunk_2", segments[1].ID)
		require.Equal(t, "b", segments[2].DocumentID)
		require.Equal(t, 2, segments[2].Page)
		require.Equal(t, 1, segments[2].ChunkIndex)
	}
}

func TestSegmentDocumentsFallbackIsPerDocument(t *testing.T) {
	docs := aggregateForTest(t, []domain.PageInput{
		{DocumentID: "a", Page: 1, Content: "healthy document"},
		{DocumentID: "b", Page: 4, Content: "broken one. Second sentence."},
		{DocumentID: "b", Page: 5, Content: "later page."},
		{DocumentID: "c", Page: 1, Content: "panicking text"},
	})
	segmenter := NewSegmenter(&paragraphChunker{failOn: "broken", panicOn: "panicking"}, nil)

	segments := segmenter.SegmentDocuments(context.Background(), NewWorkerPool(4), docs)

	byDoc := map[string][]domain.Segment{}
	for _, seg := range segments {
		byDoc[seg.DocumentID] = append(byDoc[seg.DocumentID], seg)
	}
	require.Len(t, byDoc["a"], 1)
	require.Equal(t, "doc_a_page_1_semantic_chunk_1", byDoc["a"][0].ID)

	require.Len(t, byDoc["b"], 3)
	for _, seg := range byDoc["b"] {
		require.Equal(t, 4, seg.Page, "fallback segments are attributed to the first page")
	}
	require.Equal(t, "doc_b_fallback_chunk_1", byDoc["b"][0].ID)
	require.Equal(t, "Second sentence.", byDoc["b"][1].Content)

	require.Len(t, byDoc["c"], 1)
	require.Equal(t, "doc_c_fallback_chunk_1", byDoc["c"][0].ID)
}

func TestSegmentDocumentsPagesBelongToDocument(t *testing.T) {
	docs := aggregateForTest(t, []domain.PageInput{
		{DocumentID: "x", Page: 7, Content: "alpha\n\nbeta"},
		{DocumentID: "x", Page: 9, Content: "   "},
		{DocumentID: "y", Page: 2, Content: "gamma"},
		{DocumentID: "y", Page: 8, Content: "delta"},
	})
	segments := NewSegmenter(&paragraphChunker{}, nil).SegmentDocuments(context.Background(), nil, docs)

	pages := map[string]map[int]string{}
	for _, doc := range docs {
		pages[doc.DocumentID] = doc.Pages
	}
	require.NotEmpty(t, segments)
	for _, seg := range segments {
		_, ok := pages[seg.DocumentID][seg.Page]
		require.Truef(t, ok, "segment %s attributed to page %d outside its document", seg.ID, seg.Page)
		require.NotEmpty(t, strings.TrimSpace(seg.Content))
	}
}

func TestLocateExcerptPrefersCursor(t *testing.T) {
	content := "repeat. other. repeat."
	require.Equal(t, 0, locateExcerpt(content, "repeat.", 0))
	require.Equal(t, 15, locateExcerpt(content, "repeat.", 7))
	require.Equal(t, -1, locateExcerpt(content, "missing", 0))
}
