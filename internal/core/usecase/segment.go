package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/duplicate-detector/internal/core/domain"
	"github.com/kirillkom/duplicate-detector/internal/core/ports"
)

type Segmenter struct {
	chunker ports.Chunker
	logger  *slog.Logger
}

func NewSegmenter(chunker ports.Chunker, logger *slog.Logger) *Segmenter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Segmenter{chunker: chunker, logger: logger}
}

// SegmentDocuments splits every document into segments. Documents are
// processed on the pool; a failing document falls back to sentence splitting
// and never affects the others. Output keeps document order.
func (s *Segmenter) SegmentDocuments(ctx context.Context, pool *WorkerPool, documents []domain.DocumentRecord) []domain.Segment {
	perDoc := make([][]domain.Segment, len(documents))
	pool.ForEach(ctx, len(documents), func(taskCtx context.Context, idx int) error {
		perDoc[idx] = s.segmentDocument(taskCtx, documents[idx])
		return nil
	}, func(idx int, err error) {
		s.logger.Error("segmentation_task_failed", "document_id", documents[idx].DocumentID, "error", err)
		perDoc[idx] = s.fallbackSegments(documents[idx])
	})

	total := 0
	for _, segs := range perDoc {
		total += len(segs)
	}
	out := make([]domain.Segment, 0, total)
	for _, segs := range perDoc {
		out = append(out, segs...)
	}
	return out
}

func (s *Segmenter) segmentDocument(ctx context.Context, doc domain.DocumentRecord) (segments []domain.Segment) {
	logger := s.logger.With("document_id", doc.DocumentID)
	if strings.TrimSpace(doc.CombinedContent) == "" {
		logger.Warn("document_empty_skip_segmentation")
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("semantic_split_panic", "panic", fmt.Sprint(r))
			segments = s.fallbackSegments(doc)
		}
	}()

	if s.chunker == nil {
		return s.fallbackSegments(doc)
	}
	chunks, err := s.chunker.Split(ctx, doc.CombinedContent)
	if err != nil {
		logger.Error("semantic_split_failed", "error", err)
		return s.fallbackSegments(doc)
	}

	segments = make([]domain.Segment, 0, len(chunks))
	cursor := 0
	for _, chunk := range chunks {
		content := strings.TrimSpace(chunk.Text)
		if content == "" {
			continue
		}
		offset := chunk.Offset
		if offset < 0 || offset >= len(doc.CombinedContent) || !strings.HasPrefix(doc.CombinedContent[offset:], content) {
			offset = locateExcerpt(doc.CombinedContent, content, cursor)
		}

		page := doc.FirstPage()
		if offset >= 0 {
			var found bool
			page, found = doc.PageAt(offset)
			if !found {
				logger.Warn("segment_page_not_found", "offset", offset, "fallback_page", page)
			}
			cursor = offset + len(content)
		} else {
			logger.Warn("segment_offset_not_found", "fallback_page", page)
		}

		chunkIndex := len(segments) + 1
		segments = append(segments, domain.Segment{
			ID:         fmt.Sprintf("doc_%s_page_%d_semantic_chunk_%d", doc.DocumentID, page, chunkIndex),
			DocumentID: doc.DocumentID,
			Page:       page,
			ChunkIndex: chunkIndex,
			Content:    content,
		})
	}
	logger.Debug("document_segmented", "segments", len(segments))
	return segments
}

// fallbackSegments turns every sentence into a segment attributed to the
// document's first page.
func (s *Segmenter) fallbackSegments(doc domain.DocumentRecord) []domain.Segment {
	sentences := domain.SplitSentences(doc.CombinedContent)
	page := doc.FirstPage()
	out := make([]domain.Segment, 0, len(sentences))
	for i, sentence := range sentences {
		out = append(out, domain.Segment{
			ID:         fmt.Sprintf("doc_%s_fallback_chunk_%d", doc.DocumentID, i+1),
			DocumentID: doc.DocumentID,
			Page:       page,
			ChunkIndex: i + 1,
			Content:    sentence.Text,
		})
	}
	s.logger.Info("document_fallback_segmented", "document_id", doc.DocumentID, "segments", len(out))
	return out
}

// locateExcerpt finds excerpt in content, preferring matches at or after
// cursor. Returns -1 when the excerpt does not occur verbatim.
func locateExcerpt(content, excerpt string, cursor int) int {
	if excerpt == "" {
		return -1
	}
	if cursor > 0 && cursor < len(content) {
		if idx := strings.Index(content[cursor:], excerpt); idx >= 0 {
			return cursor + idx
		}
	}
	return strings.Index(content, excerpt)
}
