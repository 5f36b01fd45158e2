package domain

// TextChunk is a piece of a document's combined content. Offset is the byte
// offset of Text inside the source string, or -1 when the chunker could not
// preserve it.
type TextChunk struct {
	Text   string
	Offset int
}

type Segment struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Page       int       `json:"page"`
	ChunkIndex int       `json:"chunk_index"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"embedding,omitempty"`
}

// HasEmbedding reports whether the embedding stage assigned a vector,
// including a zero sentinel.
func (s Segment) HasEmbedding() bool {
	return len(s.Embedding) > 0
}

// IsSentinel reports whether the segment carries the zero vector used to mark
// a failed embedding call.
func (s Segment) IsSentinel() bool {
	return s.HasEmbedding() && IsZeroVector(s.Embedding)
}

func IsZeroVector(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// ZeroVector builds the sentinel embedding of the given dimension.
func ZeroVector(dimension int) []float32 {
	if dimension < 0 {
		dimension = 0
	}
	return make([]float32, dimension)
}

type Cluster struct {
	Segments []Segment `json:"segments"`
}

// DocumentIDs returns the distinct document ids in first-seen order.
func (c Cluster) DocumentIDs() []string {
	seen := make(map[string]struct{}, len(c.Segments))
	out := make([]string, 0, len(c.Segments))
	for _, seg := range c.Segments {
		if _, ok := seen[seg.DocumentID]; ok {
			continue
		}
		seen[seg.DocumentID] = struct{}{}
		out = append(out, seg.DocumentID)
	}
	return out
}

// IsMultiDocument reports whether the cluster spans at least two documents.
func (c Cluster) IsMultiDocument() bool {
	return len(c.DocumentIDs()) >= 2
}

func (c Cluster) HasSentinel() bool {
	for _, seg := range c.Segments {
		if seg.IsSentinel() {
			return true
		}
	}
	return false
}
