package domain

// PageDelimiter separates page contents inside DocumentRecord.CombinedContent.
const PageDelimiter = "\n\n"

// PageInput is one page of extracted text as delivered by ingestion.
type PageInput struct {
	DocumentID string `json:"documentId"`
	Page       int    `json:"page"`
	Content    string `json:"content"`
}

// PageSpan is the byte range [Start, End) a page occupies in CombinedContent.
type PageSpan struct {
	Start int `json:"start"`
	End   int `json:"end"`
	Page  int `json:"page"`
}

// DocumentRecord is every page of one document, ordered by page number and
// concatenated with PageDelimiter.
type DocumentRecord struct {
	DocumentID      string         `json:"document_id"`
	CombinedContent string         `json:"combined_content"`
	Pages           map[int]string `json:"pages"`
	PageOrder       []int          `json:"page_order"`
	Spans           []PageSpan     `json:"spans"`
}

// FirstPage returns the lowest page number contributed to the document.
func (d DocumentRecord) FirstPage() int {
	if len(d.PageOrder) == 0 {
		return 1
	}
	return d.PageOrder[0]
}

func (d DocumentRecord) HasPage(page int) bool {
	_, ok := d.Pages[page]
	return ok
}

// PageAt returns the page whose span contains offset. The first containing
// span wins; ok is false when offset falls outside every span.
func (d DocumentRecord) PageAt(offset int) (int, bool) {
	for _, span := range d.Spans {
		if offset >= span.Start && offset < span.End {
			return span.Page, true
		}
	}
	return d.FirstPage(), false
}
