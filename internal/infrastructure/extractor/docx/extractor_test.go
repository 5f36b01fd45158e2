package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/kirillkom/duplicate-detector/internal/core/domain"
)

const documentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>Payment is due</w:t></w:r><w:r><w:t xml:space="preserve"> in 30 days.</w:t></w:r></w:p>
<w:p></w:p>
<w:tbl><w:tr><w:tc><w:p><w:r><w:t>Cell text</w:t></w:r></w:p></w:tc></w:tr></w:tbl>
<w:p><w:r><w:br w:type="page"/></w:r></w:p>
<w:p><w:r><w:br w:type="page"/></w:r></w:p>
<w:p><w:r><w:t>Third page</w:t><w:tab/><w:t>clause</w:t></w:r></w:p>
</w:body>
</w:document>`

func wordFile(t *testing.T, parts map[string]string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	archive := zip.NewWriter(&buf)
	for name, content := range parts {
		w, err := archive.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := archive.Close(); err != nil {
		t.Fatalf("close archive: %v", err)
	}
	return &buf
}

func TestExtractPagesSplitsOnPageBreaks(t *testing.T) {
	body := wordFile(t, map[string]string{"word/document.xml": documentXML})

	pages, err := NewExtractor().ExtractPages(context.Background(), "7", "contract.docx", body)
	if err != nil {
		t.Fatalf("ExtractPages() error = %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("expected 2 non-empty pages, got %+v", pages)
	}
	if pages[0].Page != 1 || pages[0].Content != "Payment is due in 30 days.\nCell text" {
		t.Fatalf("unexpected first page %+v", pages[0])
	}
	if pages[1].Page != 3 || pages[1].Content != "Third page\tclause" || pages[1].DocumentID != "7" {
		t.Fatalf("unexpected last page %+v", pages[1])
	}
}

func TestExtractPagesRejectsNonArchive(t *testing.T) {
	_, err := NewExtractor().ExtractPages(context.Background(), "1", "fake.docx", strings.NewReader("not a zip"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestExtractPagesRequiresDocumentPart(t *testing.T) {
	body := wordFile(t, map[string]string{"word/styles.xml": "<w:styles/>"})
	_, err := NewExtractor().ExtractPages(context.Background(), "1", "broken.docx", body)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestExtractPagesEmptyDocument(t *testing.T) {
	body := wordFile(t, map[string]string{"word/document.xml": `<w:document xmlns:w="x"><w:body><w:p/></w:body></w:document>`})
	_, err := NewExtractor().ExtractPages(context.Background(), "1", "blank.docx", body)
	if !domain.IsKind(err, domain.ErrEmptyInput) {
		t.Fatalf("expected empty input, got %v", err)
	}
}
