package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kirillkom/duplicate-detector/internal/core/domain"
)

const (
	maxDocumentBytes = 64 << 20
	bodyPart         = "word/document.xml"
)

// Extractor reads the main document part of a Word file. Paragraphs, table
// cells included, become lines; a hard page break starts the next page.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) ExtractPages(ctx context.Context, documentID, filename string, body io.Reader) ([]domain.PageInput, error) {
	raw, err := io.ReadAll(io.LimitReader(body, maxDocumentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read docx: %w", err)
	}
	if len(raw) > maxDocumentBytes {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract docx", fmt.Errorf("%s exceeds %d bytes", filename, maxDocumentBytes))
	}

	archive, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract docx", fmt.Errorf("open %s: %w", filename, err))
	}
	part, err := archive.Open(bodyPart)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract docx", fmt.Errorf("%s has no %s: %w", filename, bodyPart, err))
	}
	defer part.Close()

	texts, err := splitPages(ctx, part)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract docx", fmt.Errorf("decode %s: %w", filename, err))
	}

	pages := make([]domain.PageInput, 0, len(texts))
	for idx, text := range texts {
		if text == "" {
			continue
		}
		pages = append(pages, domain.PageInput{DocumentID: documentID, Page: idx + 1, Content: text})
	}
	if len(pages) == 0 {
		return nil, domain.WrapError(domain.ErrEmptyInput, "extract docx", errors.New("no paragraph text found in "+filename))
	}
	return pages, nil
}

func splitPages(ctx context.Context, r io.Reader) ([]string, error) {
	decoder := xml.NewDecoder(r)
	var (
		pages     []string
		lines     []string
		paragraph strings.Builder
		inText    bool
	)
	endParagraph := func() {
		if line := strings.TrimSpace(paragraph.String()); line != "" {
			lines = append(lines, line)
		}
		paragraph.Reset()
	}
	endPage := func() {
		endParagraph()
		pages = append(pages, strings.Join(lines, "\n"))
		lines = lines[:0]
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				paragraph.WriteByte('\t')
			case "br":
				if isPageBreak(t) {
					endPage()
				} else {
					paragraph.WriteByte(' ')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				endParagraph()
			}
		case xml.CharData:
			if inText {
				paragraph.Write(t)
			}
		}
	}
	endPage()
	return pages, nil
}

func isPageBreak(el xml.StartElement) bool {
	for _, attr := range el.Attr {
		if attr.Name.Local == "type" && attr.Value == "page" {
			return true
		}
	}
	return false
}
