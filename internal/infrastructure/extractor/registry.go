package extractor

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kirillkom/duplicate-detector/internal/core/domain"
	"github.com/kirillkom/duplicate-detector/internal/core/ports"
	"github.com/kirillkom/duplicate-detector/internal/infrastructure/extractor/docx"
	"github.com/kirillkom/duplicate-detector/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/duplicate-detector/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/duplicate-detector/internal/infrastructure/extractor/xlsx"
)

// Registry dispatches extraction by lower-cased file extension.
type Registry struct {
	byExt map[string]ports.PageExtractor
}

func NewRegistry() *Registry {
	text := plaintext.NewExtractor()
	return &Registry{byExt: map[string]ports.PageExtractor{
		".txt":  text,
		".md":   text,
		".json": text,
		".csv":  text,
		".pdf":  pdf.NewExtractor(),
		".docx": docx.NewExtractor(),
		".xlsx": xlsx.NewExtractor(),
	}}
}

func (r *Registry) Register(ext string, extractor ports.PageExtractor) {
	r.byExt[normalizeExt(ext)] = extractor
}

func (r *Registry) Supported() []string {
	out := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) ExtractPages(ctx context.Context, documentID, filename string, body io.Reader) ([]domain.PageInput, error) {
	ext := normalizeExt(filepath.Ext(filename))
	extractor, ok := r.byExt[ext]
	if !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract pages",
			fmt.Errorf("unsupported file type %q (supported: %s)", ext, strings.Join(r.Supported(), ", ")))
	}
	pages, err := extractor.ExtractPages(ctx, documentID, filename, body)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", filename, err)
	}
	return pages, nil
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
