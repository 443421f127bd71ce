package ingest

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ReadPDF extracts per-page text from a reference document. Pages that
// fail to decode are skipped rather than failing the whole document; a
// scanned page without a text layer yields nothing useful anyway.
func ReadPDF(path string) ([]DocumentSegment, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	total := r.NumPage()
	segments := make([]DocumentSegment, 0, total)
	for pageNum := 1; pageNum <= total; pageNum++ {
		page := r.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		segments = append(segments, DocumentSegment{
			Text:    text,
			Locator: fmt.Sprintf("page %d", pageNum),
		})
	}
	return segments, nil
}
