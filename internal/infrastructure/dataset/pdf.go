package dataset

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/vietcare/medsearch/internal/core/domain"
)

// LoadPDF extracts plain text from a medical leaflet, one document per page.
// Pages without extractable text are skipped (scanned pages need OCR, which
// is out of scope here).
func LoadPDF(path string) ([]domain.Document, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	docs := make([]domain.Document, 0, reader.NumPage())
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", pageNum, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		docs = append(docs, domain.Document{
			Text: text,
			Metadata: domain.Metadata{
				Source:      path,
				Description: fmt.Sprintf("%s trang %d", name, pageNum),
			},
		})
	}
	return docs, nil
}
