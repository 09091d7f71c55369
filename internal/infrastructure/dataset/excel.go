package dataset

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/vietcare/medsearch/internal/core/domain"
)

// LoadExcel reads the first sheet of an .xlsx workbook, treating the first
// row as the header.
func LoadExcel(path string) ([]domain.Document, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("xlsx has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("sheet %s has no data rows", sheets[0])
	}

	header := rows[0]
	docs := make([]domain.Document, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if doc, ok := rowToDocument(header, row); ok {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}
