package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/vietcare/medsearch/internal/core/domain"
)

// LoadCSV reads a header-first CSV file. Rows with no usable text are
// skipped, not fatal: exported datasets often carry ragged tails.
func LoadCSV(path string) ([]domain.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	return readCSV(f)
}

func readCSV(r io.Reader) ([]domain.Document, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("csv has no header row")
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	// Strip a UTF-8 BOM left by spreadsheet exports.
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}

	docs := make([]domain.Document, 0, 128)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		if doc, ok := rowToDocument(header, row); ok {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}
