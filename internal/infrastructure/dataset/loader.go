// Package dataset imports medical corpora from CSV, XLSX and PDF files into
// catalog documents ready for indexing.
package dataset

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/vietcare/medsearch/internal/core/domain"
)

// Load dispatches on the file extension.
func Load(path string) ([]domain.Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return LoadCSV(path)
	case ".xlsx":
		return LoadExcel(path)
	case ".pdf":
		return LoadPDF(path)
	default:
		return nil, fmt.Errorf("unsupported dataset format: %s", filepath.Ext(path))
	}
}

// columnAliases maps header names found in the wild to metadata fields.
var columnAliases = map[string]string{
	"disease_name": "disease_name",
	"disease":      "disease_name",
	"benh":         "disease_name",
	"symptoms":     "symptoms",
	"trieu_chung":  "symptoms",
	"treatment":    "treatment",
	"dieu_tri":     "treatment",
	"prevention":   "prevention",
	"phong_ngua":   "prevention",
	"causes":       "causes",
	"nguyen_nhan":  "causes",
	"description":  "description",
	"mo_ta":        "description",
	"source":       "source",
	"category":     "category",
	"text":         "text",
	"id":           "id",
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

// rowToDocument builds a document from a header-indexed row. The text column
// wins when present; otherwise the text is composed from disease name and
// description the way the original corpus was built.
func rowToDocument(header []string, row []string) (domain.Document, bool) {
	var doc domain.Document
	for i, col := range header {
		if i >= len(row) {
			break
		}
		value := strings.TrimSpace(row[i])
		if value == "" {
			continue
		}
		field, ok := columnAliases[normalizeHeader(col)]
		if !ok {
			continue
		}
		switch field {
		case "id":
			doc.ID = value
		case "text":
			doc.Text = value
		case "disease_name":
			doc.Metadata.DiseaseName = value
		case "symptoms":
			doc.Metadata.Symptoms = value
		case "treatment":
			doc.Metadata.Treatment = value
		case "prevention":
			doc.Metadata.Prevention = value
		case "causes":
			doc.Metadata.Causes = value
		case "description":
			doc.Metadata.Description = value
		case "source":
			doc.Metadata.Source = value
		case "category":
			doc.Metadata.Category = value
		}
	}

	if doc.Text == "" {
		parts := make([]string, 0, 2)
		if doc.Metadata.DiseaseName != "" {
			parts = append(parts, doc.Metadata.DiseaseName)
		}
		if doc.Metadata.Description != "" {
			parts = append(parts, doc.Metadata.Description)
		}
		doc.Text = strings.Join(parts, ". ")
	}
	if strings.TrimSpace(doc.Text) == "" {
		return domain.Document{}, false
	}
	return doc, true
}
