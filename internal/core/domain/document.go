package domain

import "strings"

// Metadata carries the structured fields of a medical knowledge document.
// All fields are optional; empty strings mean "not provided".
type Metadata struct {
	DiseaseName string `json:"disease_name,omitempty" yaml:"disease_name"`
	Symptoms    string `json:"symptoms,omitempty" yaml:"symptoms"`
	Treatment   string `json:"treatment,omitempty" yaml:"treatment"`
	Prevention  string `json:"prevention,omitempty" yaml:"prevention"`
	Causes      string `json:"causes,omitempty" yaml:"causes"`
	Description string `json:"description,omitempty" yaml:"description"`
	Source      string `json:"source,omitempty" yaml:"source"`
	Category    string `json:"category,omitempty" yaml:"category"`
}

// Document is one unit of retrievable medical knowledge. ID is unique across
// the corpus; upserting an existing ID overwrites the previous version.
type Document struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

// Field resolves a metadata field by its wire name. Unknown names resolve to
// an empty string.
func (m Metadata) Field(name string) string {
	switch name {
	case "disease_name":
		return m.DiseaseName
	case "symptoms":
		return m.Symptoms
	case "treatment":
		return m.Treatment
	case "prevention":
		return m.Prevention
	case "causes":
		return m.Causes
	case "description":
		return m.Description
	case "source":
		return m.Source
	case "category":
		return m.Category
	default:
		return ""
	}
}

// contentFieldNames are the metadata fields that carry medical content, as
// opposed to provenance (source) and taxonomy (category).
var contentFieldNames = []string{"symptoms", "treatment", "prevention", "causes", "description"}

// ContentFieldCount reports how many content-bearing metadata fields are
// non-empty. Used by the deduplication rubric.
func (m Metadata) ContentFieldCount() int {
	n := 0
	for _, name := range contentFieldNames {
		if strings.TrimSpace(m.Field(name)) != "" {
			n++
		}
	}
	return n
}

// SearchableText joins the document body with every content field so the
// keyword index sees symptoms/treatment terms that only live in metadata.
func (d Document) SearchableText() string {
	parts := make([]string, 0, 8)
	if d.Text != "" {
		parts = append(parts, d.Text)
	}
	for _, v := range []string{
		d.Metadata.DiseaseName,
		d.Metadata.Symptoms,
		d.Metadata.Treatment,
		d.Metadata.Prevention,
		d.Metadata.Causes,
		d.Metadata.Description,
	} {
		if v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}
