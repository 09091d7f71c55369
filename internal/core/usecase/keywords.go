package usecase

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// Lexicon maps medical keyword categories to the Vietnamese terms that
// trigger them. Each category corresponds to one metadata field used for the
// domain boost.
type Lexicon struct {
	Symptoms   []string `yaml:"symptoms"`
	Disease    []string `yaml:"disease"`
	Treatment  []string `yaml:"treatment"`
	Prevention []string `yaml:"prevention"`
}

// lexiconCategory binds a lexicon term list to the metadata field it attests.
type lexiconCategory struct {
	name  string
	field string
	terms []string
}

// DefaultLexicon returns the built-in Vietnamese medical term lists.
func DefaultLexicon() Lexicon {
	return Lexicon{
		Symptoms: []string{
			"triệu chứng", "dấu hiệu", "biểu hiện", "sốt", "ho", "đau",
			"ngứa", "mệt", "buồn nôn", "chóng mặt", "phát ban",
		},
		Disease: []string{
			"bệnh", "sốt xuất huyết", "cúm", "viêm", "tiểu đường",
			"cao huyết áp", "ung thư", "hen suyễn",
		},
		Treatment: []string{
			"điều trị", "chữa", "thuốc", "uống", "dùng", "khám", "bác sĩ",
		},
		Prevention: []string{
			"phòng ngừa", "tránh", "vệ sinh", "vắc-xin", "tiêm chủng", "phòng bệnh",
		},
	}
}

// LoadLexiconFile reads a YAML lexicon. Missing categories keep the built-in
// defaults so an override file only needs the lists it changes.
func LoadLexiconFile(path string) (Lexicon, error) {
	lex := DefaultLexicon()
	data, err := os.ReadFile(path)
	if err != nil {
		return lex, fmt.Errorf("read lexicon file: %w", err)
	}

	var loaded Lexicon
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return lex, fmt.Errorf("parse lexicon yaml: %w", err)
	}

	if len(loaded.Symptoms) > 0 {
		lex.Symptoms = loaded.Symptoms
	}
	if len(loaded.Disease) > 0 {
		lex.Disease = loaded.Disease
	}
	if len(loaded.Treatment) > 0 {
		lex.Treatment = loaded.Treatment
	}
	if len(loaded.Prevention) > 0 {
		lex.Prevention = loaded.Prevention
	}
	return lex, nil
}

func (l Lexicon) categories() []lexiconCategory {
	return []lexiconCategory{
		{name: "symptoms", field: "symptoms", terms: l.Symptoms},
		{name: "disease", field: "disease_name", terms: l.Disease},
		{name: "treatment", field: "treatment", terms: l.Treatment},
		{name: "prevention", field: "prevention", terms: l.Prevention},
	}
}

// triggeredCategories returns the categories whose terms appear in the query.
func (l Lexicon) triggeredCategories(query string) []lexiconCategory {
	q := normalizeVietnamese(query)
	out := make([]lexiconCategory, 0, 4)
	for _, cat := range l.categories() {
		if containsAnyTerm(q, cat.terms) {
			out = append(out, cat)
		}
	}
	return out
}

func containsAnyTerm(normalized string, terms []string) bool {
	for _, term := range terms {
		if term == "" {
			continue
		}
		if strings.Contains(normalized, normalizeVietnamese(term)) {
			return true
		}
	}
	return false
}

// normalizeVietnamese lowercases and collapses punctuation to spaces while
// keeping diacritics intact; tone marks are significant in Vietnamese.
func normalizeVietnamese(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
