// Package bm25 implements the in-process lexical index used as the keyword
// side of hybrid retrieval. Every api replica holds its own copy, rebuilt
// from the catalog on startup and on corpus-updated events.
package bm25

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/vietcare/medsearch/internal/core/domain"
)

const (
	k1 = 1.5
	b  = 0.75
)

// vietnameseStopWords are high-frequency function words that carry no
// retrieval signal. Tone marks are kept everywhere else.
var vietnameseStopWords = map[string]struct{}{
	"là": {}, "của": {}, "và": {}, "có": {}, "được": {}, "này": {}, "đó": {},
	"các": {}, "cho": {}, "từ": {}, "với": {}, "một": {}, "những": {},
	"trong": {}, "để": {}, "khi": {}, "bị": {}, "bởi": {}, "về": {},
	"theo": {}, "như": {}, "đã": {}, "sẽ": {}, "thì": {}, "hoặc": {},
	"nhưng": {}, "mà": {},
}

type indexedDoc struct {
	id       string
	text     string
	metadata domain.Metadata
	termFreq map[string]int
	length   int
}

// Index is a BM25 Okapi index over the whole corpus. Document frequencies
// are corpus-global, so the only write operation is a full Rebuild; reads
// proceed concurrently against the last completed snapshot.
type Index struct {
	mu        sync.RWMutex
	docs      []indexedDoc
	docFreq   map[string]int
	avgLength float64
}

func NewIndex() *Index {
	return &Index{docFreq: map[string]int{}}
}

// Rebuild replaces the index contents with the given corpus snapshot.
func (x *Index) Rebuild(_ context.Context, docs []domain.Document) error {
	indexed := make([]indexedDoc, 0, len(docs))
	docFreq := make(map[string]int, 256)
	totalLength := 0

	for _, d := range docs {
		tokens := tokenize(d.SearchableText())
		tf := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
		}
		for term := range tf {
			docFreq[term]++
		}
		totalLength += len(tokens)
		indexed = append(indexed, indexedDoc{
			id:       d.ID,
			text:     d.Text,
			metadata: d.Metadata,
			termFreq: tf,
			length:   len(tokens),
		})
	}

	avg := 0.0
	if len(indexed) > 0 {
		avg = float64(totalLength) / float64(len(indexed))
	}

	x.mu.Lock()
	x.docs = indexed
	x.docFreq = docFreq
	x.avgLength = avg
	x.mu.Unlock()

	slog.Debug("bm25_rebuilt", "documents", len(indexed), "terms", len(docFreq))
	return nil
}

// Query scores the corpus against the query terms and returns the topN
// positive matches. Raw BM25 scores are unbounded, so the page is normalized
// by its own maximum to land in [0,1] before mixing with vector scores.
func (x *Index) Query(_ context.Context, text string, topN int) ([]domain.Hit, error) {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil, nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()
	if len(x.docs) == 0 {
		return nil, nil
	}

	type scored struct {
		idx   int
		score float64
	}
	page := make([]scored, 0, len(x.docs))
	for i := range x.docs {
		s := x.scoreLocked(&x.docs[i], tokens)
		if s > 0 {
			page = append(page, scored{idx: i, score: s})
		}
	}
	if len(page) == 0 {
		return nil, nil
	}

	sort.Slice(page, func(i, j int) bool {
		if page[i].score != page[j].score {
			return page[i].score > page[j].score
		}
		return x.docs[page[i].idx].id < x.docs[page[j].idx].id
	})
	if topN > 0 && len(page) > topN {
		page = page[:topN]
	}

	maxScore := page[0].score
	hits := make([]domain.Hit, 0, len(page))
	for _, p := range page {
		d := &x.docs[p.idx]
		hits = append(hits, domain.Hit{
			ID:       d.id,
			Text:     d.text,
			Metadata: d.metadata,
			Score:    p.score / maxScore,
		})
	}
	return hits, nil
}

// Size reports how many documents the current snapshot holds.
func (x *Index) Size() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.docs)
}

func (x *Index) scoreLocked(d *indexedDoc, tokens []string) float64 {
	if d.length == 0 {
		return 0
	}
	n := float64(len(x.docs))
	lengthNorm := 1 - b + b*float64(d.length)/x.avgLength

	score := 0.0
	for _, term := range tokens {
		tf := float64(d.termFreq[term])
		if tf == 0 {
			continue
		}
		df := float64(x.docFreq[term])
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		score += idf * (tf * (k1 + 1)) / (tf + k1*lengthNorm)
	}
	return score
}

// tokenize lowercases, splits on anything that is not a letter or digit and
// drops stop words and single-rune tokens. Diacritics survive: tone marks
// distinguish words in Vietnamese.
func tokenize(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 32)
	var sb strings.Builder
	flush := func() {
		if sb.Len() == 0 {
			return
		}
		tok := sb.String()
		sb.Reset()
		if len([]rune(tok)) < 2 {
			return
		}
		if _, stop := vietnameseStopWords[tok]; stop {
			return
		}
		out = append(out, tok)
	}
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(unicode.ToLower(r))
			continue
		}
		flush()
	}
	flush()
	return out
}
