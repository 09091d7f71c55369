package usecase

import (
	"sort"
	"sync"

	"github.com/vietcare/medsearch/internal/core/domain"
)

// candidateAccumulator merges hits from both indexes across all expanded
// queries. Per source it keeps the MAX score seen for a document: a strong
// match on one paraphrasing must not be diluted by weak matches on others.
// Max-aggregation also makes the merge independent of arrival order, which
// matters because expansions are dispatched concurrently.
type candidateAccumulator struct {
	mu sync.Mutex

	byID map[string]*domain.Candidate

	vectorOK    int
	vectorFail  int
	keywordOK   int
	keywordFail int

	lastVectorErr  error
	lastKeywordErr error
}

func newCandidateAccumulator() *candidateAccumulator {
	return &candidateAccumulator{byID: make(map[string]*domain.Candidate, 64)}
}

func (a *candidateAccumulator) addVectorHits(hits []domain.Hit) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.vectorOK++
	for _, hit := range hits {
		c := a.candidateFor(hit)
		if hit.Score > c.VectorScore {
			c.VectorScore = hit.Score
		}
	}
}

func (a *candidateAccumulator) addKeywordHits(hits []domain.Hit) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keywordOK++
	for _, hit := range hits {
		c := a.candidateFor(hit)
		if hit.Score > c.KeywordScore {
			c.KeywordScore = hit.Score
		}
	}
}

func (a *candidateAccumulator) recordVectorError(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.vectorFail++
	a.lastVectorErr = err
}

func (a *candidateAccumulator) recordKeywordError(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keywordFail++
	a.lastKeywordErr = err
}

// candidateFor must be called with the lock held.
func (a *candidateAccumulator) candidateFor(hit domain.Hit) *domain.Candidate {
	if c, ok := a.byID[hit.ID]; ok {
		if c.Text == "" && hit.Text != "" {
			c.Text = hit.Text
		}
		if (c.Metadata == domain.Metadata{}) && (hit.Metadata != domain.Metadata{}) {
			c.Metadata = hit.Metadata
		}
		return c
	}
	c := &domain.Candidate{
		ID:       hit.ID,
		Text:     hit.Text,
		Metadata: hit.Metadata,
	}
	a.byID[hit.ID] = c
	return c
}

func (a *candidateAccumulator) vectorUnavailable() bool {
	return a.vectorOK == 0 && a.vectorFail > 0
}

func (a *candidateAccumulator) keywordUnavailable() bool {
	return a.keywordOK == 0 && a.keywordFail > 0
}

// scoreCandidates applies the blended formula and the domain boost, then
// returns the candidates sorted descending by final score with ties broken
// by document id for a deterministic order.
func scoreCandidates(acc *candidateAccumulator, cfg RetrievalConfig, lex Lexicon, query string) []domain.Candidate {
	triggered := lex.triggeredCategories(query)

	out := make([]domain.Candidate, 0, len(acc.byID))
	for _, c := range acc.byID {
		c.DomainBoost = domainBoost(c.Metadata, triggered, cfg.BoostStep, cfg.BoostCap)
		c.FinalScore = cfg.VectorWeight*c.VectorScore + cfg.KeywordWeight*c.KeywordScore + c.DomainBoost
		out = append(out, *c)
	}

	sortCandidates(out)
	return out
}

func sortCandidates(cands []domain.Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].FinalScore != cands[j].FinalScore {
			return cands[i].FinalScore > cands[j].FinalScore
		}
		return cands[i].ID < cands[j].ID
	})
}

// domainBoost adds a fixed step for every query-triggered category whose
// metadata field also attests the category's vocabulary, capped.
func domainBoost(meta domain.Metadata, triggered []lexiconCategory, step, boostCap float64) float64 {
	boost := 0.0
	for _, cat := range triggered {
		field := meta.Field(cat.field)
		if field == "" {
			continue
		}
		if containsAnyTerm(normalizeVietnamese(field), cat.terms) {
			boost += step
		}
	}
	if boost > boostCap {
		boost = boostCap
	}
	return boost
}

func filterByScore(cands []domain.Candidate, minScore float64) []domain.Candidate {
	out := cands[:0]
	for _, c := range cands {
		if c.FinalScore >= minScore {
			out = append(out, c)
		}
	}
	return out
}

func trimCandidates(cands []domain.Candidate, limit int) []domain.Candidate {
	if limit <= 0 || len(cands) <= limit {
		return cands
	}
	return cands[:limit]
}

// confidenceFor derives the discrete label from the top result.
func confidenceFor(cands []domain.Candidate, cfg RetrievalConfig) domain.Confidence {
	if len(cands) == 0 {
		return domain.ConfidenceNone
	}
	top := cands[0].FinalScore
	switch {
	case top >= cfg.HighBand:
		return domain.ConfidenceHigh
	case top >= cfg.MediumBand:
		return domain.ConfidenceMedium
	case top >= cfg.LowBand:
		return domain.ConfidenceLow
	default:
		return domain.ConfidenceNone
	}
}
