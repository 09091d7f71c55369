package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/vietcare/medsearch/internal/core/domain"
	"github.com/vietcare/medsearch/internal/core/ports"
)

// SearchUseCase runs the hybrid retrieval pipeline: query expansion, a
// concurrent fan-out to the vector and keyword indexes, max-merge scoring,
// confidence filtering and optional cross-encoder reranking. It holds no
// per-request state; one instance serves concurrent requests.
type SearchUseCase struct {
	cfg     RetrievalConfig
	lexicon Lexicon

	embedder ports.Embedder
	vector   ports.VectorIndex
	keyword  ports.KeywordIndex
	expander ports.QueryExpander
	reranker ports.Reranker
}

// NewSearchUseCase wires the pipeline. expander and reranker may be nil:
// both stages are optional and degrade to no-ops.
func NewSearchUseCase(
	cfg RetrievalConfig,
	lexicon Lexicon,
	embedder ports.Embedder,
	vector ports.VectorIndex,
	keyword ports.KeywordIndex,
	expander ports.QueryExpander,
	reranker ports.Reranker,
) *SearchUseCase {
	return &SearchUseCase{
		cfg:      cfg.normalize(),
		lexicon:  lexicon,
		embedder: embedder,
		vector:   vector,
		keyword:  keyword,
		expander: expander,
		reranker: reranker,
	}
}

func (uc *SearchUseCase) Search(ctx context.Context, req domain.SearchRequest) (*domain.SearchResult, error) {
	question := strings.TrimSpace(req.Query)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", errors.New("query must not be empty"))
	}

	topK := req.TopK
	if topK <= 0 || topK > uc.cfg.CandidateLimit {
		topK = uc.cfg.TopK
	}

	queries := uc.expandQuery(ctx, question)

	acc := newCandidateAccumulator()
	if err := uc.fanOut(ctx, queries, acc); err != nil {
		return nil, err
	}

	if acc.vectorUnavailable() && acc.keywordUnavailable() {
		err := acc.lastVectorErr
		if err == nil {
			err = acc.lastKeywordErr
		}
		return nil, domain.WrapError(domain.ErrIndexUnavailable, "search", err)
	}

	result := &domain.SearchResult{ExpandedQueries: queries}
	if acc.vectorUnavailable() {
		result.Warnings = append(result.Warnings, "vector index unavailable, keyword-only results")
		slog.Warn("search_degraded", "source", "vector", "error", acc.lastVectorErr)
	}
	if acc.keywordUnavailable() {
		result.Warnings = append(result.Warnings, "keyword index unavailable, vector-only results")
		slog.Warn("search_degraded", "source", "keyword", "error", acc.lastKeywordErr)
	}

	cands := scoreCandidates(acc, uc.cfg, uc.lexicon, question)
	if !req.IncludeLowConfidence {
		cands = filterByScore(cands, uc.cfg.MinScore)
	}
	cands = trimCandidates(cands, topK)

	if !req.SkipRerank {
		var err error
		cands, result.RerankApplied, err = uc.rerank(ctx, question, cands)
		if err != nil {
			return nil, err
		}
		// Blending can pull a candidate back under the floor it already
		// cleared, so the threshold applies to the blended score too.
		if result.RerankApplied && !req.IncludeLowConfidence {
			cands = filterByScore(cands, uc.cfg.MinScore)
		}
	}

	result.Candidates = cands
	result.Confidence = confidenceFor(cands, uc.cfg)
	return result, nil
}

// expandQuery widens recall with LLM paraphrases. Always returns the
// original question first; any failure collapses to the unexpanded query.
func (uc *SearchUseCase) expandQuery(ctx context.Context, question string) []string {
	if uc.expander == nil || uc.cfg.ExpansionCount <= 0 {
		return []string{question}
	}

	expandCtx, cancel := context.WithTimeout(ctx, uc.cfg.ExpansionTimeout)
	defer cancel()

	expansions, err := uc.expander.Expand(expandCtx, question, uc.cfg.ExpansionCount)
	if err != nil {
		slog.Warn("query_expansion_failed", "error", err)
		return []string{question}
	}

	queries := make([]string, 0, uc.cfg.ExpansionCount+1)
	queries = append(queries, question)
	for _, q := range expansions {
		q = strings.TrimSpace(q)
		if q == "" || q == question {
			continue
		}
		queries = append(queries, q)
		if len(queries) == uc.cfg.ExpansionCount+1 {
			break
		}
	}
	return queries
}

// fanOut dispatches one vector and one keyword lookup per expanded query.
// Per-source failures are recorded and degrade the result; only context
// cancellation aborts the whole request.
func (uc *SearchUseCase) fanOut(ctx context.Context, queries []string, acc *candidateAccumulator) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, query := range queries {
		g.Go(func() error {
			hits, err := uc.vectorSearch(gctx, query)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				acc.recordVectorError(err)
				return nil
			}
			acc.addVectorHits(hits)
			return nil
		})
		g.Go(func() error {
			hits, err := uc.keyword.Query(gctx, query, uc.cfg.CandidateLimit)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				acc.recordKeywordError(err)
				return nil
			}
			acc.addKeywordHits(hits)
			return nil
		})
	}

	return g.Wait()
}

func (uc *SearchUseCase) vectorSearch(ctx context.Context, query string) ([]domain.Hit, error) {
	vec, err := uc.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := uc.vector.Query(ctx, vec, uc.cfg.CandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}
	return hits, nil
}
