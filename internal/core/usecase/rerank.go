package usecase

import (
	"context"
	"log/slog"

	"github.com/vietcare/medsearch/internal/core/domain"
)

// rerank rescoring blends the cross-encoder signal with the hybrid score,
// keeping the prior as a stabilizer. The stage never fails a request: when
// the model is unavailable the input order is returned unchanged and the
// applied flag stays false.
func (uc *SearchUseCase) rerank(ctx context.Context, question string, cands []domain.Candidate) ([]domain.Candidate, bool, error) {
	if uc.reranker == nil || len(cands) == 0 {
		return cands, false, nil
	}

	topN := uc.cfg.RerankTopN
	if topN > len(cands) {
		topN = len(cands)
	}
	head := cands[:topN]

	texts := make([]string, len(head))
	for i, c := range head {
		texts[i] = rerankText(c)
	}

	scores, err := uc.reranker.Score(ctx, question, texts)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		if !domain.IsKind(err, domain.ErrRerankerUnavailable) {
			slog.Warn("rerank_failed", "error", err)
		}
		return cands, false, nil
	}
	if len(scores) != len(head) {
		slog.Warn("rerank_score_count_mismatch", "want", len(head), "got", len(scores))
		return cands, false, nil
	}

	w := uc.cfg.RerankWeight
	for i := range head {
		head[i].RerankScore = clamp01(scores[i])
		head[i].Reranked = true
		head[i].FinalScore = w*head[i].RerankScore + (1-w)*head[i].FinalScore
	}
	// Blending can push head scores below the untouched tail, so the full
	// list is re-sorted, not just the rescored prefix.
	sortCandidates(cands)

	return cands, true, nil
}

// rerankText is what the cross-encoder sees for a candidate: the body plus
// the disease/symptom/treatment fields, mirroring what is shown to the
// answer generator.
func rerankText(c domain.Candidate) string {
	if c.Text != "" {
		return c.Text
	}
	return c.Metadata.DiseaseName + " " + c.Metadata.Symptoms + " " + c.Metadata.Treatment
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
