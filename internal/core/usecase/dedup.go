package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"sort"

	"github.com/vietcare/medsearch/internal/core/domain"
	"github.com/vietcare/medsearch/internal/core/ports"
)

// DedupUseCase collapses near-duplicate documents across the whole corpus.
// The pass is read-only until every duplicate group has been computed;
// deletions run afterwards and the keyword rebuild is the very last step, so
// an interrupted pass leaves a stale but consistent keyword index.
type DedupUseCase struct {
	repo     ports.DocumentRepository
	embedder ports.Embedder
	vector   ports.VectorIndex
	keyword  ports.KeywordIndex
	queue    ports.MessageQueue

	defaultThreshold float64
	embedBatchSize   int
}

func NewDedupUseCase(
	repo ports.DocumentRepository,
	embedder ports.Embedder,
	vector ports.VectorIndex,
	keyword ports.KeywordIndex,
	queue ports.MessageQueue,
	defaultThreshold float64,
) *DedupUseCase {
	if defaultThreshold <= 0 || defaultThreshold > 1 {
		defaultThreshold = DefaultRetrievalConfig().DedupThreshold
	}
	return &DedupUseCase{
		repo:             repo,
		embedder:         embedder,
		vector:           vector,
		keyword:          keyword,
		queue:            queue,
		defaultThreshold: defaultThreshold,
		embedBatchSize:   64,
	}
}

func (uc *DedupUseCase) Run(ctx context.Context, opts domain.DedupOptions) (*domain.DedupReport, error) {
	threshold := opts.Threshold
	if threshold <= 0 || threshold > 1 {
		threshold = uc.defaultThreshold
	}

	docs, err := uc.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list corpus: %w", err)
	}

	report := &domain.DedupReport{
		Scanned:   len(docs),
		DryRun:    !opts.Execute,
		Threshold: threshold,
	}
	if len(docs) < 2 {
		return report, nil
	}

	vectors, err := uc.embedAll(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("embed corpus: %w", err)
	}

	groups := findDuplicateGroups(docs, vectors, threshold)
	report.Groups = groups
	for _, g := range groups {
		report.Removed += len(g.RemoveIDs)
	}

	if !opts.Execute {
		slog.Info("dedup_dry_run", "scanned", report.Scanned, "groups", len(groups), "would_remove", report.Removed)
		return report, nil
	}

	removeIDs := make([]string, 0, report.Removed)
	for _, g := range groups {
		removeIDs = append(removeIDs, g.RemoveIDs...)
	}
	if len(removeIDs) == 0 {
		return report, nil
	}

	if err := uc.vector.Delete(ctx, removeIDs); err != nil {
		return nil, fmt.Errorf("vector delete: %w", err)
	}
	if err := uc.repo.DeleteByIDs(ctx, removeIDs); err != nil {
		return nil, fmt.Errorf("catalog delete: %w", err)
	}

	remaining, err := uc.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list remaining corpus: %w", err)
	}
	if err := uc.keyword.Rebuild(ctx, remaining); err != nil {
		return nil, fmt.Errorf("rebuild keyword index: %w", err)
	}
	if uc.queue != nil {
		if err := uc.queue.PublishCorpusUpdated(ctx); err != nil {
			slog.Warn("dedup_corpus_update_publish_failed", "error", err)
		}
	}

	slog.Info("dedup_executed", "scanned", report.Scanned, "groups", len(groups), "removed", report.Removed)
	return report, nil
}

func (uc *DedupUseCase) embedAll(ctx context.Context, docs []domain.Document) ([][]float32, error) {
	vectors := make([][]float32, 0, len(docs))
	for start := 0; start < len(docs); start += uc.embedBatchSize {
		end := min(start+uc.embedBatchSize, len(docs))

		texts := make([]string, 0, end-start)
		for _, d := range docs[start:end] {
			texts = append(texts, d.Text)
		}
		batch, err := uc.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, err
		}
		if len(batch) != len(texts) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(batch), len(texts))
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// findDuplicateGroups computes pairwise cosine similarity and merges every
// pair at or above the threshold transitively: A~B and B~C put A, B and C in
// one group even when A~C alone falls short.
func findDuplicateGroups(docs []domain.Document, vectors [][]float32, threshold float64) []domain.DuplicateGroup {
	parent := make([]int, len(docs))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	union := func(i, j int) {
		ri, rj := find(i), find(j)
		if ri != rj {
			parent[rj] = ri
		}
	}

	maxSim := make(map[int]float64, len(docs))
	for i := 0; i < len(docs); i++ {
		for j := i + 1; j < len(docs); j++ {
			sim := cosineSimilarity(vectors[i], vectors[j])
			if docs[i].Text == docs[j].Text {
				sim = 1.0
			}
			if sim >= threshold {
				union(i, j)
				if sim > maxSim[find(i)] {
					maxSim[find(i)] = sim
				}
			}
		}
	}

	members := make(map[int][]int)
	for i := range docs {
		root := find(i)
		members[root] = append(members[root], i)
	}

	groups := make([]domain.DuplicateGroup, 0)
	for root, idxs := range members {
		if len(idxs) < 2 {
			continue
		}
		group := buildGroup(docs, idxs)
		group.MaxSimilarity = maxSim[root]
		groups = append(groups, group)
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].KeepID < groups[j].KeepID })
	return groups
}

// buildGroup applies the representative rubric: +3 for the strictly longest
// text, +2 for a well-formed http(s) source URL, +1 per non-empty content
// metadata field. Ties go to the lowest id for reproducibility.
func buildGroup(docs []domain.Document, idxs []int) domain.DuplicateGroup {
	longestIdx := -1
	longestLen := -1
	longestUnique := false
	for _, i := range idxs {
		l := len([]rune(docs[i].Text))
		switch {
		case l > longestLen:
			longestLen = l
			longestIdx = i
			longestUnique = true
		case l == longestLen:
			longestUnique = false
		}
	}

	keep := -1
	keepScore := -1
	for _, i := range idxs {
		score := 0
		if longestUnique && i == longestIdx {
			score += 3
		}
		if isWellFormedURL(docs[i].Metadata.Source) {
			score += 2
		}
		score += docs[i].Metadata.ContentFieldCount()

		if score > keepScore || (score == keepScore && docs[i].ID < docs[keep].ID) {
			keep = i
			keepScore = score
		}
	}

	group := domain.DuplicateGroup{KeepID: docs[keep].ID}
	for _, i := range idxs {
		group.IDs = append(group.IDs, docs[i].ID)
		if i != keep {
			group.RemoveIDs = append(group.RemoveIDs, docs[i].ID)
		}
	}
	sort.Strings(group.IDs)
	sort.Strings(group.RemoveIDs)
	return group
}

func isWellFormedURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
