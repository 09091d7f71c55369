package ports

import (
	"context"

	"github.com/vietcare/medsearch/internal/core/domain"
)

// SearchService is the inbound contract for hybrid retrieval.
type SearchService interface {
	Search(ctx context.Context, req domain.SearchRequest) (*domain.SearchResult, error)
}

// AnswerService is the inbound contract for retrieval plus synthesis.
type AnswerService interface {
	Answer(ctx context.Context, req domain.SearchRequest) (*domain.Answer, error)
}

// DocumentIndexer is the inbound contract for corpus writes. Every write
// path ends with a keyword index rebuild, directly or via the corpus-updated
// signal.
type DocumentIndexer interface {
	UpsertDocuments(ctx context.Context, docs []domain.Document) error
	DeleteDocuments(ctx context.Context, ids []string) error
	IndexBatch(ctx context.Context, ids []string) error
	RebuildKeywordIndex(ctx context.Context) error
}

// CorpusDeduplicator runs the offline near-duplicate collapse pass.
type CorpusDeduplicator interface {
	Run(ctx context.Context, opts domain.DedupOptions) (*domain.DedupReport, error)
}
