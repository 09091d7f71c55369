package ports

import (
	"context"

	"github.com/vietcare/medsearch/internal/core/domain"
)

// Embedder builds dense vectors for document texts and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex stores document embeddings and serves nearest-neighbor
// queries. Query scores are similarities in [0,1], higher is closer.
type VectorIndex interface {
	Upsert(ctx context.Context, docs []domain.Document, vectors [][]float32) error
	Query(ctx context.Context, vector []float32, topN int) ([]domain.Hit, error)
	Delete(ctx context.Context, ids []string) error
}

// KeywordIndex is the lexical (BM25) side of hybrid retrieval. Rebuild
// replaces the whole corpus: document-frequency statistics are corpus-global
// and cannot be patched incrementally.
type KeywordIndex interface {
	Query(ctx context.Context, text string, topN int) ([]domain.Hit, error)
	Rebuild(ctx context.Context, docs []domain.Document) error
}

// QueryExpander produces up to n paraphrases of a question. Best-effort:
// callers must tolerate errors and fall back to the original question.
type QueryExpander interface {
	Expand(ctx context.Context, question string, n int) ([]string, error)
}

// Reranker jointly scores (query, text) pairs with a cross-encoder model.
// Implementations report domain.ErrRerankerUnavailable when the model is not
// configured or not loaded.
type Reranker interface {
	Score(ctx context.Context, query string, texts []string) ([]float64, error)
}

// AnswerGenerator synthesizes the user-facing answer from ranked passages.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question string, passages []domain.Candidate) (string, error)
}

// DocumentRepository is the system-of-record catalog for the corpus.
type DocumentRepository interface {
	Upsert(ctx context.Context, docs []domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	GetByIDs(ctx context.Context, ids []string) ([]domain.Document, error)
	ListAll(ctx context.Context) ([]domain.Document, error)
	DeleteByIDs(ctx context.Context, ids []string) error
	Count(ctx context.Context) (int, error)
}

// MessageQueue decouples catalog writes from embedding work and fans the
// corpus-updated signal out to every replica holding a keyword index.
type MessageQueue interface {
	PublishDocumentsUpserted(ctx context.Context, ids []string) error
	SubscribeDocumentsUpserted(ctx context.Context, handler func(context.Context, []string) error) error
	PublishCorpusUpdated(ctx context.Context) error
	SubscribeCorpusUpdated(ctx context.Context, handler func(context.Context) error) error
	Close()
}

// HospitalLocator finds medical facilities near a position.
type HospitalLocator interface {
	FindNearby(ctx context.Context, q domain.HospitalQuery) ([]domain.Hospital, error)
}
