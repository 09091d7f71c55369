package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vietcare/medsearch/internal/core/domain"
	"github.com/vietcare/medsearch/internal/core/ports"
)

// IndexUseCase owns the corpus write path. The vector index and the keyword
// index form one consistency domain: every write ends with a keyword rebuild,
// either locally or via the corpus-updated signal fanned out to all replicas.
// Callers must not run writes concurrently with each other.
type IndexUseCase struct {
	repo     ports.DocumentRepository
	embedder ports.Embedder
	vector   ports.VectorIndex
	keyword  ports.KeywordIndex
	queue    ports.MessageQueue

	embedBatchSize int
}

func NewIndexUseCase(
	repo ports.DocumentRepository,
	embedder ports.Embedder,
	vector ports.VectorIndex,
	keyword ports.KeywordIndex,
	queue ports.MessageQueue,
) *IndexUseCase {
	return &IndexUseCase{
		repo:           repo,
		embedder:       embedder,
		vector:         vector,
		keyword:        keyword,
		queue:          queue,
		embedBatchSize: 64,
	}
}

// UpsertDocuments persists a batch to the catalog and hands the embedding
// work to the queue. Documents without an id get one assigned.
func (uc *IndexUseCase) UpsertDocuments(ctx context.Context, docs []domain.Document) error {
	if len(docs) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "upsert documents", errors.New("empty batch"))
	}

	ids := make([]string, 0, len(docs))
	seen := make(map[string]struct{}, len(docs))
	for i := range docs {
		if strings.TrimSpace(docs[i].Text) == "" {
			return domain.WrapError(domain.ErrInvalidInput, "upsert documents",
				fmt.Errorf("document %d has empty text", i))
		}
		if docs[i].ID == "" {
			docs[i].ID = uuid.NewString()
		}
		if _, dup := seen[docs[i].ID]; dup {
			return domain.WrapError(domain.ErrInvalidInput, "upsert documents",
				fmt.Errorf("duplicate id %q in batch", docs[i].ID))
		}
		seen[docs[i].ID] = struct{}{}
		ids = append(ids, docs[i].ID)
	}

	if err := uc.repo.Upsert(ctx, docs); err != nil {
		return fmt.Errorf("upsert catalog: %w", err)
	}
	if err := uc.queue.PublishDocumentsUpserted(ctx, ids); err != nil {
		return fmt.Errorf("publish upsert event: %w", err)
	}
	return nil
}

// IndexBatch is the worker side of an upsert: embed the batch, upsert the
// vectors, then announce the corpus change so replicas rebuild their keyword
// index.
func (uc *IndexUseCase) IndexBatch(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	started := time.Now()

	docs, err := uc.repo.GetByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("load batch: %w", err)
	}
	if len(docs) == 0 {
		slog.Warn("index_batch_empty", "requested", len(ids))
		return nil
	}

	for start := 0; start < len(docs); start += uc.embedBatchSize {
		end := min(start+uc.embedBatchSize, len(docs))
		chunk := docs[start:end]

		texts := make([]string, len(chunk))
		for i, d := range chunk {
			texts[i] = d.Text
		}
		vectors, err := uc.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch: %w", err)
		}
		if len(vectors) != len(chunk) {
			return fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(chunk))
		}
		if err := uc.vector.Upsert(ctx, chunk, vectors); err != nil {
			return fmt.Errorf("vector upsert: %w", err)
		}
	}

	if err := uc.queue.PublishCorpusUpdated(ctx); err != nil {
		return fmt.Errorf("publish corpus update: %w", err)
	}

	slog.Info("index_batch_done",
		"documents", len(docs),
		"duration_ms", float64(time.Since(started).Microseconds())/1000.0,
	)
	return nil
}

// DeleteDocuments removes ids from the vector index and the catalog, then
// rebuilds the keyword index as the final step of the write.
func (uc *IndexUseCase) DeleteDocuments(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "delete documents", errors.New("no ids"))
	}

	if err := uc.vector.Delete(ctx, ids); err != nil {
		return fmt.Errorf("vector delete: %w", err)
	}
	if err := uc.repo.DeleteByIDs(ctx, ids); err != nil {
		return fmt.Errorf("catalog delete: %w", err)
	}
	if err := uc.RebuildKeywordIndex(ctx); err != nil {
		return err
	}
	if err := uc.queue.PublishCorpusUpdated(ctx); err != nil {
		return fmt.Errorf("publish corpus update: %w", err)
	}
	return nil
}

// RebuildKeywordIndex reloads the catalog into the local BM25 index. BM25
// document frequencies are corpus-global, so partial patches are not enough.
func (uc *IndexUseCase) RebuildKeywordIndex(ctx context.Context) error {
	docs, err := uc.repo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list corpus: %w", err)
	}
	if err := uc.keyword.Rebuild(ctx, docs); err != nil {
		return fmt.Errorf("rebuild keyword index: %w", err)
	}
	slog.Info("keyword_index_rebuilt", "documents", len(docs))
	return nil
}
