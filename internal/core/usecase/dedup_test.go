package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/vietcare/medsearch/internal/core/domain"
)

type fakeRepo struct {
	mu   sync.Mutex
	docs []domain.Document

	upserts int
	deleted []string
	log     *opLog
}

func (f *fakeRepo) Upsert(_ context.Context, docs []domain.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	for _, d := range docs {
		replaced := false
		for i := range f.docs {
			if f.docs[i].ID == d.ID {
				f.docs[i] = d
				replaced = true
				break
			}
		}
		if !replaced {
			f.docs = append(f.docs, d)
		}
	}
	return nil
}

func (f *fakeRepo) GetByID(_ context.Context, id string) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.docs {
		if f.docs[i].ID == id {
			d := f.docs[i]
			return &d, nil
		}
	}
	return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New(id))
}

func (f *fakeRepo) GetByIDs(_ context.Context, ids []string) ([]domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Document, 0, len(ids))
	for _, id := range ids {
		for i := range f.docs {
			if f.docs[i].ID == id {
				out = append(out, f.docs[i])
			}
		}
	}
	return out, nil
}

func (f *fakeRepo) ListAll(context.Context) ([]domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Document, len(f.docs))
	copy(out, f.docs)
	return out, nil
}

func (f *fakeRepo) DeleteByIDs(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ids...)
	if f.log != nil {
		f.log.record("catalog.delete")
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := f.docs[:0]
	for _, d := range f.docs {
		if _, gone := drop[d.ID]; !gone {
			kept = append(kept, d)
		}
	}
	f.docs = kept
	return nil
}

func (f *fakeRepo) Count(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.docs), nil
}

type fakeQueue struct {
	mu            sync.Mutex
	upsertedIDs   [][]string
	corpusUpdated int
	log           *opLog
}

func (f *fakeQueue) PublishDocumentsUpserted(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertedIDs = append(f.upsertedIDs, ids)
	return nil
}

func (f *fakeQueue) SubscribeDocumentsUpserted(context.Context, func(context.Context, []string) error) error {
	return nil
}

func (f *fakeQueue) PublishCorpusUpdated(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.corpusUpdated++
	if f.log != nil {
		f.log.record("queue.corpus_updated")
	}
	return nil
}

func (f *fakeQueue) SubscribeCorpusUpdated(context.Context, func(context.Context) error) error {
	return nil
}

func (f *fakeQueue) Close() {}

// Vectors at 0, 15 and 30 degrees: adjacent pairs clear the 0.95 threshold
// (cos 15 ~ 0.966), the outer pair does not (cos 30 ~ 0.866).
var (
	vecDeg0  = []float32{1, 0}
	vecDeg15 = []float32{0.9659258, 0.2588190}
	vecDeg30 = []float32{0.8660254, 0.5}
)

func TestDedupDryRunReportsWithoutMutating(t *testing.T) {
	shorter := domain.Document{
		ID:   "doc-02",
		Text: "Sốt xuất huyết gây sốt cao.",
		Metadata: domain.Metadata{
			DiseaseName: "Sốt xuất huyết",
			Symptoms:    "sốt cao",
		},
	}
	longer := domain.Document{
		ID:   "doc-01",
		Text: "Sốt xuất huyết gây sốt cao, đau đầu, đau cơ.",
		Metadata: domain.Metadata{
			DiseaseName: "Sốt xuất huyết",
			Symptoms:    "sốt cao, đau đầu, đau cơ",
			Treatment:   "nghỉ ngơi, uống nhiều nước",
		},
	}
	repo := &fakeRepo{docs: []domain.Document{shorter, longer}}
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		shorter.Text: vecDeg0,
		longer.Text:  vecDeg15,
	}}
	vector := &fakeVector{}
	keyword := &fakeKeyword{}
	queue := &fakeQueue{}
	uc := NewDedupUseCase(repo, embedder, vector, keyword, queue, 0.95)

	report, err := uc.Run(context.Background(), domain.DedupOptions{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !report.DryRun {
		t.Fatalf("expected dry-run by default")
	}
	if report.Scanned != 2 || len(report.Groups) != 1 || report.Removed != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}

	g := report.Groups[0]
	if g.KeepID != "doc-01" {
		t.Fatalf("expected the longer richer document kept, got %s", g.KeepID)
	}
	if len(g.RemoveIDs) != 1 || g.RemoveIDs[0] != "doc-02" {
		t.Fatalf("expected doc-02 marked for removal, got %v", g.RemoveIDs)
	}
	if g.MaxSimilarity < 0.95 {
		t.Fatalf("expected recorded similarity >= threshold, got %v", g.MaxSimilarity)
	}

	if len(repo.deleted) != 0 || len(vector.deleted) != 0 || keyword.rebuilds != 0 || queue.corpusUpdated != 0 {
		t.Fatalf("dry-run mutated state: repo=%v vector=%v rebuilds=%d published=%d",
			repo.deleted, vector.deleted, keyword.rebuilds, queue.corpusUpdated)
	}
}

func TestDedupGroupsAreTransitive(t *testing.T) {
	docs := []domain.Document{
		{ID: "doc-a", Text: "văn bản a"},
		{ID: "doc-b", Text: "văn bản b dài hơn một chút"},
		{ID: "doc-c", Text: "văn bản c"},
	}
	vectors := [][]float32{vecDeg0, vecDeg15, vecDeg30}

	groups := findDuplicateGroups(docs, vectors, 0.95)
	if len(groups) != 1 {
		t.Fatalf("expected one transitive group, got %d", len(groups))
	}
	if len(groups[0].IDs) != 3 {
		t.Fatalf("expected a~b and b~c to pull all three together, got %v", groups[0].IDs)
	}
	if groups[0].KeepID != "doc-b" {
		t.Fatalf("expected strictly longest doc-b kept, got %s", groups[0].KeepID)
	}
}

func TestDedupSourceURLBreaksLengthTie(t *testing.T) {
	docs := []domain.Document{
		{ID: "doc-a", Text: "cùng độ dài aa"},
		{ID: "doc-b", Text: "cùng độ dài bb", Metadata: domain.Metadata{Source: "https://moh.gov.vn/benh"}},
	}
	vectors := [][]float32{vecDeg0, vecDeg0}

	groups := findDuplicateGroups(docs, vectors, 0.95)
	if len(groups) != 1 {
		t.Fatalf("expected one group, got %d", len(groups))
	}
	if groups[0].KeepID != "doc-b" {
		t.Fatalf("expected the sourced document kept on a length tie, got %s", groups[0].KeepID)
	}

	// A malformed source earns nothing.
	docs[1].Metadata.Source = "not a url"
	groups = findDuplicateGroups(docs, vectors, 0.95)
	if groups[0].KeepID != "doc-a" {
		t.Fatalf("expected lowest id on a full tie, got %s", groups[0].KeepID)
	}
}

func TestDedupIdenticalTextTiesGoToLowestID(t *testing.T) {
	docs := []domain.Document{
		{ID: "doc-9", Text: "giống hệt nhau"},
		{ID: "doc-1", Text: "giống hệt nhau"},
		{ID: "doc-5", Text: "giống hệt nhau"},
	}
	// Identical text forces similarity 1.0 regardless of vectors.
	vectors := [][]float32{vecDeg0, vecDeg30, vecDeg15}

	groups := findDuplicateGroups(docs, vectors, 0.95)
	if len(groups) != 1 {
		t.Fatalf("expected one group, got %d", len(groups))
	}
	if groups[0].KeepID != "doc-1" {
		t.Fatalf("expected lowest id kept, got %s", groups[0].KeepID)
	}
	if groups[0].MaxSimilarity != 1.0 {
		t.Fatalf("expected similarity forced to 1.0, got %v", groups[0].MaxSimilarity)
	}
}

func TestDedupExecuteRebuildsKeywordIndexLast(t *testing.T) {
	log := &opLog{}
	repo := &fakeRepo{docs: []domain.Document{
		{ID: "doc-a", Text: "trùng lặp"},
		{ID: "doc-b", Text: "trùng lặp"},
		{ID: "doc-c", Text: "tài liệu riêng biệt về bệnh cúm"},
	}, log: log}
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"trùng lặp":                      vecDeg0,
		"tài liệu riêng biệt về bệnh cúm": vecDeg30,
	}}
	vector := &fakeVector{log: log}
	keyword := &fakeKeyword{log: log}
	queue := &fakeQueue{log: log}
	uc := NewDedupUseCase(repo, embedder, vector, keyword, queue, 0.95)

	report, err := uc.Run(context.Background(), domain.DedupOptions{Execute: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.DryRun {
		t.Fatalf("expected execute mode")
	}
	if report.Removed != 1 {
		t.Fatalf("expected one removal, got %d", report.Removed)
	}

	want := []string{"vector.delete", "catalog.delete", "keyword.rebuild", "queue.corpus_updated"}
	if len(log.ops) != len(want) {
		t.Fatalf("expected ops %v, got %v", want, log.ops)
	}
	for i := range want {
		if log.ops[i] != want[i] {
			t.Fatalf("expected ops %v, got %v", want, log.ops)
		}
	}
	if keyword.rebuiltLen != 2 {
		t.Fatalf("expected rebuild over the 2 survivors, got %d", keyword.rebuiltLen)
	}
}

func TestDedupSingletonCorpusIsNoop(t *testing.T) {
	repo := &fakeRepo{docs: []domain.Document{{ID: "doc-a", Text: "một mình"}}}
	embedder := &fakeEmbedder{}
	uc := NewDedupUseCase(repo, embedder, &fakeVector{}, &fakeKeyword{}, &fakeQueue{}, 0.95)

	report, err := uc.Run(context.Background(), domain.DedupOptions{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Scanned != 1 || len(report.Groups) != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if embedder.calls != 0 {
		t.Fatalf("expected no embedding for a singleton corpus")
	}
}
