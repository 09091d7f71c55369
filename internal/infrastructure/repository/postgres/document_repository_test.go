package postgres

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/vietcare/medsearch/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*DocumentRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &DocumentRepository{db: db}, mock, func() { _ = db.Close() }
}

func documentRows(ids ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "text", "disease_name", "symptoms", "treatment",
		"prevention", "causes", "description", "source", "category",
	})
	for _, id := range ids {
		rows.AddRow(id, "nội dung "+id, "Sốt xuất huyết", "sốt cao", "", "", "", "", "", "")
	}
	return rows
}

func TestGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, text, disease_name").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDMapsMetadataColumns(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, text, disease_name").
		WithArgs("doc-1").
		WillReturnRows(documentRows("doc-1"))

	doc, err := repo.GetByID(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if doc.Metadata.DiseaseName != "Sốt xuất huyết" || doc.Metadata.Symptoms != "sốt cao" {
		t.Fatalf("metadata not mapped: %+v", doc.Metadata)
	}
}

func TestUpsertRunsInOneTransaction(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO documents").
		WithArgs("doc-1", "văn bản", "Cúm", "", "", "", "", "", "", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO documents").
		WithArgs("doc-2", "văn bản hai", "", "", "", "", "", "", "", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Upsert(context.Background(), []domain.Document{
		{ID: "doc-1", Text: "văn bản", Metadata: domain.Metadata{DiseaseName: "Cúm"}},
		{ID: "doc-2", Text: "văn bản hai"},
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpsertRollsBackOnFailure(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO documents").
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := repo.Upsert(context.Background(), []domain.Document{{ID: "doc-1", Text: "x"}})
	if err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDsBuildsPlaceholderList(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery(`WHERE id IN \(\$1,\$2\)`).
		WithArgs("doc-1", "doc-2").
		WillReturnRows(documentRows("doc-1", "doc-2"))

	docs, err := repo.GetByIDs(context.Background(), []string{"doc-1", "doc-2"})
	if err != nil {
		t.Fatalf("GetByIDs() error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}

	// Empty input never touches the database.
	if docs, err := repo.GetByIDs(context.Background(), nil); err != nil || docs != nil {
		t.Fatalf("expected empty no-op, got %v, %v", docs, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleteByIDs(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec(`DELETE FROM documents`).
		WithArgs("doc-1", "doc-2").
		WillReturnResult(sqlmock.NewResult(0, 2))

	if err := repo.DeleteByIDs(context.Background(), []string{"doc-1", "doc-2"}); err != nil {
		t.Fatalf("DeleteByIDs() error = %v", err)
	}
	if err := repo.DeleteByIDs(context.Background(), nil); err != nil {
		t.Fatalf("empty delete must be a no-op, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCount(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM documents`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	n, err := repo.Count(context.Background())
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 42 {
		t.Fatalf("expected 42, got %d", n)
	}
}
