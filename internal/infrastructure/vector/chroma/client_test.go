package chroma

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/vietcare/medsearch/internal/core/domain"
)

func newChromaStub(t *testing.T, ensureCalls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/collections":
			if ensureCalls != nil {
				atomic.AddInt32(ensureCalls, 1)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "col-123"})
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/collections/col-123/upsert":
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/collections/col-123/query":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"ids":       [][]string{{"doc-1", "doc-2"}},
				"distances": [][]float64{{0.0, 10.0}},
				"documents": [][]string{{"văn bản một", "văn bản hai"}},
				"metadatas": [][]map[string]any{{
					{"disease_name": "Sốt xuất huyết", "symptoms": "sốt cao"},
					{},
				}},
			})
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/collections/col-123/delete":
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestQueryMapsDistancesToSimilarities(t *testing.T) {
	server := newChromaStub(t, nil)
	defer server.Close()

	client := New(server.URL, "medical_docs")
	hits, err := client.Query(context.Background(), []float32{0.1, 0.2}, 5)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].Score != 1.0 {
		t.Fatalf("distance 0 must map to similarity 1.0, got %v", hits[0].Score)
	}
	if hits[1].Score != 0.5 {
		t.Fatalf("distance 10 must map to similarity 0.5, got %v", hits[1].Score)
	}
	if hits[0].Metadata.DiseaseName != "Sốt xuất huyết" {
		t.Fatalf("expected metadata decoded, got %+v", hits[0].Metadata)
	}
	if hits[0].Text != "văn bản một" {
		t.Fatalf("expected document text carried, got %q", hits[0].Text)
	}
}

func TestCollectionResolvedOncePerClient(t *testing.T) {
	var ensureCalls int32
	server := newChromaStub(t, &ensureCalls)
	defer server.Close()

	client := New(server.URL, "medical_docs")
	docs := []domain.Document{{ID: "doc-1", Text: "a"}}
	vectors := [][]float32{{0.1}}

	if err := client.Upsert(context.Background(), docs, vectors); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if _, err := client.Query(context.Background(), []float32{0.1}, 3); err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if err := client.Delete(context.Background(), []string{"doc-1"}); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if got := atomic.LoadInt32(&ensureCalls); got != 1 {
		t.Fatalf("expected collection resolved once, got %d", got)
	}
}

func TestUpsertRejectsMismatchedBatch(t *testing.T) {
	client := New("http://unused", "medical_docs")
	err := client.Upsert(context.Background(), []domain.Document{{ID: "doc-1", Text: "a"}}, nil)
	if err == nil || !strings.Contains(err.Error(), "mismatch") {
		t.Fatalf("expected mismatch error, got %v", err)
	}
}

func TestErrorsIncludeResponseBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "collection quota exceeded", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(server.URL, "medical_docs")
	_, err := client.Query(context.Background(), []float32{0.1}, 3)
	if err == nil || !strings.Contains(err.Error(), "collection quota exceeded") {
		t.Fatalf("expected body in error, got %v", err)
	}
}

func TestDistanceToSimilarityBounds(t *testing.T) {
	if got := distanceToSimilarity(-1); got != 1.0 {
		t.Fatalf("negative distance must clamp to 1.0, got %v", got)
	}
	if got := distanceToSimilarity(0); got != 1.0 {
		t.Fatalf("zero distance must be 1.0, got %v", got)
	}
	prev := 1.0
	for _, d := range []float64{1, 5, 10, 50, 1000} {
		got := distanceToSimilarity(d)
		if got <= 0 || got >= prev {
			t.Fatalf("similarity not strictly decreasing at d=%v: %v >= %v", d, got, prev)
		}
		prev = got
	}
}
