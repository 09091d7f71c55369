// Package chroma implements the dense vector index on the ChromaDB REST API.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/vietcare/medsearch/internal/core/domain"
)

// distanceScale flattens L2 distances into a usable (0,1] similarity range.
// Raw exp(-d) collapses to zero for the distances PhoBERT embeddings produce.
const distanceScale = 10.0

type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client

	ensureMu     sync.Mutex
	collectionID string
}

func New(baseURL, collection string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) Upsert(ctx context.Context, docs []domain.Document, vectors [][]float32) error {
	if len(docs) == 0 {
		return nil
	}
	if len(docs) != len(vectors) {
		return fmt.Errorf("docs/vectors mismatch: %d vs %d", len(docs), len(vectors))
	}

	collectionID, err := c.ensureCollection(ctx)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(docs))
	texts := make([]string, 0, len(docs))
	metadatas := make([]map[string]any, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
		texts = append(texts, d.Text)
		metadatas = append(metadatas, metadataToMap(d.Metadata))
	}

	reqBody := map[string]any{
		"ids":        ids,
		"embeddings": vectors,
		"documents":  texts,
		"metadatas":  metadatas,
	}
	url := fmt.Sprintf("%s/api/v1/collections/%s/upsert", c.baseURL, collectionID)
	if err := c.post(ctx, url, reqBody, nil); err != nil {
		return fmt.Errorf("chroma upsert: %w", err)
	}
	return nil
}

func (c *Client) Query(ctx context.Context, vector []float32, topN int) ([]domain.Hit, error) {
	if topN <= 0 {
		topN = 10
	}
	collectionID, err := c.ensureCollection(ctx)
	if err != nil {
		return nil, err
	}

	reqBody := map[string]any{
		"query_embeddings": [][]float32{vector},
		"n_results":        topN,
		"include":          []string{"documents", "metadatas", "distances"},
	}

	var queryResp struct {
		IDs       [][]string         `json:"ids"`
		Distances [][]float64        `json:"distances"`
		Documents [][]string         `json:"documents"`
		Metadatas [][]map[string]any `json:"metadatas"`
	}
	url := fmt.Sprintf("%s/api/v1/collections/%s/query", c.baseURL, collectionID)
	if err := c.post(ctx, url, reqBody, &queryResp); err != nil {
		return nil, fmt.Errorf("chroma query: %w", err)
	}
	if len(queryResp.IDs) == 0 {
		return nil, nil
	}

	ids := queryResp.IDs[0]
	hits := make([]domain.Hit, 0, len(ids))
	for i, id := range ids {
		hit := domain.Hit{ID: id}
		if len(queryResp.Distances) > 0 && i < len(queryResp.Distances[0]) {
			hit.Score = distanceToSimilarity(queryResp.Distances[0][i])
		}
		if len(queryResp.Documents) > 0 && i < len(queryResp.Documents[0]) {
			hit.Text = queryResp.Documents[0][i]
		}
		if len(queryResp.Metadatas) > 0 && i < len(queryResp.Metadatas[0]) {
			hit.Metadata = metadataFromMap(queryResp.Metadatas[0][i])
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func (c *Client) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	collectionID, err := c.ensureCollection(ctx)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/api/v1/collections/%s/delete", c.baseURL, collectionID)
	if err := c.post(ctx, url, map[string]any{"ids": ids}, nil); err != nil {
		return fmt.Errorf("chroma delete: %w", err)
	}
	return nil
}

// ensureCollection resolves the collection name to its id, creating the
// collection on first use. The id is cached for the life of the client.
func (c *Client) ensureCollection(ctx context.Context) (string, error) {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	if c.collectionID != "" {
		return c.collectionID, nil
	}

	reqBody := map[string]any{
		"name":          c.collection,
		"get_or_create": true,
		"metadata":      map[string]any{"hnsw:space": "l2"},
	}
	var created struct {
		ID string `json:"id"`
	}
	url := fmt.Sprintf("%s/api/v1/collections", c.baseURL)
	if err := c.post(ctx, url, reqBody, &created); err != nil {
		return "", fmt.Errorf("chroma ensure collection: %w", err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("chroma ensure collection: empty collection id")
	}
	c.collectionID = created.ID
	return c.collectionID, nil
}

func (c *Client) post(ctx context.Context, url string, reqBody any, out any) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if s := strings.TrimSpace(string(msg)); s != "" {
			return fmt.Errorf("status %s: %s", resp.Status, s)
		}
		return fmt.Errorf("status %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// distanceToSimilarity maps an L2 distance to (0,1]: 0 distance is a perfect
// match, similarity halves at distance 10.
func distanceToSimilarity(d float64) float64 {
	if d < 0 {
		d = 0
	}
	return 1.0 / (1.0 + d/distanceScale)
}

func metadataToMap(m domain.Metadata) map[string]any {
	out := map[string]any{}
	put := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	put("disease_name", m.DiseaseName)
	put("symptoms", m.Symptoms)
	put("treatment", m.Treatment)
	put("prevention", m.Prevention)
	put("causes", m.Causes)
	put("description", m.Description)
	put("source", m.Source)
	put("category", m.Category)
	return out
}

func metadataFromMap(raw map[string]any) domain.Metadata {
	get := func(k string) string {
		v, ok := raw[k]
		if !ok {
			return ""
		}
		s, ok := v.(string)
		if ok {
			return s
		}
		return fmt.Sprintf("%v", v)
	}
	return domain.Metadata{
		DiseaseName: get("disease_name"),
		Symptoms:    get("symptoms"),
		Treatment:   get("treatment"),
		Prevention:  get("prevention"),
		Causes:      get("causes"),
		Description: get("description"),
		Source:      get("source"),
		Category:    get("category"),
	}
}
