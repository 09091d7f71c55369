// Package crossencoder scores (query, passage) pairs with a cross-encoder
// model served over HTTP. Reranking is optional: an unconfigured client
// reports unavailability and retrieval keeps its original order.
package crossencoder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vietcare/medsearch/internal/core/domain"
	"github.com/vietcare/medsearch/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
}

// New returns a reranker client. An empty baseURL yields a client whose
// Score always reports ErrRerankerUnavailable.
func New(baseURL string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		executor:   executor,
	}
}

func (c *Client) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	if c.baseURL == "" {
		return nil, domain.WrapError(domain.ErrRerankerUnavailable, "rerank", errors.New("no endpoint configured"))
	}
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"query": query,
		"texts": texts,
	}
	var response struct {
		Scores []float64 `json:"scores"`
	}
	err := c.executor.Run(ctx, "crossencoder.score", classifyScoreError, func(ctx context.Context) error {
		return c.postJSON(ctx, "/rerank", request, &response)
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrRerankerUnavailable, "rerank", err)
	}
	if len(response.Scores) != len(texts) {
		return nil, domain.WrapError(domain.ErrRerankerUnavailable, "rerank",
			fmt.Errorf("got %d scores for %d texts", len(response.Scores), len(texts)))
	}
	return response.Scores, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rerank request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &statusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(msg)),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode rerank response: %w", err)
	}
	return nil
}

type statusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *statusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("rerank status: %s", e.Status)
	}
	return fmt.Sprintf("rerank status: %s: %s", e.Status, e.Body)
}

func classifyScoreError(err error) resilience.Outcome {
	if err == nil {
		return resilience.Outcome{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.Outcome{}
	}

	var statusErr *statusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusRequestTimeout, http.StatusTooManyRequests,
			http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return resilience.Outcome{Retry: true, TripBreaker: true}
		default:
			return resilience.Outcome{}
		}
	}

	return resilience.Outcome{Retry: true, TripBreaker: true}
}
