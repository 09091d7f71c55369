// Package openai drives query expansion and answer generation through an
// OpenAI-compatible chat completions endpoint.
package openai

import (
	"context"
	"strings"
	"time"

	"github.com/vietcare/medsearch/internal/core/domain"
	"github.com/vietcare/medsearch/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient httpDoer
	executor   *resilience.Executor
}

func New(baseURL, apiKey, model string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: newHTTPClient(120 * time.Second),
		executor:   executor,
	}
}

// Expander paraphrases a question into semantically equivalent variants for
// the retrieval fan-out.
type Expander struct {
	client *Client
}

func NewExpander(client *Client) *Expander {
	return &Expander{client: client}
}

func (e *Expander) Expand(ctx context.Context, question string, n int) ([]string, error) {
	if n <= 0 {
		n = 2
	}
	text, err := e.client.chat(ctx, "expand", chatRequest{
		Messages: []chatMessage{
			{Role: "user", Content: buildExpansionPrompt(question, n)},
		},
		Temperature: 0.7,
		MaxTokens:   150,
	})
	if err != nil {
		return nil, err
	}
	return parseExpansions(text, n), nil
}

// parseExpansions splits the model output into one paraphrase per line and
// drops numbering, quotes and empty lines.
func parseExpansions(raw string, n int) []string {
	out := make([]string, 0, n)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "0123456789.-) ")
		line = strings.Trim(line, `"“”`)
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) == n {
			break
		}
	}
	return out
}

// Generator writes the user-facing answer from the ranked passages.
type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) GenerateAnswer(ctx context.Context, question string, passages []domain.Candidate) (string, error) {
	return g.client.chat(ctx, "generate", chatRequest{
		Messages: []chatMessage{
			{Role: "system", Content: answerSystemPrompt},
			{Role: "user", Content: buildAnswerPrompt(question, passages)},
		},
		Temperature: 0.7,
		MaxTokens:   800,
	})
}

func (c *Client) chat(ctx context.Context, operation string, req chatRequest) (string, error) {
	req.Model = c.model

	var resp chatResponse
	err := c.executor.Run(ctx, "openai."+operation, classifyChatError, func(ctx context.Context) error {
		return c.postJSON(ctx, "/v1/chat/completions", req, &resp, operation)
	})
	if err != nil {
		return "", wrapTemporaryIfNeeded(operation, err)
	}
	if len(resp.Choices) == 0 {
		return "", &HTTPStatusError{Operation: operation, Status: "empty choices"}
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
