// Package llm implements the chat providers used by the bucket classifier:
// Gemini (with a builtin Google Search tool) and Ollama.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/calvella/bucketsync/internal/domain"
	"github.com/calvella/bucketsync/internal/infra/observability"

	"github.com/sony/gobreaker"
	"google.golang.org/genai"
)

// GeminiClient talks to the Gemini API. Besides plain chat it can ask the
// remote model to perform its own retrieval via the GoogleSearch tool.
type GeminiClient struct {
	client  *genai.Client
	model   string
	cb      *gobreaker.CircuitBreaker
	metrics *observability.Metrics
}

// NewGeminiClient creates a Gemini chat provider for the given model.
func NewGeminiClient(ctx context.Context, apiKey, model string, cb *gobreaker.CircuitBreaker, metrics *observability.Metrics) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiClient{client: client, model: model, cb: cb, metrics: metrics}, nil
}

// Chat sends a prompt and returns the model's trimmed text reply.
func (c *GeminiClient) Chat(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, prompt, nil)
}

// ChatWithBuiltinSearch instructs the remote model to ground its reply with
// its own Google Search retrieval.
func (c *GeminiClient) ChatWithBuiltinSearch(ctx context.Context, prompt string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	}
	return c.generate(ctx, prompt, cfg)
}

func (c *GeminiClient) generate(ctx context.Context, prompt string, cfg *genai.GenerateContentConfig) (string, error) {
	result, err := c.cb.Execute(func() (any, error) {
		resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), cfg)
		if err != nil {
			return nil, err
		}
		text := strings.TrimSpace(resp.Text())
		if text == "" {
			return nil, fmt.Errorf("empty response from model %s", c.model)
		}
		return text, nil
	})
	if err != nil {
		c.metrics.IncrExternalError("gemini")
		return "", &domain.ErrExternalService{Service: "gemini", Err: err}
	}
	return result.(string), nil
}
