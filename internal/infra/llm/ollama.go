package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/calvella/bucketsync/internal/domain"
	"github.com/calvella/bucketsync/internal/infra/observability"

	"github.com/ollama/ollama/api"
	"github.com/sony/gobreaker"
)

const ollamaTimeout = 30 * time.Second

// OllamaClient talks to a local Ollama server through its official API client.
type OllamaClient struct {
	client  *api.Client
	model   string
	cb      *gobreaker.CircuitBreaker
	metrics *observability.Metrics
}

// NewOllamaClient creates an Ollama chat provider. host carries the scheme
// (e.g. "http://localhost"); port is appended to form the base URL.
func NewOllamaClient(host, port, model string, cb *gobreaker.CircuitBreaker, metrics *observability.Metrics) (*OllamaClient, error) {
	base, err := url.Parse(fmt.Sprintf("%s:%s", host, port))
	if err != nil {
		return nil, fmt.Errorf("parse ollama base URL: %w", err)
	}
	return &OllamaClient{
		client:  api.NewClient(base, &http.Client{Timeout: ollamaTimeout}),
		model:   model,
		cb:      cb,
		metrics: metrics,
	}, nil
}

// Chat sends a single user message and returns the trimmed reply.
func (c *OllamaClient) Chat(ctx context.Context, prompt string) (string, error) {
	result, err := c.cb.Execute(func() (any, error) {
		stream := false
		req := &api.ChatRequest{
			Model:    c.model,
			Messages: []api.Message{{Role: "user", Content: prompt}},
			Stream:   &stream,
		}

		var reply strings.Builder
		err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
			reply.WriteString(resp.Message.Content)
			return nil
		})
		if err != nil {
			return nil, err
		}
		return strings.TrimSpace(reply.String()), nil
	})
	if err != nil {
		c.metrics.IncrExternalError("ollama")
		return "", &domain.ErrExternalService{Service: "ollama", Err: err}
	}
	return result.(string), nil
}

// Available reports whether the Ollama server is reachable.
func (c *OllamaClient) Available(ctx context.Context) bool {
	_, err := c.client.List(ctx)
	return err == nil
}
