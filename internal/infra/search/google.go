// Package search implements the optional web-search provider on the Google
// Custom Search JSON API.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/calvella/bucketsync/internal/domain"
	"github.com/calvella/bucketsync/internal/infra/observability"
	"github.com/calvella/bucketsync/internal/port"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	customsearch "google.golang.org/api/customsearch/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// resultCount is how many top results go into the textual context.
const resultCount = 3

// GoogleClient issues Custom Search queries and condenses the top results
// into a compact textual context for the classifier. Search is best-effort:
// an upstream answer we cannot use becomes sentinel text, not an error.
type GoogleClient struct {
	svc      *customsearch.Service
	engineID string
	cb       *gobreaker.CircuitBreaker
	cache    port.Cache[string]
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewGoogleClient creates the search provider. Extra options are appended
// after the API key, letting tests point the service at a local server.
func NewGoogleClient(
	ctx context.Context,
	apiKey, engineID string,
	cb *gobreaker.CircuitBreaker,
	cache port.Cache[string],
	metrics *observability.Metrics,
	logger *zap.Logger,
	opts ...option.ClientOption,
) (*GoogleClient, error) {
	svc, err := customsearch.NewService(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, err
	}
	return &GoogleClient{
		svc:      svc,
		engineID: engineID,
		cb:       cb,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
	}, nil
}

// Search returns a plain-text summary of the top results for query.
// No results yields "No relevant information found for: <query>"; an upstream
// response we cannot use yields "Search completed for: <query>". Only
// transport-level failures surface as errors.
func (c *GoogleClient) Search(ctx context.Context, query string) (string, error) {
	if cached, ok := c.cache.Get(query); ok {
		c.metrics.IncrCacheHit("search")
		return cached, nil
	}
	c.metrics.IncrCacheMiss("search")

	result, err := c.cb.Execute(func() (any, error) {
		resp, err := c.svc.Cse.List().Cx(c.engineID).Q(query).Num(resultCount).Context(ctx).Do()
		if err != nil {
			var gerr *googleapi.Error
			if errors.As(err, &gerr) {
				// The upstream answered, just not with a result set we can
				// use. The classifier treats this as uninformative context.
				c.logger.Debug("search API returned unusable response",
					zap.String("query", query),
					zap.Int("status", gerr.Code),
				)
				return fmt.Sprintf("Search completed for: %s", query), nil
			}
			return nil, err
		}
		if len(resp.Items) == 0 {
			return fmt.Sprintf("No relevant information found for: %s", query), nil
		}
		return formatResults(resp.Items), nil
	})
	if err != nil {
		c.metrics.IncrExternalError("search")
		return "", &domain.ErrExternalService{Service: "search", Err: err}
	}

	text := result.(string)
	c.cache.Set(query, text)
	return text, nil
}

// formatResults renders each result as "<rank>. <title>", an indented
// snippet when present, and the indented link, separated by blank lines.
func formatResults(items []*customsearch.Result) string {
	var b strings.Builder
	for i, item := range items {
		fmt.Fprintf(&b, "%d. %s\n", i+1, item.Title)
		if item.Snippet != "" {
			fmt.Fprintf(&b, "   %s\n", item.Snippet)
		}
		fmt.Fprintf(&b, "   %s\n\n", item.Link)
	}
	return b.String()
}
