// Package classifier assigns a spending bucket to each transaction through an
// ordered fallback chain of LLM strategies. Classification always succeeds:
// when every strategy errors or fails to match, the terminal bucket "Other"
// is returned.
package classifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/calvella/bucketsync/internal/domain"
	"github.com/calvella/bucketsync/internal/infra/observability"
	"github.com/calvella/bucketsync/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("classifier")

// BucketOther is the terminal bucket. A strategy returning it counts as a
// failed attempt so the next strategy runs.
const BucketOther = "Other"

// strategy is one rung of the fallback chain: a provider combination that
// turns a transaction into a raw model reply.
type strategy struct {
	name string
	run  func(ctx context.Context, tx *domain.Transaction) (string, error)
}

// Classifier evaluates its strategy list in order and stops at the first
// non-"Other" bucket. The list is built once at construction from the
// configured providers; per-transaction code never branches on presence.
type Classifier struct {
	buckets    []string
	city       string
	searcher   port.Searcher
	strategies []strategy
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// New builds the classifier from whichever providers are configured.
// gemini, ollama and searcher may each be nil. Chain order: Gemini with
// builtin search, Ollama with external search context, Ollama alone.
func New(
	buckets []string,
	city string,
	gemini port.BuiltinSearchChatProvider,
	ollama port.ChatProvider,
	searcher port.Searcher,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Classifier {
	c := &Classifier{
		buckets:  buckets,
		city:     city,
		searcher: searcher,
		metrics:  metrics,
		logger:   logger,
	}

	if gemini != nil {
		c.strategies = append(c.strategies, strategy{
			name: "gemini_builtin_search",
			run: func(ctx context.Context, tx *domain.Transaction) (string, error) {
				return gemini.ChatWithBuiltinSearch(ctx, c.builtinSearchPrompt(tx))
			},
		})
	}
	if ollama != nil && searcher != nil {
		c.strategies = append(c.strategies, strategy{
			name: "ollama_external_search",
			run: func(ctx context.Context, tx *domain.Transaction) (string, error) {
				results, err := searcher.Search(ctx, c.searchQuery(tx.Description))
				if err != nil {
					return "", err
				}
				return ollama.Chat(ctx, c.searchContextPrompt(tx, results))
			},
		})
	}
	if ollama != nil {
		c.strategies = append(c.strategies, strategy{
			name: "ollama",
			run: func(ctx context.Context, tx *domain.Transaction) (string, error) {
				return ollama.Chat(ctx, c.plainPrompt(tx))
			},
		})
	}

	return c
}

// Classify walks the fallback chain. Strategy errors are swallowed so the
// next rung can attempt; the terminal result is "Other", never an error.
func (c *Classifier) Classify(ctx context.Context, tx *domain.Transaction) (string, error) {
	ctx, span := tracer.Start(ctx, "Classifier.Classify")
	defer span.End()

	for _, s := range c.strategies {
		reply, err := s.run(ctx, tx)
		if err != nil {
			c.metrics.IncrStrategy(s.name, "error")
			c.logger.Debug("classification strategy failed",
				zap.String("strategy", s.name),
				zap.String("description", tx.Description),
				zap.Error(err),
			)
			continue
		}

		bucket := BestBucketMatch(reply, c.buckets)
		if bucket == BucketOther {
			c.metrics.IncrStrategy(s.name, "unmatched")
			continue
		}

		c.metrics.IncrStrategy(s.name, "matched")
		span.SetAttributes(
			attribute.String("bucket", bucket),
			attribute.String("strategy", s.name),
		)
		return bucket, nil
	}

	span.SetAttributes(attribute.String("bucket", BucketOther))
	return BucketOther, nil
}

// searchQuery synthesizes the web-search query for a transaction description.
func (c *Classifier) searchQuery(description string) string {
	query := fmt.Sprintf("what is %s business", strings.ToLower(description))
	if c.city != "" {
		query = fmt.Sprintf("%s in %s", query, strings.ToLower(c.city))
	}
	return query
}

func (c *Classifier) builtinSearchPrompt(tx *domain.Transaction) string {
	return fmt.Sprintf(
		"You are a financial transaction classifier.\n\n"+
			"Available buckets: %s\n\n"+
			"Transaction details:\n"+
			"- Description: %s\n"+
			"- Amount: %.2f\n\n"+
			"Search the web for the merchant if the description is not enough to decide.\n"+
			"Return ONLY the bucket name, nothing else.",
		strings.Join(c.buckets, ", "), tx.Description, tx.Amount,
	)
}

func (c *Classifier) searchContextPrompt(tx *domain.Transaction, searchResults string) string {
	return fmt.Sprintf(
		"Classify this transaction: '%s'\n"+
			"Amount: %.2f\n\n"+
			"Search results: %s\n\n"+
			"Buckets: %s\n\n"+
			"Based on the description and search results, which bucket does this belong to?\n"+
			"Return only the bucket name:",
		tx.Description, tx.Amount, searchResults, strings.Join(c.buckets, ", "),
	)
}

func (c *Classifier) plainPrompt(tx *domain.Transaction) string {
	return fmt.Sprintf(
		"You are a financial transaction classifier. Your task is to categorize transactions into the most appropriate bucket.\n\n"+
			"Available buckets: %s\n\n"+
			"Transaction details:\n"+
			"- Description: %s\n"+
			"- Amount: %.2f\n\n"+
			"Examples:\n"+
			"- 'STARBUCKS COFFEE' → Food\n"+
			"- 'WOOLWORTHS' → Food\n"+
			"- 'UBER TRIP' → Transportation\n"+
			"- 'NETFLIX SUBSCRIPTION' → Entertainment\n"+
			"- 'ELECTRICITY BILL' → Bills & Utilities\n"+
			"- 'DOCTOR VISIT' → Healthcare\n"+
			"- 'FLIGHT TICKET' → Transportation\n"+
			"- 'SALARY DEPOSIT' → Income\n"+
			"- 'BANK TRANSFER' → Transfers\n\n"+
			"Based on the description and amount pattern, classify this transaction.\n"+
			"Return ONLY the bucket name, nothing else.",
		strings.Join(c.buckets, ", "), tx.Description, tx.Amount,
	)
}

// BestBucketMatch resolves a model reply to a configured bucket. First a
// substring pass, then a whitespace word-match pass, both in configuration
// order; no match resolves to "Other". Pure function of (reply, buckets).
func BestBucketMatch(reply string, buckets []string) string {
	lower := strings.ToLower(reply)

	for _, bucket := range buckets {
		if strings.Contains(lower, strings.ToLower(bucket)) {
			return bucket
		}
	}

	replyWords := strings.Fields(lower)
	for _, bucket := range buckets {
		for _, bucketWord := range strings.Fields(strings.ToLower(bucket)) {
			for _, replyWord := range replyWords {
				if replyWord == bucketWord {
					return bucket
				}
			}
		}
	}

	return BucketOther
}
