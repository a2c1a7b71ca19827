// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the pipeline from
// concrete implementations.
package port

import (
	"context"

	"github.com/calvella/bucketsync/internal/domain"
)

// BankClient is the typed surface over the bank's REST API.
// Dates are YYYY-MM-DD strings; callers choose the timezone.
type BankClient interface {
	GetAccounts(ctx context.Context) ([]domain.Account, error)
	GetBalance(ctx context.Context, accountID string) (*domain.Balance, error)
	GetTransactions(ctx context.Context, accountID, fromDate, toDate string) ([]domain.Transaction, error)
}

// ChatProvider sends a prompt to an LLM and returns its text reply,
// trimmed of surrounding whitespace.
type ChatProvider interface {
	Chat(ctx context.Context, prompt string) (string, error)
}

// BuiltinSearchChatProvider is a ChatProvider whose remote model can perform
// its own retrieval as part of answering.
type BuiltinSearchChatProvider interface {
	ChatProvider
	ChatWithBuiltinSearch(ctx context.Context, prompt string) (string, error)
}

// Searcher issues a web search and returns a compact textual context.
// Search is best-effort: uninformative upstream responses yield sentinel
// text, not errors.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// TransactionClassifier assigns a spending bucket to a transaction.
type TransactionClassifier interface {
	Classify(ctx context.Context, tx *domain.Transaction) (string, error)
}

// TransactionStore persists transactions and their annotations.
type TransactionStore interface {
	// FindTransactionIDByUUID is the dedup point lookup. ok is false when no
	// row carries the uuid.
	FindTransactionIDByUUID(ctx context.Context, uuid string) (id int64, ok bool, err error)

	// InsertTransactionWithAnnotation writes the transaction and its
	// annotation in one DB transaction. On any error neither row exists.
	InsertTransactionWithAnnotation(ctx context.Context, tx *domain.Transaction, bucket string, notes *string) (int64, error)

	Close() error
}

// StoreFactory opens a fresh persistence handle. The scheduler uses one per
// tick so a wedged pool never outlives a run.
type StoreFactory func(ctx context.Context) (TransactionStore, error)

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
