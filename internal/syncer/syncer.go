// Package syncer runs one end-to-end sync tick: list accounts, fetch each
// account's transaction window, dedup, classify and persist. Errors never
// abort a run; they are logged and the run moves on.
package syncer

import (
	"context"
	"time"

	"github.com/calvella/bucketsync/internal/domain"
	"github.com/calvella/bucketsync/internal/infra/observability"
	"github.com/calvella/bucketsync/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("syncer")

const dateLayout = "2006-01-02"

// Summary aggregates the counts of one run for observability.
type Summary struct {
	Accounts   int
	Total      int
	New        int
	Duplicates int
	Skipped    int
}

// Syncer orchestrates the pipeline. The persistence handle is passed per run
// so the scheduler can open a fresh one each tick.
type Syncer struct {
	bank       port.BankClient
	classifier port.TransactionClassifier
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// New creates the orchestrator with all dependencies injected.
func New(bank port.BankClient, classifier port.TransactionClassifier, metrics *observability.Metrics, logger *zap.Logger) *Syncer {
	return &Syncer{
		bank:       bank,
		classifier: classifier,
		metrics:    metrics,
		logger:     logger,
	}
}

// Run executes one sync tick against the given store. Accounts are processed
// strictly sequentially; within an account, transactions keep the order the
// bank returned.
func (s *Syncer) Run(ctx context.Context, store port.TransactionStore) Summary {
	runID := uuid.NewString()
	ctx, span := tracer.Start(ctx, "Syncer.Run")
	defer span.End()
	span.SetAttributes(attribute.String("run.id", runID))

	start := time.Now()
	log := s.logger.With(zap.String("run_id", runID))

	var summary Summary

	accounts, err := s.bank.GetAccounts(ctx)
	if err != nil {
		log.Error("failed to list accounts", zap.Error(err))
		s.metrics.IncrSyncRun("failed")
		return summary
	}
	log.Info("starting sync run", zap.Int("accounts", len(accounts)))

	// The window is the current UTC day: fromDate today, toDate tomorrow.
	today := time.Now().UTC()
	fromDate := today.Format(dateLayout)
	toDate := today.AddDate(0, 0, 1).Format(dateLayout)

	for _, account := range accounts {
		summary.Accounts++
		alog := log.With(
			zap.String("account_id", account.AccountID),
			zap.String("account_number", account.AccountNumber),
		)

		if balance, err := s.bank.GetBalance(ctx, account.AccountID); err == nil {
			alog.Debug("account balance",
				zap.Float64("available", balance.AvailableBalance),
				zap.String("currency", balance.Currency),
			)
		}

		transactions, err := s.bank.GetTransactions(ctx, account.AccountID, fromDate, toDate)
		if err != nil {
			alog.Error("failed to get transactions", zap.Error(err))
			continue
		}
		alog.Info("fetched transactions",
			zap.Int("count", len(transactions)),
			zap.String("from", fromDate),
			zap.String("to", toDate),
		)

		for i := range transactions {
			s.processTransaction(ctx, alog, store, &transactions[i], &summary)
		}
	}

	s.metrics.IncrSyncRun("ok")
	s.metrics.RecordOperationDuration("sync_run", time.Since(start))
	span.SetAttributes(
		attribute.Int("transactions.total", summary.Total),
		attribute.Int("transactions.new", summary.New),
	)
	log.Info("sync run complete",
		zap.Int("accounts", summary.Accounts),
		zap.Int("total", summary.Total),
		zap.Int("new", summary.New),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("skipped", summary.Skipped),
		zap.Duration("duration", time.Since(start)),
	)
	return summary
}

// processTransaction handles one transaction: dedup, classify, persist.
// Every failure path skips just this transaction.
func (s *Syncer) processTransaction(ctx context.Context, log *zap.Logger, store port.TransactionStore, tx *domain.Transaction, summary *Summary) {
	summary.Total++
	s.metrics.IncrTransaction("seen")

	if tx.UUID != nil {
		id, exists, err := store.FindTransactionIDByUUID(ctx, *tx.UUID)
		if err != nil {
			// Without the dedup answer we must not insert blindly.
			log.Error("dedup lookup failed, skipping transaction",
				zap.String("uuid", *tx.UUID),
				zap.Error(err),
			)
			summary.Skipped++
			s.metrics.IncrTransaction("skipped")
			return
		}
		if exists {
			log.Debug("transaction already saved, skipping",
				zap.String("uuid", *tx.UUID),
				zap.Int64("id", id),
			)
			summary.Duplicates++
			s.metrics.IncrTransaction("duplicate")
			return
		}
	}

	bucket, err := s.classifier.Classify(ctx, tx)
	if err != nil {
		log.Warn("classification failed, skipping persist",
			zap.String("description", tx.Description),
			zap.Error(err),
		)
		summary.Skipped++
		s.metrics.IncrTransaction("skipped")
		return
	}

	id, err := store.InsertTransactionWithAnnotation(ctx, tx, bucket, nil)
	if err != nil {
		log.Error("failed to persist transaction and annotation",
			zap.String("description", tx.Description),
			zap.Error(err),
		)
		summary.Skipped++
		s.metrics.IncrTransaction("skipped")
		return
	}

	summary.New++
	s.metrics.IncrTransaction("new")
	log.Info("transaction persisted",
		zap.Int64("id", id),
		zap.String("description", tx.Description),
		zap.Float64("amount", tx.Amount),
		zap.String("bucket", bucket),
	)
}
