// Package store persists transactions and their annotations in Postgres.
// Schema migrations are embedded in the binary and applied on Open.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/calvella/bucketsync/internal/domain"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var tracer = otel.Tracer("infra/store")

// Postgres is the TransactionStore backed by a lib/pq connection pool.
type Postgres struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open connects to databaseURL, configures the pool and applies pending
// migrations. Safe to call on every scheduler tick; migrations are
// idempotent across restarts.
func Open(ctx context.Context, databaseURL string, logger *zap.Logger) (*Postgres, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Postgres{db: db, logger: logger}, nil
}

// NewWithDB wraps an existing handle without running migrations. Used by
// tests to inject a mocked *sql.DB.
func NewWithDB(db *sql.DB, logger *zap.Logger) *Postgres {
	return &Postgres{db: db, logger: logger}
}

func runMigrations(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}
	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// FindTransactionIDByUUID is the dedup point lookup.
func (p *Postgres) FindTransactionIDByUUID(ctx context.Context, uuid string) (int64, bool, error) {
	ctx, span := tracer.Start(ctx, "Postgres.FindTransactionIDByUUID")
	defer span.End()

	var id int64
	err := p.db.QueryRowContext(ctx,
		`SELECT id FROM investec_transactions WHERE uuid = $1 LIMIT 1`, uuid,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// InsertTransactionWithAnnotation writes the transaction row and its
// annotation inside one DB transaction; on any error both are rolled back.
func (p *Postgres) InsertTransactionWithAnnotation(ctx context.Context, t *domain.Transaction, bucket string, notes *string) (int64, error) {
	ctx, span := tracer.Start(ctx, "Postgres.InsertTransactionWithAnnotation")
	defer span.End()

	txn, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer txn.Rollback()

	var id int64
	err = txn.QueryRowContext(ctx, `
		INSERT INTO investec_transactions (
			account_id, tx_type, transaction_type, status, description,
			card_number, posted_order, posting_date, value_date, action_date,
			transaction_date, amount, running_balance, uuid
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`,
		t.AccountID, t.Type, t.TransactionType, t.Status, t.Description,
		t.CardNumber, t.PostedOrder, t.PostingDate, t.ValueDate, t.ActionDate,
		t.TransactionDate, t.Amount, t.RunningBalance, t.UUID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}

	_, err = txn.ExecContext(ctx, `
		INSERT INTO transaction_annotations (
			investec_transaction_id, bucket, notes
		) VALUES ($1, $2, $3)`,
		id, bucket, notes,
	)
	if err != nil {
		return 0, fmt.Errorf("insert annotation: %w", err)
	}

	if err := txn.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}
