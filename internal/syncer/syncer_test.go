package syncer_test

import (
	"context"
	"errors"
	"testing"

	"github.com/calvella/bucketsync/internal/domain"
	"github.com/calvella/bucketsync/internal/infra/observability"
	"github.com/calvella/bucketsync/internal/syncer"

	"go.uber.org/zap"
)

// --- Mocks ---

type mockBank struct {
	accounts     []domain.Account
	accountsErr  error
	transactions map[string][]domain.Transaction
	txErr        map[string]error
}

func (m *mockBank) GetAccounts(_ context.Context) ([]domain.Account, error) {
	return m.accounts, m.accountsErr
}

func (m *mockBank) GetBalance(_ context.Context, accountID string) (*domain.Balance, error) {
	return &domain.Balance{AccountID: accountID, AvailableBalance: 100, Currency: "ZAR"}, nil
}

func (m *mockBank) GetTransactions(_ context.Context, accountID, _, _ string) ([]domain.Transaction, error) {
	if err := m.txErr[accountID]; err != nil {
		return nil, err
	}
	return m.transactions[accountID], nil
}

type mockClassifier struct {
	bucket string
	err    error
	calls  int
}

func (m *mockClassifier) Classify(_ context.Context, _ *domain.Transaction) (string, error) {
	m.calls++
	return m.bucket, m.err
}

// fakeStore keeps persisted rows in memory, keyed by uuid.
type fakeStore struct {
	byUUID    map[string]int64
	nextID    int64
	inserts   int
	lookupErr error
	insertErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{byUUID: make(map[string]int64), nextID: 1}
}

func (f *fakeStore) FindTransactionIDByUUID(_ context.Context, uuid string) (int64, bool, error) {
	if f.lookupErr != nil {
		return 0, false, f.lookupErr
	}
	id, ok := f.byUUID[uuid]
	return id, ok, nil
}

func (f *fakeStore) InsertTransactionWithAnnotation(_ context.Context, tx *domain.Transaction, _ string, _ *string) (int64, error) {
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.inserts++
	id := f.nextID
	f.nextID++
	if tx.UUID != nil {
		f.byUUID[*tx.UUID] = id
	}
	return id, nil
}

func (f *fakeStore) Close() error { return nil }

func strPtr(s string) *string { return &s }

func newSyncer(bank *mockBank, c *mockClassifier) *syncer.Syncer {
	return syncer.New(bank, c, observability.NewMetrics(), zap.NewNop())
}

// --- Tests ---

func TestRun_PersistsClassifiedTransaction(t *testing.T) {
	bank := &mockBank{
		accounts: []domain.Account{{AccountID: "acc-1", AccountNumber: "10010"}},
		transactions: map[string][]domain.Transaction{
			"acc-1": {{AccountID: "acc-1", Description: "STARBUCKS COFFEE", Amount: -5.50, UUID: strPtr("u-1")}},
		},
	}
	store := newFakeStore()

	summary := newSyncer(bank, &mockClassifier{bucket: "Food"}).Run(context.Background(), store)

	if summary.Total != 1 || summary.New != 1 {
		t.Errorf("expected 1 seen / 1 new, got %+v", summary)
	}
	if store.inserts != 1 {
		t.Errorf("expected 1 insert, got %d", store.inserts)
	}
}

func TestRun_SecondRunIsIdempotent(t *testing.T) {
	bank := &mockBank{
		accounts: []domain.Account{{AccountID: "acc-1"}},
		transactions: map[string][]domain.Transaction{
			"acc-1": {
				{AccountID: "acc-1", Description: "STARBUCKS COFFEE", Amount: -5.50, UUID: strPtr("u-1")},
				{AccountID: "acc-1", Description: "UBER TRIP", Amount: -12.00, UUID: strPtr("u-2")},
			},
		},
	}
	store := newFakeStore()
	s := newSyncer(bank, &mockClassifier{bucket: "Food"})

	first := s.Run(context.Background(), store)
	if first.New != 2 {
		t.Fatalf("first run: expected 2 new, got %+v", first)
	}

	second := s.Run(context.Background(), store)
	if second.New != 0 || second.Duplicates != 2 {
		t.Errorf("second run: expected 0 new / 2 duplicates, got %+v", second)
	}
	if store.inserts != 2 {
		t.Errorf("expected 2 inserts in total, got %d", store.inserts)
	}
}

func TestRun_AccountsErrorEndsRun(t *testing.T) {
	bank := &mockBank{accountsErr: errors.New("401 unauthorized")}
	store := newFakeStore()
	c := &mockClassifier{bucket: "Food"}

	summary := newSyncer(bank, c).Run(context.Background(), store)

	if summary.Accounts != 0 || summary.Total != 0 {
		t.Errorf("expected empty summary, got %+v", summary)
	}
	if c.calls != 0 {
		t.Errorf("classifier should never run, got %d calls", c.calls)
	}
}

func TestRun_AccountErrorDoesNotAbortOthers(t *testing.T) {
	bank := &mockBank{
		accounts: []domain.Account{{AccountID: "acc-bad"}, {AccountID: "acc-good"}},
		transactions: map[string][]domain.Transaction{
			"acc-good": {{AccountID: "acc-good", Description: "WOOLWORTHS", Amount: -30, UUID: strPtr("u-1")}},
		},
		txErr: map[string]error{"acc-bad": errors.New("500 internal")},
	}
	store := newFakeStore()

	summary := newSyncer(bank, &mockClassifier{bucket: "Food"}).Run(context.Background(), store)

	if summary.Accounts != 2 {
		t.Errorf("expected both accounts visited, got %+v", summary)
	}
	if summary.New != 1 {
		t.Errorf("expected the healthy account's transaction persisted, got %+v", summary)
	}
}

func TestRun_DedupLookupErrorSkipsInsert(t *testing.T) {
	bank := &mockBank{
		accounts: []domain.Account{{AccountID: "acc-1"}},
		transactions: map[string][]domain.Transaction{
			"acc-1": {{AccountID: "acc-1", Description: "STARBUCKS COFFEE", UUID: strPtr("u-1")}},
		},
	}
	store := newFakeStore()
	store.lookupErr = errors.New("connection reset")

	summary := newSyncer(bank, &mockClassifier{bucket: "Food"}).Run(context.Background(), store)

	if summary.Skipped != 1 || summary.New != 0 {
		t.Errorf("expected skip without insert, got %+v", summary)
	}
	if store.inserts != 0 {
		t.Errorf("must not insert when dedup is unanswered, got %d inserts", store.inserts)
	}
}

func TestRun_ClassifierErrorSkipsPersist(t *testing.T) {
	bank := &mockBank{
		accounts: []domain.Account{{AccountID: "acc-1"}},
		transactions: map[string][]domain.Transaction{
			"acc-1": {{AccountID: "acc-1", Description: "STARBUCKS COFFEE", UUID: strPtr("u-1")}},
		},
	}
	store := newFakeStore()

	summary := newSyncer(bank, &mockClassifier{err: errors.New("all providers down")}).Run(context.Background(), store)

	if summary.Skipped != 1 || store.inserts != 0 {
		t.Errorf("expected skip without insert, got %+v (%d inserts)", summary, store.inserts)
	}
}

func TestRun_InsertErrorSkipsTransaction(t *testing.T) {
	bank := &mockBank{
		accounts: []domain.Account{{AccountID: "acc-1"}},
		transactions: map[string][]domain.Transaction{
			"acc-1": {{AccountID: "acc-1", Description: "STARBUCKS COFFEE", UUID: strPtr("u-1")}},
		},
	}
	store := newFakeStore()
	store.insertErr = errors.New("database is on fire")

	summary := newSyncer(bank, &mockClassifier{bucket: "Food"}).Run(context.Background(), store)

	if summary.Skipped != 1 || summary.New != 0 {
		t.Errorf("expected skip, got %+v", summary)
	}
}

func TestRun_MissingUUIDStillPersists(t *testing.T) {
	bank := &mockBank{
		accounts: []domain.Account{{AccountID: "acc-1"}},
		transactions: map[string][]domain.Transaction{
			"acc-1": {{AccountID: "acc-1", Description: "PENDING CARD HOLD", Amount: -9.99}},
		},
	}
	store := newFakeStore()

	summary := newSyncer(bank, &mockClassifier{bucket: "Food"}).Run(context.Background(), store)

	if summary.New != 1 {
		t.Errorf("transactions without a uuid must still persist, got %+v", summary)
	}
}
