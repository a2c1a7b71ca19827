// Package domain holds the core types shared across the sync pipeline.
package domain

// Account is an Investec account as returned by the accounts endpoint.
// Accounts are read-only; they are never persisted.
type Account struct {
	AccountID     string `json:"accountId"`
	AccountNumber string `json:"accountNumber"`
	AccountName   string `json:"accountName"`
	ReferenceName string `json:"referenceName"`
	ProductName   string `json:"productName"`
	KYCCompliant  bool   `json:"kycCompliant"`
	ProfileID     string `json:"profileId"`
	ProfileName   string `json:"profileName"`
}

// Balance is the balance snapshot for a single account.
type Balance struct {
	AccountID        string  `json:"accountId"`
	CurrentBalance   float64 `json:"currentBalance"`
	AvailableBalance float64 `json:"availableBalance"`
	Currency         string  `json:"currency"`
	BudgetBalance    float64 `json:"budgetBalance"`
	StraightBalance  float64 `json:"straightBalance"`
	CashBalance      float64 `json:"cashBalance"`
}

// Transaction is a bank transaction as returned by the transactions endpoint.
// UUID, when the bank supplies it, is globally unique and immutable; it is the
// dedup key for persistence. Optional fields are pointers so absence survives
// the round-trip into the store.
type Transaction struct {
	AccountID       string   `json:"accountId"`
	Type            string   `json:"type"` // CREDIT or DEBIT
	TransactionType *string  `json:"transactionType"`
	Status          string   `json:"status"` // POSTED or PENDING
	Description     string   `json:"description"`
	CardNumber      *string  `json:"cardNumber"`
	PostedOrder     *float64 `json:"postedOrder"`
	PostingDate     *string  `json:"postingDate"`
	ValueDate       *string  `json:"valueDate"`
	ActionDate      *string  `json:"actionDate"`
	TransactionDate *string  `json:"transactionDate"`
	Amount          float64  `json:"amount"`
	RunningBalance  *float64 `json:"runningBalance"`
	UUID            *string  `json:"uuid"`
}

// Annotation is the classification attached to a persisted transaction.
// It is created atomically with its transaction row.
type Annotation struct {
	TransactionID int64
	Bucket        string
	Notes         *string
}
