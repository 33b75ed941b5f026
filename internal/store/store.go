// Package store defines the transactional ledger store the reconciliation
// service runs against. All balance mutations go through Store.WithAccount,
// which serializes transactions per account.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/fastprodman/rewardrecon/internal/models"
)

var (
	// ErrConflict marks a transient write conflict; the caller may retry the
	// whole transaction.
	ErrConflict            = errors.New("store conflict")
	ErrAccountNotFound     = errors.New("account not found")
	ErrTransactionNotFound = errors.New("transaction record not found")
)

// AccountTx is the view of one account inside a store transaction.
// Writes become visible atomically when the WithAccount callback returns nil.
type AccountTx interface {
	// Account returns the locked account, zero-valued if it does not exist
	// yet. The account is created only when the transaction writes something.
	Account() models.Account
	SetBalance(balance int64, at time.Time) error
	// FindTransaction looks the record up across all accounts.
	FindTransaction(vendor models.Vendor, transactionID string) (models.TransactionRecord, error)
	InsertTransaction(rec models.TransactionRecord) error
	MarkChargeback(vendor models.Vendor, transactionID string) error
	AppendLedger(entry models.LedgerEntry) error
}

type LedgerFilter struct {
	Vendor models.Vendor
	Since  time.Time
	Limit  int
}

type Store interface {
	WithAccount(ctx context.Context, accountID string, fn func(tx AccountTx) error) error
	GetBalance(ctx context.Context, accountID string) (int64, error)
	ListLedger(ctx context.Context, accountID string, filter LedgerFilter) ([]models.LedgerEntry, error)
	// LedgerSum is the sum of all ledger amounts of the account.
	LedgerSum(ctx context.Context, accountID string) (int64, error)
}
