// Package postgres adapts the account, vendor transaction and ledger repos to
// store.Store. An account transaction is a database transaction that starts by
// locking the account row, so transactions on one account serialize while
// different accounts proceed independently.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fastprodman/rewardrecon/internal/infra/pgutils"
	"github.com/fastprodman/rewardrecon/internal/models"
	"github.com/fastprodman/rewardrecon/internal/repos/accounts"
	pgaccounts "github.com/fastprodman/rewardrecon/internal/repos/accounts/postgres"
	"github.com/fastprodman/rewardrecon/internal/repos/ledger"
	pgledger "github.com/fastprodman/rewardrecon/internal/repos/ledger/postgres"
	"github.com/fastprodman/rewardrecon/internal/repos/vendortxns"
	pgvendortxns "github.com/fastprodman/rewardrecon/internal/repos/vendortxns/postgres"
	"github.com/fastprodman/rewardrecon/internal/store"
)

var _ store.Store = (*Store)(nil)

// errNoWrites rolls back a transaction whose callback changed nothing, so a
// lookup never leaves behind the account row EnsureAndLock created.
var errNoWrites = errors.New("no writes")

type Store struct {
	db       *sql.DB
	accounts accounts.Accounts
	txns     vendortxns.VendorTxns
	ledger   ledger.Ledger
}

func New(db *sql.DB) *Store {
	return &Store{
		db:       db,
		accounts: pgaccounts.New(db),
		txns:     pgvendortxns.New(db),
		ledger:   pgledger.New(db),
	}
}

func (s *Store) WithAccount(ctx context.Context, accountID string, fn func(tx store.AccountTx) error) error {
	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		acc, err := s.accounts.EnsureAndLock(ctx, tx, accountID)
		if err != nil {
			return fmt.Errorf("lock account: %w", err)
		}

		atx := &accountTx{ctx: ctx, s: s, tx: tx, account: acc}

		err = fn(atx)
		if err != nil {
			return err
		}

		if !atx.wrote {
			return errNoWrites
		}

		return nil
	})
	if errors.Is(err, errNoWrites) {
		return nil
	}

	if err != nil {
		// a racing insert of the same (vendor, id) under another account
		// aborts the tx; a rerun sees the committed record
		if pgutils.IsRetryable(err) || errors.Is(err, vendortxns.ErrDuplicateTransaction) {
			return fmt.Errorf("%w: %w", store.ErrConflict, err)
		}

		return fmt.Errorf("account tx: %w", err)
	}

	return nil
}

func (s *Store) GetBalance(ctx context.Context, accountID string) (int64, error) {
	bal, err := s.accounts.GetBalance(ctx, accountID)
	if err != nil {
		if errors.Is(err, accounts.ErrAccountNotFound) {
			return 0, store.ErrAccountNotFound
		}

		return 0, fmt.Errorf("get balance: %w", err)
	}

	return bal, nil
}

func (s *Store) ListLedger(ctx context.Context, accountID string, filter store.LedgerFilter) ([]models.LedgerEntry, error) {
	entries, err := s.ledger.List(ctx, accountID, ledger.Filter{
		Vendor: filter.Vendor,
		Since:  filter.Since,
		Limit:  filter.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}

	return entries, nil
}

func (s *Store) LedgerSum(ctx context.Context, accountID string) (int64, error) {
	sum, err := s.ledger.Sum(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("ledger sum: %w", err)
	}

	return sum, nil
}

type accountTx struct {
	ctx     context.Context
	s       *Store
	tx      *sql.Tx
	account models.Account
	wrote   bool
}

func (t *accountTx) Account() models.Account { return t.account }

func (t *accountTx) SetBalance(balance int64, at time.Time) error {
	err := t.s.accounts.SetBalance(t.ctx, t.tx, t.account.AccountID, balance, at)
	if err != nil {
		return fmt.Errorf("set balance: %w", err)
	}

	t.wrote = true

	t.account.PointBalance = balance
	t.account.UpdatedAt = at

	return nil
}

func (t *accountTx) FindTransaction(vendor models.Vendor, transactionID string) (models.TransactionRecord, error) {
	rec, err := t.s.txns.Get(t.ctx, t.tx, vendor, transactionID)
	if err != nil {
		if errors.Is(err, vendortxns.ErrNotFound) {
			return models.TransactionRecord{}, store.ErrTransactionNotFound
		}

		return models.TransactionRecord{}, fmt.Errorf("find transaction: %w", err)
	}

	return rec, nil
}

func (t *accountTx) InsertTransaction(rec models.TransactionRecord) error {
	rec.AccountID = t.account.AccountID

	err := t.s.txns.Insert(t.ctx, t.tx, rec)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	t.wrote = true

	return nil
}

func (t *accountTx) MarkChargeback(vendor models.Vendor, transactionID string) error {
	err := t.s.txns.MarkChargeback(t.ctx, t.tx, vendor, transactionID, t.account.AccountID)
	if err != nil {
		if errors.Is(err, vendortxns.ErrNotFound) {
			return store.ErrTransactionNotFound
		}

		return fmt.Errorf("mark chargeback: %w", err)
	}

	t.wrote = true

	return nil
}

func (t *accountTx) AppendLedger(entry models.LedgerEntry) error {
	entry.AccountID = t.account.AccountID

	err := t.s.ledger.Append(t.ctx, t.tx, entry)
	if err != nil {
		return fmt.Errorf("append ledger: %w", err)
	}

	t.wrote = true

	return nil
}
