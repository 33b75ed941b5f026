// Package memory is an in-process implementation of store.Store. Transactions
// on the same account are serialized by a per-account lock; writes are staged
// and applied on commit so a failed callback leaves no trace.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fastprodman/rewardrecon/internal/models"
	"github.com/fastprodman/rewardrecon/internal/store"
)

var _ store.Store = (*Store)(nil)

type txKey struct {
	vendor models.Vendor
	id     string
}

type Store struct {
	mu       sync.Mutex
	locks    map[string]chan struct{}
	accounts map[string]models.Account
	txns     map[txKey]models.TransactionRecord
	ledger   map[string][]models.LedgerEntry

	// commitHook, when set, runs before each commit; a non-nil error aborts it.
	commitHook func(accountID string) error
}

func New() *Store {
	return &Store{
		locks:    make(map[string]chan struct{}),
		accounts: make(map[string]models.Account),
		txns:     make(map[txKey]models.TransactionRecord),
		ledger:   make(map[string][]models.LedgerEntry),
	}
}

// SetCommitHook installs a function consulted before every commit. Used by
// tests to simulate conflicts and outages.
func (s *Store) SetCommitHook(fn func(accountID string) error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.commitHook = fn
}

func (s *Store) accountLock(accountID string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[accountID]
	if !ok {
		l = make(chan struct{}, 1)
		s.locks[accountID] = l
	}

	return l
}

func (s *Store) WithAccount(ctx context.Context, accountID string, fn func(tx store.AccountTx) error) error {
	lock := s.accountLock(accountID)

	select {
	case lock <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("acquire account lock: %w", ctx.Err())
	}
	defer func() { <-lock }()

	s.mu.Lock()
	acc, ok := s.accounts[accountID]
	s.mu.Unlock()

	if !ok {
		acc = models.Account{AccountID: accountID}
	}

	tx := &accountTx{
		s:        s,
		account:  acc,
		inserted: make(map[txKey]models.TransactionRecord),
		marked:   make(map[txKey]struct{}),
	}

	err := fn(tx)
	if err != nil {
		return fmt.Errorf("fn: %w", err)
	}

	err = ctx.Err()
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	// nothing staged; an account seen only by lookups is not created
	if !tx.wrote {
		return nil
	}

	return s.commit(tx)
}

func (s *Store) commit(tx *accountTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.commitHook != nil {
		err := s.commitHook(tx.account.AccountID)
		if err != nil {
			return fmt.Errorf("commit: %w", err)
		}
	}

	// unique (vendor, transaction_id) across accounts
	for k := range tx.inserted {
		if _, exists := s.txns[k]; exists {
			return fmt.Errorf("insert %s/%s: %w", k.vendor, k.id, store.ErrConflict)
		}
	}

	s.accounts[tx.account.AccountID] = tx.account

	for k, rec := range tx.inserted {
		s.txns[k] = rec
	}

	for k := range tx.marked {
		rec := s.txns[k]
		rec.Status = models.StatusChargeback
		s.txns[k] = rec
	}

	s.ledger[tx.account.AccountID] = append(s.ledger[tx.account.AccountID], tx.entries...)

	return nil
}

func (s *Store) GetBalance(ctx context.Context, accountID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[accountID]
	if !ok {
		return 0, store.ErrAccountNotFound
	}

	return acc.PointBalance, nil
}

// ListLedger returns entries newest first.
func (s *Store) ListLedger(ctx context.Context, accountID string, filter store.LedgerFilter) ([]models.LedgerEntry, error) {
	s.mu.Lock()
	entries := append([]models.LedgerEntry(nil), s.ledger[accountID]...)
	s.mu.Unlock()

	out := make([]models.LedgerEntry, 0, len(entries))

	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if filter.Vendor != "" && e.SourceVendor != filter.Vendor {
			continue
		}

		if !filter.Since.IsZero() && e.TS.Before(filter.Since) {
			continue
		}

		out = append(out, e)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].TS.After(out[j].TS) })

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}

	return out, nil
}

func (s *Store) LedgerSum(ctx context.Context, accountID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sum int64
	for _, e := range s.ledger[accountID] {
		sum += e.Amount
	}

	return sum, nil
}

// Transaction returns a committed record, for assertions.
func (s *Store) Transaction(vendor models.Vendor, transactionID string) (models.TransactionRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.txns[txKey{vendor, transactionID}]

	return rec, ok
}

// TransactionCount returns the number of committed records.
func (s *Store) TransactionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.txns)
}

type accountTx struct {
	s        *Store
	account  models.Account
	inserted map[txKey]models.TransactionRecord
	marked   map[txKey]struct{}
	entries  []models.LedgerEntry
	wrote    bool
}

func (t *accountTx) Account() models.Account { return t.account }

func (t *accountTx) SetBalance(balance int64, at time.Time) error {
	if balance < 0 {
		return fmt.Errorf("set balance %d: negative balance", balance)
	}

	t.account.PointBalance = balance
	t.account.UpdatedAt = at
	t.wrote = true

	return nil
}

func (t *accountTx) FindTransaction(vendor models.Vendor, transactionID string) (models.TransactionRecord, error) {
	k := txKey{vendor, transactionID}

	if rec, ok := t.inserted[k]; ok {
		return rec, nil
	}

	t.s.mu.Lock()
	rec, ok := t.s.txns[k]
	t.s.mu.Unlock()

	if !ok {
		return models.TransactionRecord{}, store.ErrTransactionNotFound
	}

	if _, marked := t.marked[k]; marked {
		rec.Status = models.StatusChargeback
	}

	return rec, nil
}

func (t *accountTx) InsertTransaction(rec models.TransactionRecord) error {
	k := txKey{rec.Vendor, rec.TransactionID}

	_, err := t.FindTransaction(rec.Vendor, rec.TransactionID)
	if err == nil {
		return fmt.Errorf("insert %s/%s: %w", rec.Vendor, rec.TransactionID, store.ErrConflict)
	}

	rec.AccountID = t.account.AccountID
	t.inserted[k] = rec
	t.wrote = true

	return nil
}

func (t *accountTx) MarkChargeback(vendor models.Vendor, transactionID string) error {
	k := txKey{vendor, transactionID}

	if rec, ok := t.inserted[k]; ok {
		rec.Status = models.StatusChargeback
		t.inserted[k] = rec
		t.wrote = true

		return nil
	}

	t.s.mu.Lock()
	rec, ok := t.s.txns[k]
	t.s.mu.Unlock()

	if !ok || rec.AccountID != t.account.AccountID {
		return store.ErrTransactionNotFound
	}

	t.marked[k] = struct{}{}
	t.wrote = true

	return nil
}

func (t *accountTx) AppendLedger(entry models.LedgerEntry) error {
	entry.AccountID = t.account.AccountID
	t.entries = append(t.entries, entry)
	t.wrote = true

	return nil
}
