package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fastprodman/rewardrecon/internal/infra/metrics"
	"github.com/fastprodman/rewardrecon/internal/models"
	"github.com/fastprodman/rewardrecon/internal/store"
	"github.com/google/uuid"
)

const (
	defaultMaxAttempts  = 5
	defaultRetryBackoff = 20 * time.Millisecond

	defaultLedgerLimit = 100
	maxLedgerLimit     = 1000
)

// BalanceCache is an optional read-through cache for GetBalance.
//
// Every invalidation bumps the account's generation. SetBalance stores the
// value only while the generation is still the one passed in, so a balance
// read before a commit is never written back after that commit invalidated it.
type BalanceCache interface {
	GetBalance(ctx context.Context, accountID string) (int64, error)
	Generation(ctx context.Context, accountID string) (int64, error)
	SetBalance(ctx context.Context, accountID string, balance, generation int64) error
	InvalidateBalance(ctx context.Context, accountID string) error
}

type Service struct {
	store        store.Store
	cache        BalanceCache
	logger       *slog.Logger
	maxAttempts  int
	retryBackoff time.Duration
	now          func() time.Time
}

type Option func(*Service)

func WithCache(c BalanceCache) Option {
	return func(s *Service) { s.cache = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMaxAttempts bounds how many times a conflicting transaction is run.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func WithRetryBackoff(d time.Duration) Option {
	return func(s *Service) { s.retryBackoff = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:        st,
		logger:       slog.Default(),
		maxAttempts:  defaultMaxAttempts,
		retryBackoff: defaultRetryBackoff,
		now:          func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// ApplyReward credits floor(RawAmount * PointsPerUnit) exactly once per
// (vendor, transaction id). In one account-scoped transaction:
//
// 1) Lock (or lazily create) the account.
// 2) Return a duplicate result if any record exists for the id.
// 3) Insert a completed record, bump the balance, append a ledger entry.
func (s *Service) ApplyReward(ctx context.Context, req Request) (Result, error) {
	err := req.validate()
	if err != nil {
		return Result{}, err
	}

	points := ConvertPoints(req.RawAmount, req.PointsPerUnit)

	var res Result

	err = s.run(ctx, "reward", req.AccountID, func(tx store.AccountTx) error {
		res = Result{}

		rec, err := tx.FindTransaction(req.Vendor, req.TransactionID)
		switch {
		case err == nil:
			res.Account = tx.Account()
			res.Duplicate = true
			res.OwnerMismatch = rec.AccountID != req.AccountID

			return nil
		case !errors.Is(err, store.ErrTransactionNotFound):
			return fmt.Errorf("find transaction: %w", err)
		}

		now := s.now()
		acc := tx.Account()

		err = tx.InsertTransaction(models.TransactionRecord{
			AccountID:     req.AccountID,
			Vendor:        req.Vendor,
			TransactionID: req.TransactionID,
			RawAmount:     req.RawAmount.String(),
			PointsApplied: points,
			Status:        models.StatusCompleted,
			CreatedAt:     now,
		})
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}

		err = tx.SetBalance(acc.PointBalance+points, now)
		if err != nil {
			return fmt.Errorf("set balance: %w", err)
		}

		err = tx.AppendLedger(models.LedgerEntry{
			ID:                  uuid.New(),
			Amount:              points,
			SourceVendor:        req.Vendor,
			SourceTransactionID: req.TransactionID,
			Description:         req.Vendor.DisplayName(),
			TS:                  now,
		})
		if err != nil {
			return fmt.Errorf("append ledger: %w", err)
		}

		res.Account = tx.Account()
		res.Points = points

		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("apply reward: %w", err)
	}

	s.afterCommit(ctx, "reward", req, res)

	return res, nil
}

// ApplyChargeback reverses floor(RawAmount * PointsPerUnit), clamped so the
// balance never goes below zero. The ledger entry carries the actual delta.
// A second chargeback for the same id is a no-op.
func (s *Service) ApplyChargeback(ctx context.Context, req Request) (Result, error) {
	err := req.validate()
	if err != nil {
		return Result{}, err
	}

	toReverse := ConvertPoints(req.RawAmount, req.PointsPerUnit)

	var res Result

	err = s.run(ctx, "chargeback", req.AccountID, func(tx store.AccountTx) error {
		res = Result{}

		found := false

		rec, err := tx.FindTransaction(req.Vendor, req.TransactionID)
		switch {
		case err == nil:
			if rec.AccountID != req.AccountID || rec.Status == models.StatusChargeback {
				res.Account = tx.Account()
				res.Duplicate = true
				res.OwnerMismatch = rec.AccountID != req.AccountID

				return nil
			}

			found = true
		case !errors.Is(err, store.ErrTransactionNotFound):
			return fmt.Errorf("find transaction: %w", err)
		}

		now := s.now()
		acc := tx.Account()
		applied := min(toReverse, acc.PointBalance)
		desc := req.Vendor.DisplayName() + " chargeback"

		if found {
			err = tx.MarkChargeback(req.Vendor, req.TransactionID)
			if err != nil {
				return fmt.Errorf("mark chargeback: %w", err)
			}
		} else {
			desc += ": " + NoMatchingRewardNote

			err = tx.InsertTransaction(models.TransactionRecord{
				AccountID:     req.AccountID,
				Vendor:        req.Vendor,
				TransactionID: req.TransactionID,
				RawAmount:     req.RawAmount.String(),
				PointsApplied: -applied,
				Status:        models.StatusChargeback,
				CreatedAt:     now,
			})
			if err != nil {
				return fmt.Errorf("insert transaction: %w", err)
			}
		}

		err = tx.SetBalance(acc.PointBalance-applied, now)
		if err != nil {
			return fmt.Errorf("set balance: %w", err)
		}

		err = tx.AppendLedger(models.LedgerEntry{
			ID:                  uuid.New(),
			Amount:              -applied,
			SourceVendor:        req.Vendor,
			SourceTransactionID: req.TransactionID,
			Description:         desc,
			TS:                  now,
		})
		if err != nil {
			return fmt.Errorf("append ledger: %w", err)
		}

		res.Account = tx.Account()
		res.Points = -applied
		res.Clamped = applied < toReverse
		res.NoMatchingReward = !found

		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("apply chargeback: %w", err)
	}

	if res.Clamped {
		s.logger.Warn("chargeback clamped at zero balance",
			"account_id", req.AccountID,
			"vendor", req.Vendor,
			"transaction_id", req.TransactionID,
			"requested", toReverse,
			"applied", -res.Points,
		)
	}

	s.afterCommit(ctx, "chargeback", req, res)

	return res, nil
}

// GetBalance reads through the cache when one is configured.
func (s *Service) GetBalance(ctx context.Context, accountID string) (int64, error) {
	var (
		gen  int64
		fill bool
	)

	if s.cache != nil {
		bal, err := s.cache.GetBalance(ctx, accountID)
		if err == nil {
			return bal, nil
		}

		// read before the store so a commit in between is detected
		gen, err = s.cache.Generation(ctx, accountID)
		if err != nil {
			s.logger.Warn("read balance cache generation", "account_id", accountID, "error", err)
		} else {
			fill = true
		}
	}

	bal, err := s.store.GetBalance(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}

	if fill {
		err = s.cache.SetBalance(ctx, accountID, bal, gen)
		if err != nil {
			s.logger.Debug("balance cache not filled", "account_id", accountID, "error", err)
		}
	}

	return bal, nil
}

func (s *Service) ListLedger(ctx context.Context, accountID string, filter store.LedgerFilter) ([]models.LedgerEntry, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLedgerLimit
	}

	if filter.Limit > maxLedgerLimit {
		filter.Limit = maxLedgerLimit
	}

	entries, err := s.store.ListLedger(ctx, accountID, filter)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}

	return entries, nil
}

// Audit reads the balance from the store, bypassing the cache.
func (s *Service) Audit(ctx context.Context, accountID string) (Audit, error) {
	bal, err := s.store.GetBalance(ctx, accountID)
	if err != nil {
		return Audit{}, fmt.Errorf("get balance: %w", err)
	}

	sum, err := s.store.LedgerSum(ctx, accountID)
	if err != nil {
		return Audit{}, fmt.Errorf("ledger sum: %w", err)
	}

	a := Audit{
		AccountID:  accountID,
		Balance:    bal,
		LedgerSum:  sum,
		Consistent: bal == sum,
	}

	if !a.Consistent {
		s.logger.Error("balance does not match ledger",
			"account_id", accountID,
			"balance", bal,
			"ledger_sum", sum,
		)
	}

	return a, nil
}

// run executes fn in an account transaction, retrying on store.ErrConflict.
// Every failure that reaches the caller wraps ErrStorageUnavailable.
func (s *Service) run(ctx context.Context, op, accountID string, fn func(tx store.AccountTx) error) error {
	var err error

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = s.store.WithAccount(ctx, accountID, fn)
		if err == nil {
			return nil
		}

		if !errors.Is(err, store.ErrConflict) || attempt == s.maxAttempts {
			break
		}

		metrics.ReconcileRetries.WithLabelValues(op).Inc()
		s.logger.Debug("store conflict, retrying",
			"op", op,
			"account_id", accountID,
			"attempt", attempt,
			"error", err,
		)

		timer := time.NewTimer(time.Duration(attempt) * s.retryBackoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()

			return fmt.Errorf("%w: %w", ErrStorageUnavailable, errors.Join(err, ctx.Err()))
		}
	}

	return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
}

func (s *Service) afterCommit(ctx context.Context, kind string, req Request, res Result) {
	if res.OwnerMismatch {
		s.logger.Warn("transaction id owned by another account",
			"kind", kind,
			"account_id", req.AccountID,
			"vendor", req.Vendor,
			"transaction_id", req.TransactionID,
		)
	}

	if res.Duplicate {
		s.logger.Info("duplicate postback ignored",
			"kind", kind,
			"account_id", req.AccountID,
			"vendor", req.Vendor,
			"transaction_id", req.TransactionID,
		)

		return
	}

	abs := res.Points
	if abs < 0 {
		abs = -abs
	}

	metrics.PointsApplied.WithLabelValues(string(req.Vendor), kind).Add(float64(abs))

	s.logger.Info("balance updated",
		"kind", kind,
		"account_id", req.AccountID,
		"vendor", req.Vendor,
		"transaction_id", req.TransactionID,
		"points", res.Points,
		"balance", res.Account.PointBalance,
	)

	if s.cache != nil {
		err := s.cache.InvalidateBalance(ctx, req.AccountID)
		if err != nil {
			s.logger.Error("invalidate balance cache", "account_id", req.AccountID, "error", err)
		}
	}
}
