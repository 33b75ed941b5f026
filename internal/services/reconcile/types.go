package reconcile

import (
	"errors"
	"fmt"

	"github.com/fastprodman/rewardrecon/internal/models"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	// ErrStorageUnavailable means the store could not complete the
	// read-modify-write; the vendor should redeliver.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

const NoMatchingRewardNote = "no matching reward record found"

// DefaultPointsPerUnit is $1 = 100 points.
var DefaultPointsPerUnit = decimal.NewFromInt(100)

// maxPoints bounds a single conversion so balances stay far from int64 overflow.
var maxPoints = decimal.NewFromInt(1 << 53)

type Request struct {
	AccountID     string
	Vendor        models.Vendor
	TransactionID string
	RawAmount     decimal.Decimal
	PointsPerUnit decimal.Decimal
}

type Result struct {
	Account models.Account
	// Points is the signed delta written to the ledger; zero for duplicates.
	Points int64
	// Duplicate is set when the (vendor, transaction id) was already processed.
	Duplicate bool
	// Clamped is set when a chargeback was cut short by the zero floor.
	Clamped          bool
	NoMatchingReward bool
	// OwnerMismatch is set when the transaction id belongs to another account.
	OwnerMismatch bool
}

// Audit compares an account's stored balance with the sum of its ledger.
type Audit struct {
	AccountID  string
	Balance    int64
	LedgerSum  int64
	Consistent bool
}

// ConvertPoints returns floor(raw * rate). Exact decimal arithmetic, so
// 0.125 * 100 is 12.
func ConvertPoints(raw, rate decimal.Decimal) int64 {
	return raw.Mul(rate).Floor().IntPart()
}

func (r Request) validate() error {
	if r.AccountID == "" {
		return fmt.Errorf("%w: account id required", ErrInvalidRequest)
	}

	if r.TransactionID == "" {
		return fmt.Errorf("%w: transaction id required", ErrInvalidRequest)
	}

	if !r.Vendor.Valid() {
		return fmt.Errorf("%w: unknown vendor %q", ErrInvalidRequest, r.Vendor)
	}

	if r.RawAmount.IsNegative() {
		return fmt.Errorf("%w: amount must be >= 0", ErrInvalidRequest)
	}

	if !r.PointsPerUnit.IsPositive() {
		return fmt.Errorf("%w: points per unit must be > 0", ErrInvalidRequest)
	}

	if r.RawAmount.Mul(r.PointsPerUnit).GreaterThanOrEqual(maxPoints) {
		return fmt.Errorf("%w: amount out of range", ErrInvalidRequest)
	}

	return nil
}
