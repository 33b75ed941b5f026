package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Vendor string

const (
	VendorOfferToro Vendor = "offertoro"
	VendorAdGem     Vendor = "adgem"
	VendorCPX       Vendor = "cpx"
)

// DisplayName is used as the ledger entry description.
func (v Vendor) DisplayName() string {
	switch v {
	case VendorOfferToro:
		return "OfferToro"
	case VendorAdGem:
		return "AdGem"
	case VendorCPX:
		return "CPX Research"
	default:
		return string(v)
	}
}

func (v Vendor) Valid() bool {
	switch v {
	case VendorOfferToro, VendorAdGem, VendorCPX:
		return true
	default:
		return false
	}
}

func ParseVendor(s string) (Vendor, error) {
	v := Vendor(strings.ToLower(strings.TrimSpace(s)))
	if !v.Valid() {
		return "", fmt.Errorf("unknown vendor %q", s)
	}

	return v, nil
}

type TxStatus string

const (
	StatusCompleted  TxStatus = "completed"
	StatusChargeback TxStatus = "chargeback"
)

type Account struct {
	AccountID    string
	PointBalance int64
	UpdatedAt    time.Time
}

// TransactionRecord is unique per (Vendor, TransactionID). A completed record may
// move to chargeback; chargeback is terminal.
type TransactionRecord struct {
	AccountID     string
	Vendor        Vendor
	TransactionID string
	RawAmount     string // decimal string as reported by the vendor
	PointsApplied int64
	Status        TxStatus
	CreatedAt     time.Time
}

type LedgerEntry struct {
	ID                  uuid.UUID
	AccountID           string
	Amount              int64
	SourceVendor        Vendor
	SourceTransactionID string
	Description         string
	TS                  time.Time
}
