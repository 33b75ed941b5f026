// Package vendors maps each offerwall's postback query parameters onto the
// canonical postback model and declares the field order its digest covers.
package vendors

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/fastprodman/rewardrecon/internal/models"
	"github.com/fastprodman/rewardrecon/internal/signature"
	"github.com/shopspring/decimal"
)

var ErrInvalidRequest = errors.New("invalid postback")

type Kind string

const (
	KindReward     Kind = "reward"
	KindChargeback Kind = "chargeback"
)

// Postback is a parsed, not yet verified, vendor callback.
type Postback struct {
	AccountID     string
	TransactionID string
	RawAmount     decimal.Decimal
	Kind          Kind
	// Fields feed the digest, in the vendor's order.
	Fields []signature.Field
	Digest string
	// Synthesized is set when TransactionID was derived rather than supplied.
	Synthesized bool
}

type Adapter interface {
	Vendor() models.Vendor
	// DefaultAlgorithm is the digest the vendor documents.
	DefaultAlgorithm() signature.Algorithm
	Parse(q url.Values) (Postback, error)
}

func param(q url.Values, name string) string {
	return strings.TrimSpace(q.Get(name))
}

func required(q url.Values, name string) (string, error) {
	v := param(q, name)
	if v == "" {
		return "", fmt.Errorf("%w: missing %s", ErrInvalidRequest, name)
	}

	return v, nil
}

func parseAmount(name, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %s: %w", ErrInvalidRequest, name, err)
	}

	if d.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("%w: %s must be >= 0", ErrInvalidRequest, name)
	}

	return d, nil
}
