package vendors

import (
	"fmt"
	"net/url"

	"github.com/fastprodman/rewardrecon/internal/models"
	"github.com/fastprodman/rewardrecon/internal/signature"
)

// CPX Research status codes.
const (
	cpxStatusCompleted = "1"
	cpxStatusReversed  = "2"
)

// CPX: GET ?trans_id=&user_id=&amount_usd=&currency=&timestamp=&status=&ip_click=&hash=,
// hash = md5(trans_id + user_id + amount_usd + currency + timestamp + status + ip_click + secret).
// ip_click is optional and hashes as "" when absent.
type CPX struct{}

func (CPX) Vendor() models.Vendor { return models.VendorCPX }

func (CPX) DefaultAlgorithm() signature.Algorithm { return signature.MD5 }

func (CPX) Parse(q url.Values) (Postback, error) {
	fields := []signature.Field{
		{Name: "trans_id"},
		{Name: "user_id"},
		{Name: "amount_usd"},
		{Name: "currency"},
		{Name: "timestamp"},
		{Name: "status"},
		{Name: "ip_click", Optional: true},
	}

	for i := range fields {
		if fields[i].Optional {
			fields[i].Value = param(q, fields[i].Name)
			continue
		}

		v, err := required(q, fields[i].Name)
		if err != nil {
			return Postback{}, err
		}

		fields[i].Value = v
	}

	amount, err := parseAmount("amount_usd", fields[2].Value)
	if err != nil {
		return Postback{}, err
	}

	digest, err := required(q, "hash")
	if err != nil {
		return Postback{}, err
	}

	var kind Kind

	switch fields[5].Value {
	case cpxStatusCompleted:
		kind = KindReward
	case cpxStatusReversed:
		kind = KindChargeback
	default:
		return Postback{}, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, fields[5].Value)
	}

	return Postback{
		AccountID:     fields[1].Value,
		TransactionID: fields[0].Value,
		RawAmount:     amount,
		Kind:          kind,
		Fields:        fields,
		Digest:        digest,
	}, nil
}
