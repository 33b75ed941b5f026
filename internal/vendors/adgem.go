package vendors

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/fastprodman/rewardrecon/internal/models"
	"github.com/fastprodman/rewardrecon/internal/signature"
)

// AdGem: GET ?appid=&player_id=&transaction_id=&payout=&status=&verifier=,
// verifier = hmac-sha256(secret, appid + player_id + transaction_id + payout + status).
// status is "completed" (default) or "reversed"; absent, it hashes as "".
type AdGem struct{}

func (AdGem) Vendor() models.Vendor { return models.VendorAdGem }

func (AdGem) DefaultAlgorithm() signature.Algorithm { return signature.HMACSHA256 }

func (AdGem) Parse(q url.Values) (Postback, error) {
	appID, err := required(q, "appid")
	if err != nil {
		return Postback{}, err
	}

	playerID, err := required(q, "player_id")
	if err != nil {
		return Postback{}, err
	}

	txID, err := required(q, "transaction_id")
	if err != nil {
		return Postback{}, err
	}

	rawPayout, err := required(q, "payout")
	if err != nil {
		return Postback{}, err
	}

	payout, err := parseAmount("payout", rawPayout)
	if err != nil {
		return Postback{}, err
	}

	digest, err := required(q, "verifier")
	if err != nil {
		return Postback{}, err
	}

	status := param(q, "status")
	kind := KindReward

	switch strings.ToLower(status) {
	case "", "completed":
	case "reversed":
		kind = KindChargeback
	default:
		return Postback{}, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, status)
	}

	return Postback{
		AccountID:     playerID,
		TransactionID: txID,
		RawAmount:     payout,
		Kind:          kind,
		Fields: []signature.Field{
			{Name: "appid", Value: appID},
			{Name: "player_id", Value: playerID},
			{Name: "transaction_id", Value: txID},
			{Name: "payout", Value: rawPayout},
			{Name: "status", Value: status, Optional: true},
		},
		Digest: digest,
	}, nil
}
