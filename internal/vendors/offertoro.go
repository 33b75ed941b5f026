package vendors

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/fastprodman/rewardrecon/internal/models"
	"github.com/fastprodman/rewardrecon/internal/signature"
	"github.com/google/uuid"
)

// SynthesizedPrefix marks derived OfferToro ids; OfferToro's own ids are numeric.
const SynthesizedPrefix = "synth-"

// OfferToro: GET ?id=&oid=&user_id=&amount=&sig=,
// sig = md5(id + user_id + amount + secret). Reversals arrive on a separate
// route, mounted with Reversal set, and are signed over
// id + user_id + amount + "chargeback" so a reward URL cannot be replayed there.
//
// OfferToro is the only integration that may omit the transaction id. Then
// oid takes the place of id in the digest and the id is derived from
// (oid, user_id, amount), so a retried delivery maps to the same id.
type OfferToro struct {
	Reversal bool
}

// offerToroReversalMarker closes the digest input on the reversal route.
const offerToroReversalMarker = "chargeback"

func (OfferToro) Vendor() models.Vendor { return models.VendorOfferToro }

func (OfferToro) DefaultAlgorithm() signature.Algorithm { return signature.MD5 }

func (o OfferToro) Parse(q url.Values) (Postback, error) {
	userID, err := required(q, "user_id")
	if err != nil {
		return Postback{}, err
	}

	rawAmount, err := required(q, "amount")
	if err != nil {
		return Postback{}, err
	}

	amount, err := parseAmount("amount", rawAmount)
	if err != nil {
		return Postback{}, err
	}

	digest, err := required(q, "sig")
	if err != nil {
		return Postback{}, err
	}

	pb := Postback{
		AccountID:     userID,
		TransactionID: param(q, "id"),
		RawAmount:     amount,
		Kind:          KindReward,
		Digest:        digest,
	}

	if strings.HasPrefix(pb.TransactionID, SynthesizedPrefix) {
		return Postback{}, fmt.Errorf("%w: reserved id prefix", ErrInvalidRequest)
	}

	idField := signature.Field{Name: "id", Value: pb.TransactionID}

	if pb.TransactionID == "" {
		oid := param(q, "oid")
		if oid == "" {
			return Postback{}, fmt.Errorf("%w: missing id and oid", ErrInvalidRequest)
		}

		idField = signature.Field{Name: "oid", Value: oid}
		pb.TransactionID = SynthesizeID(oid, userID, rawAmount)
		pb.Synthesized = true
	}

	pb.Fields = []signature.Field{
		idField,
		{Name: "user_id", Value: userID},
		{Name: "amount", Value: rawAmount},
	}

	if o.Reversal {
		pb.Kind = KindChargeback
		pb.Fields = append(pb.Fields, signature.Field{Name: "reversal", Value: offerToroReversalMarker})
	}

	return pb, nil
}

// SynthesizeID derives a stable id from the offer, user and amount.
func SynthesizeID(oid, userID, amount string) string {
	name := oid + "|" + userID + "|" + amount

	return SynthesizedPrefix + uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}
