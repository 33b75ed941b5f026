package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/fastprodman/rewardrecon/internal/infra/metrics"
	"github.com/fastprodman/rewardrecon/internal/services/reconcile"
	"github.com/fastprodman/rewardrecon/internal/signature"
	"github.com/fastprodman/rewardrecon/internal/vendors"
)

const (
	outcomeApplied      = "applied"
	outcomeDuplicate    = "duplicate"
	outcomeInvalid      = "invalid"
	outcomeBadSignature = "bad_signature"
	outcomeUnavailable  = "unavailable"
)

// PostbackHandler handles GET /postback/{vendor}[...] for one adapter.
// Every response is "1" (200) or "0" (400 or 500); vendors redeliver on 500.
func (h *HandlerProvider) PostbackHandler(a vendors.Adapter) http.HandlerFunc {
	vendor := a.Vendor()
	cfg := h.opts.Vendors.For(vendor)

	return func(w http.ResponseWriter, r *http.Request) {
		pb, err := a.Parse(r.URL.Query())
		if err != nil {
			metrics.PostbacksTotal.WithLabelValues(string(vendor), "unknown", outcomeInvalid).Inc()
			h.logger.Warn("invalid postback", "vendor", vendor, "error", err)
			writeAck(w, http.StatusBadRequest)

			return
		}

		kind := string(pb.Kind)

		if !signature.Verify(cfg.Algorithm, pb.Fields, cfg.Secret, pb.Digest) {
			metrics.PostbacksTotal.WithLabelValues(string(vendor), kind, outcomeBadSignature).Inc()
			h.logger.Warn("postback signature mismatch",
				"vendor", vendor,
				"account_id", pb.AccountID,
				"transaction_id", pb.TransactionID,
				"fields", signature.FieldNames(pb.Fields),
			)
			writeAck(w, http.StatusBadRequest)

			return
		}

		ctx := r.Context()
		if h.opts.Timeout > 0 {
			var cancel context.CancelFunc

			ctx, cancel = context.WithTimeout(ctx, h.opts.Timeout)
			defer cancel()
		}

		req := reconcile.Request{
			AccountID:     pb.AccountID,
			Vendor:        vendor,
			TransactionID: pb.TransactionID,
			RawAmount:     pb.RawAmount,
			PointsPerUnit: h.opts.PointsPerUnit,
		}

		var res reconcile.Result
		if pb.Kind == vendors.KindChargeback {
			res, err = h.svc.ApplyChargeback(ctx, req)
		} else {
			res, err = h.svc.ApplyReward(ctx, req)
		}

		if err != nil {
			status, outcome := http.StatusInternalServerError, outcomeUnavailable
			if errors.Is(err, reconcile.ErrInvalidRequest) {
				status, outcome = http.StatusBadRequest, outcomeInvalid
			}

			metrics.PostbacksTotal.WithLabelValues(string(vendor), kind, outcome).Inc()
			h.logger.Error("postback not applied",
				"vendor", vendor,
				"kind", kind,
				"account_id", pb.AccountID,
				"transaction_id", pb.TransactionID,
				"error", err,
			)
			writeAck(w, status)

			return
		}

		outcome := outcomeApplied
		if res.Duplicate {
			outcome = outcomeDuplicate
		}

		metrics.PostbacksTotal.WithLabelValues(string(vendor), kind, outcome).Inc()
		writeAck(w, http.StatusOK)
	}
}
