package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/fastprodman/rewardrecon/internal/models"
	"github.com/fastprodman/rewardrecon/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type ledgerEntryResponse struct {
	ID                  uuid.UUID `json:"id"`
	Amount              int64     `json:"amount"`
	SourceVendor        string    `json:"sourceVendor"`
	SourceTransactionID string    `json:"sourceTransactionId"`
	Description         string    `json:"description"`
	TS                  time.Time `json:"ts"`
}

// GetBalanceHandler handles GET /accounts/{accountId}/balance
func (h *HandlerProvider) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountId")

	bal, err := h.svc.GetBalance(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}

		h.logger.Error("get balance", "account_id", accountID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"accountId": accountID,
		"balance":   bal,
	})
}

// ListLedgerHandler handles GET /accounts/{accountId}/ledger?vendor=&since=&limit=
func (h *HandlerProvider) ListLedgerHandler(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountId")
	q := r.URL.Query()

	var filter store.LedgerFilter

	if v := q.Get("vendor"); v != "" {
		vendor, err := models.ParseVendor(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid vendor")
			return
		}

		filter.Vendor = vendor
	}

	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}

		filter.Since = since
	}

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}

		filter.Limit = limit
	}

	entries, err := h.svc.ListLedger(r.Context(), accountID, filter)
	if err != nil {
		h.logger.Error("list ledger", "account_id", accountID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")

		return
	}

	resp := make([]ledgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, ledgerEntryResponse{
			ID:                  e.ID,
			Amount:              e.Amount,
			SourceVendor:        string(e.SourceVendor),
			SourceTransactionID: e.SourceTransactionID,
			Description:         e.Description,
			TS:                  e.TS,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// AuditHandler handles GET /accounts/{accountId}/audit
func (h *HandlerProvider) AuditHandler(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountId")

	a, err := h.svc.Audit(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}

		h.logger.Error("audit", "account_id", accountID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"accountId":  a.AccountID,
		"balance":    a.Balance,
		"ledgerSum":  a.LedgerSum,
		"consistent": a.Consistent,
	})
}
