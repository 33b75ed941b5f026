package api

import (
	"net/http"

	"github.com/fastprodman/rewardrecon/internal/vendors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter registers all endpoints. Postback routes exist only for vendors
// with a configured secret.
func NewRouter(svc Reconciler, opts Options) http.Handler {
	h := NewHandler(svc, opts)
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(observe(h.logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	if opts.Vendors.OfferToroSecret != "" {
		r.Get("/postback/offertoro", h.PostbackHandler(vendors.OfferToro{}))
		r.Get("/postback/offertoro/chargeback", h.PostbackHandler(vendors.OfferToro{Reversal: true}))
	}

	if opts.Vendors.AdGemSecret != "" {
		r.Get("/postback/adgem", h.PostbackHandler(vendors.AdGem{}))
	}

	if opts.Vendors.CPXSecret != "" {
		r.Get("/postback/cpx", h.PostbackHandler(vendors.CPX{}))
	}

	r.Route("/accounts/{accountId}", func(r chi.Router) {
		r.Get("/balance", h.GetBalanceHandler)
		r.Get("/ledger", h.ListLedgerHandler)
		r.Get("/audit", h.AuditHandler)
	})

	return r
}
