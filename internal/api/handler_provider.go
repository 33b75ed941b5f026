package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/fastprodman/rewardrecon/internal/config"
	"github.com/fastprodman/rewardrecon/internal/models"
	"github.com/fastprodman/rewardrecon/internal/services/reconcile"
	"github.com/fastprodman/rewardrecon/internal/store"
	"github.com/shopspring/decimal"
)

// Reconciler is the part of reconcile.Service the HTTP layer needs.
type Reconciler interface {
	ApplyReward(ctx context.Context, req reconcile.Request) (reconcile.Result, error)
	ApplyChargeback(ctx context.Context, req reconcile.Request) (reconcile.Result, error)
	GetBalance(ctx context.Context, accountID string) (int64, error)
	ListLedger(ctx context.Context, accountID string, filter store.LedgerFilter) ([]models.LedgerEntry, error)
	Audit(ctx context.Context, accountID string) (reconcile.Audit, error)
}

var _ Reconciler = (*reconcile.Service)(nil)

type Options struct {
	Vendors       config.VendorsConfig
	PointsPerUnit decimal.Decimal
	// Timeout bounds each reconciliation call; zero means no extra bound.
	Timeout time.Duration
	Logger  *slog.Logger
}

// HandlerProvider wraps a Reconciler and exposes HTTP handlers.
type HandlerProvider struct {
	svc    Reconciler
	opts   Options
	logger *slog.Logger
}

func NewHandler(svc Reconciler, opts Options) *HandlerProvider {
	if opts.PointsPerUnit.IsZero() {
		opts.PointsPerUnit = reconcile.DefaultPointsPerUnit
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &HandlerProvider{svc: svc, opts: opts, logger: logger}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeAck writes the body offerwalls expect: "1" accepted, "0" rejected.
func writeAck(w http.ResponseWriter, status int) {
	body := "0"
	if status == http.StatusOK {
		body = "1"
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
