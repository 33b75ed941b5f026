package ledger

import (
	"context"
	"database/sql"
	"time"

	"github.com/fastprodman/rewardrecon/internal/models"
)

type Filter struct {
	Vendor models.Vendor
	Since  time.Time
	Limit  int
}

// Ledger is append-only.
type Ledger interface {
	Append(ctx context.Context, tx *sql.Tx, entry models.LedgerEntry) error
	List(ctx context.Context, accountID string, filter Filter) ([]models.LedgerEntry, error)
	Sum(ctx context.Context, accountID string) (int64, error)
}
