package vendortxns

import (
	"context"
	"database/sql"
	"errors"

	"github.com/fastprodman/rewardrecon/internal/models"
)

var (
	ErrDuplicateTransaction = errors.New("duplicate transaction")
	ErrNotFound             = errors.New("transaction record not found")
)

type VendorTxns interface {
	Get(ctx context.Context, tx *sql.Tx, vendor models.Vendor, txid string) (models.TransactionRecord, error)
	Insert(ctx context.Context, tx *sql.Tx, rec models.TransactionRecord) error
	// MarkChargeback flips a completed record owned by accountID to chargeback.
	MarkChargeback(ctx context.Context, tx *sql.Tx, vendor models.Vendor, txid, accountID string) error
}
