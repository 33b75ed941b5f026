package vendortxns

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/rewardrecon/internal/infra/pgutils"
	"github.com/fastprodman/rewardrecon/internal/models"
	"github.com/fastprodman/rewardrecon/internal/repos/vendortxns"
)

var _ vendortxns.VendorTxns = (*vendorTxnsRepo)(nil)

type vendorTxnsRepo struct{ db *sql.DB }

func New(db *sql.DB) *vendorTxnsRepo {
	return &vendorTxnsRepo{db: db}
}

func (r *vendorTxnsRepo) Get(ctx context.Context, tx *sql.Tx, vendor models.Vendor, txid string) (models.TransactionRecord, error) {
	rec := models.TransactionRecord{Vendor: vendor, TransactionID: txid}

	var status string

	err := tx.QueryRowContext(ctx, `
		SELECT account_id, raw_amount::text, points_applied, status, created_at
		FROM vendor_transactions
		WHERE vendor = $1 AND transaction_id = $2
	`, string(vendor), txid).Scan(&rec.AccountID, &rec.RawAmount, &rec.PointsApplied, &status, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.TransactionRecord{}, vendortxns.ErrNotFound
		}

		return models.TransactionRecord{}, fmt.Errorf("get transaction: %w", err)
	}

	rec.Status = models.TxStatus(status)

	return rec, nil
}

func (r *vendorTxnsRepo) Insert(ctx context.Context, tx *sql.Tx, rec models.TransactionRecord) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO vendor_transactions
			(vendor, transaction_id, account_id, raw_amount, points_applied, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, string(rec.Vendor), rec.TransactionID, rec.AccountID, rec.RawAmount,
		rec.PointsApplied, string(rec.Status), rec.CreatedAt)
	if err != nil {
		if pgutils.HasCode(err, pgutils.CodeUniqueViolation) {
			return vendortxns.ErrDuplicateTransaction
		}

		return fmt.Errorf("insert transaction: %w", err)
	}

	return nil
}

func (r *vendorTxnsRepo) MarkChargeback(ctx context.Context, tx *sql.Tx, vendor models.Vendor, txid, accountID string) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE vendor_transactions
		SET status = 'chargeback'
		WHERE vendor = $1
		  AND transaction_id = $2
		  AND account_id = $3
		  AND status = 'completed'
	`, string(vendor), txid, accountID)
	if err != nil {
		return fmt.Errorf("mark chargeback: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return vendortxns.ErrNotFound
	}

	return nil
}
