package ledger

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/fastprodman/rewardrecon/internal/models"
	"github.com/fastprodman/rewardrecon/internal/repos/ledger"
)

var _ ledger.Ledger = (*ledgerRepo)(nil)

type ledgerRepo struct{ db *sql.DB }

func New(db *sql.DB) *ledgerRepo {
	return &ledgerRepo{db: db}
}

func (r *ledgerRepo) Append(ctx context.Context, tx *sql.Tx, e models.LedgerEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_entries
			(id, account_id, amount, source_vendor, source_transaction_id, description, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ID, e.AccountID, e.Amount, string(e.SourceVendor), e.SourceTransactionID, e.Description, e.TS)
	if err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}

	return nil
}

// List returns entries newest first. A zero Limit means no limit.
func (r *ledgerRepo) List(ctx context.Context, accountID string, f ledger.Filter) ([]models.LedgerEntry, error) {
	q := sq.Select("id", "account_id", "amount", "source_vendor", "source_transaction_id", "description", "ts").
		From("ledger_entries").
		Where(sq.Eq{"account_id": accountID}).
		OrderBy("ts DESC", "id").
		PlaceholderFormat(sq.Dollar)

	if f.Vendor != "" {
		q = q.Where(sq.Eq{"source_vendor": string(f.Vendor)})
	}

	if !f.Since.IsZero() {
		q = q.Where(sq.GtOrEq{"ts": f.Since})
	}

	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	var out []models.LedgerEntry

	for rows.Next() {
		var (
			e      models.LedgerEntry
			vendor string
		)

		err = rows.Scan(&e.ID, &e.AccountID, &e.Amount, &vendor, &e.SourceTransactionID, &e.Description, &e.TS)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}

		e.SourceVendor = models.Vendor(vendor)
		out = append(out, e)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate ledger: %w", err)
	}

	return out, nil
}

func (r *ledgerRepo) Sum(ctx context.Context, accountID string) (int64, error) {
	var sum int64

	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM ledger_entries
		WHERE account_id = $1
	`, accountID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum ledger: %w", err)
	}

	return sum, nil
}
