package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fastprodman/rewardrecon/internal/models"
	"github.com/fastprodman/rewardrecon/internal/repos/accounts"
)

var _ accounts.Accounts = (*accountsRepo)(nil)

type accountsRepo struct{ db *sql.DB }

func New(db *sql.DB) *accountsRepo {
	return &accountsRepo{db: db}
}

func (r *accountsRepo) EnsureAndLock(ctx context.Context, tx *sql.Tx, accountID string) (models.Account, error) {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (account_id, point_balance, updated_at)
		VALUES ($1, 0, now())
		ON CONFLICT (account_id) DO NOTHING
	`, accountID)
	if err != nil {
		return models.Account{}, fmt.Errorf("ensure account: %w", err)
	}

	acc := models.Account{AccountID: accountID}

	err = tx.QueryRowContext(ctx, `
		SELECT point_balance, updated_at
		FROM accounts
		WHERE account_id = $1
		FOR UPDATE
	`, accountID).Scan(&acc.PointBalance, &acc.UpdatedAt)
	if err != nil {
		return models.Account{}, fmt.Errorf("lock/get account: %w", err)
	}

	return acc, nil
}

func (r *accountsRepo) SetBalance(ctx context.Context, tx *sql.Tx, accountID string, balance int64, at time.Time) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET point_balance = $2, updated_at = $3
		WHERE account_id = $1
	`, accountID, balance, at)
	if err != nil {
		return fmt.Errorf("set balance: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return accounts.ErrAccountNotFound
	}

	return nil
}

func (r *accountsRepo) GetBalance(ctx context.Context, accountID string) (int64, error) {
	var balance int64

	err := r.db.QueryRowContext(ctx, `
		SELECT point_balance
		FROM accounts
		WHERE account_id = $1
	`, accountID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, accounts.ErrAccountNotFound
		}

		return 0, fmt.Errorf("get balance: %w", err)
	}

	return balance, nil
}
