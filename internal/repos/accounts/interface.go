package accounts

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/fastprodman/rewardrecon/internal/models"
)

var ErrAccountNotFound = errors.New("account not found")

type Accounts interface {
	// EnsureAndLock creates the account on first use and locks its row for
	// the rest of tx.
	EnsureAndLock(ctx context.Context, tx *sql.Tx, accountID string) (models.Account, error)
	SetBalance(ctx context.Context, tx *sql.Tx, accountID string, balance int64, at time.Time) error
	GetBalance(ctx context.Context, accountID string) (int64, error)
}
