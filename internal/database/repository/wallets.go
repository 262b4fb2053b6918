package repository

import (
	"context"
	"database/sql"
)

// WalletRepo handles balance rows.
type WalletRepo struct{ db *sql.DB }

func NewWalletRepo(db *sql.DB) *WalletRepo { return &WalletRepo{db: db} }

// Ensure creates a zero-balance wallet if the user has none.
func (r *WalletRepo) Ensure(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO wallets(user_id, balance, balance_pending, updated_at)
	VALUES(?, 0, 0, CURRENT_TIMESTAMP)
	ON CONFLICT(user_id) DO NOTHING;
	`, userID)
	return err
}

// SetBalances overwrites the balances carried over from the legacy ledger.
func (r *WalletRepo) SetBalances(ctx context.Context, userID string, balance, pending int64) error {
	_, err := r.db.ExecContext(ctx, `
	UPDATE wallets SET balance = ?, balance_pending = ?, updated_at = CURRENT_TIMESTAMP
	WHERE user_id = ?`, balance, pending, userID)
	return err
}

func (r *WalletRepo) Get(ctx context.Context, userID string) (*Wallet, error) {
	row := r.db.QueryRowContext(ctx, `SELECT user_id, balance, balance_pending, updated_at FROM wallets WHERE user_id = ?`, userID)
	var w Wallet
	if err := row.Scan(&w.UserID, &w.Balance, &w.BalancePending, &w.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &w, nil
}

func (r *WalletRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM wallets`).Scan(&n)
	return n, err
}
