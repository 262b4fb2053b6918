package repository

import (
	"context"
	"database/sql"
)

// CommissionRepo handles commission records.
type CommissionRepo struct{ db *sql.DB }

func NewCommissionRepo(db *sql.DB) *CommissionRepo { return &CommissionRepo{db: db} }

func (r *CommissionRepo) Insert(ctx context.Context, c CommissionRecord) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO commission_records(
	 id, affiliate_id, transaction_id, order_ref, order_amount, amount, rate,
	 status, paid_out, paid_out_at, created_at)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP);
	`,
		c.ID, c.AffiliateID, c.TransactionID, c.OrderRef, c.OrderAmount, c.Amount,
		c.Rate, c.Status, c.PaidOut, c.PaidOutAt)
	return err
}

// FindByPair looks up the at-most-one record for an (affiliate, transaction)
// pair.
func (r *CommissionRepo) FindByPair(ctx context.Context, affiliateID, transactionID string) (*CommissionRecord, error) {
	row := r.db.QueryRowContext(ctx, selectCommission+` WHERE affiliate_id = ? AND transaction_id = ?`,
		affiliateID, transactionID)
	return scanCommissionRow(row)
}

// SumByAffiliate returns the total commission amount and record count for one
// affiliate account.
func (r *CommissionRepo) SumByAffiliate(ctx context.Context, affiliateID string) (total int64, count int64, err error) {
	row := r.db.QueryRowContext(ctx, `
	SELECT COALESCE(SUM(amount), 0), COUNT(*) FROM commission_records WHERE affiliate_id = ?`,
		affiliateID)
	err = row.Scan(&total, &count)
	return
}

func (r *CommissionRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM commission_records`).Scan(&n)
	return n, err
}

const selectCommission = `SELECT id, affiliate_id, transaction_id, order_ref, order_amount,
 amount, rate, status, paid_out, paid_out_at, created_at FROM commission_records`

func scanCommissionRow(row *sql.Row) (*CommissionRecord, error) {
	var c CommissionRecord
	var paidOutAt sql.NullTime
	err := row.Scan(&c.ID, &c.AffiliateID, &c.TransactionID, &c.OrderRef, &c.OrderAmount,
		&c.Amount, &c.Rate, &c.Status, &c.PaidOut, &paidOutAt, &c.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if paidOutAt.Valid {
		c.PaidOutAt = &paidOutAt.Time
	}
	return &c, nil
}
