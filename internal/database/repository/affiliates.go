package repository

import (
	"context"
	"database/sql"
)

// AffiliateRepo handles affiliate accounts.
type AffiliateRepo struct{ db *sql.DB }

func NewAffiliateRepo(db *sql.DB) *AffiliateRepo { return &AffiliateRepo{db: db} }

func (r *AffiliateRepo) Insert(ctx context.Context, a AffiliateAccount) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO affiliate_accounts(
	 id, user_id, code, status, tier, commission_rate, total_conversions,
	 total_earnings, external_ref, created_at, updated_at)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP);
	`,
		a.ID, a.UserID, a.Code, a.Status, a.Tier, a.CommissionRate,
		a.TotalConversions, a.TotalEarnings, a.ExternalRef)
	return err
}

// UpdateTotals refreshes the cumulative counters from the legacy record.
func (r *AffiliateRepo) UpdateTotals(ctx context.Context, id string, conversions, earnings int64) error {
	_, err := r.db.ExecContext(ctx, `
	UPDATE affiliate_accounts SET total_conversions = ?, total_earnings = ?,
	 updated_at = CURRENT_TIMESTAMP WHERE id = ?`, conversions, earnings, id)
	return err
}

func (r *AffiliateRepo) FindByUserID(ctx context.Context, userID string) (*AffiliateAccount, error) {
	row := r.db.QueryRowContext(ctx, selectAffiliate+` WHERE user_id = ?`, userID)
	return scanAffiliateRow(row)
}

func (r *AffiliateRepo) FindByExternalRef(ctx context.Context, ref string) (*AffiliateAccount, error) {
	row := r.db.QueryRowContext(ctx, selectAffiliate+` WHERE external_ref = ?`, ref)
	return scanAffiliateRow(row)
}

func (r *AffiliateRepo) FindByCode(ctx context.Context, code string) (*AffiliateAccount, error) {
	row := r.db.QueryRowContext(ctx, selectAffiliate+` WHERE code = ?`, code)
	return scanAffiliateRow(row)
}

func (r *AffiliateRepo) Get(ctx context.Context, id string) (*AffiliateAccount, error) {
	row := r.db.QueryRowContext(ctx, selectAffiliate+` WHERE id = ?`, id)
	return scanAffiliateRow(row)
}

func (r *AffiliateRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM affiliate_accounts`).Scan(&n)
	return n, err
}

const selectAffiliate = `SELECT id, user_id, code, status, tier, commission_rate,
 total_conversions, total_earnings, external_ref, created_at, updated_at FROM affiliate_accounts`

func scanAffiliateRow(row *sql.Row) (*AffiliateAccount, error) {
	var a AffiliateAccount
	var ref sql.NullString
	err := row.Scan(&a.ID, &a.UserID, &a.Code, &a.Status, &a.Tier, &a.CommissionRate,
		&a.TotalConversions, &a.TotalEarnings, &ref, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if ref.Valid {
		a.ExternalRef = &ref.String
	}
	return &a, nil
}
