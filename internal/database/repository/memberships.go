package repository

import (
	"context"
	"database/sql"
	"time"
)

// MembershipRepo handles membership grants.
type MembershipRepo struct{ db *sql.DB }

func NewMembershipRepo(db *sql.DB) *MembershipRepo { return &MembershipRepo{db: db} }

func (r *MembershipRepo) Insert(ctx context.Context, g MembershipGrant) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO membership_grants(
	 id, user_id, tier, starts_at, ends_at, status, price, source,
	 external_ref, created_at, updated_at)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP);
	`,
		g.ID, g.UserID, g.Tier, g.StartsAt, g.EndsAt, g.Status, g.Price, g.Source, g.ExternalRef)
	return err
}

// ExtendEnd moves a grant's end date forward. Callers must only pass a later
// date; grants are never shortened.
func (r *MembershipRepo) ExtendEnd(ctx context.Context, id string, endsAt time.Time, status string) error {
	_, err := r.db.ExecContext(ctx, `
	UPDATE membership_grants SET ends_at = ?, status = ?,
	 updated_at = CURRENT_TIMESTAMP WHERE id = ?`, endsAt, status, id)
	return err
}

func (r *MembershipRepo) FindByUserAndTier(ctx context.Context, userID, tier string) (*MembershipGrant, error) {
	row := r.db.QueryRowContext(ctx, selectGrant+` WHERE user_id = ? AND tier = ?`, userID, tier)
	return scanGrantRow(row)
}

func (r *MembershipRepo) FindByExternalRef(ctx context.Context, ref string) (*MembershipGrant, error) {
	row := r.db.QueryRowContext(ctx, selectGrant+` WHERE external_ref = ?`, ref)
	return scanGrantRow(row)
}

func (r *MembershipRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM membership_grants`).Scan(&n)
	return n, err
}

const selectGrant = `SELECT id, user_id, tier, starts_at, ends_at, status, price,
 source, external_ref, created_at, updated_at FROM membership_grants`

func scanGrantRow(row *sql.Row) (*MembershipGrant, error) {
	var g MembershipGrant
	err := row.Scan(&g.ID, &g.UserID, &g.Tier, &g.StartsAt, &g.EndsAt, &g.Status,
		&g.Price, &g.Source, &g.ExternalRef, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &g, nil
}
