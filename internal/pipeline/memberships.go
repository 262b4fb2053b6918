package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/eksporyuk/sejoli-migrator/internal/catalog"
	"github.com/eksporyuk/sejoli-migrator/internal/database/repository"
	"github.com/eksporyuk/sejoli-migrator/internal/identity"
	"github.com/eksporyuk/sejoli-migrator/internal/source"
)

// lifetimeEnd is the sentinel end date for lifetime memberships.
var lifetimeEnd = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

// MembershipImporter derives grants from completed, catalog-mapped orders.
// An existing grant is only ever extended, never shortened.
type MembershipImporter struct {
	Transactions *repository.TransactionRepo
	Memberships  *repository.MembershipRepo
	Users        *repository.UserRepo
	Catalog      *catalog.Catalog
	Log          zerolog.Logger
	Workers      int
}

func (p *Pipeline) membershipImporter() *MembershipImporter {
	return &MembershipImporter{
		Transactions: p.Repos.Transactions,
		Memberships:  p.Repos.Memberships,
		Users:        p.Repos.Users,
		Catalog:      p.Catalog,
		Log:          p.Log,
		Workers:      p.Workers,
	}
}

func (im *MembershipImporter) ImportAll(ctx context.Context, orders []source.Order) (StageResult, error) {
	c := &counter{}
	err := runRecords(ctx, im.Workers, orders, func(ctx context.Context, o source.Order) error {
		return im.importOne(ctx, o, c)
	})
	return c.result(), err
}

func (im *MembershipImporter) importOne(ctx context.Context, o source.Order, c *counter) error {
	ref := identity.ExternalRef(identity.EntityOrder, int64(o.ID))
	tx, err := im.Transactions.FindByExternalRef(ctx, ref)
	if err != nil {
		return err
	}
	if tx == nil || tx.Status != StatusCompleted {
		c.skipped()
		return nil
	}

	entry, ok := im.Catalog.Lookup(int64(o.ProductID))
	if !ok || entry.Class != catalog.ClassMembership {
		// Non-membership or unmapped product: counted apart from failures.
		c.skipped()
		return nil
	}

	start := tx.CreatedAt
	if tx.PaidAt != nil {
		start = *tx.PaidAt
	}
	end := lifetimeEnd
	if entry.DurationDays != nil {
		end = start.AddDate(0, 0, *entry.DurationDays)
	}

	status := "EXPIRED"
	if end.After(nowUTC()) {
		status = "ACTIVE"
	}

	existing, err := im.Memberships.FindByUserAndTier(ctx, tx.UserID, entry.Tier)
	if err != nil {
		return err
	}
	if existing != nil {
		if !end.After(existing.EndsAt) {
			c.skipped()
			return nil
		}
		return im.extend(ctx, o, existing.ID, tx.UserID, end, status, c)
	}

	grant := repository.MembershipGrant{
		ID:          uuid.NewString(),
		UserID:      tx.UserID,
		Tier:        entry.Tier,
		StartsAt:    start,
		EndsAt:      end,
		Status:      status,
		Price:       tx.Amount,
		Source:      "SEJOLI",
		ExternalRef: ref,
	}
	err = withRetry(ctx, func() error { return im.Memberships.Insert(ctx, grant) })
	if err != nil {
		if isUniqueViolation(err) {
			// Concurrent worker created the (user, tier) grant first;
			// re-read it and extend in place when this order reaches
			// further, so a parallel run ends like a sequential one.
			winner, ferr := im.Memberships.FindByUserAndTier(ctx, tx.UserID, entry.Tier)
			if ferr != nil {
				return ferr
			}
			if winner == nil || !end.After(winner.EndsAt) {
				c.skipped()
				return nil
			}
			return im.extend(ctx, o, winner.ID, tx.UserID, end, status, c)
		}
		if isFatal(err) {
			return err
		}
		c.failed(fmt.Errorf("order %d grant insert: %w", o.ID, err))
		return nil
	}
	if status == "ACTIVE" {
		if err := im.promote(ctx, tx.UserID, end); err != nil {
			return err
		}
	}
	c.created()
	return nil
}

// extend moves an existing grant's end forward. Callers have already checked
// that end is strictly later.
func (im *MembershipImporter) extend(ctx context.Context, o source.Order, grantID, userID string, end time.Time, status string, c *counter) error {
	err := withRetry(ctx, func() error { return im.Memberships.ExtendEnd(ctx, grantID, end, status) })
	if err != nil {
		if isFatal(err) {
			return err
		}
		c.failed(fmt.Errorf("order %d grant extend: %w", o.ID, err))
		return nil
	}
	if err := im.promote(ctx, userID, end); err != nil {
		return err
	}
	c.updated()
	return nil
}

// promote upgrades free members holding an active grant, mirroring what the
// checkout flow does for new purchases.
func (im *MembershipImporter) promote(ctx context.Context, userID string, end time.Time) error {
	if !end.After(nowUTC()) {
		return nil
	}
	u, err := im.Users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if u == nil || u.Role != "MEMBER_FREE" {
		return nil
	}
	return withRetry(ctx, func() error { return im.Users.UpdateRole(ctx, userID, "MEMBER_PREMIUM") })
}
