package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/eksporyuk/sejoli-migrator/internal/catalog"
	"github.com/eksporyuk/sejoli-migrator/internal/database/repository"
	"github.com/eksporyuk/sejoli-migrator/internal/identity"
	"github.com/eksporyuk/sejoli-migrator/internal/source"
)

// CommissionImporter migrates the commission ledger. At most one record may
// exist per (affiliate, transaction) pair; entries whose affiliate or order
// cannot be resolved are skipped.
type CommissionImporter struct {
	Commissions  *repository.CommissionRepo
	Transactions *repository.TransactionRepo
	Resolver     *identity.Resolver
	Catalog      *catalog.Catalog
	Strategy     CommissionStrategy
	DefaultRate  float64
	Log          zerolog.Logger
	Workers      int

	productByOrder map[int64]int64
}

func (p *Pipeline) commissionImporter() *CommissionImporter {
	return &CommissionImporter{
		Commissions:  p.Repos.Commissions,
		Transactions: p.Repos.Transactions,
		Resolver:     p.Resolver,
		Catalog:      p.Catalog,
		Strategy:     p.Strategy,
		DefaultRate:  p.DefaultRate,
		Log:          p.Log,
		Workers:      p.Workers,
	}
}

func (im *CommissionImporter) ImportAll(ctx context.Context, orders []source.Order, commissions []source.Commission) (StageResult, error) {
	im.productByOrder = make(map[int64]int64, len(orders))
	for _, o := range orders {
		im.productByOrder[int64(o.ID)] = int64(o.ProductID)
	}
	im.Log.Info().Str("strategy", string(im.Strategy)).Msg("commission amount source of truth")

	c := &counter{}
	err := runRecords(ctx, im.Workers, commissions, func(ctx context.Context, comm source.Commission) error {
		return im.importOne(ctx, comm, c)
	})
	return c.result(), err
}

func (im *CommissionImporter) importOne(ctx context.Context, comm source.Commission, c *counter) error {
	affiliateID, err := im.Resolver.Resolve(ctx, identity.EntityAffiliate, int64(comm.AffiliateID),
		identity.NaturalKeys{Email: comm.AffiliateEmail})
	if errors.Is(err, identity.ErrNoMapping) {
		c.skipped()
		return nil
	}
	if err != nil {
		return err
	}

	orderRef := identity.ExternalRef(identity.EntityOrder, int64(comm.OrderID))
	tx, err := im.Transactions.FindByExternalRef(ctx, orderRef)
	if err != nil {
		return err
	}
	if tx == nil {
		c.skipped()
		return nil
	}

	existing, err := im.Commissions.FindByPair(ctx, affiliateID, tx.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		c.skipped()
		return nil
	}

	entry, hasEntry := im.Catalog.Lookup(im.productByOrder[int64(comm.OrderID)])
	amount, rate, ok := im.Strategy.amount(comm, tx.Amount, entry, hasEntry, im.DefaultRate)
	if !ok {
		c.skipped()
		return nil
	}

	rec := repository.CommissionRecord{
		ID:            uuid.NewString(),
		AffiliateID:   affiliateID,
		TransactionID: tx.ID,
		OrderRef:      orderRef,
		OrderAmount:   tx.Amount,
		Amount:        amount,
		Rate:          rate,
		Status:        "PENDING",
	}
	if comm.Status == "paid" {
		rec.Status = "PAID"
		rec.PaidOut = true
		paidAt := comm.PaidDate.Time
		if paidAt.IsZero() {
			paidAt = comm.CreatedAt.Time
		}
		if !paidAt.IsZero() {
			rec.PaidOutAt = &paidAt
		}
	}
	err = withRetry(ctx, func() error { return im.Commissions.Insert(ctx, rec) })
	if err != nil {
		if isUniqueViolation(err) {
			c.skipped()
			return nil
		}
		if isFatal(err) {
			return err
		}
		c.failed(fmt.Errorf("commission %d insert: %w", comm.ID, err))
		return nil
	}
	c.created()
	return nil
}
