package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/eksporyuk/sejoli-migrator/internal/database/repository"
	"github.com/eksporyuk/sejoli-migrator/internal/identity"
	"github.com/eksporyuk/sejoli-migrator/internal/source"
)

// TransactionImporter migrates legacy orders. The external reference derived
// from the legacy order id is the idempotency key; amounts are carried over
// verbatim with no currency reinterpretation.
type TransactionImporter struct {
	Transactions *repository.TransactionRepo
	Resolver     *identity.Resolver
	Log          zerolog.Logger
	Workers      int
}

func (p *Pipeline) transactionImporter() *TransactionImporter {
	return &TransactionImporter{
		Transactions: p.Repos.Transactions,
		Resolver:     p.Resolver,
		Log:          p.Log,
		Workers:      p.Workers,
	}
}

func (im *TransactionImporter) ImportAll(ctx context.Context, orders []source.Order) (StageResult, error) {
	c := &counter{}
	err := runRecords(ctx, im.Workers, orders, func(ctx context.Context, o source.Order) error {
		return im.importOne(ctx, o, c)
	})
	return c.result(), err
}

func (im *TransactionImporter) importOne(ctx context.Context, o source.Order, c *counter) error {
	unguard := im.Resolver.Guard(identity.EntityOrder, int64(o.ID))
	defer unguard()

	ref := identity.ExternalRef(identity.EntityOrder, int64(o.ID))
	existing, err := im.Transactions.FindByExternalRef(ctx, ref)
	if err != nil {
		return err
	}
	if existing != nil {
		if err := im.Resolver.Bind(ctx, identity.EntityOrder, int64(o.ID), existing.ID); err != nil {
			return err
		}
		c.skipped()
		return nil
	}

	userID, err := im.Resolver.Resolve(ctx, identity.EntityUser, int64(o.UserID),
		identity.NaturalKeys{Email: o.UserEmail})
	if errors.Is(err, identity.ErrNoMapping) {
		c.skipped()
		return nil
	}
	if err != nil {
		return err
	}

	status, known := MapStatus(o.Status)
	if !known {
		im.Log.Warn().Int64("order", int64(o.ID)).Str("status", o.Status).
			Str("closest_known", nearestStatus(o.Status)).
			Msg("unknown legacy order status, mapped to PENDING")
	}

	created := o.CreatedAt.Time
	if created.IsZero() {
		created = nowUTC()
	}
	tx := repository.Transaction{
		ID:            uuid.NewString(),
		UserID:        userID,
		Type:          "MEMBERSHIP",
		Status:        status,
		Amount:        int64(o.GrandTotal),
		CustomerName:  nullable(o.BuyerName),
		CustomerEmail: nullable(o.BuyerEmail),
		Description:   fmt.Sprintf("Imported from Sejoli: %s", orLabel(o.ProductName, "product")),
		PaymentMethod: orLabel(o.PaymentMethod, "SEJOLI"),
		ExternalRef:   ref,
		CreatedAt:     created,
	}
	if status == StatusCompleted {
		paidAt := created
		tx.PaidAt = &paidAt
	}
	err = withRetry(ctx, func() error { return im.Transactions.Insert(ctx, tx) })
	if err != nil {
		if isUniqueViolation(err) {
			c.skipped()
			return nil
		}
		if isFatal(err) {
			return err
		}
		c.failed(fmt.Errorf("order %d insert: %w", o.ID, err))
		return nil
	}
	if err := im.Resolver.Bind(ctx, identity.EntityOrder, int64(o.ID), tx.ID); err != nil {
		return err
	}
	c.created()
	return nil
}

func orLabel(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
