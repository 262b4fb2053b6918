package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/eksporyuk/sejoli-migrator/internal/database/repository"
	"github.com/eksporyuk/sejoli-migrator/internal/identity"
	"github.com/eksporyuk/sejoli-migrator/internal/source"
)

// AffiliateImporter migrates affiliate profiles. An affiliate whose owning
// user cannot be resolved is a data-quality gap in the export and is counted
// skipped, not failed.
type AffiliateImporter struct {
	Affiliates *repository.AffiliateRepo
	Wallets    *repository.WalletRepo
	Resolver   *identity.Resolver
	Log        zerolog.Logger
	Workers    int
}

func (p *Pipeline) affiliateImporter() *AffiliateImporter {
	return &AffiliateImporter{
		Affiliates: p.Repos.Affiliates,
		Wallets:    p.Repos.Wallets,
		Resolver:   p.Resolver,
		Log:        p.Log,
		Workers:    p.Workers,
	}
}

func (im *AffiliateImporter) ImportAll(ctx context.Context, affiliates []source.Affiliate) (StageResult, error) {
	c := &counter{}
	err := runRecords(ctx, im.Workers, affiliates, func(ctx context.Context, a source.Affiliate) error {
		return im.importOne(ctx, a, c)
	})
	return c.result(), err
}

func (im *AffiliateImporter) importOne(ctx context.Context, a source.Affiliate, c *counter) error {
	userID, err := im.Resolver.Resolve(ctx, identity.EntityUser, int64(a.UserID),
		identity.NaturalKeys{Email: a.UserEmail})
	if errors.Is(err, identity.ErrNoMapping) {
		im.Log.Debug().Int64("legacy_affiliate", int64(a.ID)).Str("email", a.UserEmail).
			Msg("affiliate without resolvable user")
		c.skipped()
		return nil
	}
	if err != nil {
		return err
	}

	unguard := im.Resolver.Guard(identity.EntityAffiliate, int64(a.ID))
	defer unguard()

	existing, err := im.Affiliates.FindByUserID(ctx, userID)
	if err != nil {
		return err
	}
	if existing != nil {
		if err := im.Resolver.Bind(ctx, identity.EntityAffiliate, int64(a.ID), existing.ID); err != nil {
			return err
		}
		err := withRetry(ctx, func() error {
			return im.Affiliates.UpdateTotals(ctx, existing.ID, a.TotalReferrals, int64(a.TotalCommission))
		})
		if err != nil {
			if isFatal(err) {
				return err
			}
			c.failed(fmt.Errorf("affiliate %d totals: %w", a.ID, err))
			return nil
		}
		c.updated()
		return nil
	}

	code, err := im.uniqueCode(ctx, a)
	if err != nil {
		if isFatal(err) {
			return err
		}
		c.failed(fmt.Errorf("affiliate %d code: %w", a.ID, err))
		return nil
	}
	ref := identity.ExternalRef(identity.EntityAffiliate, int64(a.ID))
	acct := repository.AffiliateAccount{
		ID:               uuid.NewString(),
		UserID:           userID,
		Code:             code,
		Status:           "ACTIVE",
		Tier:             1,
		CommissionRate:   30,
		TotalConversions: a.TotalReferrals,
		TotalEarnings:    int64(a.TotalCommission),
		ExternalRef:      &ref,
	}
	err = withRetry(ctx, func() error { return im.Affiliates.Insert(ctx, acct) })
	if err != nil {
		if isFatal(err) {
			return err
		}
		c.failed(fmt.Errorf("affiliate %d insert: %w", a.ID, err))
		return nil
	}
	if err := im.Resolver.Bind(ctx, identity.EntityAffiliate, int64(a.ID), acct.ID); err != nil {
		return err
	}
	if a.PaidCommission > 0 || a.PendingCommission > 0 {
		err := withRetry(ctx, func() error {
			return im.Wallets.SetBalances(ctx, userID, int64(a.PaidCommission), int64(a.PendingCommission))
		})
		if err != nil && isFatal(err) {
			return err
		}
		if err != nil {
			c.failed(fmt.Errorf("affiliate %d wallet: %w", a.ID, err))
			return nil
		}
	}
	c.created()
	return nil
}

// uniqueCode keeps the legacy short code when present, otherwise derives a
// regenerable one from the legacy id. Collisions get a numeric suffix.
func (im *AffiliateImporter) uniqueCode(ctx context.Context, a source.Affiliate) (string, error) {
	base := strings.ToUpper(strings.TrimSpace(a.Code))
	if base == "" {
		seed := uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("affiliate:%d", a.ID)))
		base = "AFF" + strings.ToUpper(strings.ReplaceAll(seed.String(), "-", ""))[:6]
	}
	for suffix := 0; suffix <= 100; suffix++ {
		candidate := base
		if suffix > 0 {
			candidate = fmt.Sprintf("%s%d", base, suffix)
		}
		existing, err := im.Affiliates.FindByCode(ctx, candidate)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return candidate, nil
		}
	}
	return fmt.Sprintf("%s%d", base, a.ID), nil
}
