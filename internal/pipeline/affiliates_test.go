package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eksporyuk/sejoli-migrator/internal/source"
)

func TestAffiliateImportCreatesAccountAndBalances(t *testing.T) {
	db := newTestDB(t)
	p := newTestPipeline(t, db)
	ctx := context.Background()
	ex := fixtureExport()

	_, err := p.userImporter().ImportAll(ctx, ex.Users)
	require.NoError(t, err)

	res, err := p.affiliateImporter().ImportAll(ctx, ex.Affiliates)
	require.NoError(t, err)
	require.Equal(t, 1, res.Created)
	require.Zero(t, res.Failed)

	acct, err := p.Repos.Affiliates.FindByCode(ctx, "SARI30")
	require.NoError(t, err)
	require.NotNil(t, acct)
	require.Equal(t, "ACTIVE", acct.Status)
	require.EqualValues(t, 2, acct.TotalConversions)
	require.EqualValues(t, 1050000, acct.TotalEarnings)

	// Paid/pending legacy commission lands in the owning user's wallet.
	w, err := p.Repos.Wallets.Get(ctx, acct.UserID)
	require.NoError(t, err)
	require.NotNil(t, w)
	require.EqualValues(t, 600000, w.Balance)
	require.EqualValues(t, 450000, w.BalancePending)
}

func TestAffiliateImportSkipsUnresolvableUser(t *testing.T) {
	db := newTestDB(t)
	p := newTestPipeline(t, db)

	res, err := p.affiliateImporter().ImportAll(context.Background(), []source.Affiliate{
		{ID: 99, UserID: 404, UserEmail: "nobody@example.com"},
	})
	require.NoError(t, err)
	require.Zero(t, res.Created)
	require.Zero(t, res.Failed)
	require.Equal(t, 1, res.Skipped)
}

func TestAffiliateImportRerunUpdatesTotals(t *testing.T) {
	db := newTestDB(t)
	p := newTestPipeline(t, db)
	ctx := context.Background()
	ex := fixtureExport()

	_, err := p.userImporter().ImportAll(ctx, ex.Users)
	require.NoError(t, err)
	_, err = p.affiliateImporter().ImportAll(ctx, ex.Affiliates)
	require.NoError(t, err)

	// Fresh extract with a bigger running total.
	ex.Affiliates[0].TotalReferrals = 5
	ex.Affiliates[0].TotalCommission = 2000000
	res, err := p.affiliateImporter().ImportAll(ctx, ex.Affiliates)
	require.NoError(t, err)
	require.Zero(t, res.Created)
	require.Equal(t, 1, res.Updated)

	n, err := p.Repos.Affiliates.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	acct, err := p.Repos.Affiliates.FindByCode(ctx, "SARI30")
	require.NoError(t, err)
	require.NotNil(t, acct)
	require.EqualValues(t, 5, acct.TotalConversions)
	require.EqualValues(t, 2000000, acct.TotalEarnings)
}

func TestAffiliateImportDerivesCodeWhenMissing(t *testing.T) {
	db := newTestDB(t)
	p := newTestPipeline(t, db)
	ctx := context.Background()

	_, err := p.userImporter().ImportAll(ctx, []source.User{
		{ID: 1, Login: "dian", Email: "dian@example.com"},
	})
	require.NoError(t, err)

	first, err := p.affiliateImporter().ImportAll(ctx, []source.Affiliate{
		{ID: 42, UserID: 1, UserEmail: "dian@example.com"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, first.Created)

	u, err := p.Repos.Users.FindByEmail(ctx, "dian@example.com")
	require.NoError(t, err)
	require.NotNil(t, u)
	acct, err := p.Repos.Affiliates.FindByUserID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, acct)
	require.Regexp(t, `^AFF[0-9A-F]{6}$`, acct.Code)

	// Derivation is seeded by the legacy id, so a rerun lands on the same
	// account instead of minting a second code.
	second, err := p.affiliateImporter().ImportAll(ctx, []source.Affiliate{
		{ID: 42, UserID: 1, UserEmail: "dian@example.com"},
	})
	require.NoError(t, err)
	require.Zero(t, second.Created)
	require.Equal(t, 1, second.Updated)
}
