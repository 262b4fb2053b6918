package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eksporyuk/sejoli-migrator/internal/catalog"
)

func TestRunImportsWholeExport(t *testing.T) {
	db := newTestDB(t)
	p := newTestPipeline(t, db)
	ctx := context.Background()

	sum, err := p.Run(ctx, fixtureExport())
	require.NoError(t, err)
	t.Log("first run:", sum)

	require.Equal(t, 2, sum.Users.Created)
	require.Equal(t, 1, sum.Affiliates.Created)
	require.Equal(t, 3, sum.Transactions.Created)
	require.Equal(t, 2, sum.Memberships.Created)
	require.Equal(t, 2, sum.Commissions.Created)
	require.Equal(t, 10, sum.TotalCreated())
	require.Zero(t, sum.TotalFailed())
}

func TestRunTwiceIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	p := newTestPipeline(t, db)
	ctx := context.Background()

	_, err := p.Run(ctx, fixtureExport())
	require.NoError(t, err)

	second, err := p.Run(ctx, fixtureExport())
	require.NoError(t, err)
	t.Log("second run:", second)
	require.Zero(t, second.TotalCreated())
	require.Zero(t, second.TotalFailed())

	users, err := p.Repos.Users.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, users)
	txs, err := p.Repos.Transactions.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 3, txs)
	grants, err := p.Repos.Memberships.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, grants)
	comms, err := p.Repos.Commissions.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, comms)
}

func TestRunWithWorkers(t *testing.T) {
	db := newTestDB(t)
	p := newTestPipeline(t, db)
	p.Workers = 4
	ctx := context.Background()

	sum, err := p.Run(ctx, fixtureExport())
	require.NoError(t, err)
	require.Equal(t, 10, sum.TotalCreated())
	require.Zero(t, sum.TotalFailed())

	sum, err = p.Run(ctx, fixtureExport())
	require.NoError(t, err)
	require.Zero(t, sum.TotalCreated())
	require.Zero(t, sum.TotalFailed())
}

func TestRunCancelledContextReturnsPartialSummary(t *testing.T) {
	db := newTestDB(t)
	p := newTestPipeline(t, db)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, fixtureExport())
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunPreflightAudit(t *testing.T) {
	ex := fixtureExport()
	typo := fixtureExport().Orders[0]
	typo.ID = 103
	typo.Status = "complated"
	unmapped := fixtureExport().Orders[0]
	unmapped.ID = 104
	unmapped.ProductID = 777777
	ex.Orders = append(ex.Orders, typo, unmapped)
	ex.Malformed["users"] = 2

	pf := RunPreflight(ex, catalog.Default())
	require.Equal(t, 2, pf.Users)
	require.Equal(t, 5, pf.Orders)
	require.Equal(t, 1, pf.Affiliates)
	require.Equal(t, 2, pf.Commissions)
	require.Equal(t, map[string]int{"users": 2}, pf.Malformed)
	require.Equal(t, map[string]int{"complated": 1}, pf.UnknownStatuses)
	require.Equal(t, map[int64]int{777777: 1}, pf.UnmappedProducts)
}
