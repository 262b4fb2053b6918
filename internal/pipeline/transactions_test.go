package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/eksporyuk/sejoli-migrator/internal/database/repository"
	"github.com/eksporyuk/sejoli-migrator/internal/identity"
	"github.com/eksporyuk/sejoli-migrator/internal/source"
)

func TestTransactionImportCarriesOrderVerbatim(t *testing.T) {
	db := newTestDB(t)
	p := newTestPipeline(t, db)
	ctx := context.Background()
	ex := fixtureExport()

	_, err := p.userImporter().ImportAll(ctx, ex.Users)
	require.NoError(t, err)

	res, err := p.transactionImporter().ImportAll(ctx, ex.Orders)
	require.NoError(t, err)
	require.Equal(t, 3, res.Created)
	require.Zero(t, res.Failed)

	tx, err := p.Repos.Transactions.FindByExternalRef(ctx, "legacy:order:100")
	require.NoError(t, err)
	require.NotNil(t, tx)
	require.Equal(t, StatusCompleted, tx.Status)
	require.EqualValues(t, 1500000, tx.Amount)
	require.Equal(t, "bank_transfer", tx.PaymentMethod)
	require.True(t, tx.CreatedAt.Equal(time.Date(2023, 4, 1, 10, 30, 0, 0, time.UTC)))
	require.NotNil(t, tx.PaidAt)
	require.True(t, tx.PaidAt.Equal(tx.CreatedAt))

	cancelled, err := p.Repos.Transactions.FindByExternalRef(ctx, "legacy:order:102")
	require.NoError(t, err)
	require.NotNil(t, cancelled)
	require.Equal(t, StatusFailed, cancelled.Status)
	require.Nil(t, cancelled.PaidAt)
}

func TestTransactionImportUnknownStatusBecomesPending(t *testing.T) {
	db := newTestDB(t)
	p := newTestPipeline(t, db)
	ctx := context.Background()

	_, err := p.userImporter().ImportAll(ctx, []source.User{
		{ID: 1, Login: "budi", Email: "budi@example.com"},
	})
	require.NoError(t, err)

	res, err := p.transactionImporter().ImportAll(ctx, []source.Order{
		{ID: 1, UserID: 1, UserEmail: "budi@example.com", Status: "complated",
			GrandTotal: 100000, CreatedAt: ts("2023-01-01 00:00:00")},
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.Created)

	tx, err := p.Repos.Transactions.FindByExternalRef(ctx, "legacy:order:1")
	require.NoError(t, err)
	require.NotNil(t, tx)
	require.Equal(t, StatusPending, tx.Status)
}

func TestTransactionImportSkipsUnresolvableUser(t *testing.T) {
	db := newTestDB(t)
	p := newTestPipeline(t, db)

	res, err := p.transactionImporter().ImportAll(context.Background(), []source.Order{
		{ID: 1, UserID: 404, UserEmail: "nobody@example.com", Status: "completed",
			GrandTotal: 100000},
	})
	require.NoError(t, err)
	require.Zero(t, res.Created)
	require.Zero(t, res.Failed)
	require.Equal(t, 1, res.Skipped)
}

func TestTransactionImportParallelUserResolution(t *testing.T) {
	db := newTestDB(t)
	p := newTestPipeline(t, db)
	p.Workers = 2
	ctx := context.Background()

	// Target users that pre-date the import, so every order resolves its
	// unmapped legacy user through the natural-key path. Two orders per
	// user make concurrent workers contend on binding the same mapping.
	var orders []source.Order
	for i := 1; i <= 40; i++ {
		email := fmt.Sprintf("user%d@example.com", i)
		require.NoError(t, p.Repos.Users.Insert(ctx, repository.User{
			ID:           uuid.NewString(),
			Email:        email,
			Username:     fmt.Sprintf("user%d", i),
			Name:         fmt.Sprintf("User %d", i),
			PasswordHash: "x",
			Role:         "MEMBER_FREE",
			IsActive:     true,
			CreatedAt:    nowUTC(),
		}))
		for j := 0; j < 2; j++ {
			orders = append(orders, source.Order{
				ID:         source.ID(1000 + 2*i + j),
				UserID:     source.ID(500 + i),
				UserEmail:  email,
				Status:     "completed",
				GrandTotal: 100000,
				CreatedAt:  ts("2023-01-01 00:00:00"),
			})
		}
	}

	res, err := p.transactionImporter().ImportAll(ctx, orders)
	require.NoError(t, err)
	require.Equal(t, len(orders), res.Created)
	require.Zero(t, res.Failed)

	n, err := p.Repos.Mappings.CountByType(ctx, identity.EntityUser)
	require.NoError(t, err)
	require.EqualValues(t, 40, n)
}

func TestTransactionImportRerunCreatesNothing(t *testing.T) {
	db := newTestDB(t)
	p := newTestPipeline(t, db)
	ctx := context.Background()
	ex := fixtureExport()

	_, err := p.userImporter().ImportAll(ctx, ex.Users)
	require.NoError(t, err)
	_, err = p.transactionImporter().ImportAll(ctx, ex.Orders)
	require.NoError(t, err)

	res, err := p.transactionImporter().ImportAll(ctx, ex.Orders)
	require.NoError(t, err)
	require.Zero(t, res.Created)
	require.Equal(t, 3, res.Skipped)

	n, err := p.Repos.Transactions.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 3, n)
}
