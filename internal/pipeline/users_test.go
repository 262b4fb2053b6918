package pipeline

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/eksporyuk/sejoli-migrator/internal/database/repository"
	"github.com/eksporyuk/sejoli-migrator/internal/identity"
	"github.com/eksporyuk/sejoli-migrator/internal/source"
)

func TestUserImportCreatesUserAndWallet(t *testing.T) {
	db := newTestDB(t)
	p := newTestPipeline(t, db)
	ctx := context.Background()

	res, err := p.userImporter().ImportAll(ctx, fixtureExport().Users)
	require.NoError(t, err)
	require.Equal(t, 2, res.Created)
	require.Zero(t, res.Failed)

	u, err := p.Repos.Users.FindByEmail(ctx, "budi@example.com")
	require.NoError(t, err)
	require.NotNil(t, u)
	require.Equal(t, "budi.s", u.Username)
	require.Equal(t, "Budi Santoso", u.Name)
	require.Equal(t, "MEMBER_FREE", u.Role)
	require.NotNil(t, u.ExternalRef)
	require.Equal(t, "legacy:user:1", *u.ExternalRef)
	require.NotEmpty(t, u.PasswordHash)

	// Sari carried an affiliate code, which decides her role.
	sari, err := p.Repos.Users.FindByEmail(ctx, "sari@example.com")
	require.NoError(t, err)
	require.NotNil(t, sari)
	require.Equal(t, "AFFILIATE", sari.Role)

	w, err := p.Repos.Wallets.Get(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, w)
	require.Zero(t, w.Balance)
}

func TestUserImportSecondRunCreatesNothing(t *testing.T) {
	db := newTestDB(t)
	p := newTestPipeline(t, db)
	ctx := context.Background()
	users := fixtureExport().Users

	first, err := p.userImporter().ImportAll(ctx, users)
	require.NoError(t, err)
	require.Equal(t, 2, first.Created)

	second, err := p.userImporter().ImportAll(ctx, users)
	require.NoError(t, err)
	t.Log("rerun result:", second)
	require.Zero(t, second.Created)
	require.Equal(t, 2, second.Updated)
	require.Zero(t, second.Failed)

	n, err := p.Repos.Users.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
}

func TestUserImportSkipsEmptyEmail(t *testing.T) {
	db := newTestDB(t)
	p := newTestPipeline(t, db)
	var buf bytes.Buffer
	p.Log = zerolog.New(&buf)

	res, err := p.userImporter().ImportAll(context.Background(), []source.User{
		{ID: 7, Login: "ghost"},
	})
	require.NoError(t, err)
	require.Zero(t, res.Created)
	require.Equal(t, 1, res.Skipped)

	// The data-quality gap is traceable in the logs.
	require.Contains(t, buf.String(), "user without email")
	require.Contains(t, buf.String(), `"legacy_user":7`)
}

func TestUserImportHandleCollisionGetsSuffix(t *testing.T) {
	db := newTestDB(t)
	p := newTestPipeline(t, db)
	ctx := context.Background()

	res, err := p.userImporter().ImportAll(ctx, []source.User{
		{ID: 1, Login: "andi", Email: "andi@one.example"},
		{ID: 2, Login: "andi", Email: "andi@two.example"},
		{ID: 3, Login: "Ándi", Email: "andi@three.example"},
	})
	require.NoError(t, err)
	require.Equal(t, 3, res.Created)

	for _, handle := range []string{"andi", "andi1", "andi2"} {
		u, err := p.Repos.Users.FindByUsername(ctx, handle)
		require.NoError(t, err)
		require.NotNil(t, u, "expected handle %q to be taken", handle)
	}
}

func TestUserImportReusesPreexistingAccountByEmail(t *testing.T) {
	db := newTestDB(t)
	p := newTestPipeline(t, db)
	ctx := context.Background()

	existing := repository.User{
		ID:           uuid.NewString(),
		Email:        "Budi@Example.com",
		Username:     "budi-target",
		Name:         "Budi",
		PasswordHash: "x",
		Role:         "MEMBER_PREMIUM",
		IsActive:     true,
		CreatedAt:    nowUTC(),
	}
	require.NoError(t, p.Repos.Users.Insert(ctx, existing))

	res, err := p.userImporter().ImportAll(ctx, fixtureExport().Users[:1])
	require.NoError(t, err)
	require.Zero(t, res.Created)
	require.Equal(t, 1, res.Updated)

	// Matching is by email, case-insensitively, and binds the mapping so
	// later stages resolve to the surviving account.
	m, err := p.Repos.Mappings.Get(ctx, identity.EntityUser, 1)
	require.NoError(t, err)
	require.NotNil(t, m)
	require.Equal(t, existing.ID, m.TargetID)

	n, err := p.Repos.Users.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}
