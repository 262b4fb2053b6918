package pipeline

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/eksporyuk/sejoli-migrator/internal/database/repository"
	"github.com/eksporyuk/sejoli-migrator/internal/identity"
	"github.com/eksporyuk/sejoli-migrator/internal/source"
)

// UserImporter migrates legacy users. Pre-existing target users matched by
// email are bound and refreshed, never duplicated; new users get a derived
// login handle, a placeholder credential and the least-privileged role their
// legacy record allows. Every resolved user ends up with a wallet row.
type UserImporter struct {
	Users    *repository.UserRepo
	Wallets  *repository.WalletRepo
	Resolver *identity.Resolver
	Log      zerolog.Logger
	Workers  int

	passwordHash string
}

func (p *Pipeline) userImporter() *UserImporter {
	return &UserImporter{
		Users:    p.Repos.Users,
		Wallets:  p.Repos.Wallets,
		Resolver: p.Resolver,
		Log:      p.Log,
		Workers:  p.Workers,
	}
}

func (im *UserImporter) ImportAll(ctx context.Context, users []source.User) (StageResult, error) {
	hash, err := placeholderHash()
	if err != nil {
		return StageResult{}, fmt.Errorf("placeholder credential: %w", err)
	}
	im.passwordHash = hash

	c := &counter{}
	err = runRecords(ctx, im.Workers, users, func(ctx context.Context, u source.User) error {
		return im.importOne(ctx, u, c)
	})
	return c.result(), err
}

func (im *UserImporter) importOne(ctx context.Context, u source.User, c *counter) error {
	email := strings.TrimSpace(u.Email)
	if email == "" {
		// No natural key and no way to contact the user later.
		im.Log.Debug().Int64("legacy_user", int64(u.ID)).Str("login", u.Login).
			Msg("user without email")
		c.skipped()
		return nil
	}

	unguard := im.Resolver.Guard(identity.EntityUser, int64(u.ID))
	defer unguard()

	targetID, err := im.Resolver.Resolve(ctx, identity.EntityUser, int64(u.ID),
		identity.NaturalKeys{Email: email, Username: u.Login})
	switch {
	case err == nil:
		return im.refresh(ctx, u, targetID, c)
	case errors.Is(err, identity.ErrNoMapping):
		return im.create(ctx, u, email, c)
	default:
		return err
	}
}

func (im *UserImporter) refresh(ctx context.Context, u source.User, targetID string, c *counter) error {
	err := withRetry(ctx, func() error {
		return im.Users.Refresh(ctx, targetID, displayName(u), nullable(u.Phone))
	})
	if err != nil {
		if isFatal(err) {
			return err
		}
		c.failed(fmt.Errorf("user %d refresh: %w", u.ID, err))
		return nil
	}
	if err := im.ensureWallet(ctx, targetID); err != nil {
		return err
	}
	c.updated()
	return nil
}

func (im *UserImporter) create(ctx context.Context, u source.User, email string, c *counter) error {
	handle, err := im.uniqueHandle(ctx, u)
	if err != nil {
		if isFatal(err) {
			return err
		}
		c.failed(fmt.Errorf("user %d handle: %w", u.ID, err))
		return nil
	}

	ref := identity.ExternalRef(identity.EntityUser, int64(u.ID))
	created := u.Registered.Time
	if created.IsZero() {
		created = nowUTC()
	}
	user := repository.User{
		ID:            uuid.NewString(),
		Email:         email,
		Username:      handle,
		Name:          displayName(u),
		PasswordHash:  im.passwordHash,
		Role:          mapRole(u),
		Phone:         nullable(u.Phone),
		Whatsapp:      nullable(u.Phone),
		EmailVerified: true,
		IsActive:      true,
		ExternalRef:   &ref,
		CreatedAt:     created,
	}
	err = withRetry(ctx, func() error { return im.Users.Insert(ctx, user) })
	if err != nil {
		if isUniqueViolation(err) {
			// Another legacy record already owns this email; reuse it.
			existing, ferr := im.Users.FindByEmail(ctx, email)
			if ferr != nil {
				return ferr
			}
			if existing != nil {
				if berr := im.Resolver.Bind(ctx, identity.EntityUser, int64(u.ID), existing.ID); berr != nil {
					return berr
				}
				if werr := im.ensureWallet(ctx, existing.ID); werr != nil {
					return werr
				}
				c.skipped()
				return nil
			}
		}
		if isFatal(err) {
			return err
		}
		c.failed(fmt.Errorf("user %d insert: %w", u.ID, err))
		return nil
	}
	if err := im.Resolver.Bind(ctx, identity.EntityUser, int64(u.ID), user.ID); err != nil {
		return err
	}
	if err := im.ensureWallet(ctx, user.ID); err != nil {
		return err
	}
	c.created()
	return nil
}

func (im *UserImporter) ensureWallet(ctx context.Context, userID string) error {
	err := withRetry(ctx, func() error { return im.Wallets.Ensure(ctx, userID) })
	if err != nil && !isFatal(err) {
		// A user without a wallet breaks downstream payouts; treat as fatal
		// anyway since Ensure has no per-record constraints to trip on.
		return fmt.Errorf("ensure wallet for %s: %w", userID, err)
	}
	return err
}

// uniqueHandle derives a login handle and resolves collisions with a numeric
// suffix, falling back to the legacy id when the namespace is exhausted.
func (im *UserImporter) uniqueHandle(ctx context.Context, u source.User) (string, error) {
	base := u.Login
	if strings.TrimSpace(base) == "" {
		base = u.Email
	}
	base = deriveHandle(base)
	for suffix := 0; suffix <= 1000; suffix++ {
		candidate := base
		if suffix > 0 {
			candidate = fmt.Sprintf("%s%d", base, suffix)
		}
		existing, err := im.Users.FindByUsername(ctx, candidate)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return candidate, nil
		}
	}
	return fmt.Sprintf("%s%d", base, u.ID), nil
}

func mapRole(u source.User) string {
	switch strings.ToLower(strings.TrimSpace(u.Role)) {
	case "administrator":
		return "ADMIN"
	case "editor":
		return "MENTOR"
	}
	if strings.TrimSpace(u.AffiliateCode) != "" {
		return "AFFILIATE"
	}
	return "MEMBER_FREE"
}

func displayName(u source.User) string {
	for _, cand := range []string{u.DisplayName, u.FirstName, u.Login} {
		if s := strings.TrimSpace(cand); s != "" {
			return s
		}
	}
	return strings.Split(u.Email, "@")[0]
}

func nullable(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// placeholderHash generates one bcrypt hash of a random throwaway password
// per run. Imported accounts authenticate only after a password reset; no
// legacy credential is ever carried over.
func placeholderHash() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	h, err := bcrypt.GenerateFromPassword([]byte(hex.EncodeToString(buf)), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
