// Package pipeline runs the staged Sejoli import: users, affiliates,
// transactions, membership grants, commissions, strictly in that order
// because each stage reads mappings written by the ones before it.
package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/eksporyuk/sejoli-migrator/internal/catalog"
	"github.com/eksporyuk/sejoli-migrator/internal/database/repository"
	"github.com/eksporyuk/sejoli-migrator/internal/identity"
	"github.com/eksporyuk/sejoli-migrator/internal/source"
)

// Repos bundles the target-store repositories one pipeline run works with.
type Repos struct {
	Users        *repository.UserRepo
	Wallets      *repository.WalletRepo
	Affiliates   *repository.AffiliateRepo
	Transactions *repository.TransactionRepo
	Memberships  *repository.MembershipRepo
	Commissions  *repository.CommissionRepo
	Mappings     *repository.MappingRepo
}

func NewRepos(db *sql.DB) Repos {
	return Repos{
		Users:        repository.NewUserRepo(db),
		Wallets:      repository.NewWalletRepo(db),
		Affiliates:   repository.NewAffiliateRepo(db),
		Transactions: repository.NewTransactionRepo(db),
		Memberships:  repository.NewMembershipRepo(db),
		Commissions:  repository.NewCommissionRepo(db),
		Mappings:     repository.NewMappingRepo(db),
	}
}

// StageResult counts one stage's outcomes. Re-running a stage over the same
// export and target state yields Created == 0.
type StageResult struct {
	Created int
	Updated int
	Skipped int
	Failed  int
	Errors  []error
}

// Summary is the whole run's outcome, one result per stage plus the
// malformed-record counts from the source adapter.
type Summary struct {
	Users        StageResult
	Affiliates   StageResult
	Transactions StageResult
	Memberships  StageResult
	Commissions  StageResult
	Malformed    map[string]int
}

func (s Summary) TotalCreated() int {
	return s.Users.Created + s.Affiliates.Created + s.Transactions.Created +
		s.Memberships.Created + s.Commissions.Created
}

func (s Summary) TotalFailed() int {
	return s.Users.Failed + s.Affiliates.Failed + s.Transactions.Failed +
		s.Memberships.Failed + s.Commissions.Failed
}

// Pipeline wires the stages to one export, catalog, resolver and store.
type Pipeline struct {
	Repos       Repos
	Catalog     *catalog.Catalog
	Resolver    *identity.Resolver
	Log         zerolog.Logger
	Workers     int
	Strategy    CommissionStrategy
	DefaultRate float64
}

// New builds a pipeline and registers the natural-key lookups the resolver
// needs: users by email (case-insensitive) then username, affiliates by the
// owning user's email.
func New(repos Repos, cat *catalog.Catalog, log zerolog.Logger) *Pipeline {
	resolver := identity.NewResolver(repos.Mappings)
	resolver.RegisterLookup(identity.EntityUser, func(ctx context.Context, keys identity.NaturalKeys) (string, error) {
		if keys.Email != "" {
			u, err := repos.Users.FindByEmail(ctx, keys.Email)
			if err != nil {
				return "", err
			}
			if u != nil {
				return u.ID, nil
			}
		}
		if keys.Username != "" {
			u, err := repos.Users.FindByUsername(ctx, keys.Username)
			if err != nil {
				return "", err
			}
			if u != nil {
				return u.ID, nil
			}
		}
		return "", nil
	})
	resolver.RegisterLookup(identity.EntityAffiliate, func(ctx context.Context, keys identity.NaturalKeys) (string, error) {
		if keys.Email == "" {
			return "", nil
		}
		u, err := repos.Users.FindByEmail(ctx, keys.Email)
		if err != nil || u == nil {
			return "", err
		}
		acct, err := repos.Affiliates.FindByUserID(ctx, u.ID)
		if err != nil || acct == nil {
			return "", err
		}
		return acct.ID, nil
	})
	return &Pipeline{
		Repos:       repos,
		Catalog:     cat,
		Resolver:    resolver,
		Log:         log,
		Workers:     1,
		Strategy:    StrategyLedger,
		DefaultRate: 30,
	}
}

// Run executes all stages in dependency order. Fatal errors (source shape,
// store unavailable, mapping conflicts) abort and are returned; per-record
// failures only show up in the summary. On cancellation the summary carries
// the partial counts committed so far.
func (p *Pipeline) Run(ctx context.Context, ex *source.Export) (Summary, error) {
	sum := Summary{Malformed: ex.Malformed}

	users, err := p.userImporter().ImportAll(ctx, ex.Users)
	sum.Users = users
	if err != nil {
		return sum, fmt.Errorf("users stage: %w", err)
	}
	p.logStage("users", users)

	affiliates, err := p.affiliateImporter().ImportAll(ctx, ex.Affiliates)
	sum.Affiliates = affiliates
	if err != nil {
		return sum, fmt.Errorf("affiliates stage: %w", err)
	}
	p.logStage("affiliates", affiliates)

	transactions, err := p.transactionImporter().ImportAll(ctx, ex.Orders)
	sum.Transactions = transactions
	if err != nil {
		return sum, fmt.Errorf("transactions stage: %w", err)
	}
	p.logStage("transactions", transactions)

	memberships, err := p.membershipImporter().ImportAll(ctx, ex.Orders)
	sum.Memberships = memberships
	if err != nil {
		return sum, fmt.Errorf("memberships stage: %w", err)
	}
	p.logStage("memberships", memberships)

	commissions, err := p.commissionImporter().ImportAll(ctx, ex.Orders, ex.Commissions)
	sum.Commissions = commissions
	if err != nil {
		return sum, fmt.Errorf("commissions stage: %w", err)
	}
	p.logStage("commissions", commissions)

	return sum, nil
}

func (p *Pipeline) logStage(name string, res StageResult) {
	p.Log.Info().
		Str("stage", name).
		Int("created", res.Created).
		Int("updated", res.Updated).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Msg("stage complete")
	for _, err := range res.Errors {
		p.Log.Warn().Str("stage", name).Err(err).Msg("record failed")
	}
}

// counter accumulates a StageResult across workers.
type counter struct {
	mu  sync.Mutex
	res StageResult
}

func (c *counter) created() { c.mu.Lock(); c.res.Created++; c.mu.Unlock() }
func (c *counter) updated() { c.mu.Lock(); c.res.Updated++; c.mu.Unlock() }
func (c *counter) skipped() { c.mu.Lock(); c.res.Skipped++; c.mu.Unlock() }

func (c *counter) failed(err error) {
	c.mu.Lock()
	c.res.Failed++
	c.res.Errors = append(c.res.Errors, err)
	c.mu.Unlock()
}

func (c *counter) result() StageResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.res
}

// runRecords fans records out to a bounded worker pool. fn returns an error
// only for fatal conditions; those cancel the remaining records. The
// cooperative stop signal is checked before each record is scheduled, so a
// cancelled stage reports partial counts rather than rolling back.
func runRecords[T any](ctx context.Context, workers int, recs []T, fn func(context.Context, T) error) error {
	if workers < 1 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, rec := range recs {
		if gctx.Err() != nil {
			break
		}
		rec := rec
		g.Go(func() error { return fn(gctx, rec) })
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func nowUTC() time.Time { return time.Now().UTC().Truncate(time.Second) }

const retryAttempts = 2

// withRetry retries transient store errors a fixed number of times with a
// short backoff, then surfaces the last error.
func withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil || !isTransient(err) || attempt >= retryAttempts {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 50 * time.Millisecond):
		}
	}
}

func isTransient(err error) bool {
	s := err.Error()
	return strings.Contains(s, "database is locked") || strings.Contains(s, "database table is locked")
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE")
}

// isFatal separates store-level breakage from per-record constraint noise.
func isFatal(err error) bool {
	if errors.Is(err, identity.ErrMappingConflict) {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "unable to open database") ||
		strings.Contains(s, "no such table") ||
		errors.Is(err, sql.ErrConnDone)
}
