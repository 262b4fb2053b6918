// Package reconcile compares legacy per-affiliate sales aggregates with the
// commission totals that actually landed in the target store. It never
// writes; the report is regenerated fresh on every pass and is safe to run
// between or after imports.
package reconcile

import (
	"context"
	"math"
	"sort"

	"github.com/eksporyuk/sejoli-migrator/internal/database/repository"
	"github.com/eksporyuk/sejoli-migrator/internal/identity"
	"github.com/eksporyuk/sejoli-migrator/internal/pipeline"
	"github.com/eksporyuk/sejoli-migrator/internal/source"
)

// Classification of one affiliate's legacy-vs-target comparison.
type Classification string

const (
	Match           Classification = "MATCH"
	MissingInTarget Classification = "MISSING_IN_TARGET"
	AmountMismatch  Classification = "AMOUNT_MISMATCH"
)

// Record is one affiliate's reconciliation outcome. Delta is expected minus
// actual, signed; Expected is the legacy sales total at the expected rate.
type Record struct {
	AffiliateLegacyID int64
	AffiliateEmail    string
	CompletedOrders   int
	LegacySales       int64
	Expected          int64
	TargetTotal       int64
	TargetRecords     int64
	Delta             int64
	Class             Classification
}

// Options tune the comparison. ExpectedRate is a percentage.
type Options struct {
	ExpectedRate float64
	Tolerance    int64
}

// Engine reads the target store; it holds no other state.
type Engine struct {
	Mappings    *repository.MappingRepo
	Affiliates  *repository.AffiliateRepo
	Commissions *repository.CommissionRepo
	Opts        Options
}

func New(repos pipeline.Repos, opts Options) *Engine {
	if opts.ExpectedRate == 0 {
		opts.ExpectedRate = 30
	}
	return &Engine{
		Mappings:    repos.Mappings,
		Affiliates:  repos.Affiliates,
		Commissions: repos.Commissions,
		Opts:        opts,
	}
}

// Reconcile produces one record per legacy affiliate with at least one
// completed order, ordered by legacy id.
func (e *Engine) Reconcile(ctx context.Context, ex *source.Export) ([]Record, error) {
	sales := map[int64]int64{}
	orders := map[int64]int{}
	for _, o := range ex.Orders {
		if o.AffiliateID == 0 {
			continue
		}
		if status, _ := pipeline.MapStatus(o.Status); status != pipeline.StatusCompleted {
			continue
		}
		sales[int64(o.AffiliateID)] += int64(o.GrandTotal)
		orders[int64(o.AffiliateID)]++
	}

	emails := map[int64]string{}
	for _, a := range ex.Affiliates {
		emails[int64(a.ID)] = a.UserEmail
	}

	ids := make([]int64, 0, len(sales))
	for id := range sales {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]Record, 0, len(ids))
	for _, legacyID := range ids {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		rec := Record{
			AffiliateLegacyID: legacyID,
			AffiliateEmail:    emails[legacyID],
			CompletedOrders:   orders[legacyID],
			LegacySales:       sales[legacyID],
			Expected:          int64(math.Round(float64(sales[legacyID]) * e.Opts.ExpectedRate / 100)),
		}

		m, err := e.Mappings.Get(ctx, identity.EntityAffiliate, legacyID)
		if err != nil {
			return nil, err
		}
		if m == nil {
			rec.Delta = rec.Expected
			rec.Class = MissingInTarget
			out = append(out, rec)
			continue
		}
		total, count, err := e.Commissions.SumByAffiliate(ctx, m.TargetID)
		if err != nil {
			return nil, err
		}
		rec.TargetTotal = total
		rec.TargetRecords = count
		rec.Delta = rec.Expected - total

		switch {
		case count == 0 && rec.LegacySales > 0:
			rec.Class = MissingInTarget
		case abs(rec.Delta) > e.Opts.Tolerance:
			rec.Class = AmountMismatch
		default:
			rec.Class = Match
		}
		out = append(out, rec)
	}
	return out, nil
}

// Overview counts target-side rows per entity, matching what the legacy
// audit checks before signing off a migration.
type Overview struct {
	Users        int64
	Wallets      int64
	Affiliates   int64
	Transactions int64
	Grants       int64
	Commissions  int64
	ByStatus     []repository.StatusTotal
}

func (e *Engine) CollectOverview(ctx context.Context, repos pipeline.Repos) (Overview, error) {
	var ov Overview
	var err error
	if ov.Users, err = repos.Users.Count(ctx); err != nil {
		return ov, err
	}
	if ov.Wallets, err = repos.Wallets.Count(ctx); err != nil {
		return ov, err
	}
	if ov.Affiliates, err = repos.Affiliates.Count(ctx); err != nil {
		return ov, err
	}
	if ov.Transactions, err = repos.Transactions.Count(ctx); err != nil {
		return ov, err
	}
	if ov.Grants, err = repos.Memberships.Count(ctx); err != nil {
		return ov, err
	}
	if ov.Commissions, err = repos.Commissions.Count(ctx); err != nil {
		return ov, err
	}
	if ov.ByStatus, err = repos.Transactions.SumByStatus(ctx); err != nil {
		return ov, err
	}
	return ov, nil
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
