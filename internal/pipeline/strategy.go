package pipeline

import (
	"fmt"
	"math"

	"github.com/eksporyuk/sejoli-migrator/internal/catalog"
	"github.com/eksporyuk/sejoli-migrator/internal/source"
)

// CommissionStrategy selects the single source of truth for commission
// amounts. Exactly one strategy applies to a whole run; mixing them across
// records would make per-affiliate totals meaningless.
type CommissionStrategy string

const (
	// StrategyLedger takes the amount recorded on the legacy commission
	// entry. This is the default: the export is the historical ground truth.
	StrategyLedger CommissionStrategy = "ledger"
	// StrategyFlat takes the catalog's flat per-product commission.
	StrategyFlat CommissionStrategy = "flat"
	// StrategyRate recomputes amounts as order amount times rate percent.
	StrategyRate CommissionStrategy = "rate"
)

func ParseStrategy(s string) (CommissionStrategy, error) {
	switch CommissionStrategy(s) {
	case StrategyLedger, StrategyFlat, StrategyRate:
		return CommissionStrategy(s), nil
	case "":
		return StrategyLedger, nil
	}
	return "", fmt.Errorf("unknown commission strategy %q (want ledger, flat or rate)", s)
}

// amount derives the commission amount and effective rate for one legacy
// entry. ok is false when the strategy cannot produce an amount (flat with an
// unmapped product), which the importer counts as skipped.
func (s CommissionStrategy) amount(comm source.Commission, orderAmount int64, entry catalog.Entry, hasEntry bool, defaultRate float64) (amt int64, rate float64, ok bool) {
	rate = defaultRate
	if hasEntry && entry.CommissionRate > 0 {
		rate = entry.CommissionRate
	} else if comm.Rate > 0 {
		rate = comm.Rate
	}

	switch s {
	case StrategyFlat:
		if !hasEntry || entry.CommissionFlat <= 0 {
			return 0, rate, false
		}
		return entry.CommissionFlat, rate, true
	case StrategyRate:
		return int64(math.Round(float64(orderAmount) * rate / 100)), rate, true
	default: // StrategyLedger
		if comm.Rate > 0 {
			rate = comm.Rate
		}
		return int64(comm.Amount), rate, true
	}
}
