// Package catalog maps legacy product ids to membership and commission rules.
// The table is static for the duration of a run; a miss means "not a
// membership product" and is a skip condition for importers, not an error.
package catalog

import (
	"fmt"

	"github.com/spf13/viper"
)

// ClassMembership marks products that grant membership access. Other classes
// (courses sold standalone, physical goods) pass through the transaction
// importer but produce no grant.
const ClassMembership = "membership"

// Entry is one product's migration rules. DurationDays nil means lifetime.
type Entry struct {
	LegacyProductID int64
	Tier            string
	DurationDays    *int
	CommissionFlat  int64
	CommissionRate  float64
	Class           string
}

// Catalog is a read-only lookup table.
type Catalog struct {
	entries map[int64]Entry
}

// Lookup returns the entry for a legacy product id. The second return is
// false for unmapped products.
func (c *Catalog) Lookup(legacyProductID int64) (Entry, bool) {
	e, ok := c.entries[legacyProductID]
	return e, ok
}

// Len reports the number of mapped products.
func (c *Catalog) Len() int { return len(c.entries) }

func fromEntries(entries []Entry) *Catalog {
	m := make(map[int64]Entry, len(entries))
	for _, e := range entries {
		m[e.LegacyProductID] = e
	}
	return &Catalog{entries: m}
}

func days(n int) *int { return &n }

// Default returns the built-in Sejoli product table, kept in sync with the
// production mapping sheet.
func Default() *Catalog {
	lifetime := []int64{13401, 3840, 6068, 16956, 15234, 17920, 8910}
	annual := []int64{8683, 13399, 8915}
	semester := []int64{13400, 8684, 8914}
	quarterly := []int64{13398}
	monthly := []int64{179}

	var entries []Entry
	add := func(ids []int64, tier string, d *int) {
		for _, id := range ids {
			entries = append(entries, Entry{
				LegacyProductID: id,
				Tier:            tier,
				DurationDays:    d,
				CommissionRate:  30,
				Class:           ClassMembership,
			})
		}
	}
	add(lifetime, "lifetime", nil)
	add(annual, "annual", days(365))
	add(semester, "semester", days(180))
	add(quarterly, "quarterly", days(90))
	add(monthly, "monthly", days(30))
	return fromEntries(entries)
}

type fileEntry struct {
	ID             int64   `mapstructure:"id"`
	Tier           string  `mapstructure:"tier"`
	DurationDays   *int    `mapstructure:"duration_days"`
	CommissionFlat int64   `mapstructure:"commission_flat"`
	CommissionRate float64 `mapstructure:"commission_rate"`
	Class          string  `mapstructure:"class"`
}

// LoadFile reads a catalog from a TOML file with [[products]] entries,
// replacing the built-in table entirely.
func LoadFile(path string) (*Catalog, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var raw struct {
		Products []fileEntry `mapstructure:"products"`
	}
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	entries := make([]Entry, 0, len(raw.Products))
	for _, p := range raw.Products {
		if p.ID == 0 {
			return nil, fmt.Errorf("catalog entry without product id (tier %q)", p.Tier)
		}
		class := p.Class
		if class == "" {
			class = ClassMembership
		}
		rate := p.CommissionRate
		if rate == 0 && p.CommissionFlat == 0 {
			rate = 30
		}
		entries = append(entries, Entry{
			LegacyProductID: p.ID,
			Tier:            p.Tier,
			DurationDays:    p.DurationDays,
			CommissionFlat:  p.CommissionFlat,
			CommissionRate:  rate,
			Class:           class,
		})
	}
	return fromEntries(entries), nil
}
