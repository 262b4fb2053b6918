package pipeline

import (
	"github.com/eksporyuk/sejoli-migrator/internal/catalog"
	"github.com/eksporyuk/sejoli-migrator/internal/source"
)

// Preflight summarizes what a run over this export would touch without
// writing anything: record counts, malformed drops, status strings outside
// the mapping table and completed orders whose product has no catalog entry.
type Preflight struct {
	Users            int
	Orders           int
	Affiliates       int
	Commissions      int
	Malformed        map[string]int
	UnknownStatuses  map[string]int
	UnmappedProducts map[int64]int
}

// RunPreflight is pure over the export and catalog.
func RunPreflight(ex *source.Export, cat *catalog.Catalog) Preflight {
	pf := Preflight{
		Users:            len(ex.Users),
		Orders:           len(ex.Orders),
		Affiliates:       len(ex.Affiliates),
		Commissions:      len(ex.Commissions),
		Malformed:        ex.Malformed,
		UnknownStatuses:  map[string]int{},
		UnmappedProducts: map[int64]int{},
	}
	for _, o := range ex.Orders {
		status, known := MapStatus(o.Status)
		if !known {
			pf.UnknownStatuses[o.Status]++
		}
		if status == StatusCompleted {
			if _, ok := cat.Lookup(int64(o.ProductID)); !ok {
				pf.UnmappedProducts[int64(o.ProductID)]++
			}
		}
	}
	return pf
}
