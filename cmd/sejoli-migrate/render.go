package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/eksporyuk/sejoli-migrator/internal/pipeline"
	"github.com/eksporyuk/sejoli-migrator/internal/reconcile"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	badStyle    = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("9"))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}

func renderSummary(sum pipeline.Summary) string {
	t := newTable("STAGE", "CREATED", "UPDATED", "SKIPPED", "FAILED")
	stages := []struct {
		name string
		res  pipeline.StageResult
	}{
		{"users", sum.Users},
		{"affiliates", sum.Affiliates},
		{"transactions", sum.Transactions},
		{"memberships", sum.Memberships},
		{"commissions", sum.Commissions},
	}
	for _, s := range stages {
		t.Row(s.name,
			fmt.Sprint(s.res.Created), fmt.Sprint(s.res.Updated),
			fmt.Sprint(s.res.Skipped), fmt.Sprint(s.res.Failed))
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("MIGRATION SUMMARY"))
	b.WriteString("\n")
	b.WriteString(t.Render())
	if len(sum.Malformed) > 0 {
		b.WriteString("\n")
		for _, name := range sortedKeys(sum.Malformed) {
			b.WriteString(fmt.Sprintf("malformed %s records dropped: %d\n", name, sum.Malformed[name]))
		}
	}
	return b.String()
}

func renderPreflight(pf pipeline.Preflight) string {
	t := newTable("COLLECTION", "RECORDS", "MALFORMED")
	t.Row("users", fmt.Sprint(pf.Users), fmt.Sprint(pf.Malformed["users"]))
	t.Row("orders", fmt.Sprint(pf.Orders), fmt.Sprint(pf.Malformed["orders"]))
	t.Row("affiliates", fmt.Sprint(pf.Affiliates), fmt.Sprint(pf.Malformed["affiliates"]))
	t.Row("commissions", fmt.Sprint(pf.Commissions), fmt.Sprint(pf.Malformed["commissions"]))

	var b strings.Builder
	b.WriteString(titleStyle.Render("PREFLIGHT (no writes)"))
	b.WriteString("\n")
	b.WriteString(t.Render())
	b.WriteString("\n")
	for status, n := range pf.UnknownStatuses {
		b.WriteString(fmt.Sprintf("unknown order status %q on %d orders (will map to PENDING)\n", status, n))
	}
	for product, n := range pf.UnmappedProducts {
		b.WriteString(fmt.Sprintf("product %d missing from catalog: %d completed orders will get no grant\n", product, n))
	}
	return b.String()
}

func renderOverview(ov reconcile.Overview) string {
	t := newTable("ENTITY", "ROWS")
	t.Row("users", fmt.Sprint(ov.Users))
	t.Row("wallets", fmt.Sprint(ov.Wallets))
	t.Row("affiliate accounts", fmt.Sprint(ov.Affiliates))
	t.Row("transactions", fmt.Sprint(ov.Transactions))
	t.Row("membership grants", fmt.Sprint(ov.Grants))
	t.Row("commission records", fmt.Sprint(ov.Commissions))

	var b strings.Builder
	b.WriteString(titleStyle.Render("TARGET STORE OVERVIEW"))
	b.WriteString("\n")
	b.WriteString(t.Render())
	b.WriteString("\n")
	for _, st := range ov.ByStatus {
		b.WriteString(fmt.Sprintf("%s: %d transactions, total %d\n", st.Status, st.Count, st.Amount))
	}
	return b.String()
}

func renderReconciliation(records []reconcile.Record) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if row >= 0 && row < len(records) && records[row].Class != reconcile.Match {
				return badStyle
			}
			return cellStyle
		}).
		Headers("AFFILIATE", "EMAIL", "LEGACY SALES", "EXPECTED", "TARGET", "DELTA", "CLASS")
	matches := 0
	for _, r := range records {
		if r.Class == reconcile.Match {
			matches++
		}
		t.Row(fmt.Sprint(r.AffiliateLegacyID), r.AffiliateEmail,
			fmt.Sprint(r.LegacySales), fmt.Sprint(r.Expected),
			fmt.Sprint(r.TargetTotal), fmt.Sprint(r.Delta), string(r.Class))
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("RECONCILIATION"))
	b.WriteString("\n")
	b.WriteString(t.Render())
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%d affiliates checked, %d match, %d divergent\n",
		len(records), matches, len(records)-matches))
	return b.String()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
