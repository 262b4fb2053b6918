package pipeline

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/eksporyuk/sejoli-migrator/internal/catalog"
	"github.com/eksporyuk/sejoli-migrator/internal/database"
	"github.com/eksporyuk/sejoli-migrator/internal/source"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.RunMigrations(db))
	return db
}

func newTestPipeline(t *testing.T, db *sql.DB) *Pipeline {
	t.Helper()
	return New(NewRepos(db), catalog.Default(), zerolog.Nop())
}

func ts(value string) source.Timestamp {
	parsed, _ := time.ParseInLocation("2006-01-02 15:04:05", value, time.UTC)
	return source.Timestamp{Time: parsed}
}

// fixtureExport models a small but representative Sejoli extract: two users
// (one of them an affiliate), three orders in mixed states and the matching
// commission ledger.
func fixtureExport() *source.Export {
	return &source.Export{
		Users: []source.User{
			{ID: 1, Login: "budi.s", Email: "budi@example.com", DisplayName: "Budi Santoso",
				Phone: "0812000111", Registered: ts("2021-05-10 08:00:00")},
			{ID: 2, Login: "sari", Email: "sari@example.com", DisplayName: "Sari Dewi",
				AffiliateCode: "SARI30", Registered: ts("2020-11-02 09:30:00")},
		},
		Affiliates: []source.Affiliate{
			{ID: 10, UserID: 2, UserEmail: "sari@example.com", Code: "SARI30",
				TotalReferrals: 2, TotalCommission: 1050000,
				PaidCommission: 600000, PendingCommission: 450000},
		},
		Orders: []source.Order{
			{ID: 100, UserID: 1, UserEmail: "budi@example.com", ProductID: 8683,
				ProductName: "Kelas Ekspor 1 Tahun", Status: "completed",
				GrandTotal: 1500000, AffiliateID: 10, PaymentMethod: "bank_transfer",
				CreatedAt: ts("2023-04-01 10:30:00")},
			{ID: 101, UserID: 1, UserEmail: "budi@example.com", ProductID: 13401,
				ProductName: "Kelas Ekspor Lifetime", Status: "completed",
				GrandTotal: 2000000, AffiliateID: 10,
				CreatedAt: ts("2023-06-15 14:00:00")},
			{ID: 102, UserID: 1, UserEmail: "budi@example.com", ProductID: 8683,
				Status: "cancelled", GrandTotal: 1500000,
				CreatedAt: ts("2023-07-01 09:00:00")},
		},
		Commissions: []source.Commission{
			{ID: 500, OrderID: 100, AffiliateID: 10, AffiliateEmail: "sari@example.com",
				OrderTotal: 1500000, Amount: 450000, Rate: 30, Status: "paid",
				CreatedAt: ts("2023-04-01 10:31:00"), PaidDate: ts("2023-05-01 00:00:00")},
			{ID: 501, OrderID: 101, AffiliateID: 10, AffiliateEmail: "sari@example.com",
				OrderTotal: 2000000, Amount: 600000, Rate: 30, Status: "pending",
				CreatedAt: ts("2023-06-15 14:01:00")},
		},
		Malformed: map[string]int{},
	}
}
