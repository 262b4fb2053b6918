// Package source reads the legacy Sejoli export artifact and exposes it as
// immutable typed collections. The export is JSON with four top-level
// collections: users, orders, affiliates, commissions. Affiliates and
// commissions may be absent in older extracts.
package source

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrUnavailable means the export artifact could not be opened.
	ErrUnavailable = errors.New("source unavailable")
	// ErrMalformed means the artifact was read but its top-level shape is wrong.
	ErrMalformed = errors.New("source malformed")
)

// ID is a legacy numeric identifier. WordPress exports carry them as numbers
// or quoted strings depending on the extraction script.
type ID int64

func (id *ID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*id = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Unparseable ids leave the field zero; the record is then dropped
		// and counted as malformed.
		*id = 0
		return nil
	}
	*id = ID(f)
	return nil
}

// Money is an integer rupiah amount. The export mixes numeric and quoted
// representations, occasionally with a fractional part from float storage.
type Money int64

func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*m = 0
		return nil
	}
	s = strings.ReplaceAll(s, ",", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Zero rather than reject: the reconciliation pass surfaces any
		// resulting drift against the legacy aggregates.
		*m = 0
		return nil
	}
	*m = Money(math.Round(f))
	return nil
}

// Timestamp parses the ISO-8601-ish layouts that appear in the export.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" || s == "0000-00-00 00:00:00" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t.Time = parsed
			return nil
		}
	}
	// The export is inconsistent about date formats; an unreadable timestamp
	// degrades to zero rather than rejecting the whole collection.
	t.Time = time.Time{}
	return nil
}

// User is a legacy user record.
type User struct {
	ID            ID        `json:"ID"`
	Login         string    `json:"user_login"`
	Email         string    `json:"user_email"`
	DisplayName   string    `json:"display_name"`
	FirstName     string    `json:"first_name"`
	Phone         string    `json:"phone"`
	Role          string    `json:"role"`
	AffiliateCode string    `json:"affiliate_code"`
	Registered    Timestamp `json:"user_registered"`
}

// Order is a legacy order record. AffiliateID references the legacy
// affiliate record that earned the sale, zero when organic.
type Order struct {
	ID            ID        `json:"ID"`
	UserID        ID        `json:"user_id"`
	UserEmail     string    `json:"user_email"`
	ProductID     ID        `json:"product_id"`
	ProductName   string    `json:"product_name"`
	Status        string    `json:"status"`
	GrandTotal    Money     `json:"grand_total"`
	AffiliateID   ID        `json:"affiliate_id"`
	PaymentMethod string    `json:"payment_method"`
	BuyerName     string    `json:"buyer_name"`
	BuyerEmail    string    `json:"buyer_email"`
	CreatedAt     Timestamp `json:"created_at"`
}

// Affiliate is a legacy affiliate record.
type Affiliate struct {
	ID                ID     `json:"ID"`
	UserID            ID     `json:"user_id"`
	UserEmail         string `json:"user_email"`
	Code              string `json:"affiliate_code"`
	TotalReferrals    int64  `json:"total_referrals"`
	TotalCommission   Money  `json:"total_commission"`
	PaidCommission    Money  `json:"paid_commission"`
	PendingCommission Money  `json:"pending_commission"`
}

// Commission is a legacy commission ledger entry.
type Commission struct {
	ID             ID        `json:"ID"`
	OrderID        ID        `json:"order_id"`
	AffiliateID    ID        `json:"affiliate_id"`
	AffiliateEmail string    `json:"affiliate_email"`
	OrderTotal     Money     `json:"order_total"`
	Amount         Money     `json:"commission_amount"`
	Rate           float64   `json:"commission_rate"`
	Status         string    `json:"status"`
	CreatedAt      Timestamp `json:"created_at"`
	PaidDate       Timestamp `json:"paid_date"`
}

// Export holds the validated legacy collections. All slices are read-only for
// the duration of a run. Malformed counts records dropped for a missing
// legacy id, keyed by collection name.
type Export struct {
	Users       []User
	Orders      []Order
	Affiliates  []Affiliate
	Commissions []Commission
	Malformed   map[string]int
}

// Load reads and validates the export at path.
func Load(path string) (*Export, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return Parse(raw)
}

// Parse validates the top-level shape and filters malformed records. Users
// and orders are required collections; affiliates and commissions default to
// empty when absent.
func Parse(raw []byte) (*Export, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, fmt.Errorf("%w: not a JSON object: %v", ErrMalformed, err)
	}
	for _, required := range []string{"users", "orders"} {
		if _, ok := top[required]; !ok {
			return nil, fmt.Errorf("%w: missing %q collection", ErrMalformed, required)
		}
	}

	ex := &Export{Malformed: map[string]int{}}

	if err := decodeCollection(top, "users", &ex.Users); err != nil {
		return nil, err
	}
	if err := decodeCollection(top, "orders", &ex.Orders); err != nil {
		return nil, err
	}
	if err := decodeCollection(top, "affiliates", &ex.Affiliates); err != nil {
		return nil, err
	}
	if err := decodeCollection(top, "commissions", &ex.Commissions); err != nil {
		return nil, err
	}

	ex.Users = filterValid(ex.Users, "users", ex.Malformed, func(u User) bool { return u.ID != 0 })
	ex.Orders = filterValid(ex.Orders, "orders", ex.Malformed, func(o Order) bool { return o.ID != 0 })
	ex.Affiliates = filterValid(ex.Affiliates, "affiliates", ex.Malformed, func(a Affiliate) bool { return a.ID != 0 })
	ex.Commissions = filterValid(ex.Commissions, "commissions", ex.Malformed, func(c Commission) bool { return c.ID != 0 })
	return ex, nil
}

func decodeCollection[T any](top map[string]json.RawMessage, name string, out *[]T) error {
	raw, ok := top[name]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, name, err)
	}
	return nil
}

func filterValid[T any](in []T, name string, malformed map[string]int, valid func(T) bool) []T {
	out := in[:0]
	for _, rec := range in {
		if !valid(rec) {
			malformed[name]++
			continue
		}
		out = append(out, rec)
	}
	return out
}
