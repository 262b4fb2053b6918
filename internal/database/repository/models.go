package repository

import "time"

// User represents a target user row. ExternalRef is nil for users that were
// created inside the platform rather than imported.
type User struct {
	ID            string
	Email         string
	Username      string
	Name          string
	PasswordHash  string
	Role          string
	Phone         *string
	Whatsapp      *string
	EmailVerified bool
	IsActive      bool
	ExternalRef   *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Wallet represents a balance row, one per user.
type Wallet struct {
	UserID         string
	Balance        int64
	BalancePending int64
	UpdatedAt      time.Time
}

// AffiliateAccount represents an affiliate profile row.
type AffiliateAccount struct {
	ID               string
	UserID           string
	Code             string
	Status           string
	Tier             int
	CommissionRate   float64
	TotalConversions int64
	TotalEarnings    int64
	ExternalRef      *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Transaction represents an order imported as a transaction row.
type Transaction struct {
	ID            string
	UserID        string
	Type          string
	Status        string
	Amount        int64
	CustomerName  *string
	CustomerEmail *string
	Description   string
	PaymentMethod string
	ExternalRef   string
	PaidAt        *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// MembershipGrant represents a user's access to a membership tier.
type MembershipGrant struct {
	ID          string
	UserID      string
	Tier        string
	StartsAt    time.Time
	EndsAt      time.Time
	Status      string
	Price       int64
	Source      string
	ExternalRef string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CommissionRecord represents one affiliate commission for one transaction.
type CommissionRecord struct {
	ID            string
	AffiliateID   string
	TransactionID string
	OrderRef      string
	OrderAmount   int64
	Amount        int64
	Rate          float64
	Status        string
	PaidOut       bool
	PaidOutAt     *time.Time
	CreatedAt     time.Time
}

// IdentityMapping translates a legacy identifier into a target id. Once
// written it is never reassigned.
type IdentityMapping struct {
	EntityType string
	LegacyID   int64
	TargetID   string
	CreatedAt  time.Time
}
