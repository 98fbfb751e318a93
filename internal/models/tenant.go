package models

import "time"

// SubscriptionStatus enumerates the lifecycle states of a tenant subscription.
type SubscriptionStatus string

const (
	StatusActive   SubscriptionStatus = "active"
	StatusTrial    SubscriptionStatus = "trial"
	StatusPastDue  SubscriptionStatus = "past_due"
	StatusCanceled SubscriptionStatus = "canceled"
	// StatusDetected is never stored; it marks tenants that own data rows but
	// have no subscription row.
	StatusDetected SubscriptionStatus = "detected"
)

// LegacyPlanID is assigned to detected tenants.
const LegacyPlanID = "legacy"

// UnknownPlaceholder is shown when enrichment data is missing.
const UnknownPlaceholder = "Unknown"

// Valid reports whether s may be persisted on a subscription row.
func (s SubscriptionStatus) Valid() bool {
	switch s {
	case StatusActive, StatusTrial, StatusPastDue, StatusCanceled:
		return true
	}
	return false
}

// Tenant is a row of the tenant registry. A tenant is registered the first
// time any tenant-scoped resource is created for it.
type Tenant struct {
	TenantID  string    `db:"tenant_id" json:"tenantId"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// TenantSummary is one row of the admin tenant directory: a subscription row
// (real or synthesized) enriched with company and contact data.
type TenantSummary struct {
	TenantID         string             `json:"tenantId"`
	PlanID           string             `json:"planId"`
	Status           SubscriptionStatus `json:"status"`
	StartDate        time.Time          `json:"startDate"`
	CurrentPeriodEnd *time.Time         `json:"currentPeriodEnd"`
	IsManual         bool               `json:"isManual"`
	CompanyName      string             `json:"companyName"`
	TaxNumber        string             `json:"taxNumber"`
	ContactName      string             `json:"contactName"`
	ContactEmail     string             `json:"contactEmail"`
	ContactPhone     string             `json:"contactPhone"`
	CreatedAt        time.Time          `json:"createdAt"`
}

// Profile is a user profile; the earliest profile of a tenant is its primary contact.
type Profile struct {
	ID        string    `db:"id" json:"id"`
	TenantID  string    `db:"tenant_id" json:"tenantId"`
	FullName  string    `db:"full_name" json:"fullName"`
	Email     string    `db:"email" json:"email"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// CompanySettings holds per-tenant company data.
type CompanySettings struct {
	TenantID    string    `db:"tenant_id" json:"tenantId"`
	CompanyName string    `db:"company_name" json:"companyName"`
	TaxNumber   *string   `db:"tax_number" json:"taxNumber,omitempty"`
	Currency    string    `db:"currency" json:"currency"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}
