package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Subscription is the single current subscription row of a tenant.
type Subscription struct {
	ID               int                `db:"id" json:"id"`
	TenantID         string             `db:"tenant_id" json:"tenantId"`
	PlanID           string             `db:"plan_id" json:"planId"`
	Status           SubscriptionStatus `db:"status" json:"status"`
	StartDate        time.Time          `db:"start_date" json:"startDate"`
	CurrentPeriodEnd *time.Time         `db:"current_period_end" json:"currentPeriodEnd"`
	IsManual         bool               `db:"is_manual" json:"isManual"`
	Note             *string            `db:"note" json:"note,omitempty"`
	CreatedAt        time.Time          `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time          `db:"updated_at" json:"updatedAt"`
}

// IsCurrent reports whether the subscription grants access at the given time.
func (s Subscription) IsCurrent(now time.Time) bool {
	if s.Status != StatusActive && s.Status != StatusTrial {
		return false
	}
	return s.CurrentPeriodEnd == nil || s.CurrentPeriodEnd.After(now)
}

// Plan is admin-managed reference data.
type Plan struct {
	ID           string          `db:"id" json:"id"`
	Name         string          `db:"name" json:"name"`
	MonthlyPrice decimal.Decimal `db:"monthly_price" json:"monthlyPrice"`
	CreatedAt    time.Time       `db:"created_at" json:"-"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updatedAt"`
}

// Module is an application area that plans can enable.
type Module struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"-"`
}

// PlanModuleRule enables or limits one module for one plan. A nil LimitValue
// means unlimited.
type PlanModuleRule struct {
	ID         int       `db:"id" json:"id"`
	PlanID     string    `db:"plan_id" json:"planId"`
	ModuleID   string    `db:"module_id" json:"moduleId"`
	IsEnabled  bool      `db:"is_enabled" json:"isEnabled"`
	LimitValue *int      `db:"limit_value" json:"limitValue"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}

// Entitlement is the resolved answer for (tenant, module).
type Entitlement struct {
	TenantID string `json:"tenantId"`
	ModuleID string `json:"moduleId"`
	PlanID   string `json:"planId"`
	Allowed  bool   `json:"allowed"`
	Limit    *int   `json:"limit,omitempty"`
	Reason   string `json:"reason,omitempty"`
}
