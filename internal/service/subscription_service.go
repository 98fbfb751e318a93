package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/gtd_backoffice/internal/models"
	"github.com/GTDGit/gtd_backoffice/internal/utils"
	"github.com/GTDGit/gtd_backoffice/pkg/identity"
)

const (
	defaultCurrency     = "USD"
	minTenantPassword   = 6
	compensationTimeout = 15 * time.Second
)

// SubscriptionStore persists the single subscription row of each tenant.
type SubscriptionStore interface {
	GetByTenant(ctx context.Context, tenantID string) (*models.Subscription, error)
	Upsert(ctx context.Context, q sqlx.ExtContext, sub *models.Subscription) error
	UpdateStatus(ctx context.Context, tenantID string, status models.SubscriptionStatus) error
}

// PlanGetter resolves plans by id.
type PlanGetter interface {
	GetPlan(ctx context.Context, id string) (*models.Plan, error)
}

// TenantProvisioner writes the application-side rows of a new tenant.
type TenantProvisioner interface {
	TenantRegistrar
	CreateProfile(ctx context.Context, q sqlx.ExtContext, p *models.Profile) error
	CreateCompanySettings(ctx context.Context, q sqlx.ExtContext, cs *models.CompanySettings) error
}

// GrantRequest is a manual subscription grant.
type GrantRequest struct {
	TenantID     string  `json:"tenantId"`
	PlanID       string  `json:"planId"`
	DurationDays int     `json:"durationDays"`
	Note         *string `json:"note"`
}

// ManualTenantRequest provisions a tenant from the admin console.
type ManualTenantRequest struct {
	CompanyName  string `json:"companyName"`
	FullName     string `json:"fullName"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	PlanID       string `json:"planId"`
	DurationDays int    `json:"durationDays"`
}

// SubscriptionService grants and maintains tenant subscriptions.
type SubscriptionService struct {
	subs         SubscriptionStore
	plans        PlanGetter
	tenants      TenantProvisioner
	tx           TxRunner
	identity     IdentityProvider
	entitlements EntitlementInvalidator
	directory    DirectoryInvalidator
	now          func() time.Time
}

// NewSubscriptionService creates a new SubscriptionService. The invalidators
// may be nil.
func NewSubscriptionService(
	subs SubscriptionStore,
	plans PlanGetter,
	tenants TenantProvisioner,
	tx TxRunner,
	idp IdentityProvider,
	entitlements EntitlementInvalidator,
	directory DirectoryInvalidator,
) *SubscriptionService {
	return &SubscriptionService{
		subs:         subs,
		plans:        plans,
		tenants:      tenants,
		tx:           tx,
		identity:     idp,
		entitlements: entitlements,
		directory:    directory,
		now:          time.Now,
	}
}

// GrantManualSubscription activates planID for the tenant for durationDays.
// Repeated grants update the same row; the latest call wins.
func (s *SubscriptionService) GrantManualSubscription(ctx context.Context, req GrantRequest) (*models.Subscription, error) {
	req.TenantID = strings.TrimSpace(req.TenantID)
	if req.TenantID == "" {
		return nil, fmt.Errorf("%w: tenant id is required", utils.ErrValidation)
	}
	if err := s.validateGrant(ctx, req.PlanID, req.DurationDays); err != nil {
		return nil, err
	}

	sub := s.newManualSubscription(req.TenantID, req.PlanID, req.DurationDays, req.Note)
	err := s.tx.WithTx(ctx, func(q sqlx.ExtContext) error {
		if _, err := s.tenants.Register(ctx, q, sub.TenantID); err != nil {
			return fmt.Errorf("register tenant: %w", err)
		}
		if err := s.subs.Upsert(ctx, q, sub); err != nil {
			return fmt.Errorf("upsert subscription: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, sub.TenantID)
	log.Info().
		Str("tenant_id", sub.TenantID).
		Str("plan_id", sub.PlanID).
		Time("period_end", *sub.CurrentPeriodEnd).
		Msg("Manual subscription granted")
	return sub, nil
}

// UpdateSubscriptionStatus sets the status of the tenant's subscription row.
func (s *SubscriptionService) UpdateSubscriptionStatus(ctx context.Context, tenantID string, status models.SubscriptionStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", utils.ErrInvalidStatus, status)
	}
	if err := s.subs.UpdateStatus(ctx, tenantID, status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return utils.ErrSubscriptionNotFound
		}
		return err
	}
	s.invalidate(ctx, tenantID)
	log.Info().Str("tenant_id", tenantID).Str("status", string(status)).Msg("Subscription status updated")
	return nil
}

// GetSubscription returns the tenant's subscription row.
func (s *SubscriptionService) GetSubscription(ctx context.Context, tenantID string) (*models.Subscription, error) {
	sub, err := s.subs.GetByTenant(ctx, tenantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.ErrSubscriptionNotFound
		}
		return nil, err
	}
	return sub, nil
}

// CreateManualTenant provisions an identity user and the tenant's rows. The
// database writes share one transaction; if it fails the identity user is
// deleted again so no orphaned account remains.
func (s *SubscriptionService) CreateManualTenant(ctx context.Context, req ManualTenantRequest) (string, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.CompanyName = strings.TrimSpace(req.CompanyName)
	req.FullName = strings.TrimSpace(req.FullName)

	if req.CompanyName == "" {
		return "", fmt.Errorf("%w: company name is required", utils.ErrValidation)
	}
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return "", fmt.Errorf("%w: valid email is required", utils.ErrValidation)
	}
	if len(req.Password) < minTenantPassword {
		return "", fmt.Errorf("%w: password must be at least %d characters", utils.ErrValidation, minTenantPassword)
	}
	// Validate before touching the identity provider so bad input never
	// creates an account.
	if err := s.validateGrant(ctx, req.PlanID, req.DurationDays); err != nil {
		return "", err
	}

	user, err := s.identity.CreateUser(ctx, req.Email, req.Password, req.FullName)
	if err != nil {
		if errors.Is(err, identity.ErrEmailExists) {
			return "", utils.ErrEmailAlreadyRegistered
		}
		return "", fmt.Errorf("%w: create identity user: %v", utils.ErrProvisioningFailed, err)
	}
	tenantID := user.ID

	sub := s.newManualSubscription(tenantID, req.PlanID, req.DurationDays, nil)
	err = s.tx.WithTx(ctx, func(q sqlx.ExtContext) error {
		if _, err := s.tenants.Register(ctx, q, tenantID); err != nil {
			return fmt.Errorf("register tenant: %w", err)
		}
		if err := s.tenants.CreateProfile(ctx, q, &models.Profile{
			ID:       user.ID,
			TenantID: tenantID,
			FullName: req.FullName,
			Email:    req.Email,
		}); err != nil {
			return fmt.Errorf("create profile: %w", err)
		}
		if err := s.tenants.CreateCompanySettings(ctx, q, &models.CompanySettings{
			TenantID:    tenantID,
			CompanyName: req.CompanyName,
			Currency:    defaultCurrency,
		}); err != nil {
			return fmt.Errorf("create company settings: %w", err)
		}
		if err := s.subs.Upsert(ctx, q, sub); err != nil {
			return fmt.Errorf("upsert subscription: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", s.compensateIdentityUser(tenantID, err)
	}

	s.invalidate(ctx, tenantID)
	log.Info().Str("tenant_id", tenantID).Str("plan_id", req.PlanID).Msg("Manual tenant created")
	return tenantID, nil
}

// ListIdentityUsers returns one page of identity provider users.
func (s *SubscriptionService) ListIdentityUsers(ctx context.Context, page, perPage int) ([]identity.User, error) {
	return s.identity.ListUsers(ctx, page, perPage)
}

// compensateIdentityUser deletes the identity user created for a tenant whose
// database provisioning failed. It runs on a fresh context so a cancelled
// request still cleans up.
func (s *SubscriptionService) compensateIdentityUser(userID string, cause error) error {
	ctx, cancel := context.WithTimeout(context.Background(), compensationTimeout)
	defer cancel()

	if err := s.identity.DeleteUser(ctx, userID); err != nil {
		log.Error().
			Err(err).
			AnErr("cause", cause).
			Str("user_id", userID).
			Msg("Orphaned identity user: compensation failed")
		return fmt.Errorf("%w: %v (compensation failed for user %s: %v)", utils.ErrProvisioningFailed, cause, userID, err)
	}

	log.Warn().Err(cause).Str("user_id", userID).Msg("Tenant provisioning rolled back")
	return fmt.Errorf("%w: %v", utils.ErrProvisioningFailed, cause)
}

func (s *SubscriptionService) validateGrant(ctx context.Context, planID string, durationDays int) error {
	if strings.TrimSpace(planID) == "" {
		return fmt.Errorf("%w: plan id is required", utils.ErrValidation)
	}
	if durationDays <= 0 {
		return fmt.Errorf("%w: duration must be positive", utils.ErrValidation)
	}
	if _, err := s.plans.GetPlan(ctx, planID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return utils.ErrPlanNotFound
		}
		return fmt.Errorf("get plan: %w", err)
	}
	return nil
}

func (s *SubscriptionService) newManualSubscription(tenantID, planID string, durationDays int, note *string) *models.Subscription {
	now := s.now()
	end := now.AddDate(0, 0, durationDays)
	return &models.Subscription{
		TenantID:         tenantID,
		PlanID:           planID,
		Status:           models.StatusActive,
		StartDate:        now,
		CurrentPeriodEnd: &end,
		IsManual:         true,
		Note:             note,
	}
}

func (s *SubscriptionService) invalidate(ctx context.Context, tenantID string) {
	if s.entitlements != nil {
		if err := s.entitlements.InvalidateTenant(ctx, tenantID); err != nil {
			log.Warn().Err(err).Str("tenant_id", tenantID).Msg("Failed to invalidate entitlement cache")
		}
	}
	refreshDirectory(ctx, s.directory, tenantID)
}
