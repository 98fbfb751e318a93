package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/gtd_backoffice/internal/cache"
	"github.com/GTDGit/gtd_backoffice/internal/database"
	"github.com/GTDGit/gtd_backoffice/internal/models"
	"github.com/GTDGit/gtd_backoffice/internal/utils"
)

// Reasons reported on a denied entitlement.
const (
	ReasonNoSubscription  = "no subscription"
	ReasonInactive        = "subscription not active"
	ReasonExpired         = "subscription period ended"
	ReasonModuleNotInPlan = "module not in plan"
	ReasonModuleDisabled  = "module disabled for plan"
)

// PlanStore manages plans, modules and plan-module rules.
type PlanStore interface {
	ListPlans(ctx context.Context) ([]models.Plan, error)
	GetPlan(ctx context.Context, id string) (*models.Plan, error)
	UpsertPlan(ctx context.Context, p *models.Plan) error
	ListModules(ctx context.Context) ([]models.Module, error)
	UpsertModule(ctx context.Context, m *models.Module) error
	ListRules(ctx context.Context, planID string) ([]models.PlanModuleRule, error)
	GetRule(ctx context.Context, planID, moduleID string) (*models.PlanModuleRule, error)
	UpsertRule(ctx context.Context, rule *models.PlanModuleRule) error
	DeleteRule(ctx context.Context, id int) (string, error)
}

// SubscriptionGetter resolves a tenant's subscription row.
type SubscriptionGetter interface {
	GetByTenant(ctx context.Context, tenantID string) (*models.Subscription, error)
}

// EntitlementCacheStore caches resolved entitlements.
type EntitlementCacheStore interface {
	EntitlementInvalidator
	Get(ctx context.Context, tenantID, moduleID string) (*models.Entitlement, error)
	Set(ctx context.Context, e *models.Entitlement) error
}

// EntitlementService manages plan rules and answers whether a tenant may use
// a module.
type EntitlementService struct {
	plans PlanStore
	subs  SubscriptionGetter
	cache EntitlementCacheStore
	now   func() time.Time
}

// NewEntitlementService creates a new EntitlementService. cache may be nil.
func NewEntitlementService(plans PlanStore, subs SubscriptionGetter, cache EntitlementCacheStore) *EntitlementService {
	return &EntitlementService{plans: plans, subs: subs, cache: cache, now: time.Now}
}

// ============================================
// Plans and modules
// ============================================

func (s *EntitlementService) ListPlans(ctx context.Context) ([]models.Plan, error) {
	return s.plans.ListPlans(ctx)
}

func (s *EntitlementService) UpsertPlan(ctx context.Context, p *models.Plan) error {
	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" || strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: plan id and name are required", utils.ErrValidation)
	}
	if p.MonthlyPrice.IsNegative() {
		return fmt.Errorf("%w: monthly price must not be negative", utils.ErrValidation)
	}
	return s.plans.UpsertPlan(ctx, p)
}

func (s *EntitlementService) ListModules(ctx context.Context) ([]models.Module, error) {
	return s.plans.ListModules(ctx)
}

func (s *EntitlementService) UpsertModule(ctx context.Context, m *models.Module) error {
	m.ID = strings.TrimSpace(m.ID)
	if m.ID == "" || strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("%w: module id and name are required", utils.ErrValidation)
	}
	return s.plans.UpsertModule(ctx, m)
}

// ============================================
// Rules
// ============================================

// ListPlanModuleRules returns the rules of planID, or all rules when empty.
func (s *EntitlementService) ListPlanModuleRules(ctx context.Context, planID string) ([]models.PlanModuleRule, error) {
	return s.plans.ListRules(ctx, planID)
}

// UpsertPlanModuleRule writes the rule for (plan, module). A second call for
// the same pair overwrites it. Referential checks are left to the store.
func (s *EntitlementService) UpsertPlanModuleRule(ctx context.Context, rule *models.PlanModuleRule) error {
	if rule.PlanID == "" || rule.ModuleID == "" {
		return fmt.Errorf("%w: plan id and module id are required", utils.ErrValidation)
	}
	if rule.LimitValue != nil && *rule.LimitValue < 0 {
		return fmt.Errorf("%w: limit must not be negative", utils.ErrValidation)
	}

	if err := s.plans.UpsertRule(ctx, rule); err != nil {
		if database.IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: unknown plan or module", utils.ErrValidation)
		}
		return err
	}

	s.invalidateAll(ctx)
	log.Info().
		Str("plan_id", rule.PlanID).
		Str("module_id", rule.ModuleID).
		Bool("enabled", rule.IsEnabled).
		Msg("Plan module rule saved")
	return nil
}

// DeletePlanModuleRule removes a rule. Deleting a missing rule is a no-op.
func (s *EntitlementService) DeletePlanModuleRule(ctx context.Context, ruleID int) error {
	planID, err := s.plans.DeleteRule(ctx, ruleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}
	s.invalidateAll(ctx)
	log.Info().Int("rule_id", ruleID).Str("plan_id", planID).Msg("Plan module rule deleted")
	return nil
}

// ============================================
// Entitlement check
// ============================================

// CheckEntitlement resolves whether tenantID may use moduleID. A denial is a
// result, not an error.
func (s *EntitlementService) CheckEntitlement(ctx context.Context, tenantID, moduleID string) (*models.Entitlement, error) {
	if s.cache != nil {
		e, err := s.cache.Get(ctx, tenantID, moduleID)
		if err == nil {
			return e, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			log.Warn().Err(err).Str("tenant_id", tenantID).Msg("Entitlement cache read failed")
		}
	}

	e, err := s.resolve(ctx, tenantID, moduleID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, e); err != nil {
			log.Warn().Err(err).Str("tenant_id", tenantID).Msg("Entitlement cache write failed")
		}
	}
	return e, nil
}

func (s *EntitlementService) resolve(ctx context.Context, tenantID, moduleID string) (*models.Entitlement, error) {
	e := &models.Entitlement{TenantID: tenantID, ModuleID: moduleID}

	sub, err := s.subs.GetByTenant(ctx, tenantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			e.Reason = ReasonNoSubscription
			return e, nil
		}
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	e.PlanID = sub.PlanID

	if sub.Status != models.StatusActive && sub.Status != models.StatusTrial {
		e.Reason = ReasonInactive
		return e, nil
	}
	if !sub.IsCurrent(s.now()) {
		e.Reason = ReasonExpired
		return e, nil
	}

	rule, err := s.plans.GetRule(ctx, sub.PlanID, moduleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			e.Reason = ReasonModuleNotInPlan
			return e, nil
		}
		return nil, fmt.Errorf("get rule: %w", err)
	}
	if !rule.IsEnabled {
		e.Reason = ReasonModuleDisabled
		return e, nil
	}

	e.Allowed = true
	e.Limit = rule.LimitValue
	return e, nil
}

func (s *EntitlementService) invalidateAll(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateAll(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to invalidate entitlement cache")
	}
}
