package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/GTDGit/gtd_backoffice/internal/models"
)

// PlanRepository handles plans, modules and plan-module entitlement rules.
type PlanRepository struct {
	db *sqlx.DB
}

// NewPlanRepository creates a new PlanRepository.
func NewPlanRepository(db *sqlx.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

// ============================================
// Plans
// ============================================

// ListPlans returns all plans ordered by price.
func (r *PlanRepository) ListPlans(ctx context.Context) ([]models.Plan, error) {
	const q = `SELECT id, name, monthly_price, created_at, updated_at FROM plans ORDER BY monthly_price, id`
	var plans []models.Plan
	if err := r.db.SelectContext(ctx, &plans, q); err != nil {
		return nil, err
	}
	return plans, nil
}

// GetPlan returns a plan by id.
func (r *PlanRepository) GetPlan(ctx context.Context, id string) (*models.Plan, error) {
	const q = `SELECT id, name, monthly_price, created_at, updated_at FROM plans WHERE id = $1 LIMIT 1`
	var p models.Plan
	if err := r.db.GetContext(ctx, &p, q, id); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertPlan inserts or updates a plan by id.
func (r *PlanRepository) UpsertPlan(ctx context.Context, p *models.Plan) error {
	const q = `
		INSERT INTO plans (id, name, monthly_price)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			monthly_price = EXCLUDED.monthly_price,
			updated_at = NOW()
		RETURNING created_at, updated_at`
	return r.db.QueryRowxContext(ctx, q, p.ID, p.Name, p.MonthlyPrice).Scan(&p.CreatedAt, &p.UpdatedAt)
}

// ============================================
// Modules
// ============================================

// ListModules returns all modules.
func (r *PlanRepository) ListModules(ctx context.Context) ([]models.Module, error) {
	const q = `SELECT id, name, created_at FROM modules ORDER BY id`
	var mods []models.Module
	if err := r.db.SelectContext(ctx, &mods, q); err != nil {
		return nil, err
	}
	return mods, nil
}

// UpsertModule inserts or renames a module.
func (r *PlanRepository) UpsertModule(ctx context.Context, m *models.Module) error {
	const q = `
		INSERT INTO modules (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
		RETURNING created_at`
	return r.db.QueryRowxContext(ctx, q, m.ID, m.Name).Scan(&m.CreatedAt)
}

// ============================================
// Plan-module rules
// ============================================

// ListRules returns the rules of a plan, or of every plan when planID is empty.
func (r *PlanRepository) ListRules(ctx context.Context, planID string) ([]models.PlanModuleRule, error) {
	const q = `
		SELECT id, plan_id, module_id, is_enabled, limit_value, updated_at
		FROM plan_module_rules
		WHERE ($1 = '' OR plan_id = $1)
		ORDER BY plan_id, module_id`
	var rules []models.PlanModuleRule
	if err := r.db.SelectContext(ctx, &rules, q, planID); err != nil {
		return nil, err
	}
	return rules, nil
}

// GetRule returns the rule for (plan, module) or sql.ErrNoRows.
func (r *PlanRepository) GetRule(ctx context.Context, planID, moduleID string) (*models.PlanModuleRule, error) {
	const q = `
		SELECT id, plan_id, module_id, is_enabled, limit_value, updated_at
		FROM plan_module_rules
		WHERE plan_id = $1 AND module_id = $2
		LIMIT 1`
	var rule models.PlanModuleRule
	if err := r.db.GetContext(ctx, &rule, q, planID, moduleID); err != nil {
		return nil, err
	}
	return &rule, nil
}

// UpsertRule inserts or overwrites the rule for (plan_id, module_id).
func (r *PlanRepository) UpsertRule(ctx context.Context, rule *models.PlanModuleRule) error {
	const q = `
		INSERT INTO plan_module_rules (plan_id, module_id, is_enabled, limit_value)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (plan_id, module_id) DO UPDATE SET
			is_enabled = EXCLUDED.is_enabled,
			limit_value = EXCLUDED.limit_value,
			updated_at = NOW()
		RETURNING id, updated_at`
	return r.db.QueryRowxContext(ctx, q, rule.PlanID, rule.ModuleID, rule.IsEnabled, rule.LimitValue).
		Scan(&rule.ID, &rule.UpdatedAt)
}

// DeleteRule removes a rule by id and returns the deleted row's plan id.
func (r *PlanRepository) DeleteRule(ctx context.Context, id int) (string, error) {
	const q = `DELETE FROM plan_module_rules WHERE id = $1 RETURNING plan_id`
	var planID string
	if err := r.db.GetContext(ctx, &planID, q, id); err != nil {
		if err == sql.ErrNoRows {
			return "", sql.ErrNoRows
		}
		return "", err
	}
	return planID, nil
}
