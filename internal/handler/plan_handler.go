package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/gtd_backoffice/internal/middleware"
	"github.com/GTDGit/gtd_backoffice/internal/models"
	"github.com/GTDGit/gtd_backoffice/internal/utils"
)

// PlanManager administers plans, modules and the rules between them.
type PlanManager interface {
	ListPlans(ctx context.Context) ([]models.Plan, error)
	UpsertPlan(ctx context.Context, p *models.Plan) error
	ListModules(ctx context.Context) ([]models.Module, error)
	UpsertModule(ctx context.Context, m *models.Module) error
	ListPlanModuleRules(ctx context.Context, planID string) ([]models.PlanModuleRule, error)
	UpsertPlanModuleRule(ctx context.Context, rule *models.PlanModuleRule) error
	DeletePlanModuleRule(ctx context.Context, ruleID int) error
	CheckEntitlement(ctx context.Context, tenantID, moduleID string) (*models.Entitlement, error)
}

// PlanHandler serves plan/module entitlement rules.
type PlanHandler struct {
	plans PlanManager
}

func NewPlanHandler(plans PlanManager) *PlanHandler {
	return &PlanHandler{plans: plans}
}

// ListPlans handles GET /v1/admin/plans
func (h *PlanHandler) ListPlans(c *gin.Context) {
	plans, err := h.plans.ListPlans(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to list plans")
		return
	}
	utils.Success(c, 200, "Plans retrieved", plans)
}

// UpsertPlan handles PUT /v1/admin/plans/:planId
func (h *PlanHandler) UpsertPlan(c *gin.Context) {
	var p models.Plan
	if !bindJSON(c, &p) {
		return
	}
	p.ID = c.Param("planId")

	if err := h.plans.UpsertPlan(c.Request.Context(), &p); err != nil {
		respondError(c, err, "Failed to save plan")
		return
	}
	utils.Success(c, 200, "Plan saved", p)
}

// ListModules handles GET /v1/admin/modules
func (h *PlanHandler) ListModules(c *gin.Context) {
	modules, err := h.plans.ListModules(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to list modules")
		return
	}
	utils.Success(c, 200, "Modules retrieved", modules)
}

// UpsertModule handles PUT /v1/admin/modules/:moduleId
func (h *PlanHandler) UpsertModule(c *gin.Context) {
	var m models.Module
	if !bindJSON(c, &m) {
		return
	}
	m.ID = c.Param("moduleId")

	if err := h.plans.UpsertModule(c.Request.Context(), &m); err != nil {
		respondError(c, err, "Failed to save module")
		return
	}
	utils.Success(c, 200, "Module saved", m)
}

// ListRules handles GET /v1/admin/plans/:planId/rules
func (h *PlanHandler) ListRules(c *gin.Context) {
	rules, err := h.plans.ListPlanModuleRules(c.Request.Context(), c.Param("planId"))
	if err != nil {
		respondError(c, err, "Failed to list rules")
		return
	}
	utils.Success(c, 200, "Rules retrieved", rules)
}

// UpsertRule handles PUT /v1/admin/plans/:planId/rules
func (h *PlanHandler) UpsertRule(c *gin.Context) {
	var rule models.PlanModuleRule
	if !bindJSON(c, &rule) {
		return
	}
	rule.PlanID = c.Param("planId")

	if err := h.plans.UpsertPlanModuleRule(c.Request.Context(), &rule); err != nil {
		respondError(c, err, "Failed to save rule")
		return
	}
	utils.Success(c, 200, "Rule saved", rule)
}

// DeleteRule handles DELETE /v1/admin/rules/:id
func (h *PlanHandler) DeleteRule(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.plans.DeletePlanModuleRule(c.Request.Context(), id); err != nil {
		respondError(c, err, "Failed to delete rule")
		return
	}
	utils.Success(c, 200, "Rule deleted", nil)
}

// CheckTenantEntitlement handles GET /v1/admin/tenants/:tenantId/entitlements/:moduleId
func (h *PlanHandler) CheckTenantEntitlement(c *gin.Context) {
	h.check(c, c.Param("tenantId"))
}

// CheckOwnEntitlement handles GET /v1/tenant/entitlements/:moduleId
func (h *PlanHandler) CheckOwnEntitlement(c *gin.Context) {
	h.check(c, middleware.TenantID(c))
}

func (h *PlanHandler) check(c *gin.Context, tenantID string) {
	ent, err := h.plans.CheckEntitlement(c.Request.Context(), tenantID, c.Param("moduleId"))
	if err != nil {
		respondError(c, err, "Failed to check entitlement")
		return
	}
	utils.Success(c, 200, "Entitlement resolved", ent)
}
