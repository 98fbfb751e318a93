package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/gtd_backoffice/internal/models"
	"github.com/GTDGit/gtd_backoffice/internal/service"
	"github.com/GTDGit/gtd_backoffice/internal/utils"
	"github.com/GTDGit/gtd_backoffice/pkg/identity"
)

// TenantDirectory lists tenants for the admin console.
type TenantDirectory interface {
	ListTenants(ctx context.Context, filter service.TenantFilter) ([]models.TenantSummary, error)
	Stats(ctx context.Context) (*service.DirectoryStats, error)
	InvalidateCache(ctx context.Context) error
}

// SubscriptionManager grants and maintains subscriptions.
type SubscriptionManager interface {
	GrantManualSubscription(ctx context.Context, req service.GrantRequest) (*models.Subscription, error)
	UpdateSubscriptionStatus(ctx context.Context, tenantID string, status models.SubscriptionStatus) error
	GetSubscription(ctx context.Context, tenantID string) (*models.Subscription, error)
	CreateManualTenant(ctx context.Context, req service.ManualTenantRequest) (string, error)
	ListIdentityUsers(ctx context.Context, page, perPage int) ([]identity.User, error)
}

// TenantHandler serves the admin tenant directory and subscription endpoints.
type TenantHandler struct {
	directory     TenantDirectory
	subscriptions SubscriptionManager
}

func NewTenantHandler(directory TenantDirectory, subscriptions SubscriptionManager) *TenantHandler {
	return &TenantHandler{directory: directory, subscriptions: subscriptions}
}

// ListTenants handles GET /v1/admin/tenants
func (h *TenantHandler) ListTenants(c *gin.Context) {
	var filter service.TenantFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "Invalid query parameters")
		return
	}

	rows, err := h.directory.ListTenants(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err, "Failed to list tenants")
		return
	}
	if rows == nil {
		rows = []models.TenantSummary{}
	}
	utils.Success(c, 200, "Tenants retrieved", rows)
}

// GetStats handles GET /v1/admin/tenants/stats
func (h *TenantHandler) GetStats(c *gin.Context) {
	stats, err := h.directory.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to compute tenant stats")
		return
	}
	utils.Success(c, 200, "Tenant stats retrieved", stats)
}

// RefreshDirectory handles POST /v1/admin/tenants/refresh
func (h *TenantHandler) RefreshDirectory(c *gin.Context) {
	if err := h.directory.InvalidateCache(c.Request.Context()); err != nil {
		respondError(c, err, "Failed to refresh tenant directory")
		return
	}
	utils.Success(c, 200, "Tenant directory refreshed", nil)
}

// GetSubscription handles GET /v1/admin/tenants/:tenantId/subscription
func (h *TenantHandler) GetSubscription(c *gin.Context) {
	sub, err := h.subscriptions.GetSubscription(c.Request.Context(), c.Param("tenantId"))
	if err != nil {
		respondError(c, err, "Failed to retrieve subscription")
		return
	}
	utils.Success(c, 200, "Subscription retrieved", sub)
}

// GrantSubscription handles POST /v1/admin/tenants/:tenantId/subscription
func (h *TenantHandler) GrantSubscription(c *gin.Context) {
	var req service.GrantRequest
	if !bindJSON(c, &req) {
		return
	}
	req.TenantID = c.Param("tenantId")

	sub, err := h.subscriptions.GrantManualSubscription(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "Failed to grant subscription")
		return
	}
	utils.Success(c, 200, "Subscription granted", sub)
}

// UpdateStatus handles PATCH /v1/admin/tenants/:tenantId/subscription/status
func (h *TenantHandler) UpdateStatus(c *gin.Context) {
	var req struct {
		Status models.SubscriptionStatus `json:"status" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	tenantID := c.Param("tenantId")
	if err := h.subscriptions.UpdateSubscriptionStatus(c.Request.Context(), tenantID, req.Status); err != nil {
		respondError(c, err, "Failed to update subscription status")
		return
	}
	utils.Success(c, 200, "Subscription status updated", gin.H{
		"tenantId": tenantID,
		"status":   req.Status,
	})
}

// CreateManualTenant handles POST /v1/admin/tenants
func (h *TenantHandler) CreateManualTenant(c *gin.Context) {
	var req service.ManualTenantRequest
	if !bindJSON(c, &req) {
		return
	}

	tenantID, err := h.subscriptions.CreateManualTenant(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "Failed to create tenant")
		return
	}
	utils.Success(c, 201, "Tenant created", gin.H{"tenantId": tenantID})
}

// ListIdentityUsers handles GET /v1/admin/identity/users
func (h *TenantHandler) ListIdentityUsers(c *gin.Context) {
	page := queryInt(c, "page", 1)
	perPage := queryInt(c, "perPage", 50)

	users, err := h.subscriptions.ListIdentityUsers(c.Request.Context(), page, perPage)
	if err != nil {
		respondError(c, err, "Failed to list identity users")
		return
	}
	if users == nil {
		users = []identity.User{}
	}
	utils.Success(c, 200, "Identity users retrieved", users)
}
