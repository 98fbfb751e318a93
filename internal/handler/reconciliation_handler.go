package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/gtd_backoffice/internal/middleware"
	"github.com/GTDGit/gtd_backoffice/internal/models"
	"github.com/GTDGit/gtd_backoffice/internal/service"
	"github.com/GTDGit/gtd_backoffice/internal/utils"
)

// Reconciler links products to remote listings by hand.
type Reconciler interface {
	ManualLink(ctx context.Context, tenantID string, req service.ManualLinkRequest) (*models.ProductMarketplace, error)
	Unlink(ctx context.Context, tenantID string, mirrorID int) error
	ListUnlinked(ctx context.Context, tenantID string, marketplaceID int) ([]models.Product, error)
}

type ReconciliationHandler struct {
	reconciler Reconciler
}

func NewReconciliationHandler(reconciler Reconciler) *ReconciliationHandler {
	return &ReconciliationHandler{reconciler: reconciler}
}

// ManualLink handles POST /v1/tenant/mirrors/link
func (h *ReconciliationHandler) ManualLink(c *gin.Context) {
	var req service.ManualLinkRequest
	if !bindJSON(c, &req) {
		return
	}

	mirror, err := h.reconciler.ManualLink(c.Request.Context(), middleware.TenantID(c), req)
	if err != nil {
		respondError(c, err, "Failed to link product")
		return
	}
	utils.Success(c, 201, "Product linked", mirror)
}

// Unlink handles DELETE /v1/tenant/mirrors/:id
func (h *ReconciliationHandler) Unlink(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.reconciler.Unlink(c.Request.Context(), middleware.TenantID(c), id); err != nil {
		respondError(c, err, "Failed to unlink product")
		return
	}
	utils.Success(c, 200, "Product unlinked", nil)
}

// ListUnlinked handles GET /v1/tenant/marketplaces/:id/unlinked
func (h *ReconciliationHandler) ListUnlinked(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	products, err := h.reconciler.ListUnlinked(c.Request.Context(), middleware.TenantID(c), id)
	if err != nil {
		respondError(c, err, "Failed to list unlinked products")
		return
	}
	if products == nil {
		products = []models.Product{}
	}
	utils.Success(c, 200, "Unlinked products retrieved", products)
}
