package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/GTDGit/gtd_backoffice/internal/middleware"
	"github.com/GTDGit/gtd_backoffice/internal/models"
	"github.com/GTDGit/gtd_backoffice/internal/service"
	"github.com/GTDGit/gtd_backoffice/internal/utils"
)

// PriceUpdater changes listing prices.
type PriceUpdater interface {
	UpdateListingPrice(ctx context.Context, tenantID string, mirrorID int, newPrice decimal.Decimal, confirmed bool) (*models.ProductMarketplace, error)
	BulkUpdatePrices(ctx context.Context, tenantID string, req service.BulkPriceRequest) (*service.BulkResult, error)
}

// PricingHandler serves single and bulk listing price updates.
type PricingHandler struct {
	pricing PriceUpdater
}

func NewPricingHandler(pricing PriceUpdater) *PricingHandler {
	return &PricingHandler{pricing: pricing}
}

// UpdateListingPrice handles PUT /v1/tenant/mirrors/:id/price
func (h *PricingHandler) UpdateListingPrice(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Price   decimal.Decimal `json:"price"`
		Confirm bool            `json:"confirm"`
	}
	if !bindJSON(c, &req) {
		return
	}

	mirror, err := h.pricing.UpdateListingPrice(c.Request.Context(), middleware.TenantID(c), id, req.Price, req.Confirm)
	if err != nil {
		respondError(c, err, "Failed to update listing price")
		return
	}
	utils.Success(c, 200, "Listing price updated", mirror)
}

// BulkUpdatePrices handles POST /v1/tenant/prices/bulk
func (h *PricingHandler) BulkUpdatePrices(c *gin.Context) {
	var req service.BulkPriceRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.pricing.BulkUpdatePrices(c.Request.Context(), middleware.TenantID(c), req)
	if err != nil {
		respondError(c, err, "Failed to run bulk price update")
		return
	}
	utils.Success(c, 200, "Bulk price update finished", result)
}
