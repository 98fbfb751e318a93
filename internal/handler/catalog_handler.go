package handler

import (
	"context"
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/gtd_backoffice/internal/middleware"
	"github.com/GTDGit/gtd_backoffice/internal/models"
	"github.com/GTDGit/gtd_backoffice/internal/repository"
	"github.com/GTDGit/gtd_backoffice/internal/utils"
)

// Catalog manages products, connections and mirror reads.
type Catalog interface {
	CreateProduct(ctx context.Context, tenantID string, p *models.Product) error
	UpdateProduct(ctx context.Context, tenantID string, p *models.Product) error
	GetProduct(ctx context.Context, tenantID string, id int) (*models.Product, error)
	ListProducts(ctx context.Context, tenantID string, filter repository.ProductFilter) ([]models.Product, int, error)
	CreateConnection(ctx context.Context, tenantID string, c *models.MarketplaceConnection) error
	ListConnections(ctx context.Context, tenantID string) ([]models.MarketplaceConnection, error)
	SetConnectionActive(ctx context.Context, tenantID string, id int, active bool) error
	ListMirrors(ctx context.Context, tenantID string, marketplaceID int) ([]models.ProductMarketplace, error)
	ListProductMirrors(ctx context.Context, tenantID string, productID int) ([]models.ProductMarketplace, error)
	GetMirror(ctx context.Context, tenantID string, id int) (*models.ProductMarketplace, error)
}

// CatalogHandler serves the tenant product catalog and marketplace mirror.
type CatalogHandler struct {
	catalog Catalog
}

func NewCatalogHandler(catalog Catalog) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// ============================================
// Products
// ============================================

// ListProducts handles GET /v1/tenant/products
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	filter := repository.ProductFilter{
		Search: c.Query("search"),
		Page:   queryInt(c, "page", 1),
		Limit:  queryInt(c, "limit", 50),
	}

	products, total, err := h.catalog.ListProducts(c.Request.Context(), middleware.TenantID(c), filter)
	if err != nil {
		respondError(c, err, "Failed to retrieve products")
		return
	}
	if products == nil {
		products = []models.Product{}
	}
	utils.SuccessWithPagination(c, 200, "Products retrieved", products, filter.Page, filter.Limit, total)
}

// CreateProduct handles POST /v1/tenant/products
func (h *CatalogHandler) CreateProduct(c *gin.Context) {
	var p models.Product
	if !bindJSON(c, &p) {
		return
	}
	if err := h.catalog.CreateProduct(c.Request.Context(), middleware.TenantID(c), &p); err != nil {
		respondError(c, err, "Failed to create product")
		return
	}
	utils.Success(c, 201, "Product created successfully", p)
}

// GetProduct handles GET /v1/tenant/products/:id
func (h *CatalogHandler) GetProduct(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	p, err := h.catalog.GetProduct(c.Request.Context(), middleware.TenantID(c), id)
	if err != nil {
		respondError(c, err, "Failed to retrieve product")
		return
	}
	utils.Success(c, 200, "Product retrieved", p)
}

// UpdateProduct handles PUT /v1/tenant/products/:id
func (h *CatalogHandler) UpdateProduct(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var p models.Product
	if !bindJSON(c, &p) {
		return
	}
	p.ID = id
	if err := h.catalog.UpdateProduct(c.Request.Context(), middleware.TenantID(c), &p); err != nil {
		respondError(c, err, "Failed to update product")
		return
	}
	utils.Success(c, 200, "Product updated successfully", p)
}

// ListProductMirrors handles GET /v1/tenant/products/:id/mirrors
func (h *CatalogHandler) ListProductMirrors(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	rows, err := h.catalog.ListProductMirrors(c.Request.Context(), middleware.TenantID(c), id)
	if err != nil {
		respondError(c, err, "Failed to retrieve listings")
		return
	}
	if rows == nil {
		rows = []models.ProductMarketplace{}
	}
	utils.Success(c, 200, "Listings retrieved", rows)
}

// ============================================
// Connections and mirror rows
// ============================================

// ListConnections handles GET /v1/tenant/marketplaces
func (h *CatalogHandler) ListConnections(c *gin.Context) {
	conns, err := h.catalog.ListConnections(c.Request.Context(), middleware.TenantID(c))
	if err != nil {
		respondError(c, err, "Failed to retrieve marketplaces")
		return
	}
	if conns == nil {
		conns = []models.MarketplaceConnection{}
	}
	utils.Success(c, 200, "Marketplaces retrieved", conns)
}

// CreateConnection handles POST /v1/tenant/marketplaces
func (h *CatalogHandler) CreateConnection(c *gin.Context) {
	var req struct {
		models.MarketplaceConnection
		Credentials map[string]string `json:"credentials"`
	}
	if !bindJSON(c, &req) {
		return
	}
	conn := req.MarketplaceConnection
	conn.IsActive = true
	if len(req.Credentials) > 0 {
		raw, err := json.Marshal(req.Credentials)
		if err != nil {
			utils.Error(c, 400, "INVALID_REQUEST", "Invalid credentials")
			return
		}
		conn.Credentials = raw
	}

	if err := h.catalog.CreateConnection(c.Request.Context(), middleware.TenantID(c), &conn); err != nil {
		respondError(c, err, "Failed to create marketplace")
		return
	}
	utils.Success(c, 201, "Marketplace created", conn)
}

// SetConnectionActive handles PATCH /v1/tenant/marketplaces/:id
func (h *CatalogHandler) SetConnectionActive(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		IsActive *bool `json:"isActive" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if err := h.catalog.SetConnectionActive(c.Request.Context(), middleware.TenantID(c), id, *req.IsActive); err != nil {
		respondError(c, err, "Failed to update marketplace")
		return
	}
	utils.Success(c, 200, "Marketplace updated", gin.H{"id": id, "isActive": *req.IsActive})
}

// ListMirrors handles GET /v1/tenant/marketplaces/:id/mirrors
func (h *CatalogHandler) ListMirrors(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	rows, err := h.catalog.ListMirrors(c.Request.Context(), middleware.TenantID(c), id)
	if err != nil {
		respondError(c, err, "Failed to retrieve listings")
		return
	}
	if rows == nil {
		rows = []models.ProductMarketplace{}
	}
	utils.Success(c, 200, "Listings retrieved", rows)
}

// GetMirror handles GET /v1/tenant/mirrors/:id
func (h *CatalogHandler) GetMirror(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	m, err := h.catalog.GetMirror(c.Request.Context(), middleware.TenantID(c), id)
	if err != nil {
		respondError(c, err, "Failed to retrieve listing")
		return
	}
	utils.Success(c, 200, "Listing retrieved", m)
}
