package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/gtd_backoffice/internal/database"
	"github.com/GTDGit/gtd_backoffice/internal/models"
	"github.com/GTDGit/gtd_backoffice/internal/repository"
	"github.com/GTDGit/gtd_backoffice/internal/utils"
)

// CatalogProductStore persists tenant products.
type CatalogProductStore interface {
	List(ctx context.Context, tenantID string, filter repository.ProductFilter) ([]models.Product, int, error)
	GetByID(ctx context.Context, tenantID string, id int) (*models.Product, error)
	Create(ctx context.Context, q sqlx.ExtContext, p *models.Product) error
	Update(ctx context.Context, p *models.Product) error
}

// CatalogMarketStore persists marketplace connections and reads mirror rows.
type CatalogMarketStore interface {
	MarketplaceReader
	ListConnections(ctx context.Context, tenantID string) ([]models.MarketplaceConnection, error)
	CreateConnection(ctx context.Context, q sqlx.ExtContext, c *models.MarketplaceConnection) error
	SetConnectionActive(ctx context.Context, tenantID string, id int, active bool) error
	ListMirrors(ctx context.Context, tenantID string, marketplaceID int) ([]models.ProductMarketplace, error)
	ListMirrorsByProduct(ctx context.Context, tenantID string, productID int) ([]models.ProductMarketplace, error)
	GetMirror(ctx context.Context, tenantID string, id int) (*models.ProductMarketplace, error)
}

// CatalogService manages a tenant's products and marketplace connections.
type CatalogService struct {
	products  CatalogProductStore
	markets   CatalogMarketStore
	tenants   TenantRegistrar
	tx        TxRunner
	directory DirectoryInvalidator
}

// NewCatalogService creates a new CatalogService. directory may be nil.
func NewCatalogService(products CatalogProductStore, markets CatalogMarketStore, tenants TenantRegistrar, tx TxRunner, directory DirectoryInvalidator) *CatalogService {
	return &CatalogService{products: products, markets: markets, tenants: tenants, tx: tx, directory: directory}
}

// ============================================
// Products
// ============================================

// CreateProduct adds a product and registers the tenant in the same
// transaction. Product codes are unique per tenant.
func (s *CatalogService) CreateProduct(ctx context.Context, tenantID string, p *models.Product) error {
	p.TenantID = tenantID
	if err := normalizeProduct(p); err != nil {
		return err
	}

	var created bool
	err := s.tx.WithTx(ctx, func(q sqlx.ExtContext) error {
		var err error
		if created, err = s.tenants.Register(ctx, q, tenantID); err != nil {
			return fmt.Errorf("register tenant: %w", err)
		}
		return s.products.Create(ctx, q, p)
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return utils.ErrDuplicateCode
		}
		return err
	}
	if created {
		refreshDirectory(ctx, s.directory, tenantID)
	}

	log.Info().
		Str("tenant_id", tenantID).
		Int("product_id", p.ID).
		Str("code", p.Code).
		Msg("Product created")
	return nil
}

// UpdateProduct overwrites the editable fields of an existing product.
func (s *CatalogService) UpdateProduct(ctx context.Context, tenantID string, p *models.Product) error {
	p.TenantID = tenantID
	if err := normalizeProduct(p); err != nil {
		return err
	}
	if err := s.products.Update(ctx, p); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return utils.ErrProductNotFound
		case database.IsUniqueViolation(err):
			return utils.ErrDuplicateCode
		}
		return err
	}
	return nil
}

func normalizeProduct(p *models.Product) error {
	p.Code = strings.TrimSpace(p.Code)
	p.Name = strings.TrimSpace(p.Name)
	if p.Code == "" || p.Name == "" {
		return fmt.Errorf("%w: code and name are required", utils.ErrValidation)
	}
	if p.Stock < 0 {
		return fmt.Errorf("%w: stock must not be negative", utils.ErrValidation)
	}
	if p.CostPrice.IsNegative() || p.SalePrice.IsNegative() {
		return utils.ErrInvalidPrice
	}
	p.CostPrice = p.CostPrice.Round(2)
	p.SalePrice = p.SalePrice.Round(2)
	return nil
}

func (s *CatalogService) GetProduct(ctx context.Context, tenantID string, id int) (*models.Product, error) {
	p, err := s.products.GetByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.ErrProductNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *CatalogService) ListProducts(ctx context.Context, tenantID string, filter repository.ProductFilter) ([]models.Product, int, error) {
	return s.products.List(ctx, tenantID, filter)
}

// ============================================
// Connections
// ============================================

// CreateConnection stores a new marketplace connection for the tenant.
func (s *CatalogService) CreateConnection(ctx context.Context, tenantID string, c *models.MarketplaceConnection) error {
	c.TenantID = tenantID
	c.Platform = strings.ToLower(strings.TrimSpace(c.Platform))
	c.StoreName = strings.TrimSpace(c.StoreName)
	if c.Platform == "" || c.StoreName == "" {
		return fmt.Errorf("%w: platform and store name are required", utils.ErrValidation)
	}

	var created bool
	err := s.tx.WithTx(ctx, func(q sqlx.ExtContext) error {
		var err error
		if created, err = s.tenants.Register(ctx, q, tenantID); err != nil {
			return fmt.Errorf("register tenant: %w", err)
		}
		return s.markets.CreateConnection(ctx, q, c)
	})
	if err != nil {
		return err
	}
	if created {
		refreshDirectory(ctx, s.directory, tenantID)
	}

	log.Info().
		Str("tenant_id", tenantID).
		Int("marketplace_id", c.ID).
		Str("platform", c.Platform).
		Msg("Marketplace connection created")
	return nil
}

func (s *CatalogService) ListConnections(ctx context.Context, tenantID string) ([]models.MarketplaceConnection, error) {
	return s.markets.ListConnections(ctx, tenantID)
}

// SetConnectionActive enables or disables a connection. Inactive connections
// are never bulk targets and are skipped by the push worker.
func (s *CatalogService) SetConnectionActive(ctx context.Context, tenantID string, id int, active bool) error {
	if err := s.markets.SetConnectionActive(ctx, tenantID, id, active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return utils.ErrMarketplaceNotFound
		}
		return err
	}
	log.Info().Str("tenant_id", tenantID).Int("marketplace_id", id).Bool("active", active).Msg("Marketplace connection toggled")
	return nil
}

// ============================================
// Mirror rows
// ============================================

// ListMirrors returns the mirror rows of one connection.
func (s *CatalogService) ListMirrors(ctx context.Context, tenantID string, marketplaceID int) ([]models.ProductMarketplace, error) {
	if _, err := s.markets.GetConnection(ctx, tenantID, marketplaceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.ErrMarketplaceNotFound
		}
		return nil, err
	}
	return s.markets.ListMirrors(ctx, tenantID, marketplaceID)
}

// ListProductMirrors returns every listing of one product.
func (s *CatalogService) ListProductMirrors(ctx context.Context, tenantID string, productID int) ([]models.ProductMarketplace, error) {
	if _, err := s.GetProduct(ctx, tenantID, productID); err != nil {
		return nil, err
	}
	return s.markets.ListMirrorsByProduct(ctx, tenantID, productID)
}

func (s *CatalogService) GetMirror(ctx context.Context, tenantID string, id int) (*models.ProductMarketplace, error) {
	m, err := s.markets.GetMirror(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.ErrMirrorNotFound
		}
		return nil, err
	}
	return m, nil
}
