package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/GTDGit/gtd_backoffice/internal/database"
	"github.com/GTDGit/gtd_backoffice/internal/models"
	"github.com/GTDGit/gtd_backoffice/internal/utils"
)

// LinkStore creates and removes mirror rows.
type LinkStore interface {
	MarketplaceReader
	CreateMirror(ctx context.Context, m *models.ProductMarketplace) error
	DeleteMirror(ctx context.Context, tenantID string, id int) error
}

// LinkProductReader resolves products and the reconciliation worklist.
type LinkProductReader interface {
	GetByID(ctx context.Context, tenantID string, id int) (*models.Product, error)
	ListUnlinked(ctx context.Context, tenantID string, marketplaceID int) ([]models.Product, error)
}

// ManualLinkRequest ties a local product to an existing remote listing.
type ManualLinkRequest struct {
	ProductID          int             `json:"productId"`
	MarketplaceID      int             `json:"marketplaceId"`
	RemoteID           string          `json:"remoteId"`
	RemoteInitialPrice decimal.Decimal `json:"remoteInitialPrice"`
	RemoteStock        int             `json:"remoteStock"`
}

// ReconciliationService links products to remote listings by hand when
// automatic matching failed.
type ReconciliationService struct {
	links    LinkStore
	products LinkProductReader
}

// NewReconciliationService creates a new ReconciliationService.
func NewReconciliationService(links LinkStore, products LinkProductReader) *ReconciliationService {
	return &ReconciliationService{links: links, products: products}
}

// ManualLink creates the mirror row for (product, marketplace). An existing
// row for the pair is a conflict; unlink it first.
func (s *ReconciliationService) ManualLink(ctx context.Context, tenantID string, req ManualLinkRequest) (*models.ProductMarketplace, error) {
	req.RemoteID = strings.TrimSpace(req.RemoteID)
	if req.RemoteID == "" {
		return nil, fmt.Errorf("%w: remote id is required", utils.ErrValidation)
	}
	if req.RemoteInitialPrice.IsNegative() {
		return nil, utils.ErrInvalidPrice
	}
	if req.RemoteStock < 0 {
		return nil, fmt.Errorf("%w: stock must not be negative", utils.ErrValidation)
	}

	product, err := s.products.GetByID(ctx, tenantID, req.ProductID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	conn, err := s.links.GetConnection(ctx, tenantID, req.MarketplaceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.ErrMarketplaceNotFound
		}
		return nil, fmt.Errorf("get connection: %w", err)
	}

	mirror := &models.ProductMarketplace{
		TenantID:      tenantID,
		ProductID:     product.ID,
		MarketplaceID: conn.ID,
		RemoteID:      req.RemoteID,
		RemotePrice:   req.RemoteInitialPrice.Round(2),
		RemoteStock:   req.RemoteStock,
		SyncStatus:    models.SyncStatusPending,
		ProductCode:   product.Code,
		ProductName:   product.Name,
		CostPrice:     product.CostPrice,
		SalePrice:     product.SalePrice,
		Platform:      conn.Platform,
	}
	if err := s.links.CreateMirror(ctx, mirror); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, utils.ErrAlreadyLinked
		}
		return nil, fmt.Errorf("create mirror: %w", err)
	}

	log.Info().
		Str("tenant_id", tenantID).
		Int("product_id", product.ID).
		Int("marketplace_id", conn.ID).
		Str("remote_id", req.RemoteID).
		Msg("Product linked manually")
	return mirror, nil
}

// Unlink deletes a mirror row.
func (s *ReconciliationService) Unlink(ctx context.Context, tenantID string, mirrorID int) error {
	if err := s.links.DeleteMirror(ctx, tenantID, mirrorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return utils.ErrMirrorNotFound
		}
		return err
	}
	log.Info().Str("tenant_id", tenantID).Int("mirror_id", mirrorID).Msg("Product unlinked")
	return nil
}

// ListUnlinked returns the products without a mirror row on marketplaceID.
func (s *ReconciliationService) ListUnlinked(ctx context.Context, tenantID string, marketplaceID int) ([]models.Product, error) {
	if _, err := s.links.GetConnection(ctx, tenantID, marketplaceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.ErrMarketplaceNotFound
		}
		return nil, err
	}
	return s.products.ListUnlinked(ctx, tenantID, marketplaceID)
}
