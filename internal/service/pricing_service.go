package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/GTDGit/gtd_backoffice/internal/metrics"
	"github.com/GTDGit/gtd_backoffice/internal/models"
	"github.com/GTDGit/gtd_backoffice/internal/utils"
)

// Bulk price operations.
const (
	OpCopy       = "copy"
	OpIncPercent = "inc_percent"
	OpDecPercent = "dec_percent"

	// SourceBasePrice selects the product's local sale price as the source.
	SourceBasePrice = "base_price"
)

// costMarginFloor is the multiple of cost below which a price needs confirmation.
var costMarginFloor = decimal.RequireFromString("1.05")

var hundred = decimal.NewFromInt(100)

// MirrorStore reads and writes mirror rows for price changes.
type MirrorStore interface {
	MarketplaceReader
	GetMirror(ctx context.Context, tenantID string, id int) (*models.ProductMarketplace, error)
	ListMirrors(ctx context.Context, tenantID string, marketplaceID int) ([]models.ProductMarketplace, error)
	SetMirrorPrice(ctx context.Context, tenantID string, id int, price decimal.Decimal) error
}

// ProductLister lists a tenant's whole catalog.
type ProductLister interface {
	ListAll(ctx context.Context, tenantID string) ([]models.Product, error)
}

// BulkLocker serializes bulk runs per key.
type BulkLocker interface {
	TryLock(ctx context.Context, key string) (release func(), ok bool, err error)
}

// BelowCostError is returned when a price is under the cost margin and the
// caller has not confirmed it.
type BelowCostError struct {
	CostPrice decimal.Decimal
	MinPrice  decimal.Decimal
}

func (e *BelowCostError) Error() string {
	return fmt.Sprintf("price below cost margin: minimum %s for cost %s", e.MinPrice.StringFixed(2), e.CostPrice.StringFixed(2))
}

// Is lets callers match with errors.Is(err, utils.ErrBelowCostThreshold).
func (e *BelowCostError) Is(target error) bool {
	return target == utils.ErrBelowCostThreshold
}

// BulkPriceRequest describes one bulk price propagation.
type BulkPriceRequest struct {
	SourceMarketID string          `json:"sourceMarketId"`
	TargetMarketID int             `json:"targetMarketId"`
	Operation      string          `json:"operation"`
	Value          decimal.Decimal `json:"value"`
}

// BulkRowError is one failed row of a bulk run.
type BulkRowError struct {
	ProductID   int    `json:"productId"`
	ProductCode string `json:"productCode"`
	MirrorID    int    `json:"mirrorId"`
	Message     string `json:"message"`
}

// BulkResult reports a best-effort bulk run.
type BulkResult struct {
	Success bool           `json:"success"`
	Count   int            `json:"count"`
	Skipped int            `json:"skipped"`
	Errors  []BulkRowError `json:"errors"`
}

// PricingService changes listing prices on the local mirror. Pushing to the
// marketplace is done by the price sync worker.
type PricingService struct {
	mirrors  MirrorStore
	products ProductLister
	locker   BulkLocker
}

// NewPricingService creates a new PricingService. locker may be nil.
func NewPricingService(mirrors MirrorStore, products ProductLister, locker BulkLocker) *PricingService {
	return &PricingService{mirrors: mirrors, products: products, locker: locker}
}

// UpdateListingPrice sets a mirror row's price. A price under cost*1.05 is
// only written when confirmed.
func (s *PricingService) UpdateListingPrice(ctx context.Context, tenantID string, mirrorID int, newPrice decimal.Decimal, confirmed bool) (*models.ProductMarketplace, error) {
	price := newPrice.Round(2)
	if !price.IsPositive() {
		return nil, utils.ErrInvalidPrice
	}

	mirror, err := s.mirrors.GetMirror(ctx, tenantID, mirrorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.ErrMirrorNotFound
		}
		return nil, fmt.Errorf("get mirror: %w", err)
	}

	if err := CheckCostMargin(mirror.CostPrice, price, confirmed); err != nil {
		return nil, err
	}

	if err := s.mirrors.SetMirrorPrice(ctx, tenantID, mirrorID, price); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.ErrMirrorNotFound
		}
		return nil, fmt.Errorf("set mirror price: %w", err)
	}

	mirror.RemotePrice = price
	mirror.TargetPrice = &price
	mirror.SyncNeeded = true

	log.Info().
		Str("tenant_id", tenantID).
		Int("mirror_id", mirrorID).
		Str("price", price.StringFixed(2)).
		Bool("confirmed", confirmed).
		Msg("Listing price updated")
	return mirror, nil
}

// CheckCostMargin returns a *BelowCostError when cost is set, price is under
// cost*1.05 and the change is not confirmed.
func CheckCostMargin(cost, price decimal.Decimal, confirmed bool) error {
	if confirmed || !cost.IsPositive() {
		return nil
	}
	floor := cost.Mul(costMarginFloor)
	if price.LessThan(floor) {
		return &BelowCostError{CostPrice: cost, MinPrice: floor.Round(2)}
	}
	return nil
}

// ApplyOperation computes a bulk price from its source price.
func ApplyOperation(op string, source, value decimal.Decimal) (decimal.Decimal, error) {
	switch op {
	case OpCopy:
		return source, nil
	case OpIncPercent:
		return source.Mul(decimal.NewFromInt(1).Add(value.Div(hundred))), nil
	case OpDecPercent:
		return source.Mul(decimal.NewFromInt(1).Sub(value.Div(hundred))), nil
	}
	return decimal.Zero, fmt.Errorf("%w: %q", utils.ErrInvalidOperation, op)
}

// BulkUpdatePrices applies one operation to every product listed on the
// target marketplace. Rows are independent: a failed row is reported and the
// batch continues.
func (s *PricingService) BulkUpdatePrices(ctx context.Context, tenantID string, req BulkPriceRequest) (*BulkResult, error) {
	sourceID, fromBase, err := s.validateBulk(ctx, tenantID, req)
	if err != nil {
		return nil, err
	}

	if s.locker != nil {
		key := fmt.Sprintf("bulk-price:%s:%d", tenantID, req.TargetMarketID)
		release, ok, err := s.locker.TryLock(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("acquire bulk lock: %w", err)
		}
		if !ok {
			return nil, utils.ErrBulkInProgress
		}
		defer release()
	}

	products, err := s.products.ListAll(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	targets, err := s.mirrorsByProduct(ctx, tenantID, req.TargetMarketID)
	if err != nil {
		return nil, err
	}
	var sources map[int]models.ProductMarketplace
	if !fromBase {
		if sources, err = s.mirrorsByProduct(ctx, tenantID, sourceID); err != nil {
			return nil, err
		}
	}

	result := &BulkResult{Success: true, Errors: []BulkRowError{}}
	for _, p := range products {
		target, ok := targets[p.ID]
		if !ok {
			result.Skipped++
			metrics.RecordBulkPriceRow(req.Operation, "skipped")
			continue
		}

		fail := func(msg string) {
			result.Errors = append(result.Errors, BulkRowError{
				ProductID:   p.ID,
				ProductCode: p.Code,
				MirrorID:    target.ID,
				Message:     msg,
			})
			metrics.RecordBulkPriceRow(req.Operation, "failed")
		}

		source := p.SalePrice
		if !fromBase {
			src, ok := sources[p.ID]
			if !ok {
				fail("product is not listed on the source marketplace")
				continue
			}
			source = src.RemotePrice
		}

		price, err := ApplyOperation(req.Operation, source, req.Value)
		if err != nil {
			fail(err.Error())
			continue
		}
		price = price.Round(2)
		if !price.IsPositive() {
			fail(fmt.Sprintf("computed price %s is not positive", price.StringFixed(2)))
			continue
		}

		if err := s.mirrors.SetMirrorPrice(ctx, tenantID, target.ID, price); err != nil {
			fail(err.Error())
			continue
		}
		result.Count++
		metrics.RecordBulkPriceRow(req.Operation, "updated")
	}

	log.Info().
		Str("tenant_id", tenantID).
		Str("source", req.SourceMarketID).
		Int("target", req.TargetMarketID).
		Str("operation", req.Operation).
		Int("updated", result.Count).
		Int("failed", len(result.Errors)).
		Int("skipped", result.Skipped).
		Msg("Bulk price update finished")
	return result, nil
}

// validateBulk rejects the whole request before any write. It returns the
// source connection id, or fromBase when the source is the local sale price.
func (s *PricingService) validateBulk(ctx context.Context, tenantID string, req BulkPriceRequest) (sourceID int, fromBase bool, err error) {
	switch req.Operation {
	case OpCopy, OpIncPercent, OpDecPercent:
	default:
		return 0, false, fmt.Errorf("%w: %q", utils.ErrInvalidOperation, req.Operation)
	}
	if req.Value.IsNegative() {
		return 0, false, fmt.Errorf("%w: value must not be negative", utils.ErrValidation)
	}
	if req.Operation == OpDecPercent && req.Value.GreaterThanOrEqual(hundred) {
		return 0, false, fmt.Errorf("%w: decrease must be below 100%%", utils.ErrValidation)
	}

	source := strings.TrimSpace(req.SourceMarketID)
	if source == "" {
		return 0, false, fmt.Errorf("%w: source market is required", utils.ErrValidation)
	}
	fromBase = source == SourceBasePrice
	if !fromBase {
		sourceID, err = strconv.Atoi(source)
		if err != nil {
			return 0, false, fmt.Errorf("%w: source market must be %q or a connection id", utils.ErrValidation, SourceBasePrice)
		}
		if sourceID == req.TargetMarketID {
			return 0, false, fmt.Errorf("%w: source and target must differ", utils.ErrValidation)
		}
		if _, err := s.connection(ctx, tenantID, sourceID); err != nil {
			return 0, false, err
		}
	}

	target, err := s.connection(ctx, tenantID, req.TargetMarketID)
	if err != nil {
		return 0, false, err
	}
	if !target.IsActive {
		return 0, false, utils.ErrMarketplaceInactive
	}
	return sourceID, fromBase, nil
}

func (s *PricingService) connection(ctx context.Context, tenantID string, id int) (*models.MarketplaceConnection, error) {
	conn, err := s.mirrors.GetConnection(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.ErrMarketplaceNotFound
		}
		return nil, fmt.Errorf("get connection: %w", err)
	}
	return conn, nil
}

func (s *PricingService) mirrorsByProduct(ctx context.Context, tenantID string, marketplaceID int) (map[int]models.ProductMarketplace, error) {
	rows, err := s.mirrors.ListMirrors(ctx, tenantID, marketplaceID)
	if err != nil {
		return nil, fmt.Errorf("list mirrors: %w", err)
	}
	out := make(map[int]models.ProductMarketplace, len(rows))
	for _, m := range rows {
		out[m.ProductID] = m
	}
	return out, nil
}
