package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/GTDGit/gtd_backoffice/internal/models"
)

// MarketplaceRepository handles marketplace connections and the product
// mirror rows (product_marketplaces).
type MarketplaceRepository struct {
	db *sqlx.DB
}

// NewMarketplaceRepository creates a new MarketplaceRepository.
func NewMarketplaceRepository(db *sqlx.DB) *MarketplaceRepository {
	return &MarketplaceRepository{db: db}
}

// ============================================
// Connections
// ============================================

const connectionColumns = `id, tenant_id, platform, store_name, credentials, is_active, created_at, updated_at`

// ListConnections returns all marketplace connections of a tenant.
func (r *MarketplaceRepository) ListConnections(ctx context.Context, tenantID string) ([]models.MarketplaceConnection, error) {
	q := `SELECT ` + connectionColumns + ` FROM marketplace_connections WHERE tenant_id = $1 ORDER BY id`
	var conns []models.MarketplaceConnection
	if err := r.db.SelectContext(ctx, &conns, q, tenantID); err != nil {
		return nil, err
	}
	return conns, nil
}

// GetConnection returns one connection of the tenant.
func (r *MarketplaceRepository) GetConnection(ctx context.Context, tenantID string, id int) (*models.MarketplaceConnection, error) {
	q := `SELECT ` + connectionColumns + ` FROM marketplace_connections WHERE tenant_id = $1 AND id = $2 LIMIT 1`
	var c models.MarketplaceConnection
	if err := r.db.GetContext(ctx, &c, q, tenantID, id); err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateConnection inserts a marketplace connection.
func (r *MarketplaceRepository) CreateConnection(ctx context.Context, q sqlx.ExtContext, c *models.MarketplaceConnection) error {
	if len(c.Credentials) == 0 {
		c.Credentials = json.RawMessage(`{}`)
	}
	const query = `
		INSERT INTO marketplace_connections (tenant_id, platform, store_name, credentials, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`
	row := q.QueryRowxContext(ctx, query, c.TenantID, c.Platform, c.StoreName, []byte(c.Credentials), c.IsActive)
	return row.Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

// SetConnectionActive toggles a connection.
func (r *MarketplaceRepository) SetConnectionActive(ctx context.Context, tenantID string, id int, active bool) error {
	const q = `UPDATE marketplace_connections SET is_active = $3, updated_at = NOW() WHERE tenant_id = $1 AND id = $2`
	res, err := r.db.ExecContext(ctx, q, tenantID, id, active)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// ============================================
// Mirror rows
// ============================================

const mirrorSelect = `
	SELECT pm.id, pm.tenant_id, pm.product_id, pm.marketplace_id, pm.remote_id, pm.remote_price,
		pm.remote_stock, pm.sync_status, pm.last_error, pm.last_sync_at, pm.target_price,
		pm.sync_needed, pm.created_at, pm.updated_at,
		p.code AS product_code, p.name AS product_name, p.cost_price, p.sale_price,
		mc.platform
	FROM product_marketplaces pm
	JOIN products p ON p.id = pm.product_id AND p.tenant_id = pm.tenant_id
	JOIN marketplace_connections mc ON mc.id = pm.marketplace_id AND mc.tenant_id = pm.tenant_id`

// ListMirrors returns the tenant's mirror rows on one marketplace connection,
// in product id order.
func (r *MarketplaceRepository) ListMirrors(ctx context.Context, tenantID string, marketplaceID int) ([]models.ProductMarketplace, error) {
	q := mirrorSelect + ` WHERE pm.tenant_id = $1 AND pm.marketplace_id = $2 ORDER BY pm.product_id`
	var rows []models.ProductMarketplace
	if err := r.db.SelectContext(ctx, &rows, q, tenantID, marketplaceID); err != nil {
		return nil, err
	}
	return rows, nil
}

// ListMirrorsByProduct returns every mirror row of one product.
func (r *MarketplaceRepository) ListMirrorsByProduct(ctx context.Context, tenantID string, productID int) ([]models.ProductMarketplace, error) {
	q := mirrorSelect + ` WHERE pm.tenant_id = $1 AND pm.product_id = $2 ORDER BY pm.marketplace_id`
	var rows []models.ProductMarketplace
	if err := r.db.SelectContext(ctx, &rows, q, tenantID, productID); err != nil {
		return nil, err
	}
	return rows, nil
}

// GetMirror returns one mirror row of the tenant with product prices joined.
func (r *MarketplaceRepository) GetMirror(ctx context.Context, tenantID string, id int) (*models.ProductMarketplace, error) {
	q := mirrorSelect + ` WHERE pm.tenant_id = $1 AND pm.id = $2 LIMIT 1`
	var m models.ProductMarketplace
	if err := r.db.GetContext(ctx, &m, q, tenantID, id); err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateMirror inserts a mirror row. A second row for the same (product,
// marketplace) pair fails with a unique violation.
func (r *MarketplaceRepository) CreateMirror(ctx context.Context, m *models.ProductMarketplace) error {
	const q = `
		INSERT INTO product_marketplaces
			(tenant_id, product_id, marketplace_id, remote_id, remote_price, remote_stock, sync_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`
	return r.db.QueryRowxContext(ctx, q,
		m.TenantID,
		m.ProductID,
		m.MarketplaceID,
		m.RemoteID,
		m.RemotePrice,
		m.RemoteStock,
		m.SyncStatus,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
}

// DeleteMirror removes a mirror row.
func (r *MarketplaceRepository) DeleteMirror(ctx context.Context, tenantID string, id int) error {
	const q = `DELETE FROM product_marketplaces WHERE tenant_id = $1 AND id = $2`
	res, err := r.db.ExecContext(ctx, q, tenantID, id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// SetMirrorPrice records a new price as both the current and target price and
// flags the row for the push worker.
func (r *MarketplaceRepository) SetMirrorPrice(ctx context.Context, tenantID string, id int, price decimal.Decimal) error {
	const q = `
		UPDATE product_marketplaces SET
			remote_price = $3,
			target_price = $3,
			sync_needed = true,
			updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2`
	res, err := r.db.ExecContext(ctx, q, tenantID, id, price)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// ListPendingSync returns up to limit rows flagged for pushing, oldest update
// first. This is the only read that spans tenants; each row carries its
// tenant id and every follow-up write is tenant-scoped.
func (r *MarketplaceRepository) ListPendingSync(ctx context.Context, limit int) ([]models.ProductMarketplace, error) {
	q := mirrorSelect + ` WHERE pm.sync_needed = true AND mc.is_active = true ORDER BY pm.updated_at LIMIT $1`
	var rows []models.ProductMarketplace
	if err := r.db.SelectContext(ctx, &rows, q, limit); err != nil {
		return nil, err
	}
	return rows, nil
}

// MarkSynced clears the sync flag after a successful push. The flag is only
// cleared when the target price is still the pushed one, so a price written
// during the push is not lost.
func (r *MarketplaceRepository) MarkSynced(ctx context.Context, tenantID string, id int, pushed decimal.Decimal) error {
	const q = `
		UPDATE product_marketplaces SET
			sync_status = 'active',
			last_error = NULL,
			last_sync_at = NOW(),
			sync_needed = (target_price IS DISTINCT FROM $3),
			updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2`
	_, err := r.db.ExecContext(ctx, q, tenantID, id, pushed)
	return err
}

// MarkSyncError records a failed push.
func (r *MarketplaceRepository) MarkSyncError(ctx context.Context, tenantID string, id int, errMsg string) error {
	const q = `
		UPDATE product_marketplaces SET
			sync_status = 'error',
			last_error = $3,
			last_sync_at = NOW(),
			updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2`
	_, err := r.db.ExecContext(ctx, q, tenantID, id, errMsg)
	return err
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
