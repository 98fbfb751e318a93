package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/GTDGit/gtd_backoffice/internal/models"
)

// ProductRepository handles data access for tenant catalog products.
type ProductRepository struct {
	db *sqlx.DB
}

// NewProductRepository creates a new ProductRepository.
func NewProductRepository(db *sqlx.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

const productColumns = `id, tenant_id, code, name, stock, cost_price, sale_price, created_at, updated_at`

// ProductFilter holds filters for product listing.
type ProductFilter struct {
	Search string
	Page   int
	Limit  int
}

// List returns the tenant's products with optional search and pagination and
// the total count. Page begins at 1.
func (r *ProductRepository) List(ctx context.Context, tenantID string, filter ProductFilter) ([]models.Product, int, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 {
		filter.Limit = 200
	}
	offset := (filter.Page - 1) * filter.Limit

	baseWhere := `WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	argIdx := 2
	if filter.Search != "" {
		baseWhere += fmt.Sprintf(" AND (name ILIKE $%d OR code ILIKE $%d)", argIdx, argIdx)
		args = append(args, "%"+filter.Search+"%")
		argIdx++
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(1) FROM products `+baseWhere, args...); err != nil {
		return nil, 0, err
	}

	listQuery := fmt.Sprintf(`SELECT %s FROM products %s ORDER BY id LIMIT $%d OFFSET $%d`,
		productColumns, baseWhere, argIdx, argIdx+1)
	args = append(args, filter.Limit, offset)

	var products []models.Product
	if err := r.db.SelectContext(ctx, &products, listQuery, args...); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// ListAll returns every product of the tenant in id order.
func (r *ProductRepository) ListAll(ctx context.Context, tenantID string) ([]models.Product, error) {
	q := `SELECT ` + productColumns + ` FROM products WHERE tenant_id = $1 ORDER BY id`
	var products []models.Product
	if err := r.db.SelectContext(ctx, &products, q, tenantID); err != nil {
		return nil, err
	}
	return products, nil
}

// GetByID returns a single product of the tenant.
func (r *ProductRepository) GetByID(ctx context.Context, tenantID string, id int) (*models.Product, error) {
	q := `SELECT ` + productColumns + ` FROM products WHERE tenant_id = $1 AND id = $2 LIMIT 1`
	var p models.Product
	if err := r.db.GetContext(ctx, &p, q, tenantID, id); err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts a product.
func (r *ProductRepository) Create(ctx context.Context, q sqlx.ExtContext, p *models.Product) error {
	const query = `
		INSERT INTO products (tenant_id, code, name, stock, cost_price, sale_price)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`
	row := q.QueryRowxContext(ctx, query, p.TenantID, p.Code, p.Name, p.Stock, p.CostPrice, p.SalePrice)
	return row.Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

// Update writes the editable product fields.
func (r *ProductRepository) Update(ctx context.Context, p *models.Product) error {
	const q = `
		UPDATE products
		SET code = $3, name = $4, stock = $5, cost_price = $6, sale_price = $7, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2
		RETURNING updated_at`
	return r.db.QueryRowxContext(ctx, q, p.TenantID, p.ID, p.Code, p.Name, p.Stock, p.CostPrice, p.SalePrice).
		Scan(&p.UpdatedAt)
}

// ListUnlinked returns the tenant's products that have no mirror row on the
// given marketplace connection.
func (r *ProductRepository) ListUnlinked(ctx context.Context, tenantID string, marketplaceID int) ([]models.Product, error) {
	const q = `
		SELECT p.id, p.tenant_id, p.code, p.name, p.stock, p.cost_price, p.sale_price, p.created_at, p.updated_at
		FROM products p
		WHERE p.tenant_id = $1
		AND NOT EXISTS (
			SELECT 1 FROM product_marketplaces pm
			WHERE pm.product_id = p.id AND pm.marketplace_id = $2 AND pm.tenant_id = $1
		)
		ORDER BY p.id`
	var products []models.Product
	if err := r.db.SelectContext(ctx, &products, q, tenantID, marketplaceID); err != nil {
		return nil, err
	}
	return products, nil
}
