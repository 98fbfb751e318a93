package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/GTDGit/gtd_backoffice/internal/models"
)

// TenantRepository handles the tenant registry and the per-tenant profile and
// company data used to enrich the directory.
type TenantRepository struct {
	db *sqlx.DB
}

// NewTenantRepository creates a new TenantRepository.
func NewTenantRepository(db *sqlx.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

// Register records the tenant in the registry. It is a no-op when the tenant
// is already registered.
// Register records tenantID in the registry. created reports whether the row
// was new.
func (r *TenantRepository) Register(ctx context.Context, q sqlx.ExtContext, tenantID string) (created bool, err error) {
	const query = `INSERT INTO tenants (tenant_id) VALUES ($1) ON CONFLICT (tenant_id) DO NOTHING`
	res, err := q.ExecContext(ctx, query, tenantID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListDetectedTenantIDs returns tenants that own data but have no subscription
// row. Registry rows are unioned with a scan of the data tables so tenants
// created before the registry existed are still found.
func (r *TenantRepository) ListDetectedTenantIDs(ctx context.Context) ([]string, error) {
	const q = `
		SELECT DISTINCT t.tenant_id FROM (
			SELECT tenant_id FROM tenants
			UNION SELECT tenant_id FROM products
			UNION SELECT tenant_id FROM contacts WHERE type = 'customer'
			UNION SELECT tenant_id FROM orders
		) t
		WHERE t.tenant_id <> ''
		AND NOT EXISTS (SELECT 1 FROM subscriptions s WHERE s.tenant_id = t.tenant_id)
		ORDER BY t.tenant_id`

	var ids []string
	if err := r.db.SelectContext(ctx, &ids, q); err != nil {
		return nil, err
	}
	return ids, nil
}

// ListCompanySettings returns company settings for all tenants.
func (r *TenantRepository) ListCompanySettings(ctx context.Context) ([]models.CompanySettings, error) {
	const q = `SELECT tenant_id, company_name, tax_number, currency, created_at, updated_at FROM company_settings`
	var rows []models.CompanySettings
	if err := r.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, err
	}
	return rows, nil
}

// ListPrimaryProfiles returns the earliest profile of every tenant.
func (r *TenantRepository) ListPrimaryProfiles(ctx context.Context) ([]models.Profile, error) {
	const q = `
		SELECT DISTINCT ON (tenant_id) id, tenant_id, full_name, email, phone, created_at
		FROM profiles
		ORDER BY tenant_id, created_at ASC`
	var rows []models.Profile
	if err := r.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, err
	}
	return rows, nil
}

// CreateProfile inserts a profile row.
func (r *TenantRepository) CreateProfile(ctx context.Context, q sqlx.ExtContext, p *models.Profile) error {
	const query = `
		INSERT INTO profiles (id, tenant_id, full_name, email, phone)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`
	return sqlx.GetContext(ctx, q, &p.CreatedAt, query, p.ID, p.TenantID, p.FullName, p.Email, p.Phone)
}

// CreateCompanySettings inserts the default company settings of a tenant.
func (r *TenantRepository) CreateCompanySettings(ctx context.Context, q sqlx.ExtContext, cs *models.CompanySettings) error {
	const query = `
		INSERT INTO company_settings (tenant_id, company_name, tax_number, currency)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`
	row := q.QueryRowxContext(ctx, query, cs.TenantID, cs.CompanyName, cs.TaxNumber, cs.Currency)
	return row.Scan(&cs.CreatedAt, &cs.UpdatedAt)
}
