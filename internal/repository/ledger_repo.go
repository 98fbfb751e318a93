package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/GTDGit/gtd_backoffice/internal/models"
)

// LedgerRepository handles accounts, contacts and ledger transactions.
// Balances only change through AdjustAccountBalance and AdjustContactBalance,
// which apply the delta inside the UPDATE statement.
type LedgerRepository struct {
	db *sqlx.DB
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// ============================================
// Accounts
// ============================================

// CreateAccount inserts an account with an opening balance.
func (r *LedgerRepository) CreateAccount(ctx context.Context, a *models.Account) error {
	const q = `
		INSERT INTO accounts (tenant_id, name, type, balance)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`
	return r.db.QueryRowxContext(ctx, q, a.TenantID, a.Name, a.Type, a.Balance).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

// GetAccount returns one account of the tenant.
func (r *LedgerRepository) GetAccount(ctx context.Context, tenantID string, id int) (*models.Account, error) {
	const q = `SELECT id, tenant_id, name, type, balance, created_at, updated_at FROM accounts WHERE tenant_id = $1 AND id = $2`
	var a models.Account
	if err := r.db.GetContext(ctx, &a, q, tenantID, id); err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAccounts returns the tenant's accounts.
func (r *LedgerRepository) ListAccounts(ctx context.Context, tenantID string) ([]models.Account, error) {
	const q = `SELECT id, tenant_id, name, type, balance, created_at, updated_at FROM accounts WHERE tenant_id = $1 ORDER BY id`
	var accounts []models.Account
	if err := r.db.SelectContext(ctx, &accounts, q, tenantID); err != nil {
		return nil, err
	}
	return accounts, nil
}

// AdjustAccountBalance adds delta to the account balance atomically and
// returns the new balance. sql.ErrNoRows means the account does not belong
// to the tenant.
func (r *LedgerRepository) AdjustAccountBalance(ctx context.Context, q sqlx.ExtContext, tenantID string, id int, delta decimal.Decimal) (decimal.Decimal, error) {
	const query = `
		UPDATE accounts SET balance = balance + $3, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2
		RETURNING balance`
	var balance decimal.Decimal
	if err := sqlx.GetContext(ctx, q, &balance, query, tenantID, id, delta); err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

// ============================================
// Contacts
// ============================================

// CreateContact inserts a customer or supplier.
func (r *LedgerRepository) CreateContact(ctx context.Context, q sqlx.ExtContext, c *models.Contact) error {
	const query = `
		INSERT INTO contacts (tenant_id, type, name, tax_number, balance)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`
	return q.QueryRowxContext(ctx, query, c.TenantID, c.Type, c.Name, c.TaxNumber, c.Balance).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

// GetContact returns one contact of the tenant.
func (r *LedgerRepository) GetContact(ctx context.Context, tenantID string, id int) (*models.Contact, error) {
	const q = `SELECT id, tenant_id, type, name, tax_number, balance, created_at, updated_at FROM contacts WHERE tenant_id = $1 AND id = $2`
	var c models.Contact
	if err := r.db.GetContext(ctx, &c, q, tenantID, id); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListContacts returns the tenant's contacts, optionally filtered by type.
func (r *LedgerRepository) ListContacts(ctx context.Context, tenantID string, contactType models.ContactType) ([]models.Contact, error) {
	const q = `
		SELECT id, tenant_id, type, name, tax_number, balance, created_at, updated_at
		FROM contacts
		WHERE tenant_id = $1 AND ($2 = '' OR type = $2)
		ORDER BY name`
	var contacts []models.Contact
	if err := r.db.SelectContext(ctx, &contacts, q, tenantID, string(contactType)); err != nil {
		return nil, err
	}
	return contacts, nil
}

// AdjustContactBalance adds delta to the contact balance atomically.
func (r *LedgerRepository) AdjustContactBalance(ctx context.Context, q sqlx.ExtContext, tenantID string, id int, delta decimal.Decimal) (decimal.Decimal, error) {
	const query = `
		UPDATE contacts SET balance = balance + $3, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2
		RETURNING balance`
	var balance decimal.Decimal
	if err := sqlx.GetContext(ctx, q, &balance, query, tenantID, id, delta); err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

// ============================================
// Transactions
// ============================================

// InsertTransaction posts a ledger row.
func (r *LedgerRepository) InsertTransaction(ctx context.Context, q sqlx.ExtContext, t *models.LedgerTransaction) error {
	const query = `
		INSERT INTO ledger_transactions (tenant_id, type, account_id, contact_id, amount, description, reference)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`
	return q.QueryRowxContext(ctx, query,
		t.TenantID,
		t.Type,
		t.AccountID,
		t.ContactID,
		t.Amount,
		t.Description,
		t.Reference,
	).Scan(&t.ID, &t.CreatedAt)
}

// TransactionFilter holds filters for ledger listing.
type TransactionFilter struct {
	AccountID *int
	ContactID *int
	Type      string
	Page      int
	Limit     int
}

// ListTransactions returns the tenant's ledger rows, newest first, with total count.
func (r *LedgerRepository) ListTransactions(ctx context.Context, tenantID string, filter TransactionFilter) ([]models.LedgerTransaction, int, error) {
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

	where := `WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	argIdx := 2
	if filter.AccountID != nil {
		where += fmt.Sprintf(" AND account_id = $%d", argIdx)
		args = append(args, *filter.AccountID)
		argIdx++
	}
	if filter.ContactID != nil {
		where += fmt.Sprintf(" AND contact_id = $%d", argIdx)
		args = append(args, *filter.ContactID)
		argIdx++
	}
	if filter.Type != "" {
		where += fmt.Sprintf(" AND type = $%d", argIdx)
		args = append(args, filter.Type)
		argIdx++
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(1) FROM ledger_transactions `+where, args...); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf(`
		SELECT id, tenant_id, type, account_id, contact_id, amount, description, reference, created_at
		FROM ledger_transactions %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, where, argIdx, argIdx+1)
	args = append(args, filter.Limit, offset)

	var rows []models.LedgerTransaction
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
