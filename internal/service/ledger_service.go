package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/GTDGit/gtd_backoffice/internal/models"
	"github.com/GTDGit/gtd_backoffice/internal/repository"
	"github.com/GTDGit/gtd_backoffice/internal/utils"
)

// LedgerStore persists accounts, contacts and ledger rows. Balance changes go
// through the Adjust methods, which apply a delta atomically.
type LedgerStore interface {
	CreateAccount(ctx context.Context, a *models.Account) error
	GetAccount(ctx context.Context, tenantID string, id int) (*models.Account, error)
	ListAccounts(ctx context.Context, tenantID string) ([]models.Account, error)
	AdjustAccountBalance(ctx context.Context, q sqlx.ExtContext, tenantID string, id int, delta decimal.Decimal) (decimal.Decimal, error)

	CreateContact(ctx context.Context, q sqlx.ExtContext, c *models.Contact) error
	GetContact(ctx context.Context, tenantID string, id int) (*models.Contact, error)
	ListContacts(ctx context.Context, tenantID string, contactType models.ContactType) ([]models.Contact, error)
	AdjustContactBalance(ctx context.Context, q sqlx.ExtContext, tenantID string, id int, delta decimal.Decimal) (decimal.Decimal, error)

	InsertTransaction(ctx context.Context, q sqlx.ExtContext, t *models.LedgerTransaction) error
	ListTransactions(ctx context.Context, tenantID string, filter repository.TransactionFilter) ([]models.LedgerTransaction, int, error)
}

// TransactionRequest posts one income or expense.
type TransactionRequest struct {
	Type        models.TransactionType `json:"type"`
	AccountID   int                    `json:"accountId"`
	ContactID   *int                   `json:"contactId"`
	Amount      decimal.Decimal        `json:"amount"`
	Description string                 `json:"description"`
	Reference   *string                `json:"reference"`
}

// TransactionResult is a posted transaction with the balances it produced.
type TransactionResult struct {
	Transaction    *models.LedgerTransaction `json:"transaction"`
	AccountBalance decimal.Decimal           `json:"accountBalance"`
	ContactBalance *decimal.Decimal          `json:"contactBalance,omitempty"`
}

// LedgerService records money movements against accounts and contacts.
type LedgerService struct {
	store     LedgerStore
	tenants   TenantRegistrar
	tx        TxRunner
	directory DirectoryInvalidator
}

// NewLedgerService creates a new LedgerService. directory may be nil.
func NewLedgerService(store LedgerStore, tenants TenantRegistrar, tx TxRunner, directory DirectoryInvalidator) *LedgerService {
	return &LedgerService{store: store, tenants: tenants, tx: tx, directory: directory}
}

// AccountDelta is the account balance change of a transaction: income adds,
// expense subtracts.
func AccountDelta(t models.TransactionType, amount decimal.Decimal) decimal.Decimal {
	if t == models.TransactionExpense {
		return amount.Neg()
	}
	return amount
}

// ContactDelta is the contact balance change of a transaction. Income settles
// what the contact owes; expense settles what the tenant owes.
func ContactDelta(t models.TransactionType, amount decimal.Decimal) decimal.Decimal {
	if t == models.TransactionIncome {
		return amount.Neg()
	}
	return amount
}

// RecordTransaction posts a ledger row and applies it to the account and the
// optional contact in one database transaction.
func (s *LedgerService) RecordTransaction(ctx context.Context, tenantID string, req TransactionRequest) (*TransactionResult, error) {
	if err := validateTransaction(req); err != nil {
		return nil, err
	}

	t := &models.LedgerTransaction{
		TenantID:    tenantID,
		Type:        req.Type,
		AccountID:   req.AccountID,
		ContactID:   req.ContactID,
		Amount:      req.Amount,
		Description: strings.TrimSpace(req.Description),
		Reference:   req.Reference,
	}

	var result *TransactionResult
	err := s.tx.WithTx(ctx, func(q sqlx.ExtContext) error {
		var err error
		result, err = postTransaction(ctx, q, s.store, t)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("tenant_id", tenantID).
		Int("transaction_id", t.ID).
		Str("type", string(t.Type)).
		Int("account_id", t.AccountID).
		Str("amount", t.Amount.StringFixed(2)).
		Msg("Ledger transaction recorded")
	return result, nil
}

// postTransaction applies t within q. Balances are adjusted first so a missing
// account or contact surfaces as a not-found error rather than a foreign key
// failure on the insert.
func postTransaction(ctx context.Context, q sqlx.ExtContext, store LedgerStore, t *models.LedgerTransaction) (*TransactionResult, error) {
	res := &TransactionResult{Transaction: t}

	balance, err := store.AdjustAccountBalance(ctx, q, t.TenantID, t.AccountID, AccountDelta(t.Type, t.Amount))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.ErrAccountNotFound
		}
		return nil, fmt.Errorf("adjust account balance: %w", err)
	}
	res.AccountBalance = balance

	if t.ContactID != nil {
		cb, err := store.AdjustContactBalance(ctx, q, t.TenantID, *t.ContactID, ContactDelta(t.Type, t.Amount))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, utils.ErrContactNotFound
			}
			return nil, fmt.Errorf("adjust contact balance: %w", err)
		}
		res.ContactBalance = &cb
	}

	if err := store.InsertTransaction(ctx, q, t); err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}
	return res, nil
}

func validateTransaction(req TransactionRequest) error {
	if req.Type != models.TransactionIncome && req.Type != models.TransactionExpense {
		return fmt.Errorf("%w: type must be income or expense", utils.ErrValidation)
	}
	if req.AccountID <= 0 {
		return fmt.Errorf("%w: account is required", utils.ErrValidation)
	}
	if !req.Amount.IsPositive() {
		return utils.ErrInvalidAmount
	}
	return nil
}

// ListTransactions returns the tenant's ledger page and total count.
func (s *LedgerService) ListTransactions(ctx context.Context, tenantID string, filter repository.TransactionFilter) ([]models.LedgerTransaction, int, error) {
	return s.store.ListTransactions(ctx, tenantID, filter)
}

// ============================================
// Accounts
// ============================================

func (s *LedgerService) CreateAccount(ctx context.Context, tenantID string, a *models.Account) error {
	a.TenantID = tenantID
	a.Name = strings.TrimSpace(a.Name)
	if a.Name == "" {
		return fmt.Errorf("%w: account name is required", utils.ErrValidation)
	}
	if a.Type != models.AccountCash && a.Type != models.AccountBank {
		return fmt.Errorf("%w: account type must be cash or bank", utils.ErrValidation)
	}
	a.Balance = a.Balance.Round(2)
	return s.store.CreateAccount(ctx, a)
}

func (s *LedgerService) GetAccount(ctx context.Context, tenantID string, id int) (*models.Account, error) {
	a, err := s.store.GetAccount(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.ErrAccountNotFound
		}
		return nil, err
	}
	return a, nil
}

func (s *LedgerService) ListAccounts(ctx context.Context, tenantID string) ([]models.Account, error) {
	return s.store.ListAccounts(ctx, tenantID)
}

// ============================================
// Contacts
// ============================================

// CreateContact adds a customer or supplier and registers the tenant.
func (s *LedgerService) CreateContact(ctx context.Context, tenantID string, c *models.Contact) error {
	c.TenantID = tenantID
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return fmt.Errorf("%w: contact name is required", utils.ErrValidation)
	}
	if c.Type != models.ContactCustomer && c.Type != models.ContactSupplier {
		return fmt.Errorf("%w: contact type must be customer or supplier", utils.ErrValidation)
	}

	var created bool
	err := s.tx.WithTx(ctx, func(q sqlx.ExtContext) error {
		var err error
		if created, err = s.tenants.Register(ctx, q, tenantID); err != nil {
			return fmt.Errorf("register tenant: %w", err)
		}
		return s.store.CreateContact(ctx, q, c)
	})
	if err != nil {
		return err
	}
	if created {
		refreshDirectory(ctx, s.directory, tenantID)
	}
	return nil
}

func (s *LedgerService) GetContact(ctx context.Context, tenantID string, id int) (*models.Contact, error) {
	c, err := s.store.GetContact(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.ErrContactNotFound
		}
		return nil, err
	}
	return c, nil
}

func (s *LedgerService) ListContacts(ctx context.Context, tenantID string, contactType models.ContactType) ([]models.Contact, error) {
	return s.store.ListContacts(ctx, tenantID, contactType)
}
