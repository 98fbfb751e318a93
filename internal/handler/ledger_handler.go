package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/GTDGit/gtd_backoffice/internal/middleware"
	"github.com/GTDGit/gtd_backoffice/internal/models"
	"github.com/GTDGit/gtd_backoffice/internal/repository"
	"github.com/GTDGit/gtd_backoffice/internal/service"
	"github.com/GTDGit/gtd_backoffice/internal/utils"
)

// Ledger records money movements and keeps accounts and contacts.
type Ledger interface {
	RecordTransaction(ctx context.Context, tenantID string, req service.TransactionRequest) (*service.TransactionResult, error)
	ListTransactions(ctx context.Context, tenantID string, filter repository.TransactionFilter) ([]models.LedgerTransaction, int, error)
	CreateAccount(ctx context.Context, tenantID string, a *models.Account) error
	GetAccount(ctx context.Context, tenantID string, id int) (*models.Account, error)
	ListAccounts(ctx context.Context, tenantID string) ([]models.Account, error)
	CreateContact(ctx context.Context, tenantID string, c *models.Contact) error
	GetContact(ctx context.Context, tenantID string, id int) (*models.Contact, error)
	ListContacts(ctx context.Context, tenantID string, contactType models.ContactType) ([]models.Contact, error)
}

// Loans books loans and their repayments.
type Loans interface {
	CreateLoan(ctx context.Context, tenantID string, req service.LoanRequest) (*models.Loan, error)
	GetLoan(ctx context.Context, tenantID string, id int) (*models.Loan, error)
	PayInstallment(ctx context.Context, tenantID string, installmentID, accountID int) (*service.TransactionResult, error)
}

// LedgerHandler serves the finance module.
type LedgerHandler struct {
	ledger Ledger
	loans  Loans
}

func NewLedgerHandler(ledger Ledger, loans Loans) *LedgerHandler {
	return &LedgerHandler{ledger: ledger, loans: loans}
}

// ============================================
// Transactions
// ============================================

// RecordTransaction handles POST /v1/tenant/transactions
func (h *LedgerHandler) RecordTransaction(c *gin.Context) {
	var req service.TransactionRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.ledger.RecordTransaction(c.Request.Context(), middleware.TenantID(c), req)
	if err != nil {
		respondError(c, err, "Failed to record transaction")
		return
	}
	utils.Success(c, 201, "Transaction recorded", res)
}

// ListTransactions handles GET /v1/tenant/transactions
func (h *LedgerHandler) ListTransactions(c *gin.Context) {
	filter := repository.TransactionFilter{
		Type:  c.Query("type"),
		Page:  queryInt(c, "page", 1),
		Limit: queryInt(c, "limit", 50),
	}
	if v := queryInt(c, "accountId", 0); v > 0 {
		filter.AccountID = &v
	}
	if v := queryInt(c, "contactId", 0); v > 0 {
		filter.ContactID = &v
	}

	rows, total, err := h.ledger.ListTransactions(c.Request.Context(), middleware.TenantID(c), filter)
	if err != nil {
		respondError(c, err, "Failed to retrieve transactions")
		return
	}
	if rows == nil {
		rows = []models.LedgerTransaction{}
	}
	utils.SuccessWithPagination(c, 200, "Transactions retrieved", rows, filter.Page, filter.Limit, total)
}

// ============================================
// Accounts and contacts
// ============================================

// ListAccounts handles GET /v1/tenant/accounts
func (h *LedgerHandler) ListAccounts(c *gin.Context) {
	accounts, err := h.ledger.ListAccounts(c.Request.Context(), middleware.TenantID(c))
	if err != nil {
		respondError(c, err, "Failed to retrieve accounts")
		return
	}
	if accounts == nil {
		accounts = []models.Account{}
	}
	utils.Success(c, 200, "Accounts retrieved", accounts)
}

// CreateAccount handles POST /v1/tenant/accounts
func (h *LedgerHandler) CreateAccount(c *gin.Context) {
	var a models.Account
	if !bindJSON(c, &a) {
		return
	}
	if err := h.ledger.CreateAccount(c.Request.Context(), middleware.TenantID(c), &a); err != nil {
		respondError(c, err, "Failed to create account")
		return
	}
	utils.Success(c, 201, "Account created", a)
}

// GetAccount handles GET /v1/tenant/accounts/:id
func (h *LedgerHandler) GetAccount(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	a, err := h.ledger.GetAccount(c.Request.Context(), middleware.TenantID(c), id)
	if err != nil {
		respondError(c, err, "Failed to retrieve account")
		return
	}
	utils.Success(c, 200, "Account retrieved", a)
}

// ListContacts handles GET /v1/tenant/contacts
func (h *LedgerHandler) ListContacts(c *gin.Context) {
	contacts, err := h.ledger.ListContacts(c.Request.Context(), middleware.TenantID(c), models.ContactType(c.Query("type")))
	if err != nil {
		respondError(c, err, "Failed to retrieve contacts")
		return
	}
	if contacts == nil {
		contacts = []models.Contact{}
	}
	utils.Success(c, 200, "Contacts retrieved", contacts)
}

// CreateContact handles POST /v1/tenant/contacts
func (h *LedgerHandler) CreateContact(c *gin.Context) {
	var contact models.Contact
	if !bindJSON(c, &contact) {
		return
	}
	if err := h.ledger.CreateContact(c.Request.Context(), middleware.TenantID(c), &contact); err != nil {
		respondError(c, err, "Failed to create contact")
		return
	}
	utils.Success(c, 201, "Contact created", contact)
}

// GetContact handles GET /v1/tenant/contacts/:id
func (h *LedgerHandler) GetContact(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	contact, err := h.ledger.GetContact(c.Request.Context(), middleware.TenantID(c), id)
	if err != nil {
		respondError(c, err, "Failed to retrieve contact")
		return
	}
	utils.Success(c, 200, "Contact retrieved", contact)
}

// ============================================
// Loans
// ============================================

// CreateLoan handles POST /v1/tenant/loans
func (h *LedgerHandler) CreateLoan(c *gin.Context) {
	var req struct {
		Lender       string          `json:"lender"`
		Principal    decimal.Decimal `json:"principal"`
		Installments int             `json:"installments"`
		FirstDueDate string          `json:"firstDueDate" binding:"required"`
		AccountID    int             `json:"accountId"`
	}
	if !bindJSON(c, &req) {
		return
	}
	due, err := time.Parse("2006-01-02", req.FirstDueDate)
	if err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "firstDueDate must be YYYY-MM-DD")
		return
	}

	loan, err := h.loans.CreateLoan(c.Request.Context(), middleware.TenantID(c), service.LoanRequest{
		Lender:       req.Lender,
		Principal:    req.Principal,
		Installments: req.Installments,
		FirstDueDate: due,
		AccountID:    req.AccountID,
	})
	if err != nil {
		respondError(c, err, "Failed to create loan")
		return
	}
	utils.Success(c, 201, "Loan created", loan)
}

// GetLoan handles GET /v1/tenant/loans/:id
func (h *LedgerHandler) GetLoan(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	loan, err := h.loans.GetLoan(c.Request.Context(), middleware.TenantID(c), id)
	if err != nil {
		respondError(c, err, "Failed to retrieve loan")
		return
	}
	utils.Success(c, 200, "Loan retrieved", loan)
}

// PayInstallment handles POST /v1/tenant/installments/:id/pay
func (h *LedgerHandler) PayInstallment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		AccountID int `json:"accountId" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.loans.PayInstallment(c.Request.Context(), middleware.TenantID(c), id, req.AccountID)
	if err != nil {
		respondError(c, err, "Failed to pay installment")
		return
	}
	utils.Success(c, 200, "Installment paid", res)
}
