package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the direction of a ledger transaction.
type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

// AccountType distinguishes cash and bank accounts.
type AccountType string

const (
	AccountCash AccountType = "cash"
	AccountBank AccountType = "bank"
)

// ContactType distinguishes customers and suppliers.
type ContactType string

const (
	ContactCustomer ContactType = "customer"
	ContactSupplier ContactType = "supplier"
)

// Account is a cash or bank account of a tenant.
type Account struct {
	ID        int             `db:"id" json:"id"`
	TenantID  string          `db:"tenant_id" json:"tenantId"`
	Name      string          `db:"name" json:"name"`
	Type      AccountType     `db:"type" json:"type"`
	Balance   decimal.Decimal `db:"balance" json:"balance"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time       `db:"updated_at" json:"updatedAt"`
}

// Contact is a customer or supplier. Balance is what the contact owes the
// tenant: positive is a receivable, negative a payable.
type Contact struct {
	ID        int             `db:"id" json:"id"`
	TenantID  string          `db:"tenant_id" json:"tenantId"`
	Type      ContactType     `db:"type" json:"type"`
	Name      string          `db:"name" json:"name"`
	TaxNumber *string         `db:"tax_number" json:"taxNumber,omitempty"`
	Balance   decimal.Decimal `db:"balance" json:"balance"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time       `db:"updated_at" json:"updatedAt"`
}

// LedgerTransaction is one posted money movement.
type LedgerTransaction struct {
	ID          int             `db:"id" json:"id"`
	TenantID    string          `db:"tenant_id" json:"tenantId"`
	Type        TransactionType `db:"type" json:"type"`
	AccountID   int             `db:"account_id" json:"accountId"`
	ContactID   *int            `db:"contact_id" json:"contactId,omitempty"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Description string          `db:"description" json:"description"`
	Reference   *string         `db:"reference" json:"reference,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
}

// Loan is a borrowed principal repaid in installments.
type Loan struct {
	ID           int             `db:"id" json:"id"`
	TenantID     string          `db:"tenant_id" json:"tenantId"`
	Lender       string          `db:"lender" json:"lender"`
	Principal    decimal.Decimal `db:"principal" json:"principal"`
	Installments int             `db:"installments" json:"installments"`
	AccountID    int             `db:"account_id" json:"accountId"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`

	Schedule []LoanInstallment `db:"-" json:"schedule,omitempty"`
}

// LoanInstallment is one scheduled repayment.
type LoanInstallment struct {
	ID        int             `db:"id" json:"id"`
	TenantID  string          `db:"tenant_id" json:"tenantId"`
	LoanID    int             `db:"loan_id" json:"loanId"`
	Sequence  int             `db:"sequence" json:"sequence"`
	DueDate   time.Time       `db:"due_date" json:"dueDate"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	PaidAt    *time.Time      `db:"paid_at" json:"paidAt,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"-"`
}
