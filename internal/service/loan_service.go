package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/GTDGit/gtd_backoffice/internal/models"
	"github.com/GTDGit/gtd_backoffice/internal/utils"
)

const maxInstallments = 360

// minInstallment is the smallest amount a scheduled installment may carry.
var minInstallment = decimal.New(1, -2)

// LoanStore persists loans and installments.
type LoanStore interface {
	CreateLoan(ctx context.Context, q sqlx.ExtContext, loan *models.Loan) error
	GetLoan(ctx context.Context, tenantID string, id int) (*models.Loan, error)
	GetInstallment(ctx context.Context, tenantID string, id int) (*models.LoanInstallment, error)
	MarkInstallmentPaid(ctx context.Context, q sqlx.ExtContext, tenantID string, id int) (bool, error)
}

// LoanRequest borrows a principal into an account.
type LoanRequest struct {
	Lender       string          `json:"lender"`
	Principal    decimal.Decimal `json:"principal"`
	Installments int             `json:"installments"`
	FirstDueDate time.Time       `json:"firstDueDate"`
	AccountID    int             `json:"accountId"`
}

// LoanService records loans and their repayments through the ledger.
type LoanService struct {
	loans  LoanStore
	ledger LedgerStore
	tx     TxRunner
}

// NewLoanService creates a new LoanService.
func NewLoanService(loans LoanStore, ledger LedgerStore, tx TxRunner) *LoanService {
	return &LoanService{loans: loans, ledger: ledger, tx: tx}
}

// BuildSchedule splits principal into n monthly installments starting at
// firstDue. Each installment is principal/n truncated to cents; the last one
// absorbs the remainder so the schedule sums to principal exactly.
func BuildSchedule(principal decimal.Decimal, n int, firstDue time.Time) []models.LoanInstallment {
	base := principal.Div(decimal.NewFromInt(int64(n))).Truncate(2)
	schedule := make([]models.LoanInstallment, n)
	allocated := decimal.Zero
	for i := 0; i < n; i++ {
		amount := base
		if i == n-1 {
			amount = principal.Sub(allocated)
		}
		allocated = allocated.Add(amount)
		schedule[i] = models.LoanInstallment{
			Sequence: i + 1,
			DueDate:  firstDue.AddDate(0, i, 0),
			Amount:   amount,
		}
	}
	return schedule
}

// CreateLoan stores the loan with its schedule and books the principal as
// income into the account.
func (s *LoanService) CreateLoan(ctx context.Context, tenantID string, req LoanRequest) (*models.Loan, error) {
	req.Lender = strings.TrimSpace(req.Lender)
	if req.Lender == "" {
		return nil, fmt.Errorf("%w: lender is required", utils.ErrValidation)
	}
	req.Principal = req.Principal.Round(2)
	if !req.Principal.IsPositive() {
		return nil, utils.ErrInvalidAmount
	}
	if req.Installments <= 0 || req.Installments > maxInstallments {
		return nil, fmt.Errorf("%w: installments must be between 1 and %d", utils.ErrValidation, maxInstallments)
	}
	if req.Principal.LessThan(minInstallment.Mul(decimal.NewFromInt(int64(req.Installments)))) {
		return nil, fmt.Errorf("%w: principal must cover at least %s per installment", utils.ErrValidation, minInstallment.StringFixed(2))
	}
	if req.FirstDueDate.IsZero() {
		return nil, fmt.Errorf("%w: first due date is required", utils.ErrValidation)
	}
	if req.AccountID <= 0 {
		return nil, fmt.Errorf("%w: account is required", utils.ErrValidation)
	}

	loan := &models.Loan{
		TenantID:     tenantID,
		Lender:       req.Lender,
		Principal:    req.Principal,
		Installments: req.Installments,
		AccountID:    req.AccountID,
		Schedule:     BuildSchedule(req.Principal, req.Installments, req.FirstDueDate),
	}

	err := s.tx.WithTx(ctx, func(q sqlx.ExtContext) error {
		if err := s.loans.CreateLoan(ctx, q, loan); err != nil {
			return fmt.Errorf("create loan: %w", err)
		}
		ref := fmt.Sprintf("loan:%d", loan.ID)
		_, err := postTransaction(ctx, q, s.ledger, &models.LedgerTransaction{
			TenantID:    tenantID,
			Type:        models.TransactionIncome,
			AccountID:   req.AccountID,
			Amount:      req.Principal,
			Description: "Loan from " + req.Lender,
			Reference:   &ref,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("tenant_id", tenantID).
		Int("loan_id", loan.ID).
		Str("principal", loan.Principal.StringFixed(2)).
		Int("installments", loan.Installments).
		Msg("Loan created")
	return loan, nil
}

// GetLoan returns a loan with its schedule.
func (s *LoanService) GetLoan(ctx context.Context, tenantID string, id int) (*models.Loan, error) {
	loan, err := s.loans.GetLoan(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.ErrLoanNotFound
		}
		return nil, err
	}
	return loan, nil
}

// PayInstallment marks an installment paid and books the payment as an
// expense from accountID. The paid flag is set conditionally, so two
// concurrent payments of the same installment book only one expense.
func (s *LoanService) PayInstallment(ctx context.Context, tenantID string, installmentID, accountID int) (*TransactionResult, error) {
	if accountID <= 0 {
		return nil, fmt.Errorf("%w: account is required", utils.ErrValidation)
	}

	inst, err := s.loans.GetInstallment(ctx, tenantID, installmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.ErrInstallmentNotFound
		}
		return nil, err
	}
	if inst.PaidAt != nil {
		return nil, utils.ErrInstallmentAlreadyPaid
	}

	var result *TransactionResult
	err = s.tx.WithTx(ctx, func(q sqlx.ExtContext) error {
		ok, err := s.loans.MarkInstallmentPaid(ctx, q, tenantID, installmentID)
		if err != nil {
			return fmt.Errorf("mark installment paid: %w", err)
		}
		if !ok {
			return utils.ErrInstallmentAlreadyPaid
		}
		ref := fmt.Sprintf("loan:%d:installment:%d", inst.LoanID, inst.Sequence)
		result, err = postTransaction(ctx, q, s.ledger, &models.LedgerTransaction{
			TenantID:    tenantID,
			Type:        models.TransactionExpense,
			AccountID:   accountID,
			Amount:      inst.Amount,
			Description: fmt.Sprintf("Loan installment %d", inst.Sequence),
			Reference:   &ref,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("tenant_id", tenantID).
		Int("installment_id", installmentID).
		Str("amount", inst.Amount.StringFixed(2)).
		Msg("Loan installment paid")
	return result, nil
}
