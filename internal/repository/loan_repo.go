package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/GTDGit/gtd_backoffice/internal/models"
)

// LoanRepository handles loans and their installment schedules.
type LoanRepository struct {
	db *sqlx.DB
}

// NewLoanRepository creates a new LoanRepository.
func NewLoanRepository(db *sqlx.DB) *LoanRepository {
	return &LoanRepository{db: db}
}

// CreateLoan inserts the loan and its schedule.
func (r *LoanRepository) CreateLoan(ctx context.Context, q sqlx.ExtContext, loan *models.Loan) error {
	const loanQ = `
		INSERT INTO loans (tenant_id, lender, principal, installments, account_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`
	if err := q.QueryRowxContext(ctx, loanQ, loan.TenantID, loan.Lender, loan.Principal, loan.Installments, loan.AccountID).
		Scan(&loan.ID, &loan.CreatedAt); err != nil {
		return err
	}

	const instQ = `
		INSERT INTO loan_installments (tenant_id, loan_id, sequence, due_date, amount)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`
	for i := range loan.Schedule {
		inst := &loan.Schedule[i]
		inst.TenantID = loan.TenantID
		inst.LoanID = loan.ID
		if err := q.QueryRowxContext(ctx, instQ, inst.TenantID, inst.LoanID, inst.Sequence, inst.DueDate, inst.Amount).
			Scan(&inst.ID, &inst.CreatedAt); err != nil {
			return err
		}
	}
	return nil
}

// GetLoan returns a loan with its schedule.
func (r *LoanRepository) GetLoan(ctx context.Context, tenantID string, id int) (*models.Loan, error) {
	const q = `SELECT id, tenant_id, lender, principal, installments, account_id, created_at FROM loans WHERE tenant_id = $1 AND id = $2`
	var loan models.Loan
	if err := r.db.GetContext(ctx, &loan, q, tenantID, id); err != nil {
		return nil, err
	}

	const sq = `
		SELECT id, tenant_id, loan_id, sequence, due_date, amount, paid_at, created_at
		FROM loan_installments WHERE tenant_id = $1 AND loan_id = $2 ORDER BY sequence`
	if err := r.db.SelectContext(ctx, &loan.Schedule, sq, tenantID, id); err != nil {
		return nil, err
	}
	return &loan, nil
}

// GetInstallment returns one installment of the tenant.
func (r *LoanRepository) GetInstallment(ctx context.Context, tenantID string, id int) (*models.LoanInstallment, error) {
	const q = `
		SELECT id, tenant_id, loan_id, sequence, due_date, amount, paid_at, created_at
		FROM loan_installments WHERE tenant_id = $1 AND id = $2`
	var inst models.LoanInstallment
	if err := r.db.GetContext(ctx, &inst, q, tenantID, id); err != nil {
		return nil, err
	}
	return &inst, nil
}

// MarkInstallmentPaid sets paid_at only if the installment is still unpaid.
// It returns false when another payment got there first.
func (r *LoanRepository) MarkInstallmentPaid(ctx context.Context, q sqlx.ExtContext, tenantID string, id int) (bool, error) {
	const query = `
		UPDATE loan_installments SET paid_at = NOW()
		WHERE tenant_id = $1 AND id = $2 AND paid_at IS NULL`
	res, err := q.ExecContext(ctx, query, tenantID, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
