package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/gtd_backoffice/internal/models"
)

func TestMarkInstallmentPaid_Conditional(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewLoanRepository(db)
	ctx := context.Background()

	query := regexp.QuoteMeta(`UPDATE loan_installments SET paid_at = NOW()`) + `.*paid_at IS NULL`
	mock.ExpectExec(query).WithArgs("T", 5).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).WithArgs("T", 5).WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.MarkInstallmentPaid(ctx, db, "T", 5)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkInstallmentPaid(ctx, db, "T", 5)
	require.NoError(t, err)
	assert.False(t, ok, "second payment finds the row already paid")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateLoan_InsertsSchedule(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewLoanRepository(db)
	now := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO loans`)).
		WithArgs("T", "Koperasi", sqlmock.AnyArg(), 2, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(3, now))
	for i := 1; i <= 2; i++ {
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO loan_installments`)).
			WithArgs("T", 3, i, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(10+i, now))
	}

	loan := &models.Loan{
		TenantID: "T", Lender: "Koperasi", Principal: decimal.NewFromInt(200), Installments: 2, AccountID: 1,
		Schedule: []models.LoanInstallment{
			{Sequence: 1, DueDate: now, Amount: decimal.NewFromInt(100)},
			{Sequence: 2, DueDate: now.AddDate(0, 1, 0), Amount: decimal.NewFromInt(100)},
		},
	}
	require.NoError(t, repo.CreateLoan(context.Background(), db, loan))
	assert.Equal(t, 3, loan.ID)
	assert.Equal(t, 12, loan.Schedule[1].ID)
	assert.Equal(t, 3, loan.Schedule[1].LoanID)
	assert.Equal(t, "T", loan.Schedule[0].TenantID)
	require.NoError(t, mock.ExpectationsWereMet())
}
