package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_IsIdempotentInsert(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewTenantRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO tenants (tenant_id) VALUES ($1) ON CONFLICT (tenant_id) DO NOTHING`)).
		WithArgs("T").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO tenants (tenant_id) VALUES ($1) ON CONFLICT (tenant_id) DO NOTHING`)).
		WithArgs("T").
		WillReturnResult(sqlmock.NewResult(0, 0))

	created, err := repo.Register(context.Background(), db, "T")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.Register(context.Background(), db, "T")
	require.NoError(t, err)
	assert.False(t, created)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListDetectedTenantIDs_ExcludesSubscribed(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewTenantRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`NOT EXISTS (SELECT 1 FROM subscriptions s WHERE s.tenant_id = t.tenant_id)`)).
		WillReturnRows(sqlmock.NewRows([]string{"tenant_id"}).AddRow("t-legacy").AddRow("t-orphan"))

	ids, err := repo.ListDetectedTenantIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"t-legacy", "t-orphan"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}
