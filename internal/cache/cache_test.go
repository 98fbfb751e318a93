package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/gtd_backoffice/internal/models"
)

func TestEntitlementCache_GetSetMiss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewEntitlementCache(NewRedisClientFrom(db), 5*time.Minute)
	ctx := context.Background()

	mock.ExpectGet("entitlement:T:finance").RedisNil()
	_, err := c.Get(ctx, "T", "finance")
	assert.ErrorIs(t, err, ErrMiss)

	e := &models.Entitlement{TenantID: "T", ModuleID: "finance", PlanID: "pro", Allowed: true}
	data, err := json.Marshal(e)
	require.NoError(t, err)

	mock.ExpectSet("entitlement:T:finance", string(data), 5*time.Minute).SetVal("OK")
	require.NoError(t, c.Set(ctx, e))

	mock.ExpectGet("entitlement:T:finance").SetVal(string(data))
	got, err := c.Get(ctx, "T", "finance")
	require.NoError(t, err)
	assert.Equal(t, e, got)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntitlementCache_InvalidateTenantScansPrefix(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewEntitlementCache(NewRedisClientFrom(db), time.Minute)

	mock.ExpectScan(0, "entitlement:T:*", 200).SetVal([]string{"entitlement:T:finance", "entitlement:T:marketplace"}, 0)
	mock.ExpectDel("entitlement:T:finance", "entitlement:T:marketplace").SetVal(2)

	require.NoError(t, c.InvalidateTenant(context.Background(), "T"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDirectoryCache_RoundTripAndInvalidate(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewDirectoryCache(NewRedisClientFrom(db), 30*time.Second)
	ctx := context.Background()

	rows := []models.TenantSummary{{TenantID: "T", CompanyName: "Toko Maju"}}
	data, err := json.Marshal(rows)
	require.NoError(t, err)

	mock.ExpectSet("directory:all||", string(data), 30*time.Second).SetVal("OK")
	require.NoError(t, c.Set(ctx, "all||", rows))

	mock.ExpectGet("directory:all||").SetVal(string(data))
	got, err := c.Get(ctx, "all||")
	require.NoError(t, err)
	assert.Equal(t, rows, got)

	mock.ExpectScan(0, "directory:*", 200).SetVal(nil, 0)
	require.NoError(t, c.Invalidate(ctx))

	assert.NoError(t, mock.ExpectationsWereMet())
}
