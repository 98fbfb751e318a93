package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/gtd_backoffice/internal/models"
	"github.com/GTDGit/gtd_backoffice/internal/utils"
)

type subscriptionFixture struct {
	svc      *SubscriptionService
	store    *fakeSubscriptionStore
	tenants  *fakeProvisioner
	identity *fakeIdentity
	inval    *fakeInvalidator
	now      time.Time
}

func newSubscriptionFixture() *subscriptionFixture {
	f := &subscriptionFixture{
		store:    newFakeSubscriptionStore(),
		tenants:  &fakeProvisioner{fakeRegistrar: newFakeRegistrar()},
		identity: newFakeIdentity(),
		inval:    &fakeInvalidator{},
		now:      time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC),
	}
	plans := &fakePlans{plans: map[string]models.Plan{
		"basic": {ID: "basic", Name: "Basic"},
		"pro":   {ID: "pro", Name: "Pro"},
	}}
	f.svc = NewSubscriptionService(f.store, plans, f.tenants, &fakeTx{}, f.identity, f.inval, f.inval)
	f.svc.now = func() time.Time { return f.now }
	return f
}

func TestGrantManualSubscription_Idempotent(t *testing.T) {
	f := newSubscriptionFixture()
	ctx := context.Background()

	first, err := f.svc.GrantManualSubscription(ctx, GrantRequest{TenantID: "T", PlanID: "basic", DurationDays: 30})
	require.NoError(t, err)

	f.now = f.now.Add(time.Hour)
	_, err = f.svc.GrantManualSubscription(ctx, GrantRequest{TenantID: "T", PlanID: "pro", DurationDays: 30})
	require.NoError(t, err)

	require.Len(t, f.store.rows, 1)
	row := f.store.rows["T"]
	assert.Equal(t, "pro", row.PlanID)
	assert.Equal(t, models.StatusActive, row.Status)
	assert.True(t, row.IsManual)
	assert.Equal(t, f.now.AddDate(0, 0, 30), *row.CurrentPeriodEnd)
	assert.Equal(t, first.StartDate, row.StartDate, "start date is kept from the first grant")
	assert.Equal(t, 2, f.tenants.registered["T"])
	assert.Equal(t, []string{"T", "T"}, f.inval.tenants)
	assert.Equal(t, 2, f.inval.directory)
}

func TestGrantManualSubscription_Validation(t *testing.T) {
	f := newSubscriptionFixture()
	ctx := context.Background()

	_, err := f.svc.GrantManualSubscription(ctx, GrantRequest{TenantID: " ", PlanID: "pro", DurationDays: 30})
	assert.ErrorIs(t, err, utils.ErrValidation)

	_, err = f.svc.GrantManualSubscription(ctx, GrantRequest{TenantID: "T", PlanID: "pro", DurationDays: 0})
	assert.ErrorIs(t, err, utils.ErrValidation)

	_, err = f.svc.GrantManualSubscription(ctx, GrantRequest{TenantID: "T", PlanID: "gold", DurationDays: 30})
	assert.ErrorIs(t, err, utils.ErrPlanNotFound)

	assert.Empty(t, f.store.rows)
}

func TestUpdateSubscriptionStatus(t *testing.T) {
	f := newSubscriptionFixture()
	ctx := context.Background()

	_, err := f.svc.GrantManualSubscription(ctx, GrantRequest{TenantID: "T", PlanID: "pro", DurationDays: 30})
	require.NoError(t, err)

	require.NoError(t, f.svc.UpdateSubscriptionStatus(ctx, "T", models.StatusCanceled))
	assert.Equal(t, models.StatusCanceled, f.store.rows["T"].Status)

	assert.ErrorIs(t, f.svc.UpdateSubscriptionStatus(ctx, "T", models.StatusDetected), utils.ErrInvalidStatus)
	assert.ErrorIs(t, f.svc.UpdateSubscriptionStatus(ctx, "missing", models.StatusActive), utils.ErrSubscriptionNotFound)

	_, err = f.svc.GetSubscription(ctx, "missing")
	assert.ErrorIs(t, err, utils.ErrSubscriptionNotFound)
}

func TestCreateManualTenant_Success(t *testing.T) {
	f := newSubscriptionFixture()

	tenantID, err := f.svc.CreateManualTenant(context.Background(), ManualTenantRequest{
		CompanyName:  "Acme",
		FullName:     "Jane Roe",
		Email:        "Jane@Acme.test",
		Password:     "secret1",
		PlanID:       "basic",
		DurationDays: 14,
	})
	require.NoError(t, err)

	assert.Contains(t, f.identity.users, tenantID)
	require.Len(t, f.tenants.profiles, 1)
	assert.Equal(t, tenantID, f.tenants.profiles[0].ID)
	assert.Equal(t, "jane@acme.test", f.tenants.profiles[0].Email)
	require.Len(t, f.tenants.companies, 1)
	assert.Equal(t, "Acme", f.tenants.companies[0].CompanyName)
	require.Contains(t, f.store.rows, tenantID)
	assert.Equal(t, "basic", f.store.rows[tenantID].PlanID)
	assert.Empty(t, f.identity.deleted)
}

func TestCreateManualTenant_CompensatesIdentityUser(t *testing.T) {
	f := newSubscriptionFixture()
	f.tenants.failCompanyErr = errBoom

	_, err := f.svc.CreateManualTenant(context.Background(), ManualTenantRequest{
		CompanyName: "Acme", FullName: "Jane", Email: "jane@acme.test", Password: "secret1", PlanID: "basic", DurationDays: 14,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrProvisioningFailed)

	require.Len(t, f.identity.deleted, 1)
	assert.Empty(t, f.identity.users, "identity user must not be orphaned")
}

func TestCreateManualTenant_CompensationFailureReported(t *testing.T) {
	f := newSubscriptionFixture()
	f.tenants.failCompanyErr = errBoom
	f.identity.deleteErr = assert.AnError

	_, err := f.svc.CreateManualTenant(context.Background(), ManualTenantRequest{
		CompanyName: "Acme", FullName: "Jane", Email: "jane@acme.test", Password: "secret1", PlanID: "basic", DurationDays: 14,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrProvisioningFailed)
	assert.Contains(t, err.Error(), "compensation failed")
}

func TestCreateManualTenant_DuplicateEmail(t *testing.T) {
	f := newSubscriptionFixture()
	req := ManualTenantRequest{CompanyName: "Acme", FullName: "Jane", Email: "jane@acme.test", Password: "secret1", PlanID: "basic", DurationDays: 14}

	_, err := f.svc.CreateManualTenant(context.Background(), req)
	require.NoError(t, err)

	_, err = f.svc.CreateManualTenant(context.Background(), req)
	assert.ErrorIs(t, err, utils.ErrEmailAlreadyRegistered)
}

func TestCreateManualTenant_InvalidPlanCreatesNoUser(t *testing.T) {
	f := newSubscriptionFixture()

	_, err := f.svc.CreateManualTenant(context.Background(), ManualTenantRequest{
		CompanyName: "Acme", FullName: "Jane", Email: "jane@acme.test", Password: "secret1", PlanID: "gold", DurationDays: 14,
	})
	assert.ErrorIs(t, err, utils.ErrPlanNotFound)
	assert.Empty(t, f.identity.users)
}
