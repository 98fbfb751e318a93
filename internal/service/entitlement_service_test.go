package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/gtd_backoffice/internal/cache"
	"github.com/GTDGit/gtd_backoffice/internal/models"
	"github.com/GTDGit/gtd_backoffice/internal/utils"
)

type fakePlanStore struct {
	fakePlans
	modules map[string]bool
	rules   map[string]*models.PlanModuleRule
	nextID  int
}

func newFakePlanStore() *fakePlanStore {
	return &fakePlanStore{
		fakePlans: fakePlans{plans: map[string]models.Plan{"basic": {ID: "basic"}, "pro": {ID: "pro"}}},
		modules:   map[string]bool{"marketplace": true, "finance": true},
		rules:     map[string]*models.PlanModuleRule{},
	}
}

func (f *fakePlanStore) ListPlans(ctx context.Context) ([]models.Plan, error) { return nil, nil }

func (f *fakePlanStore) UpsertPlan(ctx context.Context, p *models.Plan) error {
	f.plans[p.ID] = *p
	return nil
}

func (f *fakePlanStore) ListModules(ctx context.Context) ([]models.Module, error) { return nil, nil }

func (f *fakePlanStore) UpsertModule(ctx context.Context, m *models.Module) error {
	f.modules[m.ID] = true
	return nil
}

func (f *fakePlanStore) ListRules(ctx context.Context, planID string) ([]models.PlanModuleRule, error) {
	var out []models.PlanModuleRule
	for _, r := range f.rules {
		if planID == "" || r.PlanID == planID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakePlanStore) GetRule(ctx context.Context, planID, moduleID string) (*models.PlanModuleRule, error) {
	r, ok := f.rules[planID+"|"+moduleID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *r
	return &cp, nil
}

func (f *fakePlanStore) UpsertRule(ctx context.Context, rule *models.PlanModuleRule) error {
	if _, ok := f.plans[rule.PlanID]; !ok {
		return &pq.Error{Code: "23503"}
	}
	if !f.modules[rule.ModuleID] {
		return &pq.Error{Code: "23503"}
	}
	key := rule.PlanID + "|" + rule.ModuleID
	if existing, ok := f.rules[key]; ok {
		rule.ID = existing.ID
	} else {
		f.nextID++
		rule.ID = f.nextID
	}
	cp := *rule
	f.rules[key] = &cp
	return nil
}

func (f *fakePlanStore) DeleteRule(ctx context.Context, id int) (string, error) {
	for k, r := range f.rules {
		if r.ID == id {
			delete(f.rules, k)
			return r.PlanID, nil
		}
	}
	return "", sql.ErrNoRows
}

type fakeEntitlementCache struct {
	fakeInvalidator
	entries map[string]models.Entitlement
	gets    int
}

func newFakeEntitlementCache() *fakeEntitlementCache {
	return &fakeEntitlementCache{entries: map[string]models.Entitlement{}}
}

func (f *fakeEntitlementCache) Get(ctx context.Context, tenantID, moduleID string) (*models.Entitlement, error) {
	f.gets++
	e, ok := f.entries[tenantID+"|"+moduleID]
	if !ok {
		return nil, cache.ErrMiss
	}
	return &e, nil
}

func (f *fakeEntitlementCache) Set(ctx context.Context, e *models.Entitlement) error {
	f.entries[e.TenantID+"|"+e.ModuleID] = *e
	return nil
}

func (f *fakeEntitlementCache) InvalidateAll(ctx context.Context) error {
	f.entries = map[string]models.Entitlement{}
	return f.fakeInvalidator.InvalidateAll(ctx)
}

func TestUpsertPlanModuleRule_OverwritesPair(t *testing.T) {
	store := newFakePlanStore()
	svc := NewEntitlementService(store, newFakeSubscriptionStore(), nil)
	ctx := context.Background()

	limit := 100
	require.NoError(t, svc.UpsertPlanModuleRule(ctx, &models.PlanModuleRule{PlanID: "pro", ModuleID: "marketplace", IsEnabled: true, LimitValue: &limit}))
	require.NoError(t, svc.UpsertPlanModuleRule(ctx, &models.PlanModuleRule{PlanID: "pro", ModuleID: "marketplace", IsEnabled: false}))

	rules, err := svc.ListPlanModuleRules(ctx, "pro")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.False(t, rules[0].IsEnabled)
	assert.Nil(t, rules[0].LimitValue)
}

func TestUpsertPlanModuleRule_Validation(t *testing.T) {
	svc := NewEntitlementService(newFakePlanStore(), newFakeSubscriptionStore(), nil)
	ctx := context.Background()

	negative := -1
	assert.ErrorIs(t, svc.UpsertPlanModuleRule(ctx, &models.PlanModuleRule{PlanID: "pro", ModuleID: "finance", LimitValue: &negative}), utils.ErrValidation)
	assert.ErrorIs(t, svc.UpsertPlanModuleRule(ctx, &models.PlanModuleRule{PlanID: "gold", ModuleID: "finance"}), utils.ErrValidation)
	assert.ErrorIs(t, svc.UpsertPlanModuleRule(ctx, &models.PlanModuleRule{ModuleID: "finance"}), utils.ErrValidation)
}

func TestDeletePlanModuleRule(t *testing.T) {
	store := newFakePlanStore()
	svc := NewEntitlementService(store, newFakeSubscriptionStore(), nil)
	ctx := context.Background()

	rule := &models.PlanModuleRule{PlanID: "basic", ModuleID: "finance", IsEnabled: true}
	require.NoError(t, svc.UpsertPlanModuleRule(ctx, rule))

	require.NoError(t, svc.DeletePlanModuleRule(ctx, rule.ID))
	assert.Empty(t, store.rules)
	assert.NoError(t, svc.DeletePlanModuleRule(ctx, rule.ID), "deleting twice is a no-op")
}

func TestCheckEntitlement(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	store := newFakePlanStore()
	store.rules["pro|marketplace"] = &models.PlanModuleRule{ID: 1, PlanID: "pro", ModuleID: "marketplace", IsEnabled: true}
	store.rules["pro|finance"] = &models.PlanModuleRule{ID: 2, PlanID: "pro", ModuleID: "finance", IsEnabled: false}

	subs := newFakeSubscriptionStore()
	subs.rows["active"] = &models.Subscription{TenantID: "active", PlanID: "pro", Status: models.StatusActive, CurrentPeriodEnd: ptrTime(now.AddDate(0, 0, 3))}
	subs.rows["lapsed"] = &models.Subscription{TenantID: "lapsed", PlanID: "pro", Status: models.StatusActive, CurrentPeriodEnd: ptrTime(now.AddDate(0, 0, -1))}
	subs.rows["canceled"] = &models.Subscription{TenantID: "canceled", PlanID: "pro", Status: models.StatusCanceled}
	subs.rows["forever"] = &models.Subscription{TenantID: "forever", PlanID: "pro", Status: models.StatusTrial}

	svc := NewEntitlementService(store, subs, nil)
	svc.now = func() time.Time { return now }

	cases := []struct {
		tenant, module string
		allowed        bool
		reason         string
	}{
		{"active", "marketplace", true, ""},
		{"forever", "marketplace", true, ""},
		{"active", "finance", false, ReasonModuleDisabled},
		{"active", "hr", false, ReasonModuleNotInPlan},
		{"lapsed", "marketplace", false, ReasonExpired},
		{"canceled", "marketplace", false, ReasonInactive},
		{"unknown", "marketplace", false, ReasonNoSubscription},
	}
	for _, tc := range cases {
		t.Run(tc.tenant+"/"+tc.module, func(t *testing.T) {
			e, err := svc.CheckEntitlement(context.Background(), tc.tenant, tc.module)
			require.NoError(t, err)
			assert.Equal(t, tc.allowed, e.Allowed)
			assert.Equal(t, tc.reason, e.Reason)
		})
	}
}

func TestCheckEntitlement_CachedUntilRuleChanges(t *testing.T) {
	store := newFakePlanStore()
	subs := newFakeSubscriptionStore()
	subs.rows["T"] = &models.Subscription{TenantID: "T", PlanID: "pro", Status: models.StatusActive}
	c := newFakeEntitlementCache()
	svc := NewEntitlementService(store, subs, c)
	ctx := context.Background()

	e, err := svc.CheckEntitlement(ctx, "T", "finance")
	require.NoError(t, err)
	assert.False(t, e.Allowed)
	assert.Contains(t, c.entries, "T|finance")

	require.NoError(t, svc.UpsertPlanModuleRule(ctx, &models.PlanModuleRule{PlanID: "pro", ModuleID: "finance", IsEnabled: true}))
	assert.Equal(t, 1, c.all)

	e, err = svc.CheckEntitlement(ctx, "T", "finance")
	require.NoError(t, err)
	assert.True(t, e.Allowed)
}
