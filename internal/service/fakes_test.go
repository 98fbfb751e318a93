package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/GTDGit/gtd_backoffice/internal/models"
	"github.com/GTDGit/gtd_backoffice/pkg/identity"
)

// fakeTx runs fn without a real transaction. Stores in these tests apply
// writes immediately, so rollback is simulated by the caller's assertions.
type fakeTx struct {
	calls int
}

func (f *fakeTx) WithTx(ctx context.Context, fn func(q sqlx.ExtContext) error) error {
	f.calls++
	return fn(nil)
}

type fakeRegistrar struct {
	mu         sync.Mutex
	registered map[string]int
}

func newFakeRegistrar() *fakeRegistrar {
	return &fakeRegistrar{registered: map[string]int{}}
}

func (f *fakeRegistrar) Register(ctx context.Context, q sqlx.ExtContext, tenantID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered[tenantID]++
	return f.registered[tenantID] == 1, nil
}

type fakeInvalidator struct {
	tenants   []string
	all       int
	directory int
}

func (f *fakeInvalidator) InvalidateTenant(ctx context.Context, tenantID string) error {
	f.tenants = append(f.tenants, tenantID)
	return nil
}

func (f *fakeInvalidator) InvalidateAll(ctx context.Context) error {
	f.all++
	return nil
}

func (f *fakeInvalidator) Invalidate(ctx context.Context) error {
	f.directory++
	return nil
}

type fakePlans struct {
	plans map[string]models.Plan
}

func (f *fakePlans) GetPlan(ctx context.Context, id string) (*models.Plan, error) {
	p, ok := f.plans[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &p, nil
}

// fakeSubscriptionStore keeps one row per tenant, mirroring the unique
// tenant_id constraint and the upsert statement.
type fakeSubscriptionStore struct {
	rows   map[string]*models.Subscription
	nextID int
}

func newFakeSubscriptionStore() *fakeSubscriptionStore {
	return &fakeSubscriptionStore{rows: map[string]*models.Subscription{}}
}

func (f *fakeSubscriptionStore) GetByTenant(ctx context.Context, tenantID string) (*models.Subscription, error) {
	s, ok := f.rows[tenantID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSubscriptionStore) Upsert(ctx context.Context, q sqlx.ExtContext, sub *models.Subscription) error {
	if existing, ok := f.rows[sub.TenantID]; ok {
		existing.PlanID = sub.PlanID
		existing.Status = sub.Status
		existing.CurrentPeriodEnd = sub.CurrentPeriodEnd
		existing.IsManual = sub.IsManual
		if sub.Note != nil {
			existing.Note = sub.Note
		}
		sub.ID = existing.ID
		sub.StartDate = existing.StartDate
		return nil
	}
	f.nextID++
	sub.ID = f.nextID
	cp := *sub
	f.rows[sub.TenantID] = &cp
	return nil
}

func (f *fakeSubscriptionStore) UpdateStatus(ctx context.Context, tenantID string, status models.SubscriptionStatus) error {
	s, ok := f.rows[tenantID]
	if !ok {
		return sql.ErrNoRows
	}
	s.Status = status
	return nil
}

type fakeProvisioner struct {
	*fakeRegistrar
	profiles       []models.Profile
	companies      []models.CompanySettings
	failCompanyErr error
}

func (f *fakeProvisioner) CreateProfile(ctx context.Context, q sqlx.ExtContext, p *models.Profile) error {
	f.profiles = append(f.profiles, *p)
	return nil
}

func (f *fakeProvisioner) CreateCompanySettings(ctx context.Context, q sqlx.ExtContext, cs *models.CompanySettings) error {
	if f.failCompanyErr != nil {
		return f.failCompanyErr
	}
	f.companies = append(f.companies, *cs)
	return nil
}

type fakeIdentity struct {
	users     map[string]identity.User
	deleted   []string
	deleteErr error
	next      int
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{users: map[string]identity.User{}}
}

func (f *fakeIdentity) CreateUser(ctx context.Context, email, password, fullName string) (*identity.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return nil, identity.ErrEmailExists
		}
	}
	f.next++
	u := identity.User{ID: fmt.Sprintf("user-%d", f.next), Email: email, UserMetadata: identity.UserMetadata{FullName: fullName}}
	f.users[u.ID] = u
	return &u, nil
}

func (f *fakeIdentity) DeleteUser(ctx context.Context, userID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, userID)
	delete(f.users, userID)
	return nil
}

func (f *fakeIdentity) ListUsers(ctx context.Context, page, perPage int) ([]identity.User, error) {
	out := make([]identity.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, nil
}

var errBoom = errors.New("boom")
