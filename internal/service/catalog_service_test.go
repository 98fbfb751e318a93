package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/gtd_backoffice/internal/models"
	"github.com/GTDGit/gtd_backoffice/internal/repository"
	"github.com/GTDGit/gtd_backoffice/internal/utils"
)

type fakeCatalogProducts struct {
	products map[int]*models.Product
	nextID   int
}

func (f *fakeCatalogProducts) List(ctx context.Context, tenantID string, filter repository.ProductFilter) ([]models.Product, int, error) {
	var out []models.Product
	for _, p := range f.products {
		if p.TenantID == tenantID {
			out = append(out, *p)
		}
	}
	return out, len(out), nil
}

func (f *fakeCatalogProducts) GetByID(ctx context.Context, tenantID string, id int) (*models.Product, error) {
	p, ok := f.products[id]
	if !ok || p.TenantID != tenantID {
		return nil, sql.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

func (f *fakeCatalogProducts) codeTaken(p *models.Product) bool {
	for _, existing := range f.products {
		if existing.TenantID == p.TenantID && existing.Code == p.Code && existing.ID != p.ID {
			return true
		}
	}
	return false
}

func (f *fakeCatalogProducts) Create(ctx context.Context, q sqlx.ExtContext, p *models.Product) error {
	if f.codeTaken(p) {
		return &pq.Error{Code: "23505", Constraint: "products_tenant_id_code_key"}
	}
	f.nextID++
	p.ID = f.nextID
	cp := *p
	f.products[p.ID] = &cp
	return nil
}

func (f *fakeCatalogProducts) Update(ctx context.Context, p *models.Product) error {
	existing, ok := f.products[p.ID]
	if !ok || existing.TenantID != p.TenantID {
		return sql.ErrNoRows
	}
	if f.codeTaken(p) {
		return &pq.Error{Code: "23505", Constraint: "products_tenant_id_code_key"}
	}
	cp := *p
	f.products[p.ID] = &cp
	return nil
}

type fakeCatalogMarkets struct {
	*fakeMirrorStore
	nextID int
}

func (f *fakeCatalogMarkets) ListConnections(ctx context.Context, tenantID string) ([]models.MarketplaceConnection, error) {
	var out []models.MarketplaceConnection
	for _, c := range f.connections {
		if c.TenantID == tenantID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCatalogMarkets) CreateConnection(ctx context.Context, q sqlx.ExtContext, c *models.MarketplaceConnection) error {
	f.nextID++
	c.ID = f.nextID
	f.connections[c.ID] = *c
	return nil
}

func (f *fakeCatalogMarkets) SetConnectionActive(ctx context.Context, tenantID string, id int, active bool) error {
	c, ok := f.connections[id]
	if !ok || c.TenantID != tenantID {
		return sql.ErrNoRows
	}
	c.IsActive = active
	f.connections[id] = c
	return nil
}

func (f *fakeCatalogMarkets) ListMirrorsByProduct(ctx context.Context, tenantID string, productID int) ([]models.ProductMarketplace, error) {
	var out []models.ProductMarketplace
	for _, m := range f.mirrors {
		if m.TenantID == tenantID && m.ProductID == productID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func newCatalogFixture() (*CatalogService, *fakeCatalogProducts, *fakeCatalogMarkets, *fakeRegistrar) {
	products := &fakeCatalogProducts{products: map[int]*models.Product{}, nextID: 10}
	markets := &fakeCatalogMarkets{fakeMirrorStore: newFakeMirrorStore(), nextID: 100}
	reg := newFakeRegistrar()
	return NewCatalogService(products, markets, reg, &fakeTx{}, nil), products, markets, reg
}

func TestCreateProduct_RegistersTenantAndRejectsDuplicateCode(t *testing.T) {
	svc, products, _, reg := newCatalogFixture()
	ctx := context.Background()

	p := &models.Product{Code: " SKU-1 ", Name: "Kopi Bubuk", Stock: 5, CostPrice: dec("12.345"), SalePrice: dec("20")}
	require.NoError(t, svc.CreateProduct(ctx, "T", p))
	assert.Equal(t, "SKU-1", p.Code)
	assert.Equal(t, "T", p.TenantID)
	assert.True(t, p.CostPrice.Equal(dec("12.35")))
	assert.Equal(t, 1, reg.registered["T"])
	assert.Len(t, products.products, 1)

	err := svc.CreateProduct(ctx, "T", &models.Product{Code: "SKU-1", Name: "Other"})
	assert.ErrorIs(t, err, utils.ErrDuplicateCode)

	require.NoError(t, svc.CreateProduct(ctx, "U", &models.Product{Code: "SKU-1", Name: "Same code, other tenant"}))
}

func TestCreateProduct_NewTenantRefreshesDirectory(t *testing.T) {
	products := &fakeCatalogProducts{products: map[int]*models.Product{}, nextID: 10}
	markets := &fakeCatalogMarkets{fakeMirrorStore: newFakeMirrorStore(), nextID: 100}
	dir := &fakeInvalidator{}
	svc := NewCatalogService(products, markets, newFakeRegistrar(), &fakeTx{}, dir)
	ctx := context.Background()

	require.NoError(t, svc.CreateProduct(ctx, "T", &models.Product{Code: "A", Name: "Alpha"}))
	assert.Equal(t, 1, dir.directory)

	require.NoError(t, svc.CreateProduct(ctx, "T", &models.Product{Code: "B", Name: "Beta"}))
	assert.Equal(t, 1, dir.directory)

	require.NoError(t, svc.CreateConnection(ctx, "U", &models.MarketplaceConnection{Platform: "shopee", StoreName: "U Store"}))
	assert.Equal(t, 2, dir.directory)
}

func TestCreateProduct_Validation(t *testing.T) {
	svc, _, _, reg := newCatalogFixture()
	ctx := context.Background()

	assert.ErrorIs(t, svc.CreateProduct(ctx, "T", &models.Product{Code: "", Name: "X"}), utils.ErrValidation)
	assert.ErrorIs(t, svc.CreateProduct(ctx, "T", &models.Product{Code: "A", Name: "X", Stock: -1}), utils.ErrValidation)
	assert.ErrorIs(t, svc.CreateProduct(ctx, "T", &models.Product{Code: "A", Name: "X", SalePrice: dec("-1")}), utils.ErrInvalidPrice)
	assert.Empty(t, reg.registered)
}

func TestUpdateAndGetProduct(t *testing.T) {
	svc, _, _, _ := newCatalogFixture()
	ctx := context.Background()

	a := &models.Product{Code: "A", Name: "Alpha"}
	b := &models.Product{Code: "B", Name: "Beta"}
	require.NoError(t, svc.CreateProduct(ctx, "T", a))
	require.NoError(t, svc.CreateProduct(ctx, "T", b))

	upd := &models.Product{ID: a.ID, Code: "A", Name: "Alpha 2", SalePrice: dec("9")}
	require.NoError(t, svc.UpdateProduct(ctx, "T", upd))
	got, err := svc.GetProduct(ctx, "T", a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alpha 2", got.Name)

	assert.ErrorIs(t, svc.UpdateProduct(ctx, "T", &models.Product{ID: a.ID, Code: "B", Name: "Clash"}), utils.ErrDuplicateCode)
	assert.ErrorIs(t, svc.UpdateProduct(ctx, "other", &models.Product{ID: a.ID, Code: "A", Name: "X"}), utils.ErrProductNotFound)

	_, err = svc.GetProduct(ctx, "other", a.ID)
	assert.ErrorIs(t, err, utils.ErrProductNotFound)

	list, total, err := svc.ListProducts(ctx, "T", repository.ProductFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, list, 2)
}

func TestConnections(t *testing.T) {
	svc, _, markets, reg := newCatalogFixture()
	ctx := context.Background()

	c := &models.MarketplaceConnection{Platform: " Shopee ", StoreName: "Toko Maju", IsActive: true}
	require.NoError(t, svc.CreateConnection(ctx, "T", c))
	assert.Equal(t, "shopee", c.Platform)
	assert.Equal(t, 1, reg.registered["T"])

	assert.ErrorIs(t, svc.CreateConnection(ctx, "T", &models.MarketplaceConnection{Platform: "shopee"}), utils.ErrValidation)

	require.NoError(t, svc.SetConnectionActive(ctx, "T", c.ID, false))
	assert.False(t, markets.connections[c.ID].IsActive)
	assert.ErrorIs(t, svc.SetConnectionActive(ctx, "other", c.ID, true), utils.ErrMarketplaceNotFound)

	conns, err := svc.ListConnections(ctx, "T")
	require.NoError(t, err)
	assert.Len(t, conns, 1)
}

func TestMirrorReads(t *testing.T) {
	svc, products, markets, _ := newCatalogFixture()
	ctx := context.Background()

	products.products[10] = &models.Product{ID: 10, TenantID: "T", Code: "P-10", Name: "Mug"}
	markets.connections[1] = models.MarketplaceConnection{ID: 1, TenantID: "T", Platform: "shopee", IsActive: true}
	markets.mirrors[500] = &models.ProductMarketplace{ID: 500, TenantID: "T", ProductID: 10, MarketplaceID: 1, RemotePrice: dec("15")}

	rows, err := svc.ListMirrors(ctx, "T", 1)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, err = svc.ListMirrors(ctx, "other", 1)
	assert.ErrorIs(t, err, utils.ErrMarketplaceNotFound)

	rows, err = svc.ListProductMirrors(ctx, "T", 10)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, err = svc.ListProductMirrors(ctx, "T", 99)
	assert.ErrorIs(t, err, utils.ErrProductNotFound)

	m, err := svc.GetMirror(ctx, "T", 500)
	require.NoError(t, err)
	assert.True(t, m.RemotePrice.Equal(dec("15")))

	_, err = svc.GetMirror(ctx, "other", 500)
	assert.ErrorIs(t, err, utils.ErrMirrorNotFound)
}
