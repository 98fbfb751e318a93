package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/gtd_backoffice/internal/middleware"
	"github.com/GTDGit/gtd_backoffice/internal/models"
	"github.com/GTDGit/gtd_backoffice/internal/service"
	"github.com/GTDGit/gtd_backoffice/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.TenantHeader, "T")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func TestRespondError_MapsSentinels(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: lender is required", utils.ErrValidation), 400, "VALIDATION_ERROR"},
		{utils.ErrMirrorNotFound, 404, "MIRROR_NOT_FOUND"},
		{utils.ErrAlreadyLinked, 409, "ALREADY_LINKED"},
		{utils.ErrInstallmentAlreadyPaid, 409, "INSTALLMENT_ALREADY_PAID"},
		{fmt.Errorf("%w: identity down", utils.ErrProvisioningFailed), 502, "PROVISIONING_FAILED"},
		{errors.New("connection reset"), 500, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			r := gin.New()
			r.GET("/x", func(c *gin.Context) { respondError(c, tc.err, "failed") })
			w, env := doJSON(t, r, http.MethodGet, "/x", nil)
			assert.Equal(t, tc.status, w.Code)
			assert.False(t, env.Success)
			assert.Equal(t, tc.code, env.Error.Code)
		})
	}
}

type fakePricing struct {
	update func(price decimal.Decimal, confirmed bool) (*models.ProductMarketplace, error)
	bulk   func(req service.BulkPriceRequest) (*service.BulkResult, error)
}

func (f fakePricing) UpdateListingPrice(ctx context.Context, tenantID string, mirrorID int, newPrice decimal.Decimal, confirmed bool) (*models.ProductMarketplace, error) {
	return f.update(newPrice, confirmed)
}

func (f fakePricing) BulkUpdatePrices(ctx context.Context, tenantID string, req service.BulkPriceRequest) (*service.BulkResult, error) {
	return f.bulk(req)
}

func pricingRouter(p PriceUpdater) *gin.Engine {
	h := NewPricingHandler(p)
	r := gin.New()
	g := r.Group("/v1/tenant", middleware.TenantMiddleware())
	g.PUT("/mirrors/:id/price", h.UpdateListingPrice)
	g.POST("/prices/bulk", h.BulkUpdatePrices)
	return r
}

func TestUpdateListingPrice_BelowCostNeedsConfirmation(t *testing.T) {
	p := fakePricing{update: func(price decimal.Decimal, confirmed bool) (*models.ProductMarketplace, error) {
		if err := service.CheckCostMargin(decimal.NewFromInt(100), price, confirmed); err != nil {
			return nil, err
		}
		return &models.ProductMarketplace{ID: 5, RemotePrice: price}, nil
	}}
	r := pricingRouter(p)

	w, env := doJSON(t, r, http.MethodPut, "/v1/tenant/mirrors/5/price", gin.H{"price": "100"})
	assert.Equal(t, 409, w.Code)
	assert.Equal(t, "CONFIRMATION_REQUIRED", env.Error.Code)
	var data struct {
		MinPrice decimal.Decimal `json:"minPrice"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.True(t, data.MinPrice.Equal(decimal.NewFromInt(105)))

	w, env = doJSON(t, r, http.MethodPut, "/v1/tenant/mirrors/5/price", gin.H{"price": "100", "confirm": true})
	assert.Equal(t, 200, w.Code)
	assert.True(t, env.Success)

	w, _ = doJSON(t, r, http.MethodPut, "/v1/tenant/mirrors/abc/price", gin.H{"price": "100"})
	assert.Equal(t, 400, w.Code)
}

func TestBulkUpdatePrices_ReturnsRowReport(t *testing.T) {
	var got service.BulkPriceRequest
	p := fakePricing{bulk: func(req service.BulkPriceRequest) (*service.BulkResult, error) {
		got = req
		if req.SourceMarketID == "2" {
			return nil, utils.ErrBulkInProgress
		}
		return &service.BulkResult{Success: true, Count: 2, Skipped: 1, Errors: []service.BulkRowError{}}, nil
	}}
	r := pricingRouter(p)

	w, env := doJSON(t, r, http.MethodPost, "/v1/tenant/prices/bulk", gin.H{
		"sourceMarketId": "base_price", "targetMarketId": 2, "operation": "inc_percent", "value": "10",
	})
	require.Equal(t, 200, w.Code)
	assert.Equal(t, "inc_percent", got.Operation)
	assert.True(t, got.Value.Equal(decimal.NewFromInt(10)))

	var res service.BulkResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, 1, res.Skipped)

	w, env = doJSON(t, r, http.MethodPost, "/v1/tenant/prices/bulk", gin.H{
		"sourceMarketId": "2", "targetMarketId": 3, "operation": "copy",
	})
	assert.Equal(t, 409, w.Code)
	assert.Equal(t, "BULK_IN_PROGRESS", env.Error.Code)
}

type fakeLoans struct {
	req service.LoanRequest
}

func (f *fakeLoans) CreateLoan(ctx context.Context, tenantID string, req service.LoanRequest) (*models.Loan, error) {
	f.req = req
	return &models.Loan{ID: 1, TenantID: tenantID, Lender: req.Lender}, nil
}

func (f *fakeLoans) GetLoan(ctx context.Context, tenantID string, id int) (*models.Loan, error) {
	return nil, utils.ErrLoanNotFound
}

func (f *fakeLoans) PayInstallment(ctx context.Context, tenantID string, installmentID, accountID int) (*service.TransactionResult, error) {
	return nil, utils.ErrInstallmentAlreadyPaid
}

func TestLoanEndpoints(t *testing.T) {
	loans := &fakeLoans{}
	h := NewLedgerHandler(nil, loans)
	r := gin.New()
	g := r.Group("/v1/tenant", middleware.TenantMiddleware())
	g.POST("/loans", h.CreateLoan)
	g.GET("/loans/:id", h.GetLoan)
	g.POST("/installments/:id/pay", h.PayInstallment)

	w, _ := doJSON(t, r, http.MethodPost, "/v1/tenant/loans", gin.H{
		"lender": "Bank", "principal": "1200", "installments": 12, "firstDueDate": "2026-02-01", "accountId": 1,
	})
	assert.Equal(t, 201, w.Code)
	assert.Equal(t, 2026, loans.req.FirstDueDate.Year())
	assert.Equal(t, 2, int(loans.req.FirstDueDate.Month()))

	w, _ = doJSON(t, r, http.MethodPost, "/v1/tenant/loans", gin.H{
		"lender": "Bank", "principal": "1200", "installments": 12, "firstDueDate": "02/01/2026", "accountId": 1,
	})
	assert.Equal(t, 400, w.Code)

	w, env := doJSON(t, r, http.MethodGet, "/v1/tenant/loans/9", nil)
	assert.Equal(t, 404, w.Code)
	assert.Equal(t, "LOAN_NOT_FOUND", env.Error.Code)

	w, env = doJSON(t, r, http.MethodPost, "/v1/tenant/installments/3/pay", gin.H{"accountId": 1})
	assert.Equal(t, 409, w.Code)
	assert.Equal(t, "INSTALLMENT_ALREADY_PAID", env.Error.Code)
}

type fakeDirectory struct {
	filter service.TenantFilter
}

func (f *fakeDirectory) ListTenants(ctx context.Context, filter service.TenantFilter) ([]models.TenantSummary, error) {
	f.filter = filter
	return nil, nil
}

func (f *fakeDirectory) Stats(ctx context.Context) (*service.DirectoryStats, error) {
	return &service.DirectoryStats{Detected: 2}, nil
}

func (f *fakeDirectory) InvalidateCache(ctx context.Context) error { return nil }

func TestListTenants_BindsFilterAndReturnsEmptyArray(t *testing.T) {
	dir := &fakeDirectory{}
	h := NewTenantHandler(dir, nil)
	r := gin.New()
	r.GET("/v1/admin/tenants", h.ListTenants)
	r.GET("/v1/admin/tenants/stats", h.GetStats)

	w, env := doJSON(t, r, http.MethodGet, "/v1/admin/tenants?search=acme&status=detected&expiringIn=10_days", nil)
	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "[]", string(env.Data))
	assert.Equal(t, service.TenantFilter{Search: "acme", Status: "detected", ExpiringIn: "10_days"}, dir.filter)

	w, env = doJSON(t, r, http.MethodGet, "/v1/admin/tenants/stats", nil)
	assert.Equal(t, 200, w.Code)
	assert.Contains(t, string(env.Data), `"detected":2`)
}

func TestHealth(t *testing.T) {
	ok := PingerFunc(func(ctx context.Context) error { return nil })
	down := PingerFunc(func(ctx context.Context) error { return errors.New("down") })

	r := gin.New()
	r.GET("/up", NewHealthHandler(ok, nil).GetHealth)
	r.GET("/down", NewHealthHandler(down, ok).GetHealth)

	w, env := doJSON(t, r, http.MethodGet, "/up", nil)
	assert.Equal(t, 200, w.Code)
	assert.Contains(t, string(env.Data), `"redis":"disabled"`)

	w, env = doJSON(t, r, http.MethodGet, "/down", nil)
	assert.Equal(t, 503, w.Code)
	assert.Equal(t, "UNHEALTHY", env.Error.Code)
}
