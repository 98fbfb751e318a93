package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/gtd_backoffice/internal/metrics"
	"github.com/GTDGit/gtd_backoffice/internal/models"
	"github.com/GTDGit/gtd_backoffice/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body utils.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	return body.Error.Code
}

func TestTenantMiddleware(t *testing.T) {
	r := gin.New()
	r.GET("/x", TenantMiddleware(), func(c *gin.Context) {
		c.String(200, TenantID(c))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, 400, w.Code)
	assert.Equal(t, "TENANT_REQUIRED", errorCode(t, w))

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(TenantHeader, " tenant-a ")
	r.ServeHTTP(w, req)
	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "tenant-a", w.Body.String())
}

type fakeChecker struct {
	ent *models.Entitlement
	err error
}

func (f fakeChecker) CheckEntitlement(ctx context.Context, tenantID, moduleID string) (*models.Entitlement, error) {
	if f.err != nil {
		return nil, f.err
	}
	e := *f.ent
	e.TenantID = tenantID
	e.ModuleID = moduleID
	return &e, nil
}

func entitlementRouter(checker EntitlementChecker) *gin.Engine {
	r := gin.New()
	r.GET("/x", TenantMiddleware(), RequireModule(checker, "finance"), func(c *gin.Context) {
		c.Status(204)
	})
	return r
}

func tenantRequest() *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(TenantHeader, "T")
	return req
}

func TestRequireModule(t *testing.T) {
	before := testutil.ToFloat64(metrics.EntitlementDenials.WithLabelValues("finance"))

	w := httptest.NewRecorder()
	entitlementRouter(fakeChecker{ent: &models.Entitlement{Allowed: true}}).ServeHTTP(w, tenantRequest())
	assert.Equal(t, 204, w.Code)

	w = httptest.NewRecorder()
	entitlementRouter(fakeChecker{ent: &models.Entitlement{Allowed: false, Reason: "module_disabled"}}).ServeHTTP(w, tenantRequest())
	assert.Equal(t, 403, w.Code)
	assert.Equal(t, "MODULE_NOT_ENTITLED", errorCode(t, w))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.EntitlementDenials.WithLabelValues("finance")))

	w = httptest.NewRecorder()
	entitlementRouter(fakeChecker{err: errors.New("redis down")}).ServeHTTP(w, tenantRequest())
	assert.Equal(t, 500, w.Code)
}

func TestJWTMiddleware(t *testing.T) {
	utils.SetJWTSecret("test-secret")
	r := gin.New()
	r.GET("/x", NewJWTMiddleware(nil).Handle(), func(c *gin.Context) {
		c.JSON(200, gin.H{"admin": AdminID(c)})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, 401, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	r.ServeHTTP(w, req)
	assert.Equal(t, 401, w.Code)
	assert.Equal(t, "INVALID_TOKEN", errorCode(t, w))

	token, err := utils.GenerateJWT(42, "ops@example.com")
	require.NoError(t, err)
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	assert.Equal(t, 200, w.Code)
	assert.JSONEq(t, `{"admin":42}`, w.Body.String())
}

func TestJWTMiddleware_RateLimitsFailures(t *testing.T) {
	utils.SetJWTSecret("test-secret")
	r := gin.New()
	r.GET("/x", NewJWTMiddleware(NewInvalidAuthRateLimiter(2, time.Minute)).Handle(), func(c *gin.Context) {
		c.Status(200)
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{401, 401, 429}, codes)
}

func TestInvalidAuthRateLimiter_WindowResets(t *testing.T) {
	rl := NewInvalidAuthRateLimiter(2, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("1.1.1.1"))
	assert.True(t, rl.Allow("1.1.1.1"))
	assert.True(t, rl.Blocked("1.1.1.1"))
	assert.False(t, rl.Allow("1.1.1.1"))
	assert.True(t, rl.Allow("2.2.2.2"), "limits are per IP")

	now = now.Add(2 * time.Minute)
	assert.False(t, rl.Blocked("1.1.1.1"))
	assert.True(t, rl.Allow("1.1.1.1"))

	rl.evict()
	rl.mu.Lock()
	_, stale := rl.attempts["2.2.2.2"]
	rl.mu.Unlock()
	assert.False(t, stale)
}

func TestCORSMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware([]string{"admin.example.com"}))
	r.GET("/x", func(c *gin.Context) { c.Status(200) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://admin.example.com:443")
	r.ServeHTTP(w, req)
	assert.Equal(t, 204, w.Code)
	assert.Equal(t, "https://admin.example.com:443", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-Tenant-ID")

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example.net")
	r.ServeHTTP(w, req)
	assert.Equal(t, 200, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsAndLoggingMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(LoggingMiddleware(), MetricsMiddleware())
	r.GET("/items/:id", func(c *gin.Context) { c.Status(201) })

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/items/:id", "201")
	before := testutil.ToFloat64(counter)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/items/7", nil)
	req.Header.Set("X-Request-ID", "abc123")
	r.ServeHTTP(w, req)

	assert.Equal(t, 201, w.Code)
	assert.Equal(t, "abc123", w.Header().Get("X-Request-ID"))
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}
