package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/gtd_backoffice/internal/utils"
)

// TenantHeader carries the tenant a tenant-scoped request acts for.
const TenantHeader = "X-Tenant-ID"

const tenantKey = "tenant_id"

// TenantMiddleware requires X-Tenant-ID and stores it on the context.
// Handlers must read it through TenantID.
func TenantMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := strings.TrimSpace(c.GetHeader(TenantHeader))
		if tenantID == "" {
			utils.Error(c, 400, utils.ErrTenantRequired.Error(), "X-Tenant-ID header is required")
			c.Abort()
			return
		}
		c.Set(tenantKey, tenantID)
		c.Next()
	}
}

// TenantID returns the tenant of the request, or "" outside tenant routes.
func TenantID(c *gin.Context) string {
	return c.GetString(tenantKey)
}
