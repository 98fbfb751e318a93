package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/gtd_backoffice/internal/metrics"
	"github.com/GTDGit/gtd_backoffice/internal/models"
	"github.com/GTDGit/gtd_backoffice/internal/utils"
)

// EntitlementChecker answers whether a tenant may use a module.
type EntitlementChecker interface {
	CheckEntitlement(ctx context.Context, tenantID, moduleID string) (*models.Entitlement, error)
}

// RequireModule rejects tenant requests whose plan does not enable moduleID.
// It must run after TenantMiddleware.
func RequireModule(checker EntitlementChecker, moduleID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := TenantID(c)
		ent, err := checker.CheckEntitlement(c.Request.Context(), tenantID, moduleID)
		if err != nil {
			log.Error().Err(err).Str("tenant_id", tenantID).Str("module", moduleID).Msg("Entitlement check failed")
			utils.Error(c, 500, "INTERNAL_ERROR", "Failed to check entitlement")
			c.Abort()
			return
		}
		if !ent.Allowed {
			metrics.RecordEntitlementDenial(moduleID)
			utils.Error(c, 403, utils.ErrModuleNotEntitled.Error(), "Module "+moduleID+" is not enabled: "+ent.Reason)
			c.Abort()
			return
		}
		c.Set("entitlement", ent)
		c.Next()
	}
}
