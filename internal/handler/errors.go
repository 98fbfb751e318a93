package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/gtd_backoffice/internal/middleware"
	"github.com/GTDGit/gtd_backoffice/internal/service"
	"github.com/GTDGit/gtd_backoffice/internal/utils"
)

// errorStatus maps service sentinels to HTTP status codes. The sentinel text
// is the API error code.
var errorStatus = []struct {
	err    error
	status int
}{
	{utils.ErrValidation, 400},
	{utils.ErrInvalidStatus, 400},
	{utils.ErrInvalidPrice, 400},
	{utils.ErrInvalidOperation, 400},
	{utils.ErrInvalidAmount, 400},
	{utils.ErrMarketplaceInactive, 400},
	{utils.ErrTenantRequired, 400},

	{utils.ErrInvalidCredentials, 401},
	{utils.ErrInvalidToken, 401},
	{utils.ErrAccountInactive, 403},
	{utils.ErrModuleNotEntitled, 403},

	{utils.ErrPlanNotFound, 404},
	{utils.ErrModuleNotFound, 404},
	{utils.ErrRuleNotFound, 404},
	{utils.ErrSubscriptionNotFound, 404},
	{utils.ErrProductNotFound, 404},
	{utils.ErrMarketplaceNotFound, 404},
	{utils.ErrMirrorNotFound, 404},
	{utils.ErrAccountNotFound, 404},
	{utils.ErrContactNotFound, 404},
	{utils.ErrLoanNotFound, 404},
	{utils.ErrInstallmentNotFound, 404},

	{utils.ErrBelowCostThreshold, 409},
	{utils.ErrBulkInProgress, 409},
	{utils.ErrAlreadyLinked, 409},
	{utils.ErrDuplicateCode, 409},
	{utils.ErrEmailAlreadyRegistered, 409},
	{utils.ErrInstallmentAlreadyPaid, 409},

	{utils.ErrProvisioningFailed, 502},
}

// respondError writes err in the standard envelope. Unknown errors are logged
// and reported as INTERNAL_ERROR with fallback as the message.
func respondError(c *gin.Context, err error, fallback string) {
	var below *service.BelowCostError
	if errors.As(err, &below) {
		utils.ErrorWithData(c, 409, utils.ErrBelowCostThreshold.Error(),
			"Price is below the cost margin; resend with confirm=true to apply it",
			gin.H{"costPrice": below.CostPrice, "minPrice": below.MinPrice})
		return
	}

	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			utils.Error(c, e.status, e.err.Error(), err.Error())
			return
		}
	}

	log.Error().
		Err(err).
		Str("request_id", c.GetString("request_id")).
		Str("tenant_id", middleware.TenantID(c)).
		Str("path", c.FullPath()).
		Msg(fallback)
	utils.Error(c, 500, "INTERNAL_ERROR", fallback)
}

// paramID parses a positive integer path parameter. It writes a 400 and
// returns false when the value is invalid.
func paramID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		utils.Error(c, 400, "INVALID_ID", "Invalid "+name)
		return 0, false
	}
	return id, true
}

// queryInt returns the integer query value or def when absent or invalid.
func queryInt(c *gin.Context, key string, def int) int {
	if v := c.Query(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

// bindJSON decodes the body into req, writing a 400 on failure.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "Invalid request body")
		return false
	}
	return true
}
