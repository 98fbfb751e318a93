package utils

import "errors"

// Common application errors used across services. Handlers map them to API
// error codes with errors.Is, so the message doubles as the code.
var (
	ErrInvalidToken       = errors.New("INVALID_TOKEN")
	ErrInvalidCredentials = errors.New("INVALID_CREDENTIALS")
	ErrAccountInactive    = errors.New("ACCOUNT_INACTIVE")
	ErrTenantRequired     = errors.New("TENANT_REQUIRED")
	ErrValidation         = errors.New("VALIDATION_ERROR")

	ErrPlanNotFound           = errors.New("PLAN_NOT_FOUND")
	ErrModuleNotFound         = errors.New("MODULE_NOT_FOUND")
	ErrRuleNotFound           = errors.New("RULE_NOT_FOUND")
	ErrSubscriptionNotFound   = errors.New("SUBSCRIPTION_NOT_FOUND")
	ErrInvalidStatus          = errors.New("INVALID_STATUS")
	ErrEmailAlreadyRegistered = errors.New("EMAIL_ALREADY_REGISTERED")
	ErrProvisioningFailed     = errors.New("PROVISIONING_FAILED")
	ErrModuleNotEntitled      = errors.New("MODULE_NOT_ENTITLED")

	ErrProductNotFound     = errors.New("PRODUCT_NOT_FOUND")
	ErrMarketplaceNotFound = errors.New("MARKETPLACE_NOT_FOUND")
	ErrMarketplaceInactive = errors.New("MARKETPLACE_INACTIVE")
	ErrMirrorNotFound      = errors.New("MIRROR_NOT_FOUND")
	ErrInvalidPrice        = errors.New("INVALID_PRICE")
	ErrBelowCostThreshold  = errors.New("CONFIRMATION_REQUIRED")
	ErrInvalidOperation    = errors.New("INVALID_OPERATION")
	ErrBulkInProgress      = errors.New("BULK_IN_PROGRESS")
	ErrAlreadyLinked       = errors.New("ALREADY_LINKED")
	ErrDuplicateCode       = errors.New("DUPLICATE_CODE")

	ErrAccountNotFound        = errors.New("ACCOUNT_NOT_FOUND")
	ErrContactNotFound        = errors.New("CONTACT_NOT_FOUND")
	ErrInvalidAmount          = errors.New("INVALID_AMOUNT")
	ErrLoanNotFound           = errors.New("LOAN_NOT_FOUND")
	ErrInstallmentNotFound    = errors.New("INSTALLMENT_NOT_FOUND")
	ErrInstallmentAlreadyPaid = errors.New("INSTALLMENT_ALREADY_PAID")
)
