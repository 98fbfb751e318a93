package service

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/gtd_backoffice/internal/models"
	"github.com/GTDGit/gtd_backoffice/pkg/identity"
)

// TxRunner runs fn inside one database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(q sqlx.ExtContext) error) error
}

// TenantRegistrar records a tenant the first time a resource is created for it.
type TenantRegistrar interface {
	Register(ctx context.Context, q sqlx.ExtContext, tenantID string) (created bool, err error)
}

// EntitlementInvalidator drops cached entitlement answers.
type EntitlementInvalidator interface {
	InvalidateTenant(ctx context.Context, tenantID string) error
	InvalidateAll(ctx context.Context) error
}

// DirectoryInvalidator drops cached directory listings.
type DirectoryInvalidator interface {
	Invalidate(ctx context.Context) error
}

// refreshDirectory drops cached listings once a tenant appears or changes.
// A nil directory is a no-op.
func refreshDirectory(ctx context.Context, directory DirectoryInvalidator, tenantID string) {
	if directory == nil {
		return
	}
	if err := directory.Invalidate(ctx); err != nil {
		log.Warn().Err(err).Str("tenant_id", tenantID).Msg("Failed to invalidate directory cache")
	}
}

// IdentityProvider is the hosted identity provider's admin user API.
type IdentityProvider interface {
	CreateUser(ctx context.Context, email, password, fullName string) (*identity.User, error)
	DeleteUser(ctx context.Context, userID string) error
	ListUsers(ctx context.Context, page, perPage int) ([]identity.User, error)
}

// MarketplaceReader resolves a tenant's marketplace connection.
type MarketplaceReader interface {
	GetConnection(ctx context.Context, tenantID string, id int) (*models.MarketplaceConnection, error)
}
