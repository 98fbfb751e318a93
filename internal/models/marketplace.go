package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// SyncStatus is the state of a mirror row against the remote marketplace.
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusActive  SyncStatus = "active"
	SyncStatusError   SyncStatus = "error"
)

// MarketplaceConnection is one external sales channel account of a tenant.
type MarketplaceConnection struct {
	ID          int             `db:"id" json:"id"`
	TenantID    string          `db:"tenant_id" json:"tenantId"`
	Platform    string          `db:"platform" json:"platform"`
	StoreName   string          `db:"store_name" json:"storeName"`
	Credentials json.RawMessage `db:"credentials" json:"-"`
	IsActive    bool            `db:"is_active" json:"isActive"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updatedAt"`
}

// Product is a tenant catalog entry.
type Product struct {
	ID        int             `db:"id" json:"id"`
	TenantID  string          `db:"tenant_id" json:"tenantId"`
	Code      string          `db:"code" json:"code"`
	Name      string          `db:"name" json:"name"`
	Stock     int             `db:"stock" json:"stock"`
	CostPrice decimal.Decimal `db:"cost_price" json:"costPrice"`
	SalePrice decimal.Decimal `db:"sale_price" json:"salePrice"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time       `db:"updated_at" json:"updatedAt"`
}

// ProductMarketplace is a mirror row: the local record of one product's
// listing on one marketplace connection.
type ProductMarketplace struct {
	ID            int              `db:"id" json:"id"`
	TenantID      string           `db:"tenant_id" json:"tenantId"`
	ProductID     int              `db:"product_id" json:"productId"`
	MarketplaceID int              `db:"marketplace_id" json:"marketplaceId"`
	RemoteID      string           `db:"remote_id" json:"remoteId"`
	RemotePrice   decimal.Decimal  `db:"remote_price" json:"remotePrice"`
	RemoteStock   int              `db:"remote_stock" json:"remoteStock"`
	SyncStatus    SyncStatus       `db:"sync_status" json:"syncStatus"`
	LastError     *string          `db:"last_error" json:"lastError,omitempty"`
	LastSyncAt    *time.Time       `db:"last_sync_at" json:"lastSyncAt,omitempty"`
	TargetPrice   *decimal.Decimal `db:"target_price" json:"targetPrice,omitempty"`
	SyncNeeded    bool             `db:"sync_needed" json:"syncNeeded"`
	CreatedAt     time.Time        `db:"created_at" json:"-"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updatedAt"`

	// Joined fields
	ProductCode string          `db:"product_code" json:"productCode,omitempty"`
	ProductName string          `db:"product_name" json:"productName,omitempty"`
	CostPrice   decimal.Decimal `db:"cost_price" json:"costPrice"`
	SalePrice   decimal.Decimal `db:"sale_price" json:"salePrice"`
	Platform    string          `db:"platform" json:"platform,omitempty"`
}
