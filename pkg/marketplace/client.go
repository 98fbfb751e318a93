package marketplace

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// Config holds the integration gateway settings.
type Config struct {
	GatewayURL string
	Token      string
	Timeout    time.Duration
}

// PriceUpdate is one listing price push.
type PriceUpdate struct {
	TenantID      string          `json:"tenantId"`
	MarketplaceID int             `json:"marketplaceId"`
	Platform      string          `json:"platform"`
	RemoteID      string          `json:"remoteId"`
	Price         decimal.Decimal `json:"price"`
}

// gatewayResponse is the gateway's envelope.
type gatewayResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Client pushes listing changes to the marketplace integration gateway, which
// owns the per-platform APIs and credentials.
type Client struct {
	http *resty.Client
}

// NewClient constructs a new gateway client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	c := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.GatewayURL, "/")).
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.Token).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)
	return &Client{http: c}
}

// PushPrice sends a price update for one listing.
func (c *Client) PushPrice(ctx context.Context, u PriceUpdate) error {
	var out gatewayResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(u).
		SetResult(&out).
		SetError(&out).
		SetPathParam("platform", u.Platform).
		SetPathParam("remoteId", u.RemoteID).
		Put("/listings/{platform}/{remoteId}/price")
	if err != nil {
		return fmt.Errorf("marketplace push: %w", err)
	}
	if resp.IsError() {
		msg := out.Message
		if msg == "" {
			msg = resp.Status()
		}
		return fmt.Errorf("marketplace push: status %d: %s", resp.StatusCode(), msg)
	}
	if !out.Success {
		return fmt.Errorf("marketplace push rejected: %s", out.Message)
	}
	return nil
}
