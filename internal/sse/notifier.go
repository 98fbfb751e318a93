package sse

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/GTDGit/gtd_backoffice/internal/models"
)

// HubNotifier turns background job outcomes into hub broadcasts.
type HubNotifier struct {
	hub *Hub
	now func() time.Time
}

// NewHubNotifier creates a notifier backed by the given Hub.
func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub, now: time.Now}
}

func (n *HubNotifier) NotifyPriceSynced(row models.ProductMarketplace, price decimal.Decimal) {
	if n.hub.ClientCount() == 0 {
		return
	}
	e := n.mirrorEvent(EventPriceSynced, row)
	p := price.StringFixed(2)
	e.Price = &p
	n.hub.Broadcast(e)
}

func (n *HubNotifier) NotifyPriceSyncFailed(row models.ProductMarketplace, errMsg string) {
	if n.hub.ClientCount() == 0 {
		return
	}
	e := n.mirrorEvent(EventPriceSyncFailed, row)
	e.Error = &errMsg
	n.hub.Broadcast(e)
}

func (n *HubNotifier) NotifySubscriptionLapsed(tenantID string) {
	if n.hub.ClientCount() == 0 {
		return
	}
	n.hub.Broadcast(&Event{Event: EventSubscriptionLapsed, TenantID: tenantID, Timestamp: n.now()})
}

func (n *HubNotifier) mirrorEvent(eventType EventType, row models.ProductMarketplace) *Event {
	id, mp := row.ID, row.MarketplaceID
	return &Event{
		Event:         eventType,
		TenantID:      row.TenantID,
		MirrorID:      &id,
		MarketplaceID: &mp,
		Platform:      row.Platform,
		Timestamp:     n.now(),
	}
}

// NopNotifier is a no-op implementation for when SSE is not needed.
type NopNotifier struct{}

func (NopNotifier) NotifyPriceSynced(row models.ProductMarketplace, price decimal.Decimal) {}
func (NopNotifier) NotifyPriceSyncFailed(row models.ProductMarketplace, errMsg string)     {}
func (NopNotifier) NotifySubscriptionLapsed(tenantID string)                               {}
