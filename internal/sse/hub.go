package sse

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/gtd_backoffice/internal/metrics"
)

// EventType defines the SSE event name.
type EventType string

const (
	EventPriceSynced        EventType = "price.synced"
	EventPriceSyncFailed    EventType = "price.sync_failed"
	EventSubscriptionLapsed EventType = "subscription.lapsed"
)

// Event is the payload broadcast to admin SSE clients.
type Event struct {
	Event         EventType `json:"event"`
	TenantID      string    `json:"tenantId"`
	MirrorID      *int      `json:"mirrorId,omitempty"`
	MarketplaceID *int      `json:"marketplaceId,omitempty"`
	Platform      string    `json:"platform,omitempty"`
	Price         *string   `json:"price,omitempty"`
	Error         *string   `json:"error,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// DropPolicy decides which event is lost when a client buffer is full.
type DropPolicy string

const (
	// DropNewest discards the event being broadcast.
	DropNewest DropPolicy = "newest"
	// DropOldest evicts the oldest queued event to make room.
	DropOldest DropPolicy = "oldest"
)

const defaultClientBuffer = 64

// HubConfig sizes per-client queues. Zero values fall back to a 64-event
// buffer and DropNewest.
type HubConfig struct {
	ClientBuffer int
	DropPolicy   DropPolicy
}

// Client represents a connected SSE admin client.
type Client struct {
	ID     string
	Events chan []byte
}

// Hub manages SSE client connections and broadcasts.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	buffer  int
	policy  DropPolicy
}

// NewHub creates a new SSE hub.
func NewHub(cfg HubConfig) *Hub {
	if cfg.ClientBuffer <= 0 {
		cfg.ClientBuffer = defaultClientBuffer
	}
	if cfg.DropPolicy != DropOldest {
		cfg.DropPolicy = DropNewest
	}
	return &Hub{
		clients: make(map[string]*Client),
		buffer:  cfg.ClientBuffer,
		policy:  cfg.DropPolicy,
	}
}

// Register adds a new client and returns it for streaming.
func (h *Hub) Register(clientID string) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	c := &Client{
		ID:     clientID,
		Events: make(chan []byte, h.buffer),
	}
	h.clients[clientID] = c
	log.Info().Str("client_id", clientID).Int("total_clients", len(h.clients)).Msg("SSE client connected")
	return c
}

// Unregister removes a client and closes its channel.
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.clients[clientID]; ok {
		close(c.Events)
		delete(h.clients, clientID)
		log.Info().Str("client_id", clientID).Int("total_clients", len(h.clients)).Msg("SSE client disconnected")
	}
}

// Broadcast sends an event to all connected clients without blocking. When a
// client buffer is full one event is dropped according to the hub's policy.
func (h *Hub) Broadcast(event *Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal SSE event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		h.send(c, data)
	}
}

func (h *Hub) send(c *Client, data []byte) {
	select {
	case c.Events <- data:
		return
	default:
	}

	if h.policy == DropOldest {
		select {
		case <-c.Events:
		default:
		}
		select {
		case c.Events <- data:
		default:
			// a concurrent broadcast refilled the slot; data is lost instead
		}
	}

	metrics.RecordEventDrop(string(h.policy))
	log.Warn().Str("client_id", c.ID).Str("policy", string(h.policy)).Msg("SSE client buffer full, dropping event")
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
