package handler

import (
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/gtd_backoffice/internal/sse"
	"github.com/GTDGit/gtd_backoffice/internal/utils"
)

// SSEHandler streams price sync and subscription events to admin dashboards.
type SSEHandler struct {
	hub       *sse.Hub
	heartbeat time.Duration
}

const defaultHeartbeat = 30 * time.Second

// NewSSEHandler creates a new SSEHandler that pings idle streams every
// heartbeat. A non-positive heartbeat uses 30s.
func NewSSEHandler(hub *sse.Hub, heartbeat time.Duration) *SSEHandler {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return &SSEHandler{hub: hub, heartbeat: heartbeat}
}

// Stream handles GET /v1/admin/events?token=<jwt>
// EventSource API cannot set custom headers, so JWT is passed via query param.
func (h *SSEHandler) Stream(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		utils.Error(c, 401, "UNAUTHORIZED", "Missing token query parameter")
		return
	}

	claims, err := utils.ValidateJWT(token)
	if err != nil {
		utils.Error(c, 401, "INVALID_TOKEN", "Invalid or expired token")
		return
	}

	clientID := fmt.Sprintf("admin-%d-%d", claims.UserID, time.Now().UnixNano())

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // Disable nginx buffering

	client := h.hub.Register(clientID)
	defer h.hub.Unregister(clientID)

	c.SSEvent("connected", gin.H{
		"clientId":  clientID,
		"timestamp": time.Now().Format(time.RFC3339),
	})
	c.Writer.Flush()

	log.Info().Str("client_id", clientID).Int("admin_id", claims.UserID).Msg("Admin event stream started")

	c.Stream(func(w io.Writer) bool {
		select {
		case data, ok := <-client.Events:
			if !ok {
				return false
			}
			c.SSEvent("event", string(data))
			return true
		case <-time.After(h.heartbeat):
			c.SSEvent("ping", gin.H{"timestamp": time.Now().Format(time.RFC3339)})
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
