package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/gtd_backoffice/internal/utils"
)

var startTime = time.Now()

// Pinger is a dependency the health check probes.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingerFunc adapts a function to Pinger.
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) PingContext(ctx context.Context) error { return f(ctx) }

// HealthHandler provides health endpoint.
type HealthHandler struct {
	db    Pinger
	redis Pinger
}

// NewHealthHandler creates a new HealthHandler. redis may be nil.
func NewHealthHandler(db, redis Pinger) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

// GetHealth responds with service, database and Redis status.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	dbStatus := probe(ctx, h.db)
	redisStatus := probe(ctx, h.redis)

	data := gin.H{
		"version":  "1.0.0",
		"uptime":   int(time.Since(startTime).Seconds()),
		"database": dbStatus,
		"redis":    redisStatus,
	}
	if dbStatus != "connected" {
		data["status"] = "unhealthy"
		utils.ErrorWithData(c, 503, "UNHEALTHY", "Database is unreachable", data)
		return
	}

	data["status"] = "healthy"
	utils.Success(c, 200, "Service is healthy", data)
}

func probe(ctx context.Context, p Pinger) string {
	if p == nil {
		return "disabled"
	}
	if err := p.PingContext(ctx); err != nil {
		return "disconnected"
	}
	return "connected"
}
