package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthHandler 健康检查与运行状态
type HealthHandler struct {
	started   time.Time
	version   string
	providers func(ctx context.Context) interface{}
	stats     func() interface{}
}

// NewHealthHandler creates the handler. providers and stats may be nil.
func NewHealthHandler(version string, providers func(ctx context.Context) interface{}, stats func() interface{}) *HealthHandler {
	return &HealthHandler{
		started:   time.Now(),
		version:   version,
		providers: providers,
		stats:     stats,
	}
}

// Health GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	body := gin.H{
		"status":         "ok",
		"version":        h.version,
		"time":           time.Now().Unix(),
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	}
	if h.providers != nil {
		body["llm_providers"] = h.providers(c.Request.Context())
	}
	c.JSON(http.StatusOK, body)
}

// Stats GET /api/v1/stats
func (h *HealthHandler) Stats(c *gin.Context) {
	if h.stats == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "stats disabled"})
		return
	}
	c.JSON(http.StatusOK, h.stats())
}
