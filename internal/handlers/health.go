package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/seiixin/gunwadex/internal/cache"
	"github.com/seiixin/gunwadex/internal/logger"
	"go.uber.org/zap"
)

// Health reports whether the database and optional backends respond
// GET /health
func (h *Handlers) Health(c *gin.Context) {
	ctx := c.Request.Context()
	status := http.StatusOK
	checks := gin.H{}

	if sqlDB, err := h.db.DB(); err != nil {
		checks["database"] = "error"
		status = http.StatusServiceUnavailable
	} else if err := sqlDB.PingContext(ctx); err != nil {
		logger.Log.Error("Health check: database ping failed", zap.Error(err))
		checks["database"] = "error"
		status = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	if rc := cache.GetRedisClient(); rc != nil {
		if err := rc.Ping(ctx); err != nil {
			logger.Log.Warn("Health check: redis ping failed", zap.Error(err))
			checks["redis"] = "error"
		} else {
			checks["redis"] = "ok"
		}
	} else {
		checks["redis"] = "disabled"
	}

	if h.search != nil && h.search.Enabled() {
		checks["search"] = "elasticsearch"
	} else {
		checks["search"] = "database"
	}

	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{
		"status":    state,
		"timestamp": time.Now().UTC(),
		"service":   "gunwadex-api",
		"checks":    checks,
	})
}
