package api

import (
	"context"
	"net/http"
	"time"

	"rendiconto/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// HealthHandler liveness plus a database ping
type HealthHandler struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewHealthHandler creates the health handler
func NewHealthHandler(db *gorm.DB, log *zap.Logger) *HealthHandler {
	return &HealthHandler{db: db, log: log}
}

// Health reports service status and whether the caller sent a valid token
// @Summary Stato del servizio
// @Tags Sistema
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{} "Database non raggiungibile"
// @Router /api/health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	body := gin.H{
		"status":        "ok",
		"authenticated": middleware.GetCurrentUserID(c) != 0,
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		h.log.Warn("database non raggiungibile", zap.Error(err))
		body["status"] = "degraded"
		body["database"] = "down"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	body["database"] = "up"
	c.JSON(http.StatusOK, body)
}
