package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vend-service/vend_service/internal/domain/services/orders"
	"github.com/vend-service/vend_service/internal/domain/services/reconciliation"
	"github.com/vend-service/vend_service/pkg/logger"
)

// EngineHandlers exposes the reconciliation engine's operational surface.
type EngineHandlers struct {
	service   *reconciliation.Service
	scheduler *reconciliation.Scheduler
	orders    *orders.Service
	logger    *logger.Logger
	startTime time.Time
}

// NewEngineHandlers creates a new engine handlers instance
func NewEngineHandlers(
	service *reconciliation.Service,
	scheduler *reconciliation.Scheduler,
	orderService *orders.Service,
	log *logger.Logger,
) *EngineHandlers {
	return &EngineHandlers{
		service:   service,
		scheduler: scheduler,
		orders:    orderService,
		logger:    log,
		startTime: time.Now(),
	}
}

// Health reports service liveness.
func (h *EngineHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"uptime":    time.Since(h.startTime).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Status reports engine counters for operator dashboards.
func (h *EngineHandlers) Status(c *gin.Context) {
	stats := h.service.StatsSnapshot()
	c.JSON(http.StatusOK, gin.H{
		"pending_orders": h.orders.PendingCount(),
		"matched":        stats.Matched,
		"unmatched":      stats.Unmatched,
		"expired":        stats.Expired,
	})
}

// TriggerCycle runs one reconciliation cycle outside the schedule.
func (h *EngineHandlers) TriggerCycle(c *gin.Context) {
	h.logger.Info("Manual reconciliation cycle requested",
		"request_id", c.GetString("request_id"))

	h.scheduler.RunManualCycle(c.Request.Context())

	c.JSON(http.StatusOK, gin.H{"status": "cycle completed"})
}
