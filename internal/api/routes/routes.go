package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vend-service/vend_service/internal/api/handlers"
	"github.com/vend-service/vend_service/internal/api/middleware"
	"github.com/vend-service/vend_service/internal/domain/services/orders"
	"github.com/vend-service/vend_service/internal/domain/services/reconciliation"
	"github.com/vend-service/vend_service/internal/infrastructure/config"
	"github.com/vend-service/vend_service/pkg/logger"
)

// SetupRoutes configures all application routes
func SetupRoutes(
	cfg *config.Config,
	log *logger.Logger,
	orderService *orders.Service,
	engine *reconciliation.Service,
	scheduler *reconciliation.Scheduler,
	registry *prometheus.Registry,
) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RateLimit(120))

	engineHandlers := handlers.NewEngineHandlers(engine, scheduler, orderService, log)
	orderHandlers := handlers.NewOrderHandlers(orderService, log)

	// Health and metrics (no auth required)
	router.GET("/health", engineHandlers.Health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/orders", orderHandlers.CreateOrder)
		v1.GET("/orders/:customer_id", orderHandlers.GetOrder)
		v1.GET("/engine/status", engineHandlers.Status)
		v1.POST("/engine/cycle", engineHandlers.TriggerCycle)
	}

	return router
}
