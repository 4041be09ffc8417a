package handler

import (
	"ecommerce-dw/pkg/logger"
	"ecommerce-dw/pkg/metrics"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes настраивает маршруты Warehouse Loader Service.
// Health и метрики публичные, управление загрузками только для роли admin
func SetupRoutes(loadHandler *LoadHandler, healthHandler *HealthCheckHandler, authMiddleware *AuthMiddleware) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(logger.GinLoggerMiddleware())
	router.Use(metrics.GinPrometheusMiddleware("warehouse-loader"))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"https://*", "http://*"},
		AllowWildcard:    true,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", logger.RequestIDHeader},
		ExposeHeaders:    []string{logger.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.GET("/health", healthHandler.HealthCheck)
	router.GET("/health/readiness", healthHandler.Readiness)
	router.GET("/health/liveness", healthHandler.Liveness)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	loads := router.Group("/api/v1/loads")
	loads.Use(authMiddleware.Authenticate())
	loads.Use(authMiddleware.RequireRole("admin"))
	{
		loads.POST("", loadHandler.RunAll)                 // Полная загрузка
		loads.POST("/stages/:stage", loadHandler.RunStage) // Одна стадия
		loads.GET("/latest", loadHandler.LatestRun)        // Последний запуск
		loads.GET("/:id", loadHandler.GetRun)              // Запуск по ID
	}

	return router
}
