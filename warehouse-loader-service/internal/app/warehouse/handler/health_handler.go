package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type HealthCheckHandler struct {
	db          *gorm.DB
	redisClient *redis.Client // nil, если блокировка запусков выключена
}

func NewHealthCheckHandler(db *gorm.DB, redisClient *redis.Client) *HealthCheckHandler {
	return &HealthCheckHandler{
		db:          db,
		redisClient: redisClient,
	}
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Checks    map[string]string `json:"checks"`
	Timestamp time.Time         `json:"timestamp"`
}

// HealthCheck обрабатывает GET /health
func (h *HealthCheckHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	overallStatus := "healthy"

	if err := h.checkDatabase(ctx); err != nil {
		checks["database"] = "unhealthy: " + err.Error()
		overallStatus = "unhealthy"
	} else {
		checks["database"] = "healthy"
	}

	if h.redisClient != nil {
		if err := h.checkRedis(ctx); err != nil {
			checks["redis"] = "unhealthy: " + err.Error()
			overallStatus = "unhealthy"
		} else {
			checks["redis"] = "healthy"
		}
	}

	status := http.StatusOK
	if overallStatus != "healthy" {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, HealthResponse{
		Status:    overallStatus,
		Service:   "warehouse-loader",
		Checks:    checks,
		Timestamp: time.Now(),
	})
}

// Readiness обрабатывает GET /health/readiness
func (h *HealthCheckHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.checkDatabase(ctx); err != nil {
		c.String(http.StatusServiceUnavailable, "database not ready")
		return
	}

	if h.redisClient != nil {
		if err := h.checkRedis(ctx); err != nil {
			c.String(http.StatusServiceUnavailable, "redis not ready")
			return
		}
	}

	c.String(http.StatusOK, "ready")
}

// Liveness обрабатывает GET /health/liveness
func (h *HealthCheckHandler) Liveness(c *gin.Context) {
	c.String(http.StatusOK, "alive")
}

func (h *HealthCheckHandler) checkDatabase(ctx context.Context) error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (h *HealthCheckHandler) checkRedis(ctx context.Context) error {
	return h.redisClient.Ping(ctx).Err()
}
