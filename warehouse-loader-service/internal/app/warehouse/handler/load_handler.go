package handler

import (
	"context"
	"errors"
	"net/http"

	"ecommerce-dw/pkg/logger"
	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/entity"
	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/processor"
	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/repository"
	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// LoadHandler административный API запусков загрузки
type LoadHandler struct {
	runner processor.LoadRunner
}

func NewLoadHandler(runner processor.LoadRunner) *LoadHandler {
	return &LoadHandler{runner: runner}
}

// RunAll обрабатывает POST /api/v1/loads
// Запускает все стадии и возвращает отчет о запуске
func (h *LoadHandler) RunAll(c *gin.Context) {
	// Обрыв соединения клиента не прерывает начатую загрузку
	ctx := context.WithoutCancel(c.Request.Context())

	report, err := h.runner.RunAll(ctx, entity.TriggerAPI)
	if err != nil {
		h.handleRunError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// RunStage обрабатывает POST /api/v1/loads/stages/:stage
// Повторно выполняет одну стадию без ее зависимостей
func (h *LoadHandler) RunStage(c *gin.Context) {
	name, ok := entity.ParseStageName(c.Param("stage"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown stage", "stages": entity.AllStages})
		return
	}

	ctx := context.WithoutCancel(c.Request.Context())

	report, err := h.runner.RunStage(ctx, name, entity.TriggerAPI)
	if err != nil {
		h.handleRunError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// GetRun обрабатывает GET /api/v1/loads/:id
func (h *LoadHandler) GetRun(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid run ID"})
		return
	}

	run, err := h.runner.GetRun(c.Request.Context(), runID)
	if err != nil {
		h.handleJournalError(c, err)
		return
	}

	c.JSON(http.StatusOK, run)
}

// LatestRun обрабатывает GET /api/v1/loads/latest
func (h *LoadHandler) LatestRun(c *gin.Context) {
	run, err := h.runner.LatestRun(c.Request.Context())
	if err != nil {
		h.handleJournalError(c, err)
		return
	}

	c.JSON(http.StatusOK, run)
}

func (h *LoadHandler) handleRunError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrConcurrencyConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Another load run is in progress"})
	case errors.Is(err, service.ErrUnknownStage):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown stage"})
	default:
		logger.Error().Err(err).Msg("Load run could not be started")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start load run"})
	}
}

func (h *LoadHandler) handleJournalError(c *gin.Context, err error) {
	if errors.Is(err, repository.ErrLoadRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Load run not found"})
		return
	}
	logger.Error().Err(err).Msg("Failed to read load journal")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get load run"})
}
