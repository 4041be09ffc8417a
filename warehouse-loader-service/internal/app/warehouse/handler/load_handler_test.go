package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/entity"
	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/repository"
	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"
)

// MockLoadRunner мок для processor.LoadRunner в тестах handler
type MockLoadRunner struct {
	mock.Mock
}

func (m *MockLoadRunner) RunAll(ctx context.Context, trigger string) (*entity.LoadReport, error) {
	args := m.Called(ctx, trigger)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.LoadReport), args.Error(1)
}

func (m *MockLoadRunner) RunStage(ctx context.Context, name entity.StageName, trigger string) (*entity.LoadReport, error) {
	args := m.Called(ctx, name, trigger)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.LoadReport), args.Error(1)
}

func (m *MockLoadRunner) GetRun(ctx context.Context, runID uuid.UUID) (*entity.LoadRun, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.LoadRun), args.Error(1)
}

func (m *MockLoadRunner) LatestRun(ctx context.Context) (*entity.LoadRun, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.LoadRun), args.Error(1)
}

// setupTestRouter собирает полный роутер с моком раннера
func setupTestRouter(t *testing.T) (*gin.Engine, *MockLoadRunner) {
	t.Helper()

	db, err := repository.OpenSQLite(filepath.Join(t.TempDir(), "health.db"), gormlogger.Silent)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	runner := new(MockLoadRunner)
	router := SetupRoutes(
		NewLoadHandler(runner),
		NewHealthCheckHandler(db, nil),
		NewAuthMiddleware(testSecret),
	)
	return router, runner
}

func doRequest(t *testing.T, router *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func sampleReport(status entity.RunStatus, stages ...entity.StageName) *entity.LoadReport {
	started := time.Date(2024, 1, 31, 2, 30, 0, 0, time.UTC)
	report := &entity.LoadReport{
		RunID:      uuid.New(),
		Trigger:    entity.TriggerAPI,
		Status:     status,
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
	}
	for _, name := range stages {
		report.Stages = append(report.Stages, entity.StageReport{
			StageResult: entity.StageResult{Stage: name, Inserted: 2},
			Status:      entity.StageStatusSucceeded,
		})
	}
	return report
}

// ===================== RunAll Tests =====================

func TestLoadHandler_RunAll_Success(t *testing.T) {
	// Arrange
	router, runner := setupTestRouter(t)
	report := sampleReport(entity.RunStatusSucceeded, entity.AllStages...)
	runner.On("RunAll", mock.Anything, entity.TriggerAPI).Return(report, nil)

	// Act
	rec := doRequest(t, router, http.MethodPost, "/api/v1/loads", adminToken(t))

	// Assert
	assert.Equal(t, http.StatusOK, rec.Code)

	var got entity.LoadReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, report.RunID, got.RunID)
	assert.Equal(t, entity.RunStatusSucceeded, got.Status)
	assert.Len(t, got.Stages, len(entity.AllStages))

	runner.AssertExpectations(t)
}

func TestLoadHandler_RunAll_PartialRunStillOK(t *testing.T) {
	router, runner := setupTestRouter(t)
	report := sampleReport(entity.RunStatusPartial, entity.StageMergeProduct)
	runner.On("RunAll", mock.Anything, entity.TriggerAPI).Return(report, nil)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/loads", adminToken(t))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"partial"`)
}

func TestLoadHandler_RunAll_Conflict(t *testing.T) {
	router, runner := setupTestRouter(t)
	runner.On("RunAll", mock.Anything, entity.TriggerAPI).
		Return(nil, fmt.Errorf("%w: another load run is in progress", service.ErrConcurrencyConflict))

	rec := doRequest(t, router, http.MethodPost, "/api/v1/loads", adminToken(t))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Another load run is in progress", errorMessage(t, rec))
}

func TestLoadHandler_RunAll_LockUnavailable(t *testing.T) {
	router, runner := setupTestRouter(t)
	runner.On("RunAll", mock.Anything, entity.TriggerAPI).
		Return(nil, errors.New("failed to acquire run lock: connection refused"))

	rec := doRequest(t, router, http.MethodPost, "/api/v1/loads", adminToken(t))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to start load run", errorMessage(t, rec))
}

func TestLoadHandler_RunAll_DetachedFromClient(t *testing.T) {
	// Загрузка не получает отмену от HTTP запроса
	router, runner := setupTestRouter(t)
	runner.On("RunAll", mock.MatchedBy(func(ctx context.Context) bool {
		return ctx.Done() == nil
	}), entity.TriggerAPI).Return(sampleReport(entity.RunStatusSucceeded), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/loads", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer "+adminToken(t))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	runner.AssertExpectations(t)
}

func TestLoadHandler_Unauthorized(t *testing.T) {
	router, runner := setupTestRouter(t)

	testCases := []struct {
		name         string
		method       string
		path         string
		token        string
		expectedCode int
	}{
		{"RunAll without token", http.MethodPost, "/api/v1/loads", "", http.StatusUnauthorized},
		{"RunStage without token", http.MethodPost, "/api/v1/loads/stages/seed_date", "", http.StatusUnauthorized},
		{"Latest without token", http.MethodGet, "/api/v1/loads/latest", "", http.StatusUnauthorized},
		{"RunAll as user", http.MethodPost, "/api/v1/loads", signToken(t, testSecret, uuid.NewString(), "user", time.Minute), http.StatusForbidden},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, router, tc.method, tc.path, tc.token)
			assert.Equal(t, tc.expectedCode, rec.Code)
		})
	}

	runner.AssertNotCalled(t, "RunAll", mock.Anything, mock.Anything)
	runner.AssertNotCalled(t, "RunStage", mock.Anything, mock.Anything, mock.Anything)
}

// ===================== RunStage Tests =====================

func TestLoadHandler_RunStage_Success(t *testing.T) {
	router, runner := setupTestRouter(t)
	report := sampleReport(entity.RunStatusSucceeded, entity.StageVersionCustomer)
	runner.On("RunStage", mock.Anything, entity.StageVersionCustomer, entity.TriggerAPI).Return(report, nil)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/loads/stages/version_customer", adminToken(t))

	assert.Equal(t, http.StatusOK, rec.Code)

	var got entity.LoadReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Stages, 1)
	assert.Equal(t, entity.StageVersionCustomer, got.Stages[0].Stage)

	runner.AssertExpectations(t)
}

func TestLoadHandler_RunStage_UnknownStage(t *testing.T) {
	router, runner := setupTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/loads/stages/drop_everything", adminToken(t))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Unknown stage", errorMessage(t, rec))
	runner.AssertNotCalled(t, "RunStage", mock.Anything, mock.Anything, mock.Anything)
}

func TestLoadHandler_RunStage_NotRegistered(t *testing.T) {
	// Имя известно, но стадия не собрана в оркестраторе
	router, runner := setupTestRouter(t)
	runner.On("RunStage", mock.Anything, entity.StageSeedDate, entity.TriggerAPI).
		Return(nil, fmt.Errorf("%w: %q", service.ErrUnknownStage, entity.StageSeedDate))

	rec := doRequest(t, router, http.MethodPost, "/api/v1/loads/stages/seed_date", adminToken(t))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoadHandler_RunStage_Conflict(t *testing.T) {
	router, runner := setupTestRouter(t)
	runner.On("RunStage", mock.Anything, entity.StageLoadCartFact, entity.TriggerAPI).
		Return(nil, fmt.Errorf("%w: another load run is in progress", service.ErrConcurrencyConflict))

	rec := doRequest(t, router, http.MethodPost, "/api/v1/loads/stages/load_cart_fact", adminToken(t))

	assert.Equal(t, http.StatusConflict, rec.Code)
}

// ===================== Journal Tests =====================

func TestLoadHandler_GetRun_Success(t *testing.T) {
	router, runner := setupTestRouter(t)
	runID := uuid.New()
	finished := time.Date(2024, 1, 31, 2, 31, 0, 0, time.UTC)
	run := &entity.LoadRun{
		RunID:      runID,
		Trigger:    entity.TriggerCron,
		Stages:     "seed_date",
		Status:     entity.RunStatusSucceeded,
		StartedAt:  finished.Add(-time.Minute),
		FinishedAt: &finished,
	}
	runner.On("GetRun", mock.Anything, runID).Return(run, nil)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/loads/"+runID.String(), adminToken(t))

	assert.Equal(t, http.StatusOK, rec.Code)

	var got entity.LoadRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, runID, got.RunID)
	assert.Equal(t, entity.TriggerCron, got.Trigger)
}

func TestLoadHandler_GetRun_InvalidID(t *testing.T) {
	router, runner := setupTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/loads/not-a-uuid", adminToken(t))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid run ID", errorMessage(t, rec))
	runner.AssertNotCalled(t, "GetRun", mock.Anything, mock.Anything)
}

func TestLoadHandler_GetRun_NotFound(t *testing.T) {
	router, runner := setupTestRouter(t)
	runner.On("GetRun", mock.Anything, mock.AnythingOfType("uuid.UUID")).Return(nil, repository.ErrLoadRunNotFound)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/loads/"+uuid.NewString(), adminToken(t))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLoadHandler_GetRun_DatabaseError(t *testing.T) {
	router, runner := setupTestRouter(t)
	runner.On("GetRun", mock.Anything, mock.AnythingOfType("uuid.UUID")).Return(nil, errors.New("failed to get load run: db down"))

	rec := doRequest(t, router, http.MethodGet, "/api/v1/loads/"+uuid.NewString(), adminToken(t))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestLoadHandler_LatestRun(t *testing.T) {
	testCases := []struct {
		name         string
		run          *entity.LoadRun
		err          error
		expectedCode int
	}{
		{"Found", &entity.LoadRun{RunID: uuid.New(), Status: entity.RunStatusPartial}, nil, http.StatusOK},
		{"Empty journal", nil, repository.ErrLoadRunNotFound, http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			router, runner := setupTestRouter(t)
			if tc.run != nil {
				runner.On("LatestRun", mock.Anything).Return(tc.run, nil)
			} else {
				runner.On("LatestRun", mock.Anything).Return(nil, tc.err)
			}

			rec := doRequest(t, router, http.MethodGet, "/api/v1/loads/latest", adminToken(t))

			assert.Equal(t, tc.expectedCode, rec.Code)
			runner.AssertExpectations(t)
		})
	}
}

func TestRouter_MetricsEndpointIsPublic(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dw_last_successful_load_timestamp_seconds")
}
