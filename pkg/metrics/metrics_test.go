package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestStageTimer_Finish(t *testing.T) {
	// Arrange
	stage := "test_stage_finish"
	timer := NewStageTimer(stage)

	// Act
	timer.Finish("partial", 3, 1, 5, 2)

	// Assert
	assert.Equal(t, float64(1), testutil.ToFloat64(StageRuns.WithLabelValues(stage, "partial")))
	assert.Equal(t, float64(3), testutil.ToFloat64(StageRows.WithLabelValues(stage, "inserted")))
	assert.Equal(t, float64(1), testutil.ToFloat64(StageRows.WithLabelValues(stage, "updated")))
	assert.Equal(t, float64(5), testutil.ToFloat64(StageRows.WithLabelValues(stage, "skipped")))
	assert.Equal(t, float64(2), testutil.ToFloat64(StageRows.WithLabelValues(stage, "errored")))
}

func TestRecordStageBlocked(t *testing.T) {
	RecordStageBlocked("test_stage_blocked")

	assert.Equal(t, float64(1), testutil.ToFloat64(StageRuns.WithLabelValues("test_stage_blocked", "blocked")))
}

func TestRecordLoadRun(t *testing.T) {
	finished := time.Date(2024, 1, 31, 2, 40, 0, 0, time.UTC)

	RecordLoadRun("test", "partial", finished)
	assert.Equal(t, float64(finished.Unix()), testutil.ToFloat64(LastSuccessfulLoad))

	// Упавший запуск не сдвигает отметку последней успешной загрузки
	RecordLoadRun("test", "failed", finished.Add(time.Hour))
	assert.Equal(t, float64(finished.Unix()), testutil.ToFloat64(LastSuccessfulLoad))
	assert.Equal(t, float64(1), testutil.ToFloat64(LoadRuns.WithLabelValues("test", "failed")))
}

func TestGinPrometheusMiddleware_RouteTemplate(t *testing.T) {
	// Arrange
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(GinPrometheusMiddleware("test-service"))
	router.GET("/api/v1/loads/:id", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	// Act
	for _, id := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/loads/"+id, nil))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	// Assert: ID запусков не попадают в метки
	assert.Equal(t, float64(3),
		testutil.ToFloat64(HttpRequestsTotal.WithLabelValues("test-service", http.MethodGet, "/api/v1/loads/:id", "200")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(HttpRequestsTotal.WithLabelValues("test-service", http.MethodGet, "unmatched", "404")))
}
