package processor

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/entity"
	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/service"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockLoadRunner мок для LoadRunner
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

// ===================== NewCronScheduler Tests =====================

func TestNewCronScheduler(t *testing.T) {
	// Arrange
	runner := new(MockLoadRunner)

	// Act
	scheduler := NewCronScheduler(runner)

	// Assert
	assert.NotNil(t, scheduler)
	assert.NotNil(t, scheduler.cron)
	assert.Equal(t, runner, scheduler.runner)
	assert.Empty(t, scheduler.GetEntries())
}

// ===================== Start Tests =====================

func TestCronScheduler_Start_Success(t *testing.T) {
	// Arrange
	runner := new(MockLoadRunner)
	scheduler := NewCronScheduler(runner)

	// Act
	err := scheduler.Start(context.Background(), "30 2 * * *")

	// Assert
	assert.NoError(t, err)
	assert.Len(t, scheduler.GetEntries(), 1)

	// Запуск при старте не выполняется, только по расписанию
	runner.AssertNotCalled(t, "RunAll", mock.Anything, mock.Anything)

	// Cleanup
	scheduler.Stop()
}

func TestCronScheduler_Start_InvalidSchedule(t *testing.T) {
	scheduler := NewCronScheduler(new(MockLoadRunner))

	err := scheduler.Start(context.Background(), "invalid cron expression")

	assert.Error(t, err)
	assert.Empty(t, scheduler.GetEntries())
}

// ===================== Cron Job Execution Tests =====================

// blockingRunner держит RunAll до закрытия release
type blockingRunner struct {
	MockLoadRunner
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (r *blockingRunner) RunAll(ctx context.Context, trigger string) (*entity.LoadReport, error) {
	r.calls.Add(1)
	r.started <- struct{}{}
	<-r.release
	return &entity.LoadReport{RunID: uuid.New(), Status: entity.RunStatusSucceeded}, nil
}

// scheduledJob возвращает задачу загрузки вместе с цепочкой Recover и SkipIfStillRunning
func scheduledJob(t *testing.T, scheduler *CronScheduler) cron.Job {
	t.Helper()
	require.NoError(t, scheduler.Start(context.Background(), "30 2 * * *"))
	t.Cleanup(scheduler.Stop)

	entries := scheduler.GetEntries()
	require.Len(t, entries, 1)
	return entries[0].WrappedJob
}

func TestCronScheduler_JobExecution(t *testing.T) {
	// Arrange
	runner := new(MockLoadRunner)
	scheduler := NewCronScheduler(runner)
	job := scheduledJob(t, scheduler)

	report := &entity.LoadReport{RunID: uuid.New(), Status: entity.RunStatusSucceeded}
	runner.On("RunAll", mock.Anything, entity.TriggerCron).Return(report, nil)

	// Act
	job.Run()
	job.Run()

	// Assert
	runner.AssertNumberOfCalls(t, "RunAll", 2)
	runner.AssertExpectations(t)
}

func TestCronScheduler_JobExecution_ContinuesAfterErrors(t *testing.T) {
	// Конфликт блокировки и падение запуска не останавливают расписание
	runner := new(MockLoadRunner)
	scheduler := NewCronScheduler(runner)
	job := scheduledJob(t, scheduler)

	runner.On("RunAll", mock.Anything, entity.TriggerCron).
		Return(nil, fmt.Errorf("%w: another load run is in progress", service.ErrConcurrencyConflict)).Once()
	runner.On("RunAll", mock.Anything, entity.TriggerCron).
		Return(nil, fmt.Errorf("failed to acquire run lock: redis down"))

	assert.NotPanics(t, job.Run)
	assert.NotPanics(t, job.Run)
	assert.NotPanics(t, job.Run)

	runner.AssertNumberOfCalls(t, "RunAll", 3)
	assert.Len(t, scheduler.GetEntries(), 1)
}

func TestCronScheduler_SkipsOverlappingRuns(t *testing.T) {
	// Arrange: загрузка еще идет, когда наступает следующий тик
	runner := &blockingRunner{started: make(chan struct{}, 1), release: make(chan struct{})}
	scheduler := NewCronScheduler(runner)
	job := scheduledJob(t, scheduler)

	done := make(chan struct{})
	go func() {
		job.Run()
		close(done)
	}()

	select {
	case <-runner.started:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled load did not start")
	}

	// Act
	job.Run()

	// Assert
	close(runner.release)
	<-done
	assert.Equal(t, int32(1), runner.calls.Load())
}
