package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"ecommerce-dw/pkg/logger"
	"ecommerce-dw/pkg/metrics"
	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/entity"
	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/infrastructure"
	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/repository"
	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/service"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// StageDependencies граф зависимостей стадий: стадия стартует, когда все ее
// зависимости из того же запуска завершились без падения
var StageDependencies = map[entity.StageName][]entity.StageName{
	entity.StageSeedDate:         nil,
	entity.StageMergeCategory:    nil,
	entity.StageMergeProduct:     {entity.StageMergeCategory},
	entity.StageVersionCustomer:  nil,
	entity.StageLoadCartFact:     {entity.StageSeedDate, entity.StageVersionCustomer, entity.StageMergeProduct},
	entity.StageLoadCartItemFact: {entity.StageLoadCartFact, entity.StageMergeProduct},
}

// LoadRunner запуск загрузки для cron и административного API
type LoadRunner interface {
	RunAll(ctx context.Context, trigger string) (*entity.LoadReport, error)
	RunStage(ctx context.Context, name entity.StageName, trigger string) (*entity.LoadReport, error)
	GetRun(ctx context.Context, runID uuid.UUID) (*entity.LoadRun, error)
	LatestRun(ctx context.Context) (*entity.LoadRun, error)
}

// Orchestrator выполняет стадии загрузки по графу зависимостей.
// Независимые стадии идут параллельно; упавшая стадия блокирует все зависящие от нее,
// остальные доводятся до конца. Завершенные стадии остаются закоммиченными
type Orchestrator struct {
	stages       map[entity.StageName]service.Stage
	runRepo      repository.LoadRunRepository
	runLock      repository.RunLockRepository
	publisher    infrastructure.MessagePublisher
	stageTimeout time.Duration
	clock        func() time.Time
}

// NewOrchestrator создает оркестратор. runLock и publisher необязательны (nil)
func NewOrchestrator(
	stages []service.Stage,
	runRepo repository.LoadRunRepository,
	runLock repository.RunLockRepository,
	publisher infrastructure.MessagePublisher,
	stageTimeout time.Duration,
) *Orchestrator {
	byName := make(map[entity.StageName]service.Stage, len(stages))
	for _, s := range stages {
		byName[s.Name()] = s
	}
	return &Orchestrator{
		stages:       byName,
		runRepo:      runRepo,
		runLock:      runLock,
		publisher:    publisher,
		stageTimeout: stageTimeout,
		clock:        time.Now,
	}
}

// RunAll выполняет все стадии
func (o *Orchestrator) RunAll(ctx context.Context, trigger string) (*entity.LoadReport, error) {
	return o.run(ctx, trigger, entity.AllStages)
}

// RunStage выполняет одну стадию без ее зависимостей (повтор упавшей стадии)
func (o *Orchestrator) RunStage(ctx context.Context, name entity.StageName, trigger string) (*entity.LoadReport, error) {
	if _, ok := o.stages[name]; !ok {
		return nil, fmt.Errorf("%w: %q", service.ErrUnknownStage, name)
	}
	return o.run(ctx, trigger, []entity.StageName{name})
}

func (o *Orchestrator) SeedDate(ctx context.Context, trigger string) (*entity.LoadReport, error) {
	return o.RunStage(ctx, entity.StageSeedDate, trigger)
}

func (o *Orchestrator) MergeCategory(ctx context.Context, trigger string) (*entity.LoadReport, error) {
	return o.RunStage(ctx, entity.StageMergeCategory, trigger)
}

func (o *Orchestrator) MergeProduct(ctx context.Context, trigger string) (*entity.LoadReport, error) {
	return o.RunStage(ctx, entity.StageMergeProduct, trigger)
}

func (o *Orchestrator) VersionCustomer(ctx context.Context, trigger string) (*entity.LoadReport, error) {
	return o.RunStage(ctx, entity.StageVersionCustomer, trigger)
}

func (o *Orchestrator) LoadCartFact(ctx context.Context, trigger string) (*entity.LoadReport, error) {
	return o.RunStage(ctx, entity.StageLoadCartFact, trigger)
}

func (o *Orchestrator) LoadCartItemFact(ctx context.Context, trigger string) (*entity.LoadReport, error) {
	return o.RunStage(ctx, entity.StageLoadCartItemFact, trigger)
}

// GetRun возвращает запись журнала по ID запуска
func (o *Orchestrator) GetRun(ctx context.Context, runID uuid.UUID) (*entity.LoadRun, error) {
	return o.runRepo.GetByID(ctx, runID)
}

// LatestRun возвращает последний начатый запуск
func (o *Orchestrator) LatestRun(ctx context.Context) (*entity.LoadRun, error) {
	return o.runRepo.GetLatest(ctx)
}

func (o *Orchestrator) run(ctx context.Context, trigger string, names []entity.StageName) (*entity.LoadReport, error) {
	runID := uuid.New()
	ctx = service.WithRunID(ctx, runID.String())
	log := logger.With().Str("run_id", runID.String()).Str("trigger", trigger).Logger()

	if o.runLock != nil {
		acquired, err := o.runLock.Acquire(ctx, runID.String())
		if err != nil {
			return nil, fmt.Errorf("failed to acquire run lock: %w", err)
		}
		if !acquired {
			metrics.LoadConflicts.Inc()
			log.Warn().Msg("Another load run holds the lock")
			return nil, fmt.Errorf("%w: another load run is in progress", service.ErrConcurrencyConflict)
		}
		defer func() {
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := o.runLock.Release(releaseCtx, runID.String()); err != nil {
				log.Error().Err(err).Msg("Failed to release run lock")
			}
		}()
	}

	report := &entity.LoadReport{
		RunID:     runID,
		Trigger:   trigger,
		Status:    entity.RunStatusRunning,
		StartedAt: o.clock().UTC(),
	}

	stageNames := make([]string, len(names))
	for i, n := range names {
		stageNames[i] = string(n)
	}
	journal := &entity.LoadRun{
		RunID:     runID,
		Trigger:   trigger,
		Stages:    strings.Join(stageNames, ","),
		Status:    entity.RunStatusRunning,
		StartedAt: report.StartedAt,
	}
	// Журнал и события не влияют на исход загрузки
	if err := o.runRepo.Create(ctx, journal); err != nil {
		log.Error().Err(err).Msg("Failed to journal load run start")
		journal = nil
	}

	log.Info().Strs("stages", stageNames).Msg("Load run started")

	report.Stages = o.execute(ctx, names)
	report.Status = runStatus(report.Stages)
	report.FinishedAt = o.clock().UTC()

	metrics.RecordLoadRun(trigger, string(report.Status), report.FinishedAt)
	log.Info().
		Str("status", string(report.Status)).
		Dur("duration", report.FinishedAt.Sub(report.StartedAt)).
		Msg("Load run finished")

	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()

	if journal != nil {
		finishedAt := report.FinishedAt
		journal.Status = report.Status
		journal.FinishedAt = &finishedAt
		journal.StageReports = report.Stages
		journal.ErrorMessage = stageErrors(report.Stages)
		if err := o.runRepo.Update(finishCtx, journal); err != nil {
			log.Error().Err(err).Msg("Failed to journal load run result")
		}
	}

	o.publish(finishCtx, report)
	return report, nil
}

// execute запускает стадии, дожидаясь зависимостей из того же набора
func (o *Orchestrator) execute(ctx context.Context, names []entity.StageName) []entity.StageReport {
	requested := make(map[entity.StageName]bool, len(names))
	done := make(map[entity.StageName]chan struct{}, len(names))
	for _, n := range names {
		requested[n] = true
		done[n] = make(chan struct{})
	}

	var mu sync.Mutex
	reports := make(map[entity.StageName]entity.StageReport, len(names))

	var g errgroup.Group
	for _, name := range names {
		g.Go(func() error {
			defer close(done[name])

			for _, dep := range StageDependencies[name] {
				if !requested[dep] {
					continue
				}
				<-done[dep]

				mu.Lock()
				depStatus := reports[dep].Status
				mu.Unlock()

				if depStatus == entity.StageStatusFailed || depStatus == entity.StageStatusBlocked {
					blocked := o.blocked(name, dep)
					mu.Lock()
					reports[name] = blocked
					mu.Unlock()
					return nil
				}
			}

			r := o.runStage(ctx, name)
			mu.Lock()
			reports[name] = r
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	ordered := make([]entity.StageReport, 0, len(names))
	for _, n := range names {
		ordered = append(ordered, reports[n])
	}
	return ordered
}

func (o *Orchestrator) blocked(name, dep entity.StageName) entity.StageReport {
	metrics.RecordStageBlocked(string(name))
	logger.Warn().Str("stage", string(name)).Str("dependency", string(dep)).Msg("Stage blocked")

	now := o.clock().UTC()
	return entity.StageReport{
		StageResult: *entity.NewStageResult(name),
		Status:      entity.StageStatusBlocked,
		StartedAt:   now,
		FinishedAt:  now,
		Error:       fmt.Sprintf("%s: %s", service.ErrDependencyFailed, dep),
	}
}

// runStage выполняет стадию с собственным таймаутом
func (o *Orchestrator) runStage(ctx context.Context, name entity.StageName) (report entity.StageReport) {
	report.StageResult = *entity.NewStageResult(name)
	report.StartedAt = o.clock().UTC()
	timer := metrics.NewStageTimer(string(name))

	defer func() {
		if p := recover(); p != nil {
			report.Status = entity.StageStatusFailed
			report.Error = fmt.Sprintf("stage panicked: %v", p)
		}
		report.FinishedAt = o.clock().UTC()
		timer.Finish(string(report.Status), report.Inserted, report.Updated, report.Skipped, report.Errored)

		if report.Status == entity.StageStatusFailed {
			logger.Error().Str("stage", string(name)).Str("error", report.Error).Msg("Stage failed")
		}
	}()

	stage, ok := o.stages[name]
	if !ok {
		report.Status = entity.StageStatusFailed
		report.Error = fmt.Sprintf("%s: %q is not configured", service.ErrUnknownStage, name)
		return report
	}

	stageCtx, cancel := context.WithTimeout(ctx, o.stageTimeout)
	defer cancel()

	result, err := stage.Run(stageCtx)
	if err != nil {
		report.Status = entity.StageStatusFailed
		report.Error = err.Error()
		return report
	}

	report.StageResult = *result
	report.Status = result.Status()
	return report
}

func (o *Orchestrator) publish(ctx context.Context, report *entity.LoadReport) {
	if o.publisher == nil {
		return
	}

	payload, err := json.Marshal(entity.NewLoadEvent(report))
	if err != nil {
		logger.Error().Err(err).Msg("Failed to marshal load event")
		return
	}
	if err := o.publisher.PublishMessage(ctx, report.RunID.String(), payload); err != nil {
		logger.Error().Err(err).Str("run_id", report.RunID.String()).Msg("Failed to publish load event")
	}
}

// runStatus сводит статусы стадий: упавшая или заблокированная стадия делает запуск failed
func runStatus(stages []entity.StageReport) entity.RunStatus {
	status := entity.RunStatusSucceeded
	for _, s := range stages {
		switch s.Status {
		case entity.StageStatusFailed, entity.StageStatusBlocked:
			return entity.RunStatusFailed
		case entity.StageStatusPartial:
			status = entity.RunStatusPartial
		}
	}
	return status
}

func stageErrors(stages []entity.StageReport) string {
	var msgs []string
	for _, s := range stages {
		if s.Error != "" {
			msgs = append(msgs, fmt.Sprintf("%s: %s", s.Stage, s.Error))
		}
	}
	return strings.Join(msgs, "; ")
}
