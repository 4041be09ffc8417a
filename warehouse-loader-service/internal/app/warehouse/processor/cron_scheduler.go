package processor

import (
	"context"
	"errors"

	"ecommerce-dw/pkg/logger"
	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/entity"
	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/service"

	"github.com/robfig/cron/v3"
)

// CronScheduler запускает полную загрузку по расписанию
type CronScheduler struct {
	cron   *cron.Cron
	runner LoadRunner
}

func NewCronScheduler(runner LoadRunner) *CronScheduler {
	zl := logger.With().Str("component", "cron").Logger()
	cronLog := cron.PrintfLogger(&zl)

	// SkipIfStillRunning: длинная загрузка не накладывается на следующий тик
	c := cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	return &CronScheduler{
		cron:   c,
		runner: runner,
	}
}

// Start регистрирует задачу загрузки и запускает планировщик
func (s *CronScheduler) Start(ctx context.Context, schedule string) error {
	logger.Info().Str("schedule", schedule).Msg("Starting cron scheduler")

	_, err := s.cron.AddFunc(schedule, func() {
		s.runLoad(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	logger.Info().Msg("Cron scheduler started")
	return nil
}

func (s *CronScheduler) runLoad(ctx context.Context) {
	logger.Info().Msg("Cron job triggered: warehouse load")

	report, err := s.runner.RunAll(ctx, entity.TriggerCron)
	switch {
	case errors.Is(err, service.ErrConcurrencyConflict):
		logger.Warn().Msg("Cron job skipped: another load run is in progress")
	case err != nil:
		logger.Error().Err(err).Msg("Cron job failed")
	default:
		logger.Info().
			Str("run_id", report.RunID.String()).
			Str("status", string(report.Status)).
			Msg("Cron job completed")
	}
}

// Stop останавливает планировщик и ждет завершения текущей загрузки
func (s *CronScheduler) Stop() {
	logger.Info().Msg("Stopping cron scheduler...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info().Msg("Cron scheduler stopped")
}

func (s *CronScheduler) GetEntries() []cron.Entry {
	return s.cron.Entries()
}
