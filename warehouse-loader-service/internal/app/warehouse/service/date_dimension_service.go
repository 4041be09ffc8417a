package service

import (
	"context"
	"fmt"
	"time"

	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/entity"
	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/repository"
)

// DateDimensionService заполняет календарное измерение (SCD Type 0)
type DateDimensionService struct {
	stagingRepo repository.StagingRepository
	dateRepo    repository.DateRepository
	start       time.Time
	horizonDays int
	batchSize   int
	clock       func() time.Time
}

// NewDateDimensionService создает сервис календаря.
// Диапазон по умолчанию: [start, сегодня + horizonDays]
func NewDateDimensionService(
	stagingRepo repository.StagingRepository,
	dateRepo repository.DateRepository,
	start time.Time,
	horizonDays int,
	batchSize int,
) *DateDimensionService {
	return &DateDimensionService{
		stagingRepo: stagingRepo,
		dateRepo:    dateRepo,
		start:       start,
		horizonDays: horizonDays,
		batchSize:   batchSize,
		clock:       time.Now,
	}
}

func (s *DateDimensionService) Name() entity.StageName {
	return entity.StageSeedDate
}

// Run засеивает диапазон по умолчанию, расширенный до дат корзин из снимка,
// чтобы каждая корзина могла сослаться на свой день
func (s *DateDimensionService) Run(ctx context.Context) (*entity.StageResult, error) {
	start := truncateDay(s.start)
	end := truncateDay(s.clock()).AddDate(0, 0, s.horizonDays)

	minDate, maxDate, err := s.stagingRepo.CartDateRange(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read cart date range: %w", err)
	}
	if minDate != nil && truncateDay(*minDate).Before(start) {
		start = truncateDay(*minDate)
	}
	if maxDate != nil && truncateDay(*maxDate).After(end) {
		end = truncateDay(*maxDate)
	}

	return s.Seed(ctx, start, end)
}

// Seed вставляет каждый день включительного диапазона; существующие дни пропускаются.
// Строки никогда не обновляются и не удаляются
func (s *DateDimensionService) Seed(ctx context.Context, start, end time.Time) (*entity.StageResult, error) {
	start, end = truncateDay(start), truncateDay(end)
	if end.Before(start) {
		return nil, fmt.Errorf("%w: date range end %s is before start %s",
			ErrValidation, end.Format(time.DateOnly), start.Format(time.DateOnly))
	}

	rec := newStageRecorder(ctx, s.Name())

	var days []entity.DateDim
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, entity.NewDateDim(d))
	}

	written, failed, err := writeInBatches(ctx, rec, days, s.batchSize,
		func(d entity.DateDim) string { return fmt.Sprintf("%d", d.DateKey) },
		s.dateRepo.InsertMissing,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to seed date dimension: %w", err)
	}

	rec.result.Inserted = int(written)
	rec.result.Skipped = len(days) - int(written) - failed
	return rec.done(), nil
}

// truncateDay приводит момент времени к полуночи UTC того же календарного дня
func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
