package repository

import (
	"context"
	"errors"
	"fmt"

	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// loadRunRepository реализует LoadRunRepository
type loadRunRepository struct {
	db *gorm.DB
}

// NewLoadRunRepository создает репозиторий журнала запусков
func NewLoadRunRepository(db *gorm.DB) LoadRunRepository {
	return &loadRunRepository{db: db}
}

// Create создает запись о начатом запуске
func (r *loadRunRepository) Create(ctx context.Context, run *entity.LoadRun) error {
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("failed to create load run: %w", err)
	}
	return nil
}

// Update сохраняет итог запуска
func (r *loadRunRepository) Update(ctx context.Context, run *entity.LoadRun) error {
	result := r.db.WithContext(ctx).
		Model(run).
		Select("status", "finished_at", "stage_reports", "error_message").
		Updates(run)
	if result.Error != nil {
		return fmt.Errorf("failed to update load run: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrLoadRunNotFound
	}
	return nil
}

// GetByID получает запуск по ID
func (r *loadRunRepository) GetByID(ctx context.Context, runID uuid.UUID) (*entity.LoadRun, error) {
	var run entity.LoadRun
	err := r.db.WithContext(ctx).Where("run_id = ?", runID).Take(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLoadRunNotFound
		}
		return nil, fmt.Errorf("failed to get load run: %w", err)
	}
	return &run, nil
}

// GetLatest получает последний начатый запуск
func (r *loadRunRepository) GetLatest(ctx context.Context) (*entity.LoadRun, error) {
	var run entity.LoadRun
	err := r.db.WithContext(ctx).Order("started_at DESC").Take(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLoadRunNotFound
		}
		return nil, fmt.Errorf("failed to get latest load run: %w", err)
	}
	return &run, nil
}
