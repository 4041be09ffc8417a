package repository

import (
	"context"
	"fmt"
	"time"

	"ecommerce-dw/pkg/metrics"
	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/entity"

	"gorm.io/gorm"
)

// customerRepository реализует CustomerRepository
type customerRepository struct {
	db        *gorm.DB
	batchSize int
}

// NewCustomerRepository создает репозиторий измерения клиентов
func NewCustomerRepository(db *gorm.DB, batchSize int) CustomerRepository {
	return &customerRepository{db: db, batchSize: batchSize}
}

// ListCurrent возвращает текущие версии клиентов
func (r *customerRepository) ListCurrent(ctx context.Context) ([]entity.CustomerDim, error) {
	defer metrics.NewDbTimer(serviceName, metrics.DbOpSelect, "dim_customer").ObserveDuration()

	var customers []entity.CustomerDim
	err := r.db.WithContext(ctx).
		Where("is_current = ?", true).
		Order("customer_sk").
		Find(&customers).Error
	if err != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpSelect)
		return nil, fmt.Errorf("failed to list current customers: %w", err)
	}
	return customers, nil
}

// InsertNew вставляет первые версии клиентов в одной транзакции
func (r *customerRepository) InsertNew(ctx context.Context, customers []entity.CustomerDim) error {
	if len(customers) == 0 {
		return nil
	}
	defer metrics.NewDbTimer(serviceName, metrics.DbOpInsert, "dim_customer").ObserveDuration()

	if err := r.db.WithContext(ctx).CreateInBatches(&customers, r.batchSize).Error; err != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpInsert)
		if isDuplicateKeyError(err) {
			return fmt.Errorf("failed to insert customers: %w", ErrDuplicateKey)
		}
		return fmt.Errorf("failed to insert customers: %w", err)
	}
	return nil
}

// ReplaceCurrent закрывает текущую версию и вставляет следующую в одной транзакции.
// Закрытие выполняется первым, чтобы частичный уникальный индекс по is_current не нарушался
func (r *customerRepository) ReplaceCurrent(ctx context.Context, currentSK int64, closedAt time.Time, next *entity.CustomerDim) error {
	defer metrics.NewDbTimer(serviceName, metrics.DbOpUpdate, "dim_customer").ObserveDuration()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&entity.CustomerDim{}).
			Where("customer_sk = ? AND is_current = ?", currentSK, true).
			Updates(map[string]interface{}{
				"end_date":   closedAt,
				"is_current": false,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to close current version: %w", result.Error)
		}
		if result.RowsAffected != 1 {
			return ErrCurrentVersionChanged
		}

		if err := tx.Create(next).Error; err != nil {
			if isDuplicateKeyError(err) {
				return fmt.Errorf("failed to insert new version: %w", ErrDuplicateKey)
			}
			return fmt.Errorf("failed to insert new version: %w", err)
		}
		return nil
	})
	if err != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpUpdate)
		return err
	}
	return nil
}

// History возвращает все версии клиента
func (r *customerRepository) History(ctx context.Context, customerID string) ([]entity.CustomerDim, error) {
	var versions []entity.CustomerDim
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("start_date").
		Order("customer_sk").
		Find(&versions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get customer history: %w", err)
	}
	return versions, nil
}
