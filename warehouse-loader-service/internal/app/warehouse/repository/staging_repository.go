package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ecommerce-dw/pkg/metrics"
	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/entity"

	"gorm.io/gorm"
)

const serviceName = "warehouse-loader"

// stagingRepository реализует StagingRepository поверх GORM
type stagingRepository struct {
	db *gorm.DB
}

// NewStagingRepository создает репозиторий снимка staging
func NewStagingRepository(db *gorm.DB) StagingRepository {
	return &stagingRepository{db: db}
}

// Products возвращает товары в порядке загрузки снимка
func (r *stagingRepository) Products(ctx context.Context) ([]entity.StagedProduct, error) {
	defer metrics.NewDbTimer(serviceName, metrics.DbOpSelect, "stg_products").ObserveDuration()

	var rows []entity.StagedProduct
	if err := r.db.WithContext(ctx).Order("stg_row_id").Find(&rows).Error; err != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpSelect)
		return nil, fmt.Errorf("failed to read staged products: %w", err)
	}
	return rows, nil
}

// Users возвращает пользователей в порядке загрузки снимка
func (r *stagingRepository) Users(ctx context.Context) ([]entity.StagedUser, error) {
	defer metrics.NewDbTimer(serviceName, metrics.DbOpSelect, "stg_users").ObserveDuration()

	var rows []entity.StagedUser
	if err := r.db.WithContext(ctx).Order("stg_row_id").Find(&rows).Error; err != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpSelect)
		return nil, fmt.Errorf("failed to read staged users: %w", err)
	}
	return rows, nil
}

// CartLines возвращает строки корзин, сгруппированные по cart_id.
// LineNo - порядковый номер строки внутри корзины по stg_row_id, начиная с 1
func (r *stagingRepository) CartLines(ctx context.Context) ([]entity.StagedCartLine, error) {
	defer metrics.NewDbTimer(serviceName, metrics.DbOpSelect, "stg_carts").ObserveDuration()

	var rows []entity.StagedCartLine
	if err := r.db.WithContext(ctx).Order("cart_id").Order("stg_row_id").Find(&rows).Error; err != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpSelect)
		return nil, fmt.Errorf("failed to read staged cart lines: %w", err)
	}

	lineNo := 0
	for i := range rows {
		if i == 0 || rows[i].CartID != rows[i-1].CartID {
			lineNo = 0
		}
		lineNo++
		rows[i].LineNo = lineNo
	}
	return rows, nil
}

// CartDateRange возвращает границы дат корзин в снимке
func (r *stagingRepository) CartDateRange(ctx context.Context) (*time.Time, *time.Time, error) {
	var first, last entity.StagedCartLine

	err := r.db.WithContext(ctx).Order("date ASC").Take(&first).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read earliest cart date: %w", err)
	}

	if err := r.db.WithContext(ctx).Order("date DESC").Take(&last).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to read latest cart date: %w", err)
	}

	return &first.Date, &last.Date, nil
}
