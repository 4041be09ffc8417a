package repository

import (
	"fmt"

	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/entity"

	"gorm.io/gorm"
)

// AutoMigrate создает таблицы измерений, фактов и журнала запусков.
// Порядок важен: измерения создаются раньше фактов, ссылающихся на них
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&entity.DateDim{},
		&entity.CategoryDim{},
		&entity.ProductDim{},
		&entity.CustomerDim{},
		&entity.CartFact{},
		&entity.CartItemFact{},
		&entity.LoadRun{},
	); err != nil {
		return fmt.Errorf("failed to migrate warehouse tables: %w", err)
	}
	return nil
}

// AutoMigrateStaging создает таблицы снимка (обычно их создает процесс выгрузки)
func AutoMigrateStaging(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&entity.StagedProduct{},
		&entity.StagedUser{},
		&entity.StagedCartLine{},
		&entity.StagedCategory{},
	); err != nil {
		return fmt.Errorf("failed to migrate staging tables: %w", err)
	}
	return nil
}
