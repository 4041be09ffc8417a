package repository

import (
	"context"
	"fmt"

	"ecommerce-dw/pkg/metrics"
	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// dateRepository реализует DateRepository
type dateRepository struct {
	db        *gorm.DB
	batchSize int
}

// NewDateRepository создает репозиторий календарного измерения
func NewDateRepository(db *gorm.DB, batchSize int) DateRepository {
	return &dateRepository{db: db, batchSize: batchSize}
}

// InsertMissing вставляет дни через ON CONFLICT (date_key) DO NOTHING
func (r *dateRepository) InsertMissing(ctx context.Context, days []entity.DateDim) (int64, error) {
	if len(days) == 0 {
		return 0, nil
	}
	defer metrics.NewDbTimer(serviceName, metrics.DbOpInsert, "dim_date").ObserveDuration()

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "date_key"}}, DoNothing: true}).
		CreateInBatches(&days, r.batchSize)
	if result.Error != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpInsert)
		return 0, fmt.Errorf("failed to insert dates: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// ExistingKeys возвращает найденные ключи дат
func (r *dateRepository) ExistingKeys(ctx context.Context, keys []int) (map[int]struct{}, error) {
	found := make(map[int]struct{}, len(keys))
	if len(keys) == 0 {
		return found, nil
	}

	for start := 0; start < len(keys); start += r.batchSize {
		end := min(start+r.batchSize, len(keys))

		var existing []int
		err := r.db.WithContext(ctx).Model(&entity.DateDim{}).
			Where("date_key IN ?", keys[start:end]).
			Pluck("date_key", &existing).Error
		if err != nil {
			return nil, fmt.Errorf("failed to look up date keys: %w", err)
		}
		for _, k := range existing {
			found[k] = struct{}{}
		}
	}
	return found, nil
}

// categoryRepository реализует CategoryRepository
type categoryRepository struct {
	db        *gorm.DB
	batchSize int
}

// NewCategoryRepository создает репозиторий измерения категорий
func NewCategoryRepository(db *gorm.DB, batchSize int) CategoryRepository {
	return &categoryRepository{db: db, batchSize: batchSize}
}

// ListAll возвращает все категории
func (r *categoryRepository) ListAll(ctx context.Context) ([]entity.CategoryDim, error) {
	defer metrics.NewDbTimer(serviceName, metrics.DbOpSelect, "dim_category").ObserveDuration()

	var categories []entity.CategoryDim
	if err := r.db.WithContext(ctx).Order("category_sk").Find(&categories).Error; err != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpSelect)
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

// InsertMissing вставляет категории; конфликт по category_key пропускается
func (r *categoryRepository) InsertMissing(ctx context.Context, categories []entity.CategoryDim) (int64, error) {
	if len(categories) == 0 {
		return 0, nil
	}
	defer metrics.NewDbTimer(serviceName, metrics.DbOpInsert, "dim_category").ObserveDuration()

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "category_key"}}, DoNothing: true}).
		CreateInBatches(&categories, r.batchSize)
	if result.Error != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpInsert)
		return 0, fmt.Errorf("failed to insert categories: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// productRepository реализует ProductRepository
type productRepository struct {
	db        *gorm.DB
	batchSize int
}

// NewProductRepository создает репозиторий измерения товаров
func NewProductRepository(db *gorm.DB, batchSize int) ProductRepository {
	return &productRepository{db: db, batchSize: batchSize}
}

// ListAll возвращает все товары
func (r *productRepository) ListAll(ctx context.Context) ([]entity.ProductDim, error) {
	defer metrics.NewDbTimer(serviceName, metrics.DbOpSelect, "dim_product").ObserveDuration()

	var products []entity.ProductDim
	if err := r.db.WithContext(ctx).Order("product_sk").Find(&products).Error; err != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpSelect)
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// Upsert вставляет товары; при конфликте по product_id перезаписывает атрибуты,
// только если data_hash отличается. created_at существующих строк не меняется
func (r *productRepository) Upsert(ctx context.Context, products []entity.ProductDim) error {
	if len(products) == 0 {
		return nil
	}
	defer metrics.NewDbTimer(serviceName, metrics.DbOpInsert, "dim_product").ObserveDuration()

	err := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"title", "category_sk", "category", "price", "description",
				"image", "rating_rate", "rating_count", "data_hash", "updated_at",
			}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "dim_product.data_hash <> excluded.data_hash"},
			}},
		}).
		CreateInBatches(&products, r.batchSize).Error
	if err != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpInsert)
		if isDuplicateKeyError(err) {
			return fmt.Errorf("failed to upsert products: %w", ErrDuplicateKey)
		}
		return fmt.Errorf("failed to upsert products: %w", err)
	}
	return nil
}
