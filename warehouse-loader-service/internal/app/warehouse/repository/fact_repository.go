package repository

import (
	"context"
	"fmt"

	"ecommerce-dw/pkg/metrics"
	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// cartFactRepository реализует CartFactRepository
type cartFactRepository struct {
	db        *gorm.DB
	batchSize int
}

// NewCartFactRepository создает репозиторий факта корзин
func NewCartFactRepository(db *gorm.DB, batchSize int) CartFactRepository {
	return &cartFactRepository{db: db, batchSize: batchSize}
}

// LoadedCarts возвращает соответствие cart_id -> cart_sk
func (r *cartFactRepository) LoadedCarts(ctx context.Context) (map[string]int64, error) {
	defer metrics.NewDbTimer(serviceName, metrics.DbOpSelect, "fact_cart").ObserveDuration()

	var rows []struct {
		CartID string
		CartSK int64
	}
	err := r.db.WithContext(ctx).Model(&entity.CartFact{}).
		Select("cart_id", "cart_sk").
		Find(&rows).Error
	if err != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpSelect)
		return nil, fmt.Errorf("failed to list loaded carts: %w", err)
	}

	loaded := make(map[string]int64, len(rows))
	for _, row := range rows {
		loaded[row.CartID] = row.CartSK
	}
	return loaded, nil
}

// InsertNew вставляет корзины через ON CONFLICT (cart_id) DO NOTHING
func (r *cartFactRepository) InsertNew(ctx context.Context, facts []entity.CartFact) (int64, error) {
	if len(facts) == 0 {
		return 0, nil
	}
	defer metrics.NewDbTimer(serviceName, metrics.DbOpInsert, "fact_cart").ObserveDuration()

	result := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "cart_id"}}, DoNothing: true}).
		CreateInBatches(&facts, r.batchSize)
	if result.Error != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpInsert)
		return 0, fmt.Errorf("failed to insert cart facts: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// cartItemFactRepository реализует CartItemFactRepository
type cartItemFactRepository struct {
	db        *gorm.DB
	batchSize int
}

// NewCartItemFactRepository создает репозиторий факта строк корзин
func NewCartItemFactRepository(db *gorm.DB, batchSize int) CartItemFactRepository {
	return &cartItemFactRepository{db: db, batchSize: batchSize}
}

// LoadedLines возвращает ключи (cart_sk, line_no) уже загруженных строк
func (r *cartItemFactRepository) LoadedLines(ctx context.Context) (map[entity.CartLineKey]struct{}, error) {
	defer metrics.NewDbTimer(serviceName, metrics.DbOpSelect, "fact_cart_item").ObserveDuration()

	var keys []entity.CartLineKey
	err := r.db.WithContext(ctx).Model(&entity.CartItemFact{}).
		Select("cart_sk", "line_no").
		Find(&keys).Error
	if err != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpSelect)
		return nil, fmt.Errorf("failed to list loaded cart lines: %w", err)
	}

	loaded := make(map[entity.CartLineKey]struct{}, len(keys))
	for _, k := range keys {
		loaded[k] = struct{}{}
	}
	return loaded, nil
}

// InsertNew вставляет строки через ON CONFLICT (cart_sk, line_no) DO NOTHING
func (r *cartItemFactRepository) InsertNew(ctx context.Context, items []entity.CartItemFact) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}
	defer metrics.NewDbTimer(serviceName, metrics.DbOpInsert, "fact_cart_item").ObserveDuration()

	result := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cart_sk"}, {Name: "line_no"}},
			DoNothing: true,
		}).
		CreateInBatches(&items, r.batchSize)
	if result.Error != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpInsert)
		return 0, fmt.Errorf("failed to insert cart item facts: %w", result.Error)
	}
	return result.RowsAffected, nil
}
