package repository

import (
	"context"
	"time"

	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/entity"

	"github.com/google/uuid"
)

// StagingRepository интерфейс для чтения полного снимка из схемы staging
type StagingRepository interface {
	// Products возвращает товары в порядке загрузки снимка
	Products(ctx context.Context) ([]entity.StagedProduct, error)

	// Users возвращает пользователей в порядке загрузки снимка
	Users(ctx context.Context) ([]entity.StagedUser, error)

	// CartLines возвращает строки корзин с вычисленным номером строки внутри корзины
	CartLines(ctx context.Context) ([]entity.StagedCartLine, error)

	// CartDateRange возвращает минимальную и максимальную дату корзин (nil, если корзин нет)
	CartDateRange(ctx context.Context) (*time.Time, *time.Time, error)
}

// DateRepository интерфейс календарного измерения
type DateRepository interface {
	// InsertMissing вставляет дни, которых еще нет; возвращает число вставленных строк
	InsertMissing(ctx context.Context, days []entity.DateDim) (int64, error)

	// ExistingKeys возвращает ключи из списка, присутствующие в измерении
	ExistingKeys(ctx context.Context, keys []int) (map[int]struct{}, error)
}

// CategoryRepository интерфейс измерения категорий
type CategoryRepository interface {
	// ListAll возвращает все категории
	ListAll(ctx context.Context) ([]entity.CategoryDim, error)

	// InsertMissing вставляет категории, пропуская уже существующие ключи
	InsertMissing(ctx context.Context, categories []entity.CategoryDim) (int64, error)
}

// ProductRepository интерфейс измерения товаров
type ProductRepository interface {
	// ListAll возвращает все товары
	ListAll(ctx context.Context) ([]entity.ProductDim, error)

	// Upsert вставляет новые товары и перезаписывает существующие только при изменении data_hash
	Upsert(ctx context.Context, products []entity.ProductDim) error
}

// CustomerRepository интерфейс измерения клиентов (SCD Type 2)
type CustomerRepository interface {
	// ListCurrent возвращает текущие версии всех клиентов
	ListCurrent(ctx context.Context) ([]entity.CustomerDim, error)

	// InsertNew вставляет первые версии новых клиентов
	InsertNew(ctx context.Context, customers []entity.CustomerDim) error

	// ReplaceCurrent атомарно закрывает текущую версию и открывает следующую
	ReplaceCurrent(ctx context.Context, currentSK int64, closedAt time.Time, next *entity.CustomerDim) error

	// History возвращает все версии клиента по возрастанию start_date
	History(ctx context.Context, customerID string) ([]entity.CustomerDim, error)
}

// CartFactRepository интерфейс факта корзин
type CartFactRepository interface {
	// LoadedCarts возвращает соответствие cart_id -> cart_sk для загруженных корзин
	LoadedCarts(ctx context.Context) (map[string]int64, error)

	// InsertNew вставляет корзины, пропуская уже загруженные cart_id
	InsertNew(ctx context.Context, facts []entity.CartFact) (int64, error)
}

// CartItemFactRepository интерфейс факта строк корзин
type CartItemFactRepository interface {
	// LoadedLines возвращает ключи уже загруженных строк
	LoadedLines(ctx context.Context) (map[entity.CartLineKey]struct{}, error)

	// InsertNew вставляет строки, пропуская существующие пары (cart_sk, line_no)
	InsertNew(ctx context.Context, items []entity.CartItemFact) (int64, error)
}

// LoadRunRepository интерфейс журнала запусков
type LoadRunRepository interface {
	// Create создает запись о начатом запуске
	Create(ctx context.Context, run *entity.LoadRun) error

	// Update сохраняет итог запуска
	Update(ctx context.Context, run *entity.LoadRun) error

	// GetByID получает запуск по ID
	GetByID(ctx context.Context, runID uuid.UUID) (*entity.LoadRun, error)

	// GetLatest получает последний начатый запуск
	GetLatest(ctx context.Context) (*entity.LoadRun, error)
}

// RunLockRepository интерфейс распределенной блокировки запуска в Redis
type RunLockRepository interface {
	// Acquire пытается захватить блокировку; false, если ее держит другой запуск
	Acquire(ctx context.Context, token string) (bool, error)

	// Release снимает блокировку, только если она принадлежит token
	Release(ctx context.Context, token string) error
}
