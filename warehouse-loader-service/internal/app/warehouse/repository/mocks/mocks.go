package mocks

import (
	"context"
	"time"

	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockStagingRepository мок для StagingRepository
type MockStagingRepository struct {
	mock.Mock
}

func (m *MockStagingRepository) Products(ctx context.Context) ([]entity.StagedProduct, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.StagedProduct), args.Error(1)
}

func (m *MockStagingRepository) Users(ctx context.Context) ([]entity.StagedUser, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.StagedUser), args.Error(1)
}

func (m *MockStagingRepository) CartLines(ctx context.Context) ([]entity.StagedCartLine, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.StagedCartLine), args.Error(1)
}

func (m *MockStagingRepository) CartDateRange(ctx context.Context) (*time.Time, *time.Time, error) {
	args := m.Called(ctx)
	var first, last *time.Time
	if args.Get(0) != nil {
		first = args.Get(0).(*time.Time)
	}
	if args.Get(1) != nil {
		last = args.Get(1).(*time.Time)
	}
	return first, last, args.Error(2)
}

// MockDateRepository мок для DateRepository
type MockDateRepository struct {
	mock.Mock
}

func (m *MockDateRepository) InsertMissing(ctx context.Context, days []entity.DateDim) (int64, error) {
	args := m.Called(ctx, days)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDateRepository) ExistingKeys(ctx context.Context, keys []int) (map[int]struct{}, error) {
	args := m.Called(ctx, keys)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int]struct{}), args.Error(1)
}

// MockCategoryRepository мок для CategoryRepository
type MockCategoryRepository struct {
	mock.Mock
}

func (m *MockCategoryRepository) ListAll(ctx context.Context) ([]entity.CategoryDim, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.CategoryDim), args.Error(1)
}

func (m *MockCategoryRepository) InsertMissing(ctx context.Context, categories []entity.CategoryDim) (int64, error) {
	args := m.Called(ctx, categories)
	return args.Get(0).(int64), args.Error(1)
}

// MockProductRepository мок для ProductRepository
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) ListAll(ctx context.Context) ([]entity.ProductDim, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.ProductDim), args.Error(1)
}

func (m *MockProductRepository) Upsert(ctx context.Context, products []entity.ProductDim) error {
	args := m.Called(ctx, products)
	return args.Error(0)
}

// MockCustomerRepository мок для CustomerRepository
type MockCustomerRepository struct {
	mock.Mock
}

func (m *MockCustomerRepository) ListCurrent(ctx context.Context) ([]entity.CustomerDim, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.CustomerDim), args.Error(1)
}

func (m *MockCustomerRepository) InsertNew(ctx context.Context, customers []entity.CustomerDim) error {
	args := m.Called(ctx, customers)
	return args.Error(0)
}

func (m *MockCustomerRepository) ReplaceCurrent(ctx context.Context, currentSK int64, closedAt time.Time, next *entity.CustomerDim) error {
	args := m.Called(ctx, currentSK, closedAt, next)
	return args.Error(0)
}

func (m *MockCustomerRepository) History(ctx context.Context, customerID string) ([]entity.CustomerDim, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.CustomerDim), args.Error(1)
}

// MockCartFactRepository мок для CartFactRepository
type MockCartFactRepository struct {
	mock.Mock
}

func (m *MockCartFactRepository) LoadedCarts(ctx context.Context) (map[string]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int64), args.Error(1)
}

func (m *MockCartFactRepository) InsertNew(ctx context.Context, facts []entity.CartFact) (int64, error) {
	args := m.Called(ctx, facts)
	return args.Get(0).(int64), args.Error(1)
}

// MockCartItemFactRepository мок для CartItemFactRepository
type MockCartItemFactRepository struct {
	mock.Mock
}

func (m *MockCartItemFactRepository) LoadedLines(ctx context.Context) (map[entity.CartLineKey]struct{}, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[entity.CartLineKey]struct{}), args.Error(1)
}

func (m *MockCartItemFactRepository) InsertNew(ctx context.Context, items []entity.CartItemFact) (int64, error) {
	args := m.Called(ctx, items)
	return args.Get(0).(int64), args.Error(1)
}

// MockLoadRunRepository мок для LoadRunRepository
type MockLoadRunRepository struct {
	mock.Mock
}

func (m *MockLoadRunRepository) Create(ctx context.Context, run *entity.LoadRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockLoadRunRepository) Update(ctx context.Context, run *entity.LoadRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockLoadRunRepository) GetByID(ctx context.Context, runID uuid.UUID) (*entity.LoadRun, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.LoadRun), args.Error(1)
}

func (m *MockLoadRunRepository) GetLatest(ctx context.Context) (*entity.LoadRun, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.LoadRun), args.Error(1)
}

// MockRunLockRepository мок для RunLockRepository
type MockRunLockRepository struct {
	mock.Mock
}

func (m *MockRunLockRepository) Acquire(ctx context.Context, token string) (bool, error) {
	args := m.Called(ctx, token)
	return args.Bool(0), args.Error(1)
}

func (m *MockRunLockRepository) Release(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}
