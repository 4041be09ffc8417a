package service

import (
	"context"
	"testing"
	"time"

	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/entity"
	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/repository"
	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

// WarehouseLoadTestSuite прогоняет стадии загрузки поверх SQLite
type WarehouseLoadTestSuite struct {
	suite.Suite
	db  *gorm.DB
	ctx context.Context

	customerRepo repository.CustomerRepository

	dates      *DateDimensionService
	categories *CategoryService
	products   *ProductService
	customers  *CustomerService
	carts      *CartFactService
	items      *CartItemFactService
}

func TestWarehouseLoadSuite(t *testing.T) {
	suite.Run(t, new(WarehouseLoadTestSuite))
}

var (
	dayJan15 = time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)
	runAt    = time.Date(2024, 1, 31, 2, 30, 0, 0, time.UTC)
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func (s *WarehouseLoadTestSuite) SetupTest() {
	s.db = testutil.OpenWarehouse(s.T())
	s.ctx = context.Background()

	staging := repository.NewStagingRepository(s.db)
	dateRepo := repository.NewDateRepository(s.db, 50)
	categoryRepo := repository.NewCategoryRepository(s.db, 50)
	productRepo := repository.NewProductRepository(s.db, 50)
	s.customerRepo = repository.NewCustomerRepository(s.db, 50)
	cartRepo := repository.NewCartFactRepository(s.db, 50)
	itemRepo := repository.NewCartItemFactRepository(s.db, 50)

	s.dates = NewDateDimensionService(staging, dateRepo, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 0, 50)
	s.categories = NewCategoryService(staging, categoryRepo, 50)
	s.products = NewProductService(staging, categoryRepo, productRepo, 50)
	s.customers = NewCustomerService(staging, s.customerRepo, "", 50)
	s.carts = NewCartFactService(staging, s.customerRepo, productRepo, dateRepo, cartRepo, 50, false)
	s.items = NewCartItemFactService(staging, productRepo, cartRepo, itemRepo, 50)

	for _, setClock := range []*func() time.Time{
		&s.dates.clock, &s.categories.clock, &s.products.clock,
		&s.customers.clock, &s.carts.clock, &s.items.clock,
	} {
		*setClock = fixedClock(runAt)
	}
}

func (s *WarehouseLoadTestSuite) stages() []Stage {
	return []Stage{s.dates, s.categories, s.products, s.customers, s.carts, s.items}
}

func (s *WarehouseLoadTestSuite) runAll() map[entity.StageName]*entity.StageResult {
	results := make(map[entity.StageName]*entity.StageResult)
	for _, stage := range s.stages() {
		result, err := stage.Run(s.ctx)
		s.Require().NoError(err, "stage %s", stage.Name())
		results[stage.Name()] = result
	}
	return results
}

func (s *WarehouseLoadTestSuite) stageProducts(rows ...entity.StagedProduct) {
	testutil.ReplaceStaging(s.T(), s.db, rows)
}

func (s *WarehouseLoadTestSuite) stageUsers(rows ...entity.StagedUser) {
	testutil.ReplaceStaging(s.T(), s.db, rows)
}

func (s *WarehouseLoadTestSuite) stageCarts(rows ...entity.StagedCartLine) {
	testutil.ReplaceStaging(s.T(), s.db, rows)
}

func (s *WarehouseLoadTestSuite) count(model interface{}) int64 {
	var n int64
	s.Require().NoError(s.db.Model(model).Count(&n).Error)
	return n
}

func hammer(price float64) entity.StagedProduct {
	return entity.StagedProduct{ID: 1, Title: "Hammer", Price: price, Category: "Tools", RatingRate: 4.5, RatingCount: 10}
}

func ann(email string) entity.StagedUser {
	return entity.StagedUser{
		ID:              1,
		Email:           email,
		Username:        "ann",
		Password:        "secret",
		NameFirst:       "Ann",
		NameLast:        "Lee",
		AddressCity:     "Springfield",
		AddressStreet:   "Main St",
		AddressNumber:   7,
		AddressZipcode:  "12345",
		GeolocationLat:  "-37.3159",
		GeolocationLong: "81.1496",
		Phone:           "1-570-236-7033",
	}
}

func line(cartID, userID, productID int64, qty int, day time.Time) entity.StagedCartLine {
	return entity.StagedCartLine{CartID: cartID, UserID: userID, Date: day, ProductID: productID, Quantity: qty}
}

// interruptedItemRepo отменяет контекст на вызове InsertNew с номером stopAt
type interruptedItemRepo struct {
	repository.CartItemFactRepository
	cancel context.CancelFunc
	stopAt int
	calls  int
}

func (r *interruptedItemRepo) InsertNew(ctx context.Context, items []entity.CartItemFact) (int64, error) {
	r.calls++
	if r.calls == r.stopAt {
		r.cancel()
		return 0, ctx.Err()
	}
	return r.CartItemFactRepository.InsertNew(ctx, items)
}

// ===================== End-to-End Tests =====================

func (s *WarehouseLoadTestSuite) TestEndToEnd_RowsLandWithForeignKeysEnforced() {
	var enforced int
	s.Require().NoError(s.db.Raw("PRAGMA foreign_keys").Scan(&enforced).Error)
	s.Require().Equal(1, enforced)

	// Arrange
	s.stageProducts(hammer(10))
	s.stageUsers(ann("ann@example.com"))
	s.stageCarts(line(100, 1, 1, 2, dayJan15), line(101, 1, 1, 1, dayJan15.AddDate(0, 0, 1)))

	// Act
	results := s.runAll()

	// Assert
	for name, r := range results {
		s.Equal(0, r.Errored, "stage %s: %v", name, r.Errors)
	}
	for _, model := range []interface{}{&entity.DateDim{}, &entity.CategoryDim{}, &entity.ProductDim{}, &entity.CustomerDim{}} {
		s.Positive(s.count(model))
	}
	s.Equal(int64(2), s.count(&entity.CartFact{}))
	s.Equal(int64(2), s.count(&entity.CartItemFact{}))

	orphan := entity.CartItemFact{
		CartSK: 999, LineNo: 1, ProductSK: 1, Quantity: 1,
		UnitPrice: decimal.NewFromInt(1), LineTotal: decimal.NewFromInt(1), CreatedAt: runAt,
	}
	s.Error(s.db.Create(&orphan).Error)
}

func (s *WarehouseLoadTestSuite) TestEndToEnd_CartWithRepeatedProduct() {
	// Arrange
	s.stageProducts(hammer(10))
	s.stageUsers(ann("ann@example.com"))
	s.stageCarts(
		line(100, 1, 1, 3, dayJan15),
		line(100, 1, 1, 3, dayJan15),
	)

	// Act
	results := s.runAll()

	// Assert
	for name, r := range results {
		s.Equal(0, r.Errored, "stage %s", name)
	}

	var customer entity.CustomerDim
	s.Require().NoError(s.db.Where("customer_id = ?", "1").Take(&customer).Error)

	var cart entity.CartFact
	s.Require().NoError(s.db.Where("cart_id = ?", "100").Take(&cart).Error)
	s.Equal(6, cart.TotalItems)
	s.True(decimal.NewFromInt(60).Equal(cart.TotalValue), "total_value = %s", cart.TotalValue)
	s.Require().NotNil(cart.CustomerSK)
	s.Equal(customer.CustomerSK, *cart.CustomerSK)
	s.Equal(20240115, cart.DateKey)

	var items []entity.CartItemFact
	s.Require().NoError(s.db.Where("cart_sk = ?", cart.CartSK).Order("line_no").Find(&items).Error)
	s.Require().Len(items, 2)
	for i, item := range items {
		s.Equal(i+1, item.LineNo)
		s.Equal(3, item.Quantity)
		s.True(decimal.NewFromInt(10).Equal(item.UnitPrice))
		s.True(decimal.NewFromInt(30).Equal(item.LineTotal), "line_total = %s", item.LineTotal)
	}
}

func (s *WarehouseLoadTestSuite) TestRerun_UnchangedStagingAddsNothing() {
	// Arrange
	s.stageProducts(hammer(10))
	s.stageUsers(ann("ann@example.com"))
	s.stageCarts(line(100, 1, 1, 3, dayJan15), line(100, 1, 1, 1, dayJan15))
	s.runAll()

	tables := []interface{}{
		&entity.DateDim{}, &entity.CategoryDim{}, &entity.ProductDim{},
		&entity.CustomerDim{}, &entity.CartFact{}, &entity.CartItemFact{},
	}
	before := make([]int64, len(tables))
	for i, model := range tables {
		before[i] = s.count(model)
	}

	// Act
	results := s.runAll()

	// Assert
	for i, model := range tables {
		s.Equal(before[i], s.count(model))
	}
	for name, r := range results {
		s.Equal(0, r.Inserted, "stage %s", name)
		s.Equal(0, r.Updated, "stage %s", name)
		s.Equal(0, r.Errored, "stage %s", name)
	}
	s.Equal(1, results[entity.StageMergeProduct].Skipped)
	s.Equal(1, results[entity.StageVersionCustomer].Skipped)
	s.Equal(1, results[entity.StageLoadCartFact].Skipped)
	s.Equal(2, results[entity.StageLoadCartItemFact].Skipped)
}

// ===================== Date Dimension Tests =====================

func (s *WarehouseLoadTestSuite) TestSeed_InclusiveRangeIsIdempotent() {
	start := time.Date(2024, 2, 27, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)

	first, err := s.dates.Seed(s.ctx, start, end)
	s.Require().NoError(err)
	s.Equal(5, first.Inserted) // 2024 високосный: 27, 28, 29 февраля, 1, 2 марта

	second, err := s.dates.Seed(s.ctx, start, end)
	s.Require().NoError(err)
	s.Equal(0, second.Inserted)
	s.Equal(5, second.Skipped)

	var saturday entity.DateDim
	s.Require().NoError(s.db.Where("date_key = ?", 20240302).Take(&saturday).Error)
	s.True(saturday.IsWeekend)
	s.Equal(6, saturday.ISODayOfWeek)
	s.Equal(1, saturday.Quarter)
}

func (s *WarehouseLoadTestSuite) TestSeed_EndBeforeStart() {
	_, err := s.dates.Seed(s.ctx, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	s.ErrorIs(err, ErrValidation)
}

func (s *WarehouseLoadTestSuite) TestDateRun_WidensRangeToStagedCarts() {
	// Arrange
	s.stageCarts(line(100, 1, 1, 1, time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)))

	// Act
	result, err := s.dates.Run(s.ctx)

	// Assert
	s.Require().NoError(err)
	s.Equal(65, result.Inserted) // 1 января .. 5 марта 2024
	s.Equal(int64(65), s.count(&entity.DateDim{}))
}

// ===================== Category Tests =====================

func (s *WarehouseLoadTestSuite) TestCategories_CaseInsensitiveFirstSeenCasing() {
	// Arrange
	s.stageProducts(
		entity.StagedProduct{ID: 1, Title: "Hammer", Category: "Tools"},
		entity.StagedProduct{ID: 2, Title: "Saw", Category: " tools "},
		entity.StagedProduct{ID: 3, Title: "Drill", Category: "TOOLS"},
	)

	// Act
	result, err := s.categories.Run(s.ctx)

	// Assert
	s.Require().NoError(err)
	s.Equal(1, result.Inserted)

	var categories []entity.CategoryDim
	s.Require().NoError(s.db.Find(&categories).Error)
	s.Require().Len(categories, 1)
	s.Equal("Tools", categories[0].CategoryName)
	s.Equal("tools", categories[0].CategoryKey)

	// Другой регистр в следующем снимке не создает строку и не переименовывает категорию
	s.stageProducts(entity.StagedProduct{ID: 1, Title: "Hammer", Category: "tOOLS"})
	result, err = s.categories.Run(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, result.Inserted)
	s.Equal(1, result.Skipped)
	s.Equal(int64(1), s.count(&entity.CategoryDim{}))
}

func (s *WarehouseLoadTestSuite) TestCategories_BlankCategoryRejected() {
	s.stageProducts(
		entity.StagedProduct{ID: 1, Title: "Hammer", Category: "   "},
		entity.StagedProduct{ID: 2, Title: "Shirt", Category: "Clothing"},
	)

	result, err := s.categories.Run(s.ctx)

	s.Require().NoError(err)
	s.Equal(1, result.Inserted)
	s.Equal(1, result.Errored)
	s.Equal(entity.StageStatusPartial, result.Status())
	s.Require().Len(result.Errors, 1)
	s.Equal("product:1", result.Errors[0].NaturalKey)
	s.Equal(entity.RowErrorValidation, result.Errors[0].Kind)
}

// ===================== Product Tests =====================

func (s *WarehouseLoadTestSuite) TestProducts_OverwriteOnlyOnFingerprintChange() {
	// Arrange
	s.stageProducts(hammer(10))
	_, err := s.categories.Run(s.ctx)
	s.Require().NoError(err)
	first, err := s.products.Run(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, first.Inserted)

	var before entity.ProductDim
	s.Require().NoError(s.db.Where("product_id = ?", "1").Take(&before).Error)

	// Act: меняется только описание
	changed := hammer(10)
	changed.Description = "Steel claw hammer"
	s.stageProducts(changed)
	s.products.clock = fixedClock(runAt.Add(24 * time.Hour))
	second, err := s.products.Run(s.ctx)

	// Assert
	s.Require().NoError(err)
	s.Equal(1, second.Updated)

	var updated entity.ProductDim
	s.Require().NoError(s.db.Where("product_id = ?", "1").Take(&updated).Error)
	s.Equal(before.ProductSK, updated.ProductSK)
	s.Equal("Steel claw hammer", updated.Description)
	s.NotEqual(before.DataHash, updated.DataHash)
	s.True(before.CreatedAt.Equal(updated.CreatedAt))
	s.True(updated.UpdatedAt.After(before.UpdatedAt))
	s.Equal(int64(1), s.count(&entity.ProductDim{}))
}

func (s *WarehouseLoadTestSuite) TestProducts_UnknownCategoryIsReferentialGap() {
	// Категории не слиты: товар ссылается на отсутствующую категорию
	s.stageProducts(hammer(10))

	result, err := s.products.Run(s.ctx)

	s.Require().NoError(err)
	s.Equal(1, result.Errored)
	s.Equal(entity.RowErrorReferentialGap, result.Errors[0].Kind)
	s.Equal(int64(0), s.count(&entity.ProductDim{}))
}

func (s *WarehouseLoadTestSuite) TestProducts_InvalidRowIsolated() {
	s.stageProducts(hammer(10), entity.StagedProduct{ID: 2, Title: "", Category: "Tools"})
	_, err := s.categories.Run(s.ctx)
	s.Require().NoError(err)

	result, err := s.products.Run(s.ctx)

	s.Require().NoError(err)
	s.Equal(1, result.Inserted)
	s.Equal(1, result.Errored)
	s.Equal("product:2", result.Errors[0].NaturalKey)
	s.Equal(entity.RowErrorValidation, result.Errors[0].Kind)
}

// ===================== Customer Tests =====================

func (s *WarehouseLoadTestSuite) TestCustomers_EmailChangeOpensNewVersion() {
	// Arrange: первая загрузка с корзиной
	s.stageProducts(hammer(10))
	s.stageUsers(ann("ann@example.com"))
	s.stageCarts(line(100, 1, 1, 2, dayJan15))
	s.runAll()

	history, err := s.customerRepo.History(s.ctx, "1")
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	firstSK := history[0].CustomerSK

	// Act: email изменился, следующий запуск на сутки позже
	s.stageUsers(ann("ann.lee@example.com"))
	s.customers.clock = fixedClock(runAt.Add(24*time.Hour + 123456789*time.Nanosecond))
	result, err := s.customers.Run(s.ctx)

	// Assert
	s.Require().NoError(err)
	s.Equal(1, result.Updated)

	history, err = s.customerRepo.History(s.ctx, "1")
	s.Require().NoError(err)
	s.Require().Len(history, 2)

	prior, next := history[0], history[1]
	s.Equal(firstSK, prior.CustomerSK)
	s.False(prior.IsCurrent)
	s.Require().NotNil(prior.EndDate)
	s.True(prior.EndDate.Equal(next.StartDate), "intervals must be contiguous")
	s.Equal(0, next.StartDate.Nanosecond()%1000)
	s.True(next.IsCurrent)
	s.Nil(next.EndDate)
	s.Equal("ann.lee@example.com", next.Email)
	s.Equal("ann@example.com", prior.Email)

	// Старый факт продолжает ссылаться на прежнюю версию
	var cart entity.CartFact
	s.Require().NoError(s.db.Where("cart_id = ?", "100").Take(&cart).Error)
	s.Equal(firstSK, *cart.CustomerSK)
}

func (s *WarehouseLoadTestSuite) TestCustomers_OneCurrentVersionAfterManyChanges() {
	for i, email := range []string{"a@example.com", "b@example.com", "a@example.com", "c@example.com"} {
		s.stageUsers(ann(email))
		s.customers.clock = fixedClock(runAt.Add(time.Duration(i) * time.Hour))
		_, err := s.customers.Run(s.ctx)
		s.Require().NoError(err)
	}

	var current int64
	s.Require().NoError(s.db.Model(&entity.CustomerDim{}).
		Where("customer_id = ? AND is_current = ?", "1", true).Count(&current).Error)
	s.Equal(int64(1), current)

	history, err := s.customerRepo.History(s.ctx, "1")
	s.Require().NoError(err)
	s.Require().Len(history, 4)
	for i := 0; i < len(history)-1; i++ {
		s.Require().NotNil(history[i].EndDate)
		s.True(history[i].EndDate.Equal(history[i+1].StartDate))
		s.True(history[i].StartDate.Before(*history[i].EndDate))
	}
}

func (s *WarehouseLoadTestSuite) TestCustomers_DerivedAttributes() {
	s.stageUsers(ann("ann@example.com"))
	s.customers.defaultCountry = "USA"

	_, err := s.customers.Run(s.ctx)
	s.Require().NoError(err)

	var c entity.CustomerDim
	s.Require().NoError(s.db.Where("customer_id = ?", "1").Take(&c).Error)
	s.Equal("Ann Lee", c.FullName)
	s.Equal("7 Main St, Springfield, 12345", c.Address)
	s.Equal("-37.3159,81.1496", c.Geolocation)
	s.Equal("USA", c.Country)
	s.NotEqual("secret", c.PasswordDigest)
	s.Len(c.PasswordDigest, 64)
}

// ===================== Cart Fact Tests =====================

func (s *WarehouseLoadTestSuite) TestCarts_UnknownProductRejectsWholeCartUntilResolved() {
	// Arrange
	s.stageProducts(hammer(10))
	s.stageUsers(ann("ann@example.com"))
	s.stageCarts(line(100, 1, 1, 1, dayJan15), line(100, 1, 99, 1, dayJan15))

	// Act
	results := s.runAll()

	// Assert
	s.Equal(1, results[entity.StageLoadCartFact].Errored)
	s.Equal(entity.RowErrorReferentialGap, results[entity.StageLoadCartFact].Errors[0].Kind)
	s.Equal(2, results[entity.StageLoadCartItemFact].Errored)
	s.Equal(int64(0), s.count(&entity.CartFact{}))

	// Товар появился в следующем снимке: корзина загружается
	s.stageProducts(hammer(10), entity.StagedProduct{ID: 99, Title: "Nails", Price: 2.5, Category: "Tools"})
	results = s.runAll()
	s.Equal(1, results[entity.StageLoadCartFact].Inserted)
	s.Equal(2, results[entity.StageLoadCartItemFact].Inserted)

	var cart entity.CartFact
	s.Require().NoError(s.db.Where("cart_id = ?", "100").Take(&cart).Error)
	s.True(decimal.RequireFromString("12.50").Equal(cart.TotalValue))
}

func (s *WarehouseLoadTestSuite) TestCarts_UnknownCustomerLoadedWithWarning() {
	s.stageProducts(hammer(10))
	s.stageCarts(line(100, 42, 1, 1, dayJan15))

	results := s.runAll()

	r := results[entity.StageLoadCartFact]
	s.Equal(1, r.Inserted)
	s.Equal(0, r.Errored)
	s.Require().Len(r.Warnings, 1)
	s.Equal("cart:100", r.Warnings[0].NaturalKey)

	var cart entity.CartFact
	s.Require().NoError(s.db.Where("cart_id = ?", "100").Take(&cart).Error)
	s.Nil(cart.CustomerSK)
}

func (s *WarehouseLoadTestSuite) TestCarts_UnknownCustomerRejectedWhenConfigured() {
	s.carts.rejectNoCustomer = true
	s.stageProducts(hammer(10))
	s.stageCarts(line(100, 42, 1, 1, dayJan15))

	results := s.runAll()

	s.Equal(1, results[entity.StageLoadCartFact].Errored)
	s.Equal(int64(0), s.count(&entity.CartFact{}))
}

func (s *WarehouseLoadTestSuite) TestCarts_MissingDateIsReferentialGap() {
	s.stageProducts(hammer(10))
	s.stageCarts(line(100, 1, 1, 1, dayJan15))
	for _, stage := range []Stage{s.categories, s.products} {
		_, err := stage.Run(s.ctx)
		s.Require().NoError(err)
	}

	// Календарь не засеян
	result, err := s.carts.Run(s.ctx)

	s.Require().NoError(err)
	s.Equal(1, result.Errored)
	s.Contains(result.Errors[0].Message, "20240115")
}

// ===================== Cart Item Fact Tests =====================

func (s *WarehouseLoadTestSuite) TestItems_PriceTakenAtLoadTime() {
	// Arrange: корзина 100 загружена по цене 10
	s.stageProducts(hammer(10))
	s.stageUsers(ann("ann@example.com"))
	s.stageCarts(line(100, 1, 1, 3, dayJan15))
	s.runAll()

	// Act: цена изменилась, в снимке появилась корзина 101
	s.stageProducts(hammer(12.5))
	s.stageCarts(line(100, 1, 1, 3, dayJan15), line(101, 1, 1, 2, dayJan15))
	results := s.runAll()

	// Assert
	s.Equal(1, results[entity.StageMergeProduct].Updated)
	s.Equal(1, results[entity.StageLoadCartItemFact].Inserted)
	s.Equal(1, results[entity.StageLoadCartItemFact].Skipped)

	var items []entity.CartItemFact
	s.Require().NoError(s.db.Joins("JOIN fact_cart ON fact_cart.cart_sk = fact_cart_item.cart_sk").
		Order("fact_cart.cart_id").Find(&items).Error)
	s.Require().Len(items, 2)
	s.True(decimal.NewFromInt(30).Equal(items[0].LineTotal))
	s.True(decimal.NewFromInt(25).Equal(items[1].LineTotal))
	s.True(decimal.RequireFromString("12.5").Equal(items[1].UnitPrice))
}

func (s *WarehouseLoadTestSuite) TestItems_InterruptedLoadCompletesOnRetry() {
	// Arrange: корзина из трех строк, измерения и fact_cart загружены
	s.stageProducts(hammer(10))
	s.stageUsers(ann("ann@example.com"))
	s.stageCarts(
		line(100, 1, 1, 3, dayJan15),
		line(100, 1, 1, 1, dayJan15),
		line(100, 1, 1, 2, dayJan15),
	)
	for _, stage := range []Stage{s.dates, s.categories, s.products, s.customers, s.carts} {
		_, err := stage.Run(s.ctx)
		s.Require().NoError(err)
	}

	// Загрузка строк обрывается после первой вставленной строки
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	broken := &interruptedItemRepo{
		CartItemFactRepository: repository.NewCartItemFactRepository(s.db, 1),
		cancel:                 cancel,
		stopAt:                 2,
	}
	interrupted := NewCartItemFactService(
		repository.NewStagingRepository(s.db),
		repository.NewProductRepository(s.db, 1),
		repository.NewCartFactRepository(s.db, 1),
		broken, 1,
	)
	_, err := interrupted.Run(ctx)
	s.Require().ErrorIs(err, context.Canceled)
	s.Require().Equal(int64(1), s.count(&entity.CartItemFact{}))

	// Act
	result, err := s.items.Run(s.ctx)

	// Assert
	s.Require().NoError(err)
	s.Equal(2, result.Inserted)
	s.Equal(1, result.Skipped)
	s.Equal(0, result.Errored)

	var items []entity.CartItemFact
	s.Require().NoError(s.db.Order("line_no").Find(&items).Error)
	s.Require().Len(items, 3)
	total := 0
	for i, item := range items {
		s.Equal(i+1, item.LineNo)
		total += item.Quantity
	}
	s.Equal(6, total)
}
