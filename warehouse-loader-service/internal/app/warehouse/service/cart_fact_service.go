package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/entity"
	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/repository"

	"github.com/shopspring/decimal"
)

// CartFactService загружает агрегаты корзин. Снимок корзины загружается не более
// одного раза: уже загруженный cart_id пропускается и не обновляется
type CartFactService struct {
	stagingRepo      repository.StagingRepository
	customerRepo     repository.CustomerRepository
	productRepo      repository.ProductRepository
	dateRepo         repository.DateRepository
	cartRepo         repository.CartFactRepository
	batchSize        int
	rejectNoCustomer bool
	clock            func() time.Time
}

// NewCartFactService создает загрузчик факта корзин.
// rejectNoCustomer отклоняет корзины неизвестных клиентов вместо вставки с NULL customer_sk
func NewCartFactService(
	stagingRepo repository.StagingRepository,
	customerRepo repository.CustomerRepository,
	productRepo repository.ProductRepository,
	dateRepo repository.DateRepository,
	cartRepo repository.CartFactRepository,
	batchSize int,
	rejectNoCustomer bool,
) *CartFactService {
	return &CartFactService{
		stagingRepo:      stagingRepo,
		customerRepo:     customerRepo,
		productRepo:      productRepo,
		dateRepo:         dateRepo,
		cartRepo:         cartRepo,
		batchSize:        batchSize,
		rejectNoCustomer: rejectNoCustomer,
		clock:            time.Now,
	}
}

func (s *CartFactService) Name() entity.StageName {
	return entity.StageLoadCartFact
}

// stagedCart строки одной корзины в порядке снимка
type stagedCart struct {
	id    int64
	lines []entity.StagedCartLine
}

// groupCarts группирует строки по cart_id с сохранением порядка появления корзин
func groupCarts(lines []entity.StagedCartLine) []stagedCart {
	index := make(map[int64]int)
	var carts []stagedCart
	for _, line := range lines {
		i, ok := index[line.CartID]
		if !ok {
			i = len(carts)
			index[line.CartID] = i
			carts = append(carts, stagedCart{id: line.CartID})
		}
		carts[i].lines = append(carts[i].lines, line)
	}
	return carts
}

// productPrices возвращает текущие суррогаты и цены товаров по product_id
func productPrices(ctx context.Context, repo repository.ProductRepository) (map[string]entity.ProductDim, error) {
	products, err := repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read product dimension: %w", err)
	}
	byID := make(map[string]entity.ProductDim, len(products))
	for _, p := range products {
		byID[p.ProductID] = p
	}
	return byID, nil
}

func cartKey(id int64) string {
	return fmt.Sprintf("cart:%d", id)
}

// Run считает total_items и total_value по текущим ценам измерения товаров.
// Корзина, в которой хотя бы один товар не найден, отклоняется целиком
// и будет повторена следующим запуском
func (s *CartFactService) Run(ctx context.Context) (*entity.StageResult, error) {
	lines, err := s.stagingRepo.CartLines(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read staged carts: %w", err)
	}

	loaded, err := s.cartRepo.LoadedCarts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read loaded carts: %w", err)
	}

	products, err := productPrices(ctx, s.productRepo)
	if err != nil {
		return nil, err
	}

	current, err := s.customerRepo.ListCurrent(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read current customers: %w", err)
	}
	customerSK := make(map[string]int64, len(current))
	for _, c := range current {
		customerSK[c.CustomerID] = c.CustomerSK
	}

	rec := newStageRecorder(ctx, s.Name())
	now := s.clock().UTC()

	var candidates []entity.CartFact
	dateKeys := make(map[int]struct{})
	for _, cart := range groupCarts(lines) {
		key := cartKey(cart.id)
		if _, ok := loaded[strconv.FormatInt(cart.id, 10)]; ok {
			rec.result.Skipped++
			continue
		}

		fact, err := s.buildCart(cart, products, customerSK, rec)
		if err != nil {
			rec.reject(key, err)
			continue
		}
		fact.CreatedAt = now
		candidates = append(candidates, fact)
		dateKeys[fact.DateKey] = struct{}{}
	}

	keys := make([]int, 0, len(dateKeys))
	for k := range dateKeys {
		keys = append(keys, k)
	}
	existingDates, err := s.dateRepo.ExistingKeys(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to check date keys: %w", err)
	}

	var facts []entity.CartFact
	for _, fact := range candidates {
		if _, ok := existingDates[fact.DateKey]; !ok {
			rec.reject("cart:"+fact.CartID, fmt.Errorf("%w: date %d is not in dim_date", ErrReferentialGap, fact.DateKey))
			continue
		}
		facts = append(facts, fact)
	}

	written, failed, err := writeInBatches(ctx, rec, facts, s.batchSize,
		func(f entity.CartFact) string { return "cart:" + f.CartID },
		s.cartRepo.InsertNew,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert cart facts: %w", err)
	}

	rec.result.Inserted = int(written)
	rec.result.Skipped += len(facts) - int(written) - failed
	return rec.done(), nil
}

// buildCart агрегирует строки корзины; дата и клиент берутся из первой строки
func (s *CartFactService) buildCart(
	cart stagedCart,
	products map[string]entity.ProductDim,
	customerSK map[string]int64,
	rec *stageRecorder,
) (entity.CartFact, error) {
	first := cart.lines[0]
	totalItems := 0
	totalValue := decimal.Zero

	for i := range cart.lines {
		line := &cart.lines[i]
		if err := validateLine(line); err != nil {
			return entity.CartFact{}, err
		}
		product, ok := products[strconv.FormatInt(line.ProductID, 10)]
		if !ok {
			return entity.CartFact{}, fmt.Errorf("%w: product %d of line %d is not in dim_product",
				ErrReferentialGap, line.ProductID, line.LineNo)
		}
		totalItems += line.Quantity
		totalValue = totalValue.Add(product.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	cartDate := first.Date.UTC()
	fact := entity.CartFact{
		CartID:     strconv.FormatInt(cart.id, 10),
		DateKey:    entity.DateKeyOf(cartDate),
		CartDate:   cartDate,
		TotalItems: totalItems,
		TotalValue: totalValue.Round(2),
	}

	userID := strconv.FormatInt(first.UserID, 10)
	if sk, ok := customerSK[userID]; ok {
		fact.CustomerSK = &sk
		return fact, nil
	}

	gap := fmt.Errorf("%w: customer %s has no current version", ErrReferentialGap, userID)
	if s.rejectNoCustomer {
		return entity.CartFact{}, gap
	}
	rec.warn(cartKey(cart.id), gap)
	return fact, nil
}
