package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/entity"
	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/repository"
	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/util"

	"github.com/shopspring/decimal"
)

// CartItemFactService загружает строки корзин.
// Ключ идемпотентности - (cart_sk, line_no)
type CartItemFactService struct {
	stagingRepo repository.StagingRepository
	productRepo repository.ProductRepository
	cartRepo    repository.CartFactRepository
	itemRepo    repository.CartItemFactRepository
	batchSize   int
	clock       func() time.Time
}

// NewCartItemFactService создает загрузчик факта строк корзин
func NewCartItemFactService(
	stagingRepo repository.StagingRepository,
	productRepo repository.ProductRepository,
	cartRepo repository.CartFactRepository,
	itemRepo repository.CartItemFactRepository,
	batchSize int,
) *CartItemFactService {
	return &CartItemFactService{
		stagingRepo: stagingRepo,
		productRepo: productRepo,
		cartRepo:    cartRepo,
		itemRepo:    itemRepo,
		batchSize:   batchSize,
		clock:       time.Now,
	}
}

func (s *CartItemFactService) Name() entity.StageName {
	return entity.StageLoadCartItemFact
}

func validateLine(line *entity.StagedCartLine) error {
	if err := util.ValidateRow(line); err != nil {
		return fmt.Errorf("%w: line %d: %s", ErrValidation, line.LineNo, err.Error())
	}
	return nil
}

func lineKey(line *entity.StagedCartLine) string {
	return fmt.Sprintf("cart:%d/line:%d", line.CartID, line.LineNo)
}

// Run вставляет строки корзин, уже загруженных в fact_cart.
// unit_price - текущая цена измерения товаров, line_total = quantity * unit_price.
// Уже загруженные пары (cart_sk, line_no) пропускаются, поэтому
// прерванная загрузка дописывает недостающие строки при повторе
func (s *CartItemFactService) Run(ctx context.Context) (*entity.StageResult, error) {
	lines, err := s.stagingRepo.CartLines(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read staged carts: %w", err)
	}

	carts, err := s.cartRepo.LoadedCarts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read loaded carts: %w", err)
	}

	loadedLines, err := s.itemRepo.LoadedLines(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read loaded cart items: %w", err)
	}

	products, err := productPrices(ctx, s.productRepo)
	if err != nil {
		return nil, err
	}

	rec := newStageRecorder(ctx, s.Name())
	now := s.clock().UTC()

	var items []entity.CartItemFact
	for i := range lines {
		line := &lines[i]
		key := lineKey(line)
		if err := validateLine(line); err != nil {
			rec.reject(key, err)
			continue
		}

		cartSK, ok := carts[strconv.FormatInt(line.CartID, 10)]
		if !ok {
			rec.reject(key, fmt.Errorf("%w: cart %d is not in fact_cart", ErrReferentialGap, line.CartID))
			continue
		}
		if _, loaded := loadedLines[entity.CartLineKey{CartSK: cartSK, LineNo: line.LineNo}]; loaded {
			rec.result.Skipped++
			continue
		}

		product, ok := products[strconv.FormatInt(line.ProductID, 10)]
		if !ok {
			rec.reject(key, fmt.Errorf("%w: product %d is not in dim_product", ErrReferentialGap, line.ProductID))
			continue
		}

		unitPrice := product.Price.Round(2)
		items = append(items, entity.CartItemFact{
			CartSK:    cartSK,
			LineNo:    line.LineNo,
			ProductSK: product.ProductSK,
			Quantity:  line.Quantity,
			UnitPrice: unitPrice,
			LineTotal: unitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))).Round(2),
			CreatedAt: now,
		})
	}

	written, failed, err := writeInBatches(ctx, rec, items, s.batchSize,
		func(it entity.CartItemFact) string { return fmt.Sprintf("cart_sk:%d/line:%d", it.CartSK, it.LineNo) },
		s.itemRepo.InsertNew,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert cart item facts: %w", err)
	}

	rec.result.Inserted = int(written)
	rec.result.Skipped += len(items) - int(written) - failed
	return rec.done(), nil
}
