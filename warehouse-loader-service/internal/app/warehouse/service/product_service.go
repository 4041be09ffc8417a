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

// ProductService сливает снимок товаров в измерение (SCD Type 1).
// Перезапись происходит только при изменении отпечатка отслеживаемых атрибутов
type ProductService struct {
	stagingRepo  repository.StagingRepository
	categoryRepo repository.CategoryRepository
	productRepo  repository.ProductRepository
	batchSize    int
	clock        func() time.Time
}

// NewProductService создает сервис товаров
func NewProductService(
	stagingRepo repository.StagingRepository,
	categoryRepo repository.CategoryRepository,
	productRepo repository.ProductRepository,
	batchSize int,
) *ProductService {
	return &ProductService{
		stagingRepo:  stagingRepo,
		categoryRepo: categoryRepo,
		productRepo:  productRepo,
		batchSize:    batchSize,
		clock:        time.Now,
	}
}

func (s *ProductService) Name() entity.StageName {
	return entity.StageMergeProduct
}

// ProductFingerprint отпечаток отслеживаемых атрибутов товара.
// Категория входит ключом, поэтому смена регистра в снимке изменений не дает
func ProductFingerprint(p *entity.ProductDim) string {
	return util.Fingerprint(util.ProductFingerprintVersion,
		util.Field("title", p.Title),
		util.Field("category", util.CanonicalKey(p.Category)),
		util.MoneyField("price", p.Price),
		util.Field("description", p.Description),
		util.Field("image", p.Image),
		util.FloatField("rating_rate", p.RatingRate),
		util.IntField("rating_count", p.RatingCount),
	)
}

// Run вставляет новые товары, перезаписывает измененные и пропускает неизменные
func (s *ProductService) Run(ctx context.Context) (*entity.StageResult, error) {
	staged, err := s.stagingRepo.Products(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read staged products: %w", err)
	}

	categories, err := s.categoryRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read category dimension: %w", err)
	}
	categoryByKey := make(map[string]entity.CategoryDim, len(categories))
	for _, c := range categories {
		categoryByKey[c.CategoryKey] = c
	}

	existing, err := s.productRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read product dimension: %w", err)
	}
	hashByID := make(map[string]string, len(existing))
	for _, p := range existing {
		hashByID[p.ProductID] = p.DataHash
	}

	rec := newStageRecorder(ctx, s.Name())
	now := s.clock().UTC()

	seen := make(map[string]struct{}, len(staged))
	var inserts, updates []entity.ProductDim
	for i := range staged {
		row := &staged[i]
		key := productKey(row.ID)
		if !rec.validate(key, row) {
			continue
		}

		productID := strconv.FormatInt(row.ID, 10)
		if _, dup := seen[productID]; dup {
			rec.reject(key, fmt.Errorf("%w: product %s appears twice in snapshot", ErrDuplicateKey, productID))
			continue
		}
		seen[productID] = struct{}{}

		category, ok := categoryByKey[util.CanonicalKey(row.Category)]
		if !ok {
			rec.reject(key, fmt.Errorf("%w: category %q is not in dim_category", ErrReferentialGap, row.Category))
			continue
		}

		dim := entity.ProductDim{
			ProductID:   productID,
			Title:       util.CanonicalString(row.Title),
			CategorySK:  category.CategorySK,
			Category:    category.CategoryName,
			Price:       decimal.NewFromFloat(row.Price).Round(2),
			Description: row.Description,
			Image:       row.Image,
			RatingRate:  row.RatingRate,
			RatingCount: row.RatingCount,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		dim.DataHash = ProductFingerprint(&dim)

		oldHash, exists := hashByID[productID]
		switch {
		case !exists:
			inserts = append(inserts, dim)
		case oldHash == dim.DataHash:
			rec.result.Skipped++
		default:
			updates = append(updates, dim)
		}
	}

	upsert := func(ctx context.Context, batch []entity.ProductDim) (int64, error) {
		if err := s.productRepo.Upsert(ctx, batch); err != nil {
			return 0, err
		}
		return int64(len(batch)), nil
	}
	key := func(p entity.ProductDim) string { return "product:" + p.ProductID }

	inserted, _, err := writeInBatches(ctx, rec, inserts, s.batchSize, key, upsert)
	if err != nil {
		return nil, fmt.Errorf("failed to insert products: %w", err)
	}
	updated, _, err := writeInBatches(ctx, rec, updates, s.batchSize, key, upsert)
	if err != nil {
		return nil, fmt.Errorf("failed to update products: %w", err)
	}

	rec.result.Inserted = int(inserted)
	rec.result.Updated = int(updated)
	return rec.done(), nil
}
