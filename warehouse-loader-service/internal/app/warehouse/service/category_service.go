package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/entity"
	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/repository"
	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/util"
)

// CategoryService пополняет измерение категорий (SCD Type 1, только вставка)
type CategoryService struct {
	stagingRepo  repository.StagingRepository
	categoryRepo repository.CategoryRepository
	batchSize    int
	clock        func() time.Time
}

// NewCategoryService создает сервис категорий
func NewCategoryService(
	stagingRepo repository.StagingRepository,
	categoryRepo repository.CategoryRepository,
	batchSize int,
) *CategoryService {
	return &CategoryService{
		stagingRepo:  stagingRepo,
		categoryRepo: categoryRepo,
		batchSize:    batchSize,
		clock:        time.Now,
	}
}

func (s *CategoryService) Name() entity.StageName {
	return entity.StageMergeCategory
}

// Run читает категории товаров из снимка и вставляет отсутствующие.
// Сравнение без учета регистра; новая категория сохраняется в написании,
// встреченном первым в порядке загрузки снимка. Существующие не меняются
func (s *CategoryService) Run(ctx context.Context) (*entity.StageResult, error) {
	products, err := s.stagingRepo.Products(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read staged products: %w", err)
	}

	existing, err := s.categoryRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read category dimension: %w", err)
	}
	known := make(map[string]struct{}, len(existing))
	for _, c := range existing {
		known[c.CategoryKey] = struct{}{}
	}

	rec := newStageRecorder(ctx, s.Name())
	now := s.clock().UTC()

	seen := make(map[string]struct{})
	var pending []entity.CategoryDim
	for _, p := range products {
		name := strings.TrimSpace(p.Category)
		if name == "" {
			rec.reject(productKey(p.ID), fmt.Errorf("%w: category is blank", ErrValidation))
			continue
		}

		key := util.CanonicalKey(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		if _, ok := known[key]; ok {
			rec.result.Skipped++
			continue
		}
		pending = append(pending, entity.CategoryDim{
			CategoryName: name,
			CategoryKey:  key,
			CreatedAt:    now,
		})
	}

	written, failed, err := writeInBatches(ctx, rec, pending, s.batchSize,
		func(c entity.CategoryDim) string { return c.CategoryKey },
		s.categoryRepo.InsertMissing,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert categories: %w", err)
	}

	rec.result.Inserted += int(written)
	// Конфликт по category_key: категорию успел вставить другой писатель
	rec.result.Skipped += len(pending) - int(written) - failed
	return rec.done(), nil
}

func productKey(id int64) string {
	return fmt.Sprintf("product:%d", id)
}
