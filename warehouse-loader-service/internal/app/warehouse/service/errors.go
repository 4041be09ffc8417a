package service

import (
	"errors"

	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/entity"
	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/repository"
)

var (
	// Ошибки уровня строки: строка отклоняется, стадия продолжается
	ErrValidation          = errors.New("validation failed")
	ErrReferentialGap      = errors.New("referential gap")
	ErrDuplicateKey        = errors.New("duplicate key")
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	// Ошибки оркестрации
	ErrUnknownStage     = errors.New("unknown stage")
	ErrDependencyFailed = errors.New("dependency failed")
)

// rowErrorKind относит ошибку строки к категории журнала
func rowErrorKind(err error) entity.RowErrorKind {
	switch {
	case errors.Is(err, ErrValidation):
		return entity.RowErrorValidation
	case errors.Is(err, ErrReferentialGap):
		return entity.RowErrorReferentialGap
	case errors.Is(err, ErrDuplicateKey), errors.Is(err, repository.ErrDuplicateKey):
		return entity.RowErrorDuplicateKey
	case errors.Is(err, ErrConcurrencyConflict), errors.Is(err, repository.ErrCurrentVersionChanged):
		return entity.RowErrorConcurrencyConflict
	default:
		return entity.RowErrorDatabase
	}
}
