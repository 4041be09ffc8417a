package service

import (
	"context"
	"fmt"

	"ecommerce-dw/pkg/logger"
	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/entity"
	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/util"

	"github.com/rs/zerolog"
)

// Stage одна стадия загрузки хранилища.
// Ошибка из Run означает падение стадии целиком; проблемы отдельных строк
// попадают в StageResult и стадию не роняют
type Stage interface {
	Name() entity.StageName
	Run(ctx context.Context) (*entity.StageResult, error)
}

// maxRecordedRowErrors ограничивает размер отчета; счетчики считают все строки
const maxRecordedRowErrors = 200

type runIDKey struct{}

// WithRunID привязывает ID запуска к контексту для логов стадий
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext возвращает ID запуска или пустую строку
func RunIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey{}).(string); ok {
		return id
	}
	return ""
}

// stageRecorder копит итог стадии и пишет отклоненные строки в лог
type stageRecorder struct {
	result *entity.StageResult
	log    zerolog.Logger
}

func newStageRecorder(ctx context.Context, stage entity.StageName) *stageRecorder {
	rec := &stageRecorder{
		result: entity.NewStageResult(stage),
		log:    logger.Stage(string(stage), RunIDFromContext(ctx)),
	}
	rec.log.Info().Msg("Stage started")
	return rec
}

// reject отклоняет строку снимка
func (r *stageRecorder) reject(naturalKey string, err error) {
	kind := rowErrorKind(err)
	r.result.Errored++
	if len(r.result.Errors) < maxRecordedRowErrors {
		r.result.Errors = append(r.result.Errors, entity.RowError{
			Stage:      r.result.Stage,
			NaturalKey: naturalKey,
			Kind:       kind,
			Message:    err.Error(),
		})
	}

	event := r.log.Warn()
	if kind == entity.RowErrorDuplicateKey || kind == entity.RowErrorDatabase {
		event = r.log.Error()
	}
	event.Err(err).
		Str("natural_key", naturalKey).
		Str("kind", string(kind)).
		Msg("Row rejected")
}

// warn фиксирует проблему строки, которая все же была загружена
func (r *stageRecorder) warn(naturalKey string, err error) {
	if len(r.result.Warnings) < maxRecordedRowErrors {
		r.result.Warnings = append(r.result.Warnings, entity.RowError{
			Stage:      r.result.Stage,
			NaturalKey: naturalKey,
			Kind:       rowErrorKind(err),
			Message:    err.Error(),
		})
	}
	r.log.Warn().Err(err).Str("natural_key", naturalKey).Msg("Row loaded with warning")
}

// validate проверяет теги validate строки снимка
func (r *stageRecorder) validate(naturalKey string, row interface{}) bool {
	if err := util.ValidateRow(row); err != nil {
		r.reject(naturalKey, fmt.Errorf("%w: %s", ErrValidation, err.Error()))
		return false
	}
	return true
}

func (r *stageRecorder) done() *entity.StageResult {
	r.log.Info().
		Int("inserted", r.result.Inserted).
		Int("updated", r.result.Updated).
		Int("skipped", r.result.Skipped).
		Int("errored", r.result.Errored).
		Int("warnings", len(r.result.Warnings)).
		Msg("Stage finished")
	return r.result
}

// writeInBatches пишет строки пачками. Если пачка не записалась, она повторяется
// построчно, и каждая плохая строка отклоняется отдельно.
// Возвращает число реально записанных строк и число отклоненных.
// Отмена контекста прерывает стадию
func writeInBatches[T any](
	ctx context.Context,
	rec *stageRecorder,
	rows []T,
	batchSize int,
	key func(T) string,
	write func(context.Context, []T) (int64, error),
) (written int64, failed int, err error) {
	if batchSize <= 0 {
		batchSize = len(rows)
	}

	for start := 0; start < len(rows); start += batchSize {
		batch := rows[start:min(start+batchSize, len(rows))]

		n, batchErr := write(ctx, batch)
		if batchErr == nil {
			written += n
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return written, failed, ctxErr
		}

		rec.log.Warn().Err(batchErr).Int("batch_size", len(batch)).Msg("Batch write failed, retrying row by row")
		for _, row := range batch {
			n, rowErr := write(ctx, []T{row})
			if rowErr != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return written, failed, ctxErr
				}
				rec.reject(key(row), rowErr)
				failed++
				continue
			}
			written += n
		}
	}
	return written, failed, nil
}
