package entity

import (
	"time"

	"github.com/google/uuid"
)

// StageName имя стадии загрузки хранилища
type StageName string

const (
	StageSeedDate         StageName = "seed_date"
	StageMergeCategory    StageName = "merge_category"
	StageMergeProduct     StageName = "merge_product"
	StageVersionCustomer  StageName = "version_customer"
	StageLoadCartFact     StageName = "load_cart_fact"
	StageLoadCartItemFact StageName = "load_cart_item_fact"
)

// AllStages перечисляет стадии в порядке, пригодном для последовательного запуска
var AllStages = []StageName{
	StageSeedDate,
	StageMergeCategory,
	StageMergeProduct,
	StageVersionCustomer,
	StageLoadCartFact,
	StageLoadCartItemFact,
}

// ParseStageName проверяет, что имя стадии известно
func ParseStageName(s string) (StageName, bool) {
	for _, name := range AllStages {
		if string(name) == s {
			return name, true
		}
	}
	return "", false
}

// Источники запуска загрузки
const (
	TriggerManual = "manual" // CLI
	TriggerCron   = "cron"
	TriggerAPI    = "api"
)

// StageStatus итог выполнения стадии
type StageStatus string

const (
	StageStatusSucceeded StageStatus = "succeeded" // Все строки обработаны
	StageStatusPartial   StageStatus = "partial"   // Часть строк отклонена, остальные применены
	StageStatusFailed    StageStatus = "failed"    // Стадия прервана целиком
	StageStatusBlocked   StageStatus = "blocked"   // Не запускалась из-за упавшей зависимости
)

// RunStatus итог выполнения всего запуска
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
)

// RowErrorKind категория ошибки отдельной строки
type RowErrorKind string

const (
	RowErrorValidation          RowErrorKind = "validation"
	RowErrorReferentialGap      RowErrorKind = "referential_gap"
	RowErrorDuplicateKey        RowErrorKind = "duplicate_key"
	RowErrorConcurrencyConflict RowErrorKind = "concurrency_conflict"
	RowErrorDatabase            RowErrorKind = "database"
)

// RowError ошибка, изолированная на уровне одной строки снимка
type RowError struct {
	Stage      StageName    `json:"stage"`
	NaturalKey string       `json:"natural_key"`
	Kind       RowErrorKind `json:"kind"`
	Message    string       `json:"message"`
}

// StageResult счетчики обработки строк одной стадией
type StageResult struct {
	Stage    StageName  `json:"stage"`
	Inserted int        `json:"inserted"`
	Updated  int        `json:"updated"`
	Skipped  int        `json:"skipped"`
	Errored  int        `json:"errored"`
	Errors   []RowError `json:"errors,omitempty"`
	Warnings []RowError `json:"warnings,omitempty"`
}

// NewStageResult создает пустой результат стадии
func NewStageResult(stage StageName) *StageResult {
	return &StageResult{Stage: stage}
}

// Status выводит статус стадии из счетчиков
func (r *StageResult) Status() StageStatus {
	if r.Errored > 0 {
		return StageStatusPartial
	}
	return StageStatusSucceeded
}

// StageReport отчет о стадии в рамках запуска
type StageReport struct {
	StageResult
	Status     StageStatus `json:"status"`
	StartedAt  time.Time   `json:"started_at,omitempty"`
	FinishedAt time.Time   `json:"finished_at,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// LoadReport отчет о запуске загрузки
type LoadReport struct {
	RunID      uuid.UUID     `json:"run_id"`
	Trigger    string        `json:"trigger"`
	Status     RunStatus     `json:"status"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Stages     []StageReport `json:"stages"`
}

// Stage возвращает отчет стадии по имени
func (r *LoadReport) Stage(name StageName) (StageReport, bool) {
	for _, s := range r.Stages {
		if s.Stage == name {
			return s, true
		}
	}
	return StageReport{}, false
}

// LoadRun журнал запусков загрузки
type LoadRun struct {
	RunID        uuid.UUID     `json:"run_id" gorm:"column:run_id;type:uuid;primaryKey"`
	Trigger      string        `json:"trigger" gorm:"column:trigger;type:varchar(32);not null"`
	Stages       string        `json:"stages" gorm:"column:stages;not null"` // Запрошенные стадии через запятую
	Status       RunStatus     `json:"status" gorm:"column:status;type:varchar(32);not null;index"`
	StartedAt    time.Time     `json:"started_at" gorm:"column:started_at;not null;index"`
	FinishedAt   *time.Time    `json:"finished_at" gorm:"column:finished_at"`
	StageReports []StageReport `json:"stage_reports" gorm:"column:stage_reports;type:text;serializer:json"`
	ErrorMessage string        `json:"error_message,omitempty" gorm:"column:error_message"`
}

// TableName указывает имя таблицы для GORM
func (LoadRun) TableName() string {
	return "etl_load_runs"
}

// Типы событий о загрузке для Kafka
const (
	EventLoadRunCompleted = "LOAD_RUN_COMPLETED"
	EventLoadRunFailed    = "LOAD_RUN_FAILED"
)

// LoadEvent событие для downstream потребителей (обновление витрин)
type LoadEvent struct {
	EventType string           `json:"event_type"`
	RunID     uuid.UUID        `json:"run_id"`
	Trigger   string           `json:"trigger"`
	Status    RunStatus        `json:"status"`
	Stages    []StageEventInfo `json:"stages"`
	Timestamp time.Time        `json:"timestamp"`
}

// StageEventInfo краткая сводка стадии в событии
type StageEventInfo struct {
	Stage    StageName   `json:"stage"`
	Status   StageStatus `json:"status"`
	Inserted int         `json:"inserted"`
	Updated  int         `json:"updated"`
	Skipped  int         `json:"skipped"`
	Errored  int         `json:"errored"`
}

// NewLoadEvent строит событие из отчета о запуске
func NewLoadEvent(report *LoadReport) LoadEvent {
	eventType := EventLoadRunCompleted
	if report.Status == RunStatusFailed {
		eventType = EventLoadRunFailed
	}

	stages := make([]StageEventInfo, 0, len(report.Stages))
	for _, s := range report.Stages {
		stages = append(stages, StageEventInfo{
			Stage:    s.Stage,
			Status:   s.Status,
			Inserted: s.Inserted,
			Updated:  s.Updated,
			Skipped:  s.Skipped,
			Errored:  s.Errored,
		})
	}

	return LoadEvent{
		EventType: eventType,
		RunID:     report.RunID,
		Trigger:   report.Trigger,
		Status:    report.Status,
		Stages:    stages,
		Timestamp: report.FinishedAt,
	}
}
