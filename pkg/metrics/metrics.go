package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// HTTP Метрики (административное API)
// =============================================================================

// HttpRequestsTotal - счётчик всех HTTP запросов
// Labels: service, method, path, status
var HttpRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	},
	[]string{"service", "method", "path", "status"},
)

// HttpRequestDuration - гистограмма времени ответа
var HttpRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 120},
	},
	[]string{"service", "method", "path"},
)

// HttpRequestsInFlight - текущее количество обрабатываемых запросов
var HttpRequestsInFlight = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "http_requests_in_flight",
		Help: "Current number of HTTP requests being processed",
	},
	[]string{"service"},
)

// =============================================================================
// Database Метрики
// =============================================================================

// DbQueryDuration - время выполнения SQL запросов (пакетные вставки тоже)
var DbQueryDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	},
	[]string{"service", "operation", "table"},
)

// DbErrors - счётчик ошибок базы данных
var DbErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "db_errors_total",
		Help: "Total number of database errors",
	},
	[]string{"service", "operation"},
)

// =============================================================================
// Redis Метрики (блокировка запусков)
// =============================================================================

// RedisOperationDuration - время операций Redis
var RedisOperationDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "redis_operation_duration_seconds",
		Help:    "Duration of Redis operations in seconds",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	},
	[]string{"service", "operation"},
)

// RedisErrors - ошибки Redis
var RedisErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "redis_errors_total",
		Help: "Total number of Redis errors",
	},
	[]string{"service", "operation"},
)

// =============================================================================
// Kafka Метрики (события о загрузках)
// =============================================================================

// KafkaMessagesProduced - отправленные сообщения
var KafkaMessagesProduced = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kafka_messages_produced_total",
		Help: "Total number of Kafka messages produced",
	},
	[]string{"service", "topic"},
)

// KafkaProduceDuration - время отправки сообщения
var KafkaProduceDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "kafka_produce_duration_seconds",
		Help:    "Duration of Kafka produce operations",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	},
	[]string{"service", "topic"},
)

// KafkaErrors - ошибки Kafka
var KafkaErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kafka_errors_total",
		Help: "Total number of Kafka errors",
	},
	[]string{"service", "topic", "operation"},
)

// =============================================================================
// Метрики загрузки хранилища
// =============================================================================

// StageRuns - запуски стадий по итоговому статусу
// Labels: stage, status (succeeded, partial, failed, blocked)
var StageRuns = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dw_stage_runs_total",
		Help: "Total number of warehouse stage executions by status",
	},
	[]string{"stage", "status"},
)

// StageRows - строки, обработанные стадиями
// Labels: stage, outcome (inserted, updated, skipped, errored)
// Пример: sum by (stage) (rate(dw_stage_rows_total{outcome="errored"}[1d]))
var StageRows = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dw_stage_rows_total",
		Help: "Total number of staged rows processed by warehouse stages",
	},
	[]string{"stage", "outcome"},
)

// StageDuration - длительность стадии
var StageDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "dw_stage_duration_seconds",
		Help:    "Duration of warehouse stage executions",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 600, 1800},
	},
	[]string{"stage"},
)

// LoadRuns - запуски загрузки по итоговому статусу
var LoadRuns = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dw_load_runs_total",
		Help: "Total number of warehouse load runs by status",
	},
	[]string{"trigger", "status"},
)

// LoadConflicts - запуски, отклоненные из-за уже идущей загрузки
var LoadConflicts = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "dw_load_conflicts_total",
		Help: "Total number of load runs rejected because another run held the lock",
	},
)

// LastSuccessfulLoad - unix-время последней загрузки без упавших стадий
var LastSuccessfulLoad = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "dw_last_successful_load_timestamp_seconds",
		Help: "Unix timestamp of the last load run without failed stages",
	},
)
