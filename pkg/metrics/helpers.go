package metrics

import (
	"time"
)

type RedisOperation string

const (
	RedisOpGet RedisOperation = "get"
	RedisOpSet RedisOperation = "set"
	RedisOpDel RedisOperation = "del"
)

type RedisTimer struct {
	service   string
	operation RedisOperation
	start     time.Time
}

func NewRedisTimer(service string, op RedisOperation) *RedisTimer {
	return &RedisTimer{
		service:   service,
		operation: op,
		start:     time.Now(),
	}
}

func (rt *RedisTimer) ObserveDuration() {
	duration := time.Since(rt.start).Seconds()
	RedisOperationDuration.WithLabelValues(rt.service, string(rt.operation)).Observe(duration)
}

func RecordRedisError(service string, op RedisOperation) {
	RedisErrors.WithLabelValues(service, string(op)).Inc()
}

type KafkaProduceTimer struct {
	service string
	topic   string
	start   time.Time
}

func NewKafkaProduceTimer(service, topic string) *KafkaProduceTimer {
	return &KafkaProduceTimer{
		service: service,
		topic:   topic,
		start:   time.Now(),
	}
}

func (kt *KafkaProduceTimer) Success() {
	KafkaMessagesProduced.WithLabelValues(kt.service, kt.topic).Inc()
	KafkaProduceDuration.WithLabelValues(kt.service, kt.topic).Observe(time.Since(kt.start).Seconds())
}

func (kt *KafkaProduceTimer) Error() {
	KafkaErrors.WithLabelValues(kt.service, kt.topic, "produce").Inc()
}

type DbOperation string

const (
	DbOpSelect DbOperation = "select"
	DbOpInsert DbOperation = "insert"
	DbOpUpdate DbOperation = "update"
)

type DbTimer struct {
	service   string
	operation DbOperation
	table     string
	start     time.Time
}

func NewDbTimer(service string, op DbOperation, table string) *DbTimer {
	return &DbTimer{
		service:   service,
		operation: op,
		table:     table,
		start:     time.Now(),
	}
}

func (dt *DbTimer) ObserveDuration() {
	duration := time.Since(dt.start).Seconds()
	DbQueryDuration.WithLabelValues(dt.service, string(dt.operation), dt.table).Observe(duration)
}

func RecordDbError(service string, op DbOperation) {
	DbErrors.WithLabelValues(service, string(op)).Inc()
}

// StageTimer измеряет стадию и записывает ее итог
type StageTimer struct {
	stage string
	start time.Time
}

func NewStageTimer(stage string) *StageTimer {
	return &StageTimer{stage: stage, start: time.Now()}
}

// Finish записывает длительность, статус и счетчики строк стадии
func (st *StageTimer) Finish(status string, inserted, updated, skipped, errored int) {
	StageDuration.WithLabelValues(st.stage).Observe(time.Since(st.start).Seconds())
	StageRuns.WithLabelValues(st.stage, status).Inc()

	StageRows.WithLabelValues(st.stage, "inserted").Add(float64(inserted))
	StageRows.WithLabelValues(st.stage, "updated").Add(float64(updated))
	StageRows.WithLabelValues(st.stage, "skipped").Add(float64(skipped))
	StageRows.WithLabelValues(st.stage, "errored").Add(float64(errored))
}

// RecordStageBlocked отмечает стадию, не запущенную из-за упавшей зависимости
func RecordStageBlocked(stage string) {
	StageRuns.WithLabelValues(stage, "blocked").Inc()
}

// RecordLoadRun записывает итог запуска загрузки
func RecordLoadRun(trigger, status string, finishedAt time.Time) {
	LoadRuns.WithLabelValues(trigger, status).Inc()
	if status != "failed" {
		LastSuccessfulLoad.Set(float64(finishedAt.Unix()))
	}
}
