package repository

import (
	"context"
	"fmt"
	"time"

	"ecommerce-dw/pkg/metrics"

	"github.com/redis/go-redis/v9"
)

// RunLockKey ключ блокировки загрузки в Redis
const RunLockKey = "dw:load:lock"

// releaseScript удаляет ключ, только если значение совпадает с токеном владельца
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// runLockRepository реализует RunLockRepository через SET NX PX
type runLockRepository struct {
	client *redis.Client
	ttl    time.Duration // По истечении TTL ключ освобождается сам
}

// NewRunLockRepository создает репозиторий блокировки запусков
func NewRunLockRepository(client *redis.Client, ttl time.Duration) RunLockRepository {
	return &runLockRepository{
		client: client,
		ttl:    ttl,
	}
}

// Acquire пытается захватить блокировку
func (r *runLockRepository) Acquire(ctx context.Context, token string) (bool, error) {
	timer := metrics.NewRedisTimer(serviceName, metrics.RedisOpSet)
	defer timer.ObserveDuration()

	ok, err := r.client.SetNX(ctx, RunLockKey, token, r.ttl).Result()
	if err != nil {
		metrics.RecordRedisError(serviceName, metrics.RedisOpSet)
		return false, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	return ok, nil
}

// Release снимает блокировку владельца
func (r *runLockRepository) Release(ctx context.Context, token string) error {
	timer := metrics.NewRedisTimer(serviceName, metrics.RedisOpDel)
	defer timer.ObserveDuration()

	if err := releaseScript.Run(ctx, r.client, []string{RunLockKey}, token).Err(); err != nil {
		metrics.RecordRedisError(serviceName, metrics.RedisOpDel)
		return fmt.Errorf("failed to release run lock: %w", err)
	}
	return nil
}
