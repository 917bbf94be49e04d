package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript удаляет ключ, только если значение совпадает с токеном.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

// RedisLock — распределённые блокировки на Redis.
type RedisLock struct {
	client redis.Cmdable
	prefix string
	logger *slog.Logger
}

// NewRedis создаёт новый RedisLock.
func NewRedis(client redis.Cmdable, prefix string, logger *slog.Logger) *RedisLock {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisLock{client: client, prefix: prefix, logger: logger}
}

// TryLock выполняет fn под блокировкой key.
func (r *RedisLock) TryLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error {
	if held(ctx, key) {
		return fn(ctx)
	}

	token := newToken()
	ok, err := r.client.SetNX(ctx, r.prefix+key, token, ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return ErrLocked
	}
	defer r.release(key, token)

	return fn(withHeld(ctx, key, token))
}

// release использует отдельный context: исходный может быть уже отменён.
func (r *RedisLock) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	n, err := releaseScript.Run(ctx, r.client, []string{r.prefix + key}, token).Int64()
	if err != nil {
		r.logger.Error("failed to release lock", "key", key, "error", err)
		return
	}
	if n != 1 {
		r.logger.Warn("lock expired before release", "key", key)
	}
}
