package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrLocked — ключ уже заблокирован другим владельцем.
var ErrLocked = errors.New("key is locked")

// Locker выполняет fn под блокировкой ключа.
type Locker interface {
	// TryLock не ждёт освобождения: если ключ занят, сразу возвращает ErrLocked.
	// ttl ограничивает время удержания на случай падения владельца.
	TryLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error
}

type heldKey string

// held возвращает true, если ключ уже удерживается в этом context.
func held(ctx context.Context, key string) bool {
	_, ok := ctx.Value(heldKey(key)).(string)
	return ok
}

func withHeld(ctx context.Context, key, token string) context.Context {
	return context.WithValue(ctx, heldKey(key), token)
}

func newToken() string {
	return uuid.NewString()
}
