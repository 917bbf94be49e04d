package lock

import (
	"context"
	"sync"
	"time"
)

// LocalLock — блокировки в памяти процесса.
type LocalLock struct {
	mu    sync.Mutex
	locks map[string]localEntry
	now   func() time.Time
}

type localEntry struct {
	token    string
	expireAt time.Time
}

// NewLocal создаёт новый LocalLock.
func NewLocal() *LocalLock {
	return &LocalLock{
		locks: make(map[string]localEntry),
		now:   time.Now,
	}
}

// TryLock выполняет fn под блокировкой key.
func (l *LocalLock) TryLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error {
	if held(ctx, key) {
		return fn(ctx)
	}

	token, ok := l.acquire(key, ttl)
	if !ok {
		return ErrLocked
	}
	defer l.release(key, token)

	return fn(withHeld(ctx, key, token))
}

func (l *LocalLock) acquire(key string, ttl time.Duration) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e, ok := l.locks[key]; ok && now.Before(e.expireAt) {
		return "", false
	}
	token := newToken()
	l.locks[key] = localEntry{token: token, expireAt: now.Add(ttl)}
	return token, true
}

// release снимает блокировку, только если она всё ещё наша.
func (l *LocalLock) release(key, token string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.locks[key]; ok && e.token == token {
		delete(l.locks, key)
	}
}
