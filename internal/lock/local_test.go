package lock

import (
	"context"
	"errors"
	"testing"
	"time"
)

// --- LocalLock Tests ---

func TestLocalLock_RunsFn(t *testing.T) {
	l := NewLocal()
	called := false

	err := l.TryLock(context.Background(), "p1", time.Second, func(context.Context) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	if !called {
		t.Error("fn was not called")
	}
}

func TestLocalLock_ReturnsFnError(t *testing.T) {
	l := NewLocal()
	boom := errors.New("boom")

	err := l.TryLock(context.Background(), "p1", time.Second, func(context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("expected fn error, got %v", err)
	}

	// после ошибки ключ освобождён
	if err := l.TryLock(context.Background(), "p1", time.Second, func(context.Context) error { return nil }); err != nil {
		t.Errorf("expected key to be released, got %v", err)
	}
}

func TestLocalLock_ConcurrentHolderIsRejected(t *testing.T) {
	l := NewLocal()
	inside := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error)

	go func() {
		done <- l.TryLock(context.Background(), "p1", time.Minute, func(context.Context) error {
			close(inside)
			<-release
			return nil
		})
	}()
	<-inside

	err := l.TryLock(context.Background(), "p1", time.Minute, func(context.Context) error { return nil })
	if !errors.Is(err, ErrLocked) {
		t.Errorf("expected ErrLocked, got %v", err)
	}

	if err := l.TryLock(context.Background(), "p2", time.Minute, func(context.Context) error { return nil }); err != nil {
		t.Errorf("other key must not be locked, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Errorf("holder: %v", err)
	}
}

func TestLocalLock_Reentrant(t *testing.T) {
	l := NewLocal()
	depth := 0

	err := l.TryLock(context.Background(), "p1", time.Second, func(ctx context.Context) error {
		depth++
		return l.TryLock(ctx, "p1", time.Second, func(context.Context) error {
			depth++
			return nil
		})
	})
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	if depth != 2 {
		t.Errorf("expected nested call, depth=%d", depth)
	}
}

func TestLocalLock_ExpiredLockCanBeTaken(t *testing.T) {
	l := NewLocal()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	if _, ok := l.acquire("p1", time.Second); !ok {
		t.Fatal("first acquire failed")
	}
	if _, ok := l.acquire("p1", time.Second); ok {
		t.Fatal("second acquire must fail before expiry")
	}

	now = now.Add(2 * time.Second)
	if _, ok := l.acquire("p1", time.Second); !ok {
		t.Error("acquire must succeed after expiry")
	}
}
