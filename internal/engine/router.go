package engine

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/shaiso/Conveyor/internal/message"
)

// Handler обрабатывает сообщение, адресованное локальному target.
type Handler interface {
	Handle(ctx context.Context, msg message.Message) error
}

// HandlerFunc — адаптер функции к Handler.
type HandlerFunc func(ctx context.Context, msg message.Message) error

// Handle реализует Handler.
func (f HandlerFunc) Handle(ctx context.Context, msg message.Message) error {
	return f(ctx, msg)
}

// Router — локальный диспетчер: target → Handler.
//
// Обработчики регистрируются явно при старте узла.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRouter создаёт пустой Router.
func NewRouter() *Router {
	return &Router{handlers: make(map[string]Handler)}
}

// Register регистрирует обработчик для target.
func (r *Router) Register(target string, h Handler) error {
	if strings.TrimSpace(target) == "" {
		return ErrEmptyTarget
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[target]; exists {
		return fmt.Errorf("%w: %s", ErrHandlerExists, target)
	}
	r.handlers[target] = h
	return nil
}

// MustRegister регистрирует обработчик и паникует при ошибке.
func (r *Router) MustRegister(target string, h Handler) {
	if err := r.Register(target, h); err != nil {
		panic(err)
	}
}

// Targets возвращает зарегистрированные targets в алфавитном порядке.
func (r *Router) Targets() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.handlers))
}

// Has проверяет, зарегистрирован ли обработчик.
func (r *Router) Has(target string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[target]
	return ok
}

// Dispatch реализует Dispatcher.
func (r *Router) Dispatch(ctx context.Context, msg message.Message) error {
	r.mu.RLock()
	h, ok := r.handlers[msg.Target()]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoHandler, msg.Target())
	}
	return h.Handle(ctx, msg)
}
