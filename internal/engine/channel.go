package engine

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/shaiso/Conveyor/internal/message"
)

// Dispatcher доставляет сообщение получателю.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg message.Message) error
}

// DispatcherFunc — адаптер функции к Dispatcher.
type DispatcherFunc func(ctx context.Context, msg message.Message) error

// Dispatch реализует Dispatcher.
func (f DispatcherFunc) Dispatch(ctx context.Context, msg message.Message) error {
	return f(ctx, msg)
}

// Phase — этап отправки сообщения по каналу.
type Phase string

const (
	PhaseBefore Phase = "before_dispatch"
	PhaseAfter  Phase = "after_dispatch"
	PhaseFailed Phase = "dispatch_failed"
)

// DispatchEvent — уведомление слушателя канала.
type DispatchEvent struct {
	Phase    Phase
	Channel  *Channel
	Message  message.Message
	Err      error
	Duration time.Duration
}

// Listener — слушатель канала.
// Ошибка слушателя на этапе PhaseBefore отменяет отправку.
type Listener func(ctx context.Context, ev DispatchEvent) error

// Channel — шина для одного разрешённого адреса.
//
// Набор слушателей только растёт.
type Channel struct {
	name       string
	kind       BusKind
	target     string
	rule       string
	dispatcher Dispatcher

	mu        sync.RWMutex
	listeners []Listener
	plugins   []string
}

func newChannel(name string, kind BusKind, target, rule string, dispatcher Dispatcher) *Channel {
	return &Channel{
		name:       name,
		kind:       kind,
		target:     target,
		rule:       rule,
		dispatcher: dispatcher,
	}
}

// Name возвращает имя канала.
func (c *Channel) Name() string { return c.name }

// Kind возвращает вид шины.
func (c *Channel) Kind() BusKind { return c.kind }

// Target возвращает target, для которого создан канал.
func (c *Channel) Target() string { return c.target }

// RuleName возвращает имя правила; пусто для локального канала.
func (c *Channel) RuleName() string { return c.rule }

// IsLocal возвращает true для локального канала узла.
func (c *Channel) IsLocal() bool { return c.rule == "" }

// Plugins возвращает имена подключённых плагинов в порядке подключения.
func (c *Channel) Plugins() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.plugins)
}

// Listen добавляет слушателя.
func (c *Channel) Listen(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Attach подключает плагин. Повторное подключение плагина
// с тем же именем игнорируется.
func (c *Channel) Attach(p Plugin) bool {
	c.mu.Lock()
	if slices.Contains(c.plugins, p.Name()) {
		c.mu.Unlock()
		return false
	}
	c.plugins = append(c.plugins, p.Name())
	c.mu.Unlock()

	p.Attach(c)
	return true
}

// Dispatch отправляет сообщение через диспетчер канала.
func (c *Channel) Dispatch(ctx context.Context, msg message.Message) error {
	c.mu.RLock()
	listeners := slices.Clone(c.listeners)
	c.mu.RUnlock()

	for _, l := range listeners {
		if err := l(ctx, DispatchEvent{Phase: PhaseBefore, Channel: c, Message: msg}); err != nil {
			return fmt.Errorf("%w: %s on %s: %w", ErrDispatchRejected, msg.Name(), c.name, err)
		}
	}

	start := time.Now()
	err := c.dispatcher.Dispatch(ctx, msg)
	ev := DispatchEvent{Phase: PhaseAfter, Channel: c, Message: msg, Duration: time.Since(start)}
	if err != nil {
		ev.Phase = PhaseFailed
		ev.Err = err
	}
	for _, l := range listeners {
		_ = l(ctx, ev)
	}

	if err != nil {
		return fmt.Errorf("dispatch %s on %s: %w", msg.Name(), c.name, err)
	}
	return nil
}
