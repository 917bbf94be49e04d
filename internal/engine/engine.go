package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/singleflight"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/message"
)

// DispatcherFactory создаёт удалённый диспетчер для канала.
type DispatcherFactory func(ctx context.Context, channel, target string) (Dispatcher, error)

// Config — конфигурация WorkflowEngine.
type Config struct {
	// Node — имя узла; используется для локального канала.
	Node domain.NodeName

	// Rules — правила выбора каналов.
	Rules []ChannelRule

	// Router — локальные обработчики (опционально; если nil — пустой Router).
	Router *Router

	// Plugins — плагины, на которые ссылаются правила.
	Plugins map[string]Plugin

	// Dispatchers — фабрики удалённых диспетчеров по имени.
	Dispatchers map[string]DispatcherFactory

	Logger *slog.Logger
}

// WorkflowEngine разрешает адрес сообщения в канал и отправляет его.
//
// Безопасен для конкурентного использования.
type WorkflowEngine struct {
	node        domain.NodeName
	rules       []ChannelRule
	router      *Router
	plugins     map[string]Plugin
	dispatchers map[string]DispatcherFactory
	logger      *slog.Logger

	mu       sync.RWMutex
	channels map[string]*Channel
	global   []Plugin
	closers  []io.Closer

	group singleflight.Group
}

// New создаёт WorkflowEngine и проверяет правила.
func New(cfg Config) (*WorkflowEngine, error) {
	if _, err := domain.NewNodeName(cfg.Node.String()); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := cfg.Router
	if router == nil {
		router = NewRouter()
	}

	e := &WorkflowEngine{
		node:        cfg.Node,
		rules:       slices.Clone(cfg.Rules),
		router:      router,
		plugins:     maps.Clone(cfg.Plugins),
		dispatchers: maps.Clone(cfg.Dispatchers),
		logger:      logger,
		channels:    make(map[string]*Channel),
	}
	if err := e.validateRules(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *WorkflowEngine) validateRules() error {
	var errs error
	for _, r := range e.rules {
		if r.Name == "" {
			errs = multierr.Append(errs, fmt.Errorf("%w: rule name is empty", ErrInvalidRule))
		}
		if len(r.Targets) == 0 {
			errs = multierr.Append(errs, fmt.Errorf("%w: %s: targets are empty", ErrInvalidRule, r.Name))
		}
		for _, t := range r.Targets {
			if strings.TrimSpace(t) == "" {
				errs = multierr.Append(errs, fmt.Errorf("%w: %s: blank target", ErrInvalidRule, r.Name))
			}
		}
		for _, p := range r.Plugins {
			if _, ok := e.plugins[p]; !ok {
				errs = multierr.Append(errs, fmt.Errorf("%w: %s: %s", ErrUnknownPlugin, r.Name, p))
			}
		}
		if r.Dispatcher != "" {
			if _, ok := e.dispatchers[r.Dispatcher]; !ok {
				errs = multierr.Append(errs, fmt.Errorf("%w: %s: %s", ErrUnknownDispatcher, r.Name, r.Dispatcher))
			}
		}
	}
	return errs
}

// Node возвращает имя узла.
func (e *WorkflowEngine) Node() domain.NodeName { return e.node }

// Router возвращает локальный Router.
func (e *WorkflowEngine) Router() *Router { return e.router }

// Dispatch отправляет сообщение в канал, выбранный по его адресу.
func (e *WorkflowEngine) Dispatch(ctx context.Context, msg message.Message) error {
	ch, err := e.ChannelFor(ctx, BusKindOf(msg), msg.Target(), msg.Origin(), msg.Header().Sender)
	if err != nil {
		return fmt.Errorf("resolve channel for %s: %w", msg.Name(), err)
	}
	return ch.Dispatch(ctx, msg)
}

// ChannelFor возвращает канал для адреса, создавая его при первом обращении.
func (e *WorkflowEngine) ChannelFor(ctx context.Context, kind BusKind, target, origin, sender string) (*Channel, error) {
	if strings.TrimSpace(target) == "" {
		return nil, ErrEmptyTarget
	}

	rule, matched := Resolve(e.rules, target, origin, sender)
	name := localChannelName(kind, e.node.String())
	if matched {
		name = ChannelName(kind, target, rule)
	}

	if ch := e.lookup(name); ch != nil {
		return ch, nil
	}

	v, err, _ := e.group.Do(name, func() (any, error) {
		if ch := e.lookup(name); ch != nil {
			return ch, nil
		}
		ch, err := e.build(ctx, kind, name, target, rule, matched)
		if err != nil {
			return nil, err
		}
		e.register(ch)
		return ch, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Channel), nil
}

// AttachPluginToAllChannels подключает плагин ко всем созданным каналам
// и ко всем, которые будут созданы позже.
func (e *WorkflowEngine) AttachPluginToAllChannels(p Plugin) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.global = append(e.global, p)
	for _, ch := range e.channels {
		ch.Attach(p)
	}
}

// Channels возвращает имена созданных каналов в алфавитном порядке.
func (e *WorkflowEngine) Channels() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Sorted(maps.Keys(e.channels))
}

// Close закрывает удалённые диспетчеры, реализующие io.Closer.
func (e *WorkflowEngine) Close() error {
	e.mu.Lock()
	closers := e.closers
	e.closers = nil
	e.mu.Unlock()

	var errs error
	for _, c := range closers {
		errs = multierr.Append(errs, c.Close())
	}
	return errs
}

func (e *WorkflowEngine) lookup(name string) *Channel {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.channels[name]
}

// build создаёт канал и подключает плагины правила.
func (e *WorkflowEngine) build(ctx context.Context, kind BusKind, name, target string, rule ChannelRule, matched bool) (*Channel, error) {
	if !matched {
		return newChannel(name, kind, e.node.String(), "", e.router), nil
	}

	var dispatcher Dispatcher = e.router
	if rule.Dispatcher != "" {
		factory := e.dispatchers[rule.Dispatcher]
		d, err := factory(ctx, name, target)
		if err != nil {
			return nil, fmt.Errorf("%w: %s via %s: %w", ErrBusConstruction, name, rule.Dispatcher, err)
		}
		dispatcher = d
	}

	ch := newChannel(name, kind, target, rule.Name, dispatcher)
	for _, pname := range rule.Plugins {
		ch.Attach(e.plugins[pname])
	}

	e.logger.Debug("channel created",
		"channel", name,
		"rule", rule.Name,
		"dispatcher", rule.Dispatcher,
	)
	return ch, nil
}

// register сохраняет канал и подключает глобальные плагины под одной
// блокировкой с AttachPluginToAllChannels.
func (e *WorkflowEngine) register(ch *Channel) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.channels[ch.Name()] = ch
	if c, ok := ch.dispatcher.(io.Closer); ok {
		e.closers = append(e.closers, c)
	}
	for _, p := range e.global {
		ch.Attach(p)
	}
}
