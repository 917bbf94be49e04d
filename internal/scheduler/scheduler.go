package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/message"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

const defaultTickInterval = time.Second

// Dispatcher отправляет стартовые сообщения (обычно engine.WorkflowEngine).
type Dispatcher interface {
	Dispatch(ctx context.Context, msg message.Message) error
}

// Trigger — запуск процесса по расписанию.
//
// При срабатывании узлу отправляется событие data-collected с типом
// PayloadType; процесс запускается по определению для этого имени.
type Trigger struct {
	Name        string
	Cron        string
	PayloadType string
	Origin      string
	Data        any
	Metadata    domain.Metadata
	Location    *time.Location
}

// StartMessageName возвращает имя сообщения, которое отправит триггер.
func (t Trigger) StartMessageName() string {
	return message.NameFor(t.PayloadType, message.SuffixDataCollected)
}

type triggerState struct {
	trigger Trigger
	nextDue time.Time
}

// Scheduler — планировщик, срабатывающий по cron-выражениям триггеров.
type Scheduler struct {
	node       domain.NodeName
	dispatcher Dispatcher
	interval   time.Duration
	logger     *slog.Logger

	mu       sync.Mutex
	triggers []*triggerState
}

// Config — конфигурация Scheduler.
type Config struct {
	Node       domain.NodeName
	Dispatcher Dispatcher
	Triggers   []Trigger

	// Now — время, от которого считается первое срабатывание (default: time.Now()).
	Now time.Time

	// TickInterval — период проверки (default: 1s).
	TickInterval time.Duration

	Logger *slog.Logger
}

// New создаёт новый Scheduler и проверяет cron-выражения.
func New(cfg Config) (*Scheduler, error) {
	interval := cfg.TickInterval
	if interval <= 0 {
		interval = defaultTickInterval
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := cfg.Now
	if now.IsZero() {
		now = time.Now()
	}

	s := &Scheduler{
		node:       cfg.Node,
		dispatcher: cfg.Dispatcher,
		interval:   interval,
		logger:     logger,
	}

	for _, t := range cfg.Triggers {
		if t.PayloadType == "" {
			return nil, fmt.Errorf("trigger %s: %w", t.Name, domain.ErrEmptyPayloadType)
		}
		if t.Origin == "" {
			t.Origin = t.Name
		}
		next, err := CalculateNextDue(t.Cron, t.Location, now)
		if err != nil {
			return nil, fmt.Errorf("trigger %s: %w", t.Name, err)
		}
		s.triggers = append(s.triggers, &triggerState{trigger: t, nextDue: next})
	}
	return s, nil
}

// Start вызывает Tick каждые TickInterval до отмены ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	if len(s.triggers) == 0 {
		s.logger.Info("no triggers configured, scheduler idle")
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", "triggers", len(s.triggers), "tick_interval", s.interval)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			s.Tick(ctx, now)
		}
	}
}

// Tick отправляет стартовые сообщения триггеров, чьё время наступило.
//
// Пропущенные срабатывания не догоняются: после срабатывания следующее
// время считается от now. Ошибки одного триггера не блокируют остальные.
// Возвращает число отправленных сообщений.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	fired := 0
	for _, st := range s.triggers {
		if now.Before(st.nextDue) {
			continue
		}

		if err := s.fire(ctx, st.trigger); err != nil {
			s.logger.Error("failed to fire trigger",
				"trigger", st.trigger.Name,
				"error", err,
			)
		} else {
			fired++
		}

		next, err := CalculateNextDue(st.trigger.Cron, st.trigger.Location, now)
		if err != nil {
			// выражение проверено в New
			continue
		}
		st.nextDue = next
	}

	if fired > 0 {
		s.logger.Debug("scheduler tick completed", "fired", fired)
	}
	return fired
}

// NextDue возвращает следующее время срабатывания триггера.
func (s *Scheduler) NextDue(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range s.triggers {
		if st.trigger.Name == name {
			return st.nextDue, true
		}
	}
	return time.Time{}, false
}

func (s *Scheduler) fire(ctx context.Context, t Trigger) error {
	msg := message.NewDataCollectedEvent(
		message.Payload{TypeClass: t.PayloadType, Data: t.Data},
		t.Metadata,
		message.Route{Target: s.node.String(), Origin: t.Origin},
	)
	if err := s.dispatcher.Dispatch(ctx, msg); err != nil {
		return fmt.Errorf("dispatch %s: %w", msg.Name(), err)
	}

	telemetry.WithChannel(s.logger, msg.Target()).Info("trigger fired",
		"trigger", t.Name,
		"message_name", msg.Name(),
		"message_id", msg.Header().UUID,
	)
	return nil
}
