package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/lock"
	"github.com/shaiso/Conveyor/internal/message"
	"github.com/shaiso/Conveyor/internal/process"
	"github.com/shaiso/Conveyor/internal/repo"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

// Default configuration values.
const (
	defaultMaxAttempts = 3
	defaultLockTTL     = 30 * time.Second
	defaultRetryDelay  = 50 * time.Millisecond
	maxRetryDelay      = time.Second
)

// ProcessRepository загружает и сохраняет процессы.
type ProcessRepository interface {
	Get(ctx context.Context, id domain.ProcessID) (*process.Process, error)
	Save(ctx context.Context, p *process.Process) error
}

// Dispatcher отправляет исходящие сообщения (обычно engine.WorkflowEngine).
type Dispatcher interface {
	Dispatch(ctx context.Context, msg message.Message) error
}

// Metrics — счётчики процессора.
type Metrics interface {
	MessageReceived(name string)
	ProcessStarted()
	ProcessFinished(succeeded bool)
	ErrorLogged()
	ConflictRetried()
	HandlingDuration(d time.Duration)
}

// Processor обрабатывает входящие сообщения узла.
type Processor struct {
	node    domain.NodeName
	repo    ProcessRepository
	factory *process.Factory
	engine  Dispatcher
	locker  lock.Locker
	metrics Metrics

	maxAttempts int
	lockTTL     time.Duration
	retryDelay  time.Duration
	clock       func() time.Time

	logger *slog.Logger
}

// Config — конфигурация Processor.
type Config struct {
	Node    domain.NodeName
	Repo    ProcessRepository
	Factory *process.Factory
	Engine  Dispatcher

	// Locker сериализует обработку одного процесса (опционально).
	Locker lock.Locker

	// Metrics (опционально)
	Metrics Metrics

	MaxAttempts int           // попыток при конфликте (default: 3)
	LockTTL     time.Duration // время удержания блокировки (default: 30s)
	RetryDelay  time.Duration // начальная задержка между попытками (default: 50ms)

	// Clock возвращает текущее время (default: time.Now().UTC()).
	Clock func() time.Time

	Logger *slog.Logger
}

// New создаёт новый Processor.
func New(cfg Config) (*Processor, error) {
	if _, err := domain.NewNodeName(cfg.Node.String()); err != nil {
		return nil, err
	}
	if cfg.Repo == nil {
		return nil, ErrMissingRepository
	}
	if cfg.Factory == nil {
		return nil, ErrMissingFactory
	}
	if cfg.Engine == nil {
		return nil, ErrMissingDispatcher
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = defaultLockTTL
	}

	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}

	clock := cfg.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Processor{
		node:        cfg.Node,
		repo:        cfg.Repo,
		factory:     cfg.Factory,
		engine:      cfg.Engine,
		locker:      cfg.Locker,
		metrics:     metrics,
		maxAttempts: maxAttempts,
		lockTTL:     lockTTL,
		retryDelay:  retryDelay,
		clock:       clock,
		logger:      logger.With("node", cfg.Node.String()),
	}, nil
}

// Node возвращает имя узла.
func (p *Processor) Node() domain.NodeName { return p.node }

// Handle реализует engine.Handler. Всегда возвращает nil.
func (p *Processor) Handle(ctx context.Context, msg message.Message) error {
	p.ReceiveMessage(ctx, msg)
	return nil
}

// ReceiveMessage обрабатывает входящее сообщение.
//
// Ошибки не возвращаются: они логируются в процесс как LogMessage.
func (p *Processor) ReceiveMessage(ctx context.Context, msg message.Message) {
	start := time.Now()
	defer func() { p.metrics.HandlingDuration(time.Since(start)) }()

	p.metrics.MessageReceived(msg.Name())
	logger := p.logger.With("message_name", msg.Name(), "message_id", msg.Header().UUID)
	logger.Debug("message received", "target", msg.Target(), "origin", msg.Origin())

	out, err := p.transitionWithRetry(ctx, msg, logger)
	if err != nil {
		p.fail(ctx, msg, err, logger)
		return
	}

	for _, m := range out {
		if err := p.engine.Dispatch(ctx, m); err != nil {
			p.fail(ctx, m, fmt.Errorf("dispatch %s to %s: %w", m.Name(), m.Target(), err), logger)
			continue
		}
		logger.Debug("message dispatched", "out_message", m.Name(), "out_target", m.Target())
	}
}

// transitionWithRetry повторяет переход при конфликте версий или занятой блокировке.
func (p *Processor) transitionWithRetry(ctx context.Context, msg message.Message, logger *slog.Logger) ([]message.Message, error) {
	var out []message.Message
	err := p.retry(ctx, logger, func() error {
		var err error
		out, err = p.transition(ctx, msg)
		return err
	})
	return out, err
}

// retry вызывает fn, пока она возвращает повторяемую ошибку.
func (p *Processor) retry(ctx context.Context, logger *slog.Logger, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryable(err) || attempt == p.maxAttempts {
			break
		}

		p.metrics.ConflictRetried()
		delay := calculateBackoff(attempt, p.retryDelay)
		logger.Debug("retrying", "attempt", attempt, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}

// Reschedule заменяет незапущенные задачи процесса и сохраняет его.
//
// Запущенная задача продолжает выполняться; новые задачи будут запущены
// после её ответа.
func (p *Processor) Reschedule(ctx context.Context, id domain.ProcessID, defs []domain.TaskDefinition) (*process.Process, error) {
	tasks, err := p.factory.BuildTasks(defs)
	if err != nil {
		return nil, err
	}

	logger := telemetry.WithProcessID(p.logger, id)
	var result *process.Process
	err = p.retry(ctx, logger, func() error {
		return p.withLock(ctx, id, func(ctx context.Context) error {
			proc, err := p.repo.Get(ctx, id)
			if err != nil {
				return fmt.Errorf("load process: %w", err)
			}
			if err := proc.RescheduleTaskList(tasks, p.clock()); err != nil {
				return err
			}
			if err := p.repo.Save(ctx, proc); err != nil {
				return err
			}
			result = proc
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info("task list rescheduled", "tasks", len(tasks), "version", result.Version())
	return result, nil
}

// transition выполняет один цикл загрузка → переход → сохранение.
func (p *Processor) transition(ctx context.Context, msg message.Message) ([]message.Message, error) {
	if cmd, ok := msg.(*message.StartSubProcess); ok {
		return p.startSubProcess(ctx, cmd)
	}

	pos, ok := msg.ProcessTaskListPosition()
	if !ok {
		return p.startProcess(ctx, msg)
	}

	var out []message.Message
	err := p.withLock(ctx, pos.ProcessID(), func(ctx context.Context) error {
		proc, err := p.repo.Get(ctx, pos.ProcessID())
		if err != nil {
			return fmt.Errorf("load process: %w", err)
		}
		wasFinished := proc.IsFinished()

		d, err := proc.ReceiveMessage(msg, p.clock())
		if err != nil {
			return err
		}
		if err := p.repo.Save(ctx, proc); err != nil {
			return err
		}
		if d.Kind == process.DirectiveFinished && !wasFinished {
			p.processFinished(proc)
		}
		out = d.Messages
		return nil
	})
	return out, err
}

func (p *Processor) startProcess(ctx context.Context, msg message.Message) ([]message.Message, error) {
	trigger, ok := msg.(*message.WorkflowMessage)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotTrigger, msg.Name())
	}

	proc, err := p.factory.CreateFromMessage(trigger, p.node, p.clock())
	if err != nil {
		return nil, err
	}
	return p.performNew(ctx, proc, trigger)
}

func (p *Processor) startSubProcess(ctx context.Context, cmd *message.StartSubProcess) ([]message.Message, error) {
	proc, err := p.factory.CreateSubProcess(cmd, p.node, p.clock())
	if err != nil {
		return nil, err
	}
	return p.performNew(ctx, proc, cmd.PreviousMessage())
}

// performNew запускает первую задачу нового процесса и сохраняет его.
func (p *Processor) performNew(ctx context.Context, proc *process.Process, previous *message.WorkflowMessage) ([]message.Message, error) {
	d, err := proc.Perform(previous, p.clock())
	if err != nil {
		return nil, err
	}
	if err := p.repo.Save(ctx, proc); err != nil {
		return nil, err
	}

	p.metrics.ProcessStarted()
	telemetry.WithProcessID(p.logger, proc.ID()).Info("process started",
		"sub_process", proc.IsSubProcess(),
	)
	if d.Kind == process.DirectiveFinished {
		p.processFinished(proc)
	}
	return d.Messages, nil
}

func (p *Processor) processFinished(proc *process.Process) {
	succeeded := proc.IsSuccessfulDone()
	p.metrics.ProcessFinished(succeeded)
	telemetry.WithProcessID(p.logger, proc.ID()).Info("process finished",
		"succeeded", succeeded,
	)
}

func (p *Processor) withLock(ctx context.Context, id domain.ProcessID, fn func(ctx context.Context) error) error {
	if p.locker == nil {
		return fn(ctx)
	}
	return p.locker.TryLock(ctx, "process:"+id.String(), p.lockTTL, fn)
}

// fail превращает ошибку в LogMessage на позиции сообщения и отправляет его.
//
// Ошибки обработки самих LogMessage только логируются, иначе ошибка
// порождала бы новые LogMessage по кругу.
func (p *Processor) fail(ctx context.Context, msg message.Message, cause error, logger *slog.Logger) {
	p.metrics.ErrorLogged()

	pos, ok := positionOf(msg)
	if !ok {
		logger.Error("failed to handle message without position", "error", cause)
		return
	}
	logger = telemetry.WithPosition(logger, pos)
	if _, isLog := msg.(*message.Log); isLog {
		logger.Error("failed to handle log message", "error", cause)
		return
	}

	logger.Warn("message handling failed, logging to process", "error", cause)

	entry := domain.LogError(pos, cause)
	if err := p.engine.Dispatch(ctx, message.NewLog(entry, p.node.String())); err != nil {
		logger.Error("failed to dispatch error log", "cause", cause, "error", err)
	}
}

// positionOf возвращает позицию, к которой относится сообщение.
// Для StartSubProcess это позиция задачи родителя.
func positionOf(msg message.Message) (domain.TaskListPosition, bool) {
	if cmd, ok := msg.(*message.StartSubProcess); ok {
		return cmd.ParentTaskListPosition(), true
	}
	return msg.ProcessTaskListPosition()
}

func isRetryable(err error) bool {
	return errors.Is(err, repo.ErrConcurrencyConflict) || errors.Is(err, lock.ErrLocked)
}

// calculateBackoff вычисляет задержку перед повтором: initial * 2^(attempt-1).
func calculateBackoff(attempt int, initial time.Duration) time.Duration {
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay > maxRetryDelay {
			return maxRetryDelay
		}
	}
	return delay
}

type noopMetrics struct{}

func (noopMetrics) MessageReceived(string) {}
func (noopMetrics) ProcessStarted() {}
func (noopMetrics) ProcessFinished(bool) {}
func (noopMetrics) ErrorLogged() {}
func (noopMetrics) ConflictRetried() {}
func (noopMetrics) HandlingDuration(time.Duration) {}
