package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/message"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

// Default configuration values.
const (
	defaultExecutor    = "http"
	defaultMaxAttempts = 1
	defaultRetryDelay  = time.Second
	maxRetryDelay      = 30 * time.Second
)

// Dispatcher отправляет ответы (обычно engine.WorkflowEngine).
type Dispatcher interface {
	Dispatch(ctx context.Context, msg message.Message) error
}

// Handler — встроенный обработчик команд процессов.
//
// Регистрируется в Router узла под именем адресата. На каждую команду
// collect-data или process-data выполняет executor из metadata.executor
// (default: http) и отправляет ответ. Ошибка выполнения отправляется
// процессу как LogMessage уровня error.
type Handler struct {
	name        string
	registry    *Registry
	dispatcher  Dispatcher
	maxAttempts int
	retryDelay  time.Duration
	logger      *slog.Logger
}

// Config — конфигурация Handler.
type Config struct {
	// Name — имя адресата; становится отправителем ответов.
	Name string

	Dispatcher Dispatcher

	// Registry (опционально; если nil — используется NewRegistry())
	Registry *Registry

	// MaxAttempts — попыток выполнения (default: 1); metadata.max_attempts переопределяет.
	MaxAttempts int

	// RetryDelay — начальная задержка между попытками (default: 1s).
	RetryDelay time.Duration

	Logger *slog.Logger
}

// New создаёт новый Handler.
func New(cfg Config) *Handler {
	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry()
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		name:        cfg.Name,
		registry:    registry,
		dispatcher:  cfg.Dispatcher,
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
		logger:      logger.With("worker", cfg.Name),
	}
}

// Name возвращает имя адресата.
func (h *Handler) Name() string { return h.name }

// Handle реализует engine.Handler.
func (h *Handler) Handle(ctx context.Context, msg message.Message) error {
	cmd, ok := msg.(*message.WorkflowMessage)
	if !ok || !cmd.IsCommand() {
		return fmt.Errorf("%w: %s", ErrUnsupportedMessage, msg.Name())
	}
	pos, ok := cmd.ProcessTaskListPosition()
	if !ok {
		return fmt.Errorf("%w: %s", ErrMissingPosition, cmd.Name())
	}
	logger := telemetry.WithPosition(h.logger, pos).With("message_name", cmd.Name())

	executorName := getString(cmd.Metadata(), "executor", defaultExecutor)
	executor, err := h.registry.Get(executorName)
	if err != nil {
		return h.reportError(ctx, pos, err, logger)
	}

	result, err := h.executeWithRetry(ctx, executor, cmd, logger)
	if err != nil {
		return h.reportError(ctx, pos, err, logger)
	}
	if result.Failed() {
		return h.reportError(ctx, pos, domain.NewProcessingError(result.Code, result.Error, map[string]any{
			"executor": executorName,
		}), logger)
	}

	answer, err := cmd.Answer(message.Payload{Data: result.Data}, h.name)
	if err != nil {
		return err
	}
	if err := h.dispatcher.Dispatch(ctx, answer); err != nil {
		return fmt.Errorf("dispatch answer: %w", err)
	}

	logger.Debug("command answered", "answer", answer.Name())
	return nil
}

// executeWithRetry повторяет выполнение при инфраструктурных ошибках
// и логических ошибках с кодом >= 500.
func (h *Handler) executeWithRetry(ctx context.Context, executor Executor, cmd *message.WorkflowMessage, logger *slog.Logger) (*ExecutionResult, error) {
	maxAttempts := h.maxAttempts
	if v, ok := cmd.Metadata()["max_attempts"].(float64); ok && v >= 1 {
		maxAttempts = int(v)
	}
	if v, ok := cmd.Metadata()["max_attempts"].(int); ok && v >= 1 {
		maxAttempts = v
	}

	var (
		result *ExecutionResult
		err    error
	)
	for attempt := 1; ; attempt++ {
		result, err = executor.Execute(ctx, cmd)
		if err == nil && !result.Failed() {
			return result, nil
		}
		if attempt >= maxAttempts || !shouldRetry(result, err) {
			break
		}

		delay := calculateBackoff(attempt, h.retryDelay)
		logger.Debug("retrying command", "attempt", attempt, "delay", delay)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return result, err
}

// reportError отправляет процессу LogMessage с ошибкой.
func (h *Handler) reportError(ctx context.Context, pos domain.TaskListPosition, cause error, logger *slog.Logger) error {
	logger.Warn("command failed", "error", cause)

	log := message.NewLog(domain.LogError(pos, cause), h.name)
	if err := h.dispatcher.Dispatch(ctx, log); err != nil {
		return fmt.Errorf("dispatch error log: %w", err)
	}
	return nil
}

// shouldRetry определяет, нужно ли повторять выполнение.
func shouldRetry(result *ExecutionResult, execErr error) bool {
	// Инфраструктурная ошибка — всегда retry
	if execErr != nil {
		return true
	}
	// Ошибки клиента (4xx) повтор не исправит
	return result.Code == 0 || result.Code >= 500
}

// calculateBackoff вычисляет задержку: initial * 2^(attempt-1), не больше maxRetryDelay.
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
