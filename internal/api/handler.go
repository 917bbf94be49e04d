package api

import (
	"context"
	"log/slog"
	"maps"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/message"
	"github.com/shaiso/Conveyor/internal/process"
)

// ProcessReader загружает процесс по ID (обычно repo.ProcessRepo).
type ProcessReader interface {
	Get(ctx context.Context, id domain.ProcessID) (*process.Process, error)
}

// Dispatcher отправляет входящие сообщения (обычно engine.WorkflowEngine).
type Dispatcher interface {
	Dispatch(ctx context.Context, msg message.Message) error
}

// DefinitionSource отдаёт зарегистрированные определения (обычно process.Factory).
type DefinitionSource interface {
	MessageNames() []string
	Definition(messageName string) (domain.ProcessDefinition, bool)
}

// Rescheduler перепланирует незапущенные задачи процесса (обычно processor.Processor).
type Rescheduler interface {
	Reschedule(ctx context.Context, id domain.ProcessID, tasks []domain.TaskDefinition) (*process.Process, error)
}

// HealthCheck проверяет зависимость узла; nil — зависимость в порядке.
type HealthCheck func() error

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	node        domain.NodeName
	processes   ProcessReader
	dispatcher  Dispatcher
	definitions DefinitionSource
	rescheduler Rescheduler
	checks      map[string]HealthCheck
	gatherer    prometheus.Gatherer
	startedAt   time.Time
	logger      *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Node        domain.NodeName
	Processes   ProcessReader
	Dispatcher  Dispatcher
	Definitions DefinitionSource

	// Rescheduler (опционально; если nil — маршрут перепланирования не регистрируется)
	Rescheduler Rescheduler

	// Checks — проверки для /healthz по имени зависимости
	Checks map[string]HealthCheck

	// Gatherer для /metrics (опционально; если nil — prometheus.DefaultGatherer)
	Gatherer prometheus.Gatherer

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	return &Handler{
		node:        cfg.Node,
		processes:   cfg.Processes,
		dispatcher:  cfg.Dispatcher,
		definitions: cfg.Definitions,
		rescheduler: cfg.Rescheduler,
		checks:      maps.Clone(cfg.Checks),
		gatherer:    gatherer,
		startedAt:   time.Now(),
		logger:      logger,
	}
}
