package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/shaiso/Conveyor/internal/message"
)

// Executor выполняет команду процесса.
//
// Реализации: HTTPExecutor, DelayExecutor, TransformExecutor.
//
// Настройки берутся из метаданных команды.
type Executor interface {
	Execute(ctx context.Context, cmd *message.WorkflowMessage) (*ExecutionResult, error)
}

// ExecutionResult — результат выполнения команды.
type ExecutionResult struct {
	// Data — данные ответа.
	Data any

	// Error — сообщение об ошибке (логическая ошибка выполнения).
	// Инфраструктурные ошибки возвращаются через error в Execute().
	Error string

	// Code — код LogMessage для логической ошибки (например, HTTP-статус).
	Code int
}

// Failed проверяет, завершилось ли выполнение логической ошибкой.
func (r *ExecutionResult) Failed() bool {
	return r != nil && r.Error != ""
}

// Registry — реестр executor'ов по имени.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Executor
}

// NewRegistry создаёт реестр с executor'ами по умолчанию: http, delay, transform.
func NewRegistry() *Registry {
	r := &Registry{executors: make(map[string]Executor)}
	r.Register("http", &HTTPExecutor{})
	r.Register("delay", &DelayExecutor{})
	r.Register("transform", &TransformExecutor{})
	return r
}

// Register добавляет executor.
func (r *Registry) Register(name string, executor Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[name] = executor
}

// Get возвращает executor по имени.
func (r *Registry) Get(name string) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	executor, ok := r.executors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownExecutor, name)
	}
	return executor, nil
}
