package worker

import (
	"context"
	"time"

	"github.com/shaiso/Conveyor/internal/message"
)

// DelayExecutor ждёт duration_sec секунд (default: 1) и возвращает данные
// команды без изменений. Поддерживает отмену через context.
type DelayExecutor struct{}

// Execute выполняет задержку.
func (e *DelayExecutor) Execute(ctx context.Context, cmd *message.WorkflowMessage) (*ExecutionResult, error) {
	duration := getSeconds(cmd.Metadata(), "duration_sec")
	if duration <= 0 {
		duration = time.Second
	}

	select {
	case <-time.After(duration):
		return &ExecutionResult{Data: cmd.Payload().Data}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
