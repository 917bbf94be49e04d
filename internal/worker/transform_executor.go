package worker

import (
	"context"
	"maps"

	"github.com/shaiso/Conveyor/internal/message"
)

// TransformExecutor отвечает данными без внешних вызовов.
//
// Если данные команды — объект, поля из metadata.set добавляются
// поверх него; иначе ответом становится metadata.set (если задан)
// или исходные данные.
type TransformExecutor struct{}

// Execute возвращает преобразованные данные.
func (e *TransformExecutor) Execute(_ context.Context, cmd *message.WorkflowMessage) (*ExecutionResult, error) {
	data := cmd.Payload().Data
	set, _ := cmd.Metadata()["set"].(map[string]any)
	if set == nil {
		return &ExecutionResult{Data: data}, nil
	}

	obj, ok := data.(map[string]any)
	if !ok {
		return &ExecutionResult{Data: maps.Clone(set)}, nil
	}

	out := maps.Clone(obj)
	maps.Copy(out, set)
	return &ExecutionResult{Data: out}, nil
}
