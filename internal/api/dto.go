package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/process"
)

// Process DTOs

// ProcessResponse — ответ с состоянием процесса.
type ProcessResponse struct {
	ID             string              `json:"id"`
	NodeName       string              `json:"node_name"`
	TaskListID     string              `json:"task_list_id"`
	ParentPosition string              `json:"parent_position,omitempty"`
	Version        int                 `json:"version"`
	Finished       bool                `json:"finished"`
	Succeeded      bool                `json:"succeeded"`
	Config         map[string]any      `json:"config,omitempty"`
	Tasks          []TaskEntryResponse `json:"tasks"`
}

// TaskEntryResponse — ответ с записью списка задач.
type TaskEntryResponse struct {
	Position   string                `json:"position"`
	TaskType   domain.TaskType       `json:"task_type"`
	Definition domain.TaskDefinition `json:"definition"`
	Status     domain.TaskStatus     `json:"status"`
	StartedAt  *time.Time            `json:"started_at,omitempty"`
	FinishedAt *time.Time            `json:"finished_at,omitempty"`
	Log        []LogMessageResponse  `json:"log,omitempty"`
}

// LogMessageResponse — ответ с записью журнала задачи.
type LogMessageResponse struct {
	UUID      uuid.UUID       `json:"uuid"`
	Level     domain.LogLevel `json:"level"`
	Code      int             `json:"code"`
	Message   string          `json:"message"`
	Params    map[string]any  `json:"params,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// ProcessFromDomain конвертирует process.Process в ProcessResponse.
func ProcessFromDomain(p *process.Process) ProcessResponse {
	resp := ProcessResponse{
		ID:         p.ID().String(),
		NodeName:   p.NodeName().String(),
		TaskListID: p.TaskList().ID().String(),
		Version:    p.Version(),
		Finished:   p.IsFinished(),
		Succeeded:  p.IsSuccessfulDone(),
		Config:     p.Config(),
	}
	if parent, ok := p.ParentPosition(); ok {
		resp.ParentPosition = parent.String()
	}

	entries := p.TaskList().Entries()
	resp.Tasks = make([]TaskEntryResponse, len(entries))
	for i, e := range entries {
		resp.Tasks[i] = TaskEntryFromDomain(e)
	}
	return resp
}

// TaskEntryFromDomain конвертирует domain.TaskListEntry в TaskEntryResponse.
func TaskEntryFromDomain(e *domain.TaskListEntry) TaskEntryResponse {
	resp := TaskEntryResponse{
		Position:   e.Position().String(),
		TaskType:   e.Task().Type(),
		Definition: e.Task().Definition(),
		Status:     e.Status(),
		StartedAt:  e.StartedAt(),
		FinishedAt: e.FinishedAt(),
	}
	for _, m := range e.MessageLog() {
		resp.Log = append(resp.Log, LogMessageFromDomain(m))
	}
	return resp
}

// LogMessageFromDomain конвертирует domain.LogMessage в LogMessageResponse.
func LogMessageFromDomain(m domain.LogMessage) LogMessageResponse {
	return LogMessageResponse{
		UUID:      m.UUID,
		Level:     m.Level(),
		Code:      m.Code,
		Message:   m.Message,
		Params:    m.Params,
		CreatedAt: m.CreatedAt,
	}
}

// Message DTOs

// MessageAcceptedResponse — ответ о принятом сообщении.
type MessageAcceptedResponse struct {
	UUID   uuid.UUID `json:"uuid"`
	Name   string    `json:"name"`
	Target string    `json:"target"`
}

// Definition DTOs

// RescheduleRequest — новые задачи вместо незапущенных.
type RescheduleRequest struct {
	Tasks []domain.TaskDefinition `json:"tasks"`
}

// DefinitionResponse — ответ с определением процесса.
type DefinitionResponse struct {
	MessageName string                   `json:"message_name"`
	Definition  domain.ProcessDefinition `json:"definition"`
}
