package process

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shaiso/Conveyor/internal/domain"
)

// Имена событий процесса.
const (
	EventProcessWasSetUp          = "process_was_set_up"
	EventTaskEntryMarkedAsRunning = "task_entry_marked_as_running"
	EventTaskEntryMarkedAsDone    = "task_entry_marked_as_done"
	EventTaskEntryMarkedAsFailed  = "task_entry_marked_as_failed"
	EventLogMessageReceived       = "log_message_received"
	EventTaskListWasRescheduled   = "task_list_was_rescheduled"
)

// Event — доменное событие процесса.
type Event interface {
	EventName() string
	ProcessID() domain.ProcessID
	OccurredAt() time.Time
}

// eventMeta — общие поля событий.
type eventMeta struct {
	ID domain.ProcessID `json:"process_id"`
	At time.Time        `json:"occurred_at"`
}

func (m eventMeta) ProcessID() domain.ProcessID { return m.ID }
func (m eventMeta) OccurredAt() time.Time       { return m.At }

// ProcessWasSetUp — процесс создан.
// Для дочернего процесса заполнен ParentPosition.
type ProcessWasSetUp struct {
	eventMeta
	TaskListID      domain.TaskListID        `json:"task_list_id"`
	ParentPosition  *domain.TaskListPosition `json:"parent_task_list_position,omitempty"`
	Tasks           []domain.TaskDefinition  `json:"tasks"`
	Config          map[string]any           `json:"config,omitempty"`
	SyncLogMessages bool                     `json:"sync_log_messages,omitempty"`
}

func (*ProcessWasSetUp) EventName() string { return EventProcessWasSetUp }

// taskEntryEvent — общие поля событий смены статуса entry.
type taskEntryEvent struct {
	eventMeta
	Position domain.TaskListPosition `json:"task_list_position"`
}

// TaskEntryMarkedAsRunning — задача запущена.
type TaskEntryMarkedAsRunning struct{ taskEntryEvent }

func (*TaskEntryMarkedAsRunning) EventName() string { return EventTaskEntryMarkedAsRunning }

// TaskEntryMarkedAsDone — задача завершена успешно.
type TaskEntryMarkedAsDone struct{ taskEntryEvent }

func (*TaskEntryMarkedAsDone) EventName() string { return EventTaskEntryMarkedAsDone }

// TaskEntryMarkedAsFailed — задача завершилась ошибкой.
type TaskEntryMarkedAsFailed struct{ taskEntryEvent }

func (*TaskEntryMarkedAsFailed) EventName() string { return EventTaskEntryMarkedAsFailed }

// LogMessageReceived — в журнал задачи добавлена запись.
type LogMessageReceived struct {
	eventMeta
	Message domain.LogMessage `json:"log_message"`
}

func (*LogMessageReceived) EventName() string { return EventLogMessageReceived }

// TaskListWasRescheduled — незапущенный хвост списка заменён.
type TaskListWasRescheduled struct {
	eventMeta
	Tasks []domain.TaskDefinition `json:"tasks"`
}

func (*TaskListWasRescheduled) EventName() string { return EventTaskListWasRescheduled }

func newEntryEvent(id domain.ProcessID, pos domain.TaskListPosition, at time.Time) taskEntryEvent {
	return taskEntryEvent{eventMeta: eventMeta{ID: id, At: at}, Position: pos}
}

// eventFactories — реестр конструкторов событий по имени.
var eventFactories = map[string]func() Event{
	EventProcessWasSetUp:          func() Event { return &ProcessWasSetUp{} },
	EventTaskEntryMarkedAsRunning: func() Event { return &TaskEntryMarkedAsRunning{} },
	EventTaskEntryMarkedAsDone:    func() Event { return &TaskEntryMarkedAsDone{} },
	EventTaskEntryMarkedAsFailed:  func() Event { return &TaskEntryMarkedAsFailed{} },
	EventLogMessageReceived:       func() Event { return &LogMessageReceived{} },
	EventTaskListWasRescheduled:   func() Event { return &TaskListWasRescheduled{} },
}

// EncodeEvent сериализует событие в JSON.
func EncodeEvent(e Event) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", e.EventName(), err)
	}
	return data, nil
}

// DecodeEvent восстанавливает событие по имени и JSON.
func DecodeEvent(name string, payload []byte) (Event, error) {
	factory, ok := eventFactories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}
	e := factory()
	if err := json.Unmarshal(payload, e); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", name, err)
	}
	return e, nil
}

// EventClass возвращает имя Go-типа события.
func EventClass(e Event) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", e), "*")
}
