package domain

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// TaskListEntry — состояние выполнения одной задачи на одной позиции.
//
// Переходы идемпотентны: повторная доставка сообщений не приводит
// к ошибкам. Методы Mark* возвращают true, если состояние изменилось.
type TaskListEntry struct {
	position   TaskListPosition
	task       Task
	status     TaskStatus
	startedAt  *time.Time
	finishedAt *time.Time
	log        []LogMessage
}

// NewTaskListEntry создаёт entry в статусе not_started.
func NewTaskListEntry(pos TaskListPosition, task Task) *TaskListEntry {
	return &TaskListEntry{
		position: pos,
		task:     task,
		status:   TaskStatusNotStarted,
	}
}

// Position возвращает позицию entry.
func (e *TaskListEntry) Position() TaskListPosition { return e.position }

// Task возвращает задачу.
func (e *TaskListEntry) Task() Task { return e.task }

// Status возвращает текущий статус.
func (e *TaskListEntry) Status() TaskStatus { return e.status }

// StartedAt возвращает время запуска или nil.
func (e *TaskListEntry) StartedAt() *time.Time { return copyTime(e.startedAt) }

// FinishedAt возвращает время завершения или nil.
func (e *TaskListEntry) FinishedAt() *time.Time { return copyTime(e.finishedAt) }

// MessageLog возвращает копию журнала задачи.
func (e *TaskListEntry) MessageLog() []LogMessage { return slices.Clone(e.log) }

// IsStarted возвращает true, если entry покинул not_started.
func (e *TaskListEntry) IsStarted() bool { return e.status != TaskStatusNotStarted }

// IsRunning возвращает true для in_progress.
func (e *TaskListEntry) IsRunning() bool { return e.status == TaskStatusInProgress }

// IsFinished возвращает true для done и failed.
func (e *TaskListEntry) IsFinished() bool { return e.status.IsTerminal() }

// IsSuccessfulDone возвращает true для done.
func (e *TaskListEntry) IsSuccessfulDone() bool { return e.status == TaskStatusDone }

// IsFailed возвращает true для failed.
func (e *TaskListEntry) IsFailed() bool { return e.status == TaskStatusFailed }

// CanMarkAsRunning сообщает, изменит ли MarkAsRunning состояние.
func (e *TaskListEntry) CanMarkAsRunning() bool {
	return !e.IsStarted()
}

// AcceptsFinishAt сообщает, изменит ли завершение в момент at состояние.
func (e *TaskListEntry) AcceptsFinishAt(at time.Time) bool {
	return e.finishedAt == nil || orNow(at).After(*e.finishedAt)
}

// MarkAsRunning переводит entry в in_progress.
// Если entry уже запущен или завершён, вызов игнорируется.
func (e *TaskListEntry) MarkAsRunning(at time.Time) bool {
	if !e.CanMarkAsRunning() {
		return false
	}
	at = orNow(at)
	e.status = TaskStatusInProgress
	e.startedAt = &at
	return true
}

// MarkAsSuccessfulDone переводит entry в done.
func (e *TaskListEntry) MarkAsSuccessfulDone(at time.Time) bool {
	return e.finish(TaskStatusDone, at)
}

// MarkAsFailed переводит entry в failed.
func (e *TaskListEntry) MarkAsFailed(at time.Time) bool {
	return e.finish(TaskStatusFailed, at)
}

// finish завершает entry. Незапущенный entry сначала запускается в тот же
// момент. Завершение с временем не позже сохранённого игнорируется.
func (e *TaskListEntry) finish(status TaskStatus, at time.Time) bool {
	at = orNow(at)
	if !e.AcceptsFinishAt(at) {
		return false
	}
	e.MarkAsRunning(at)
	e.status = status
	e.finishedAt = &at
	return true
}

// HasLogMessage проверяет, записано ли сообщение с данным UUID.
func (e *TaskListEntry) HasLogMessage(id uuid.UUID) bool {
	return slices.ContainsFunc(e.log, func(m LogMessage) bool { return m.UUID == id })
}

// LogMessage добавляет сообщение в журнал.
// Сообщение для чужой позиции отклоняется.
func (e *TaskListEntry) LogMessage(msg LogMessage) error {
	if msg.Position != e.position {
		return fmt.Errorf("%w: entry %s, message %s", ErrPositionMismatch, e.position, msg.Position)
	}
	e.log = append(e.log, msg)
	return nil
}

// Duration возвращает продолжительность выполнения.
func (e *TaskListEntry) Duration() time.Duration {
	if e.startedAt == nil || e.finishedAt == nil {
		return 0
	}
	return e.finishedAt.Sub(*e.startedAt)
}

func orNow(at time.Time) time.Time {
	if at.IsZero() {
		return time.Now().UTC()
	}
	return at
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
