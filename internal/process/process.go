package process

import (
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/shaiso/Conveyor/internal/domain"
)

// ErrProcessFinished — процесс уже завершён.
var ErrProcessFinished = errors.New("process is finished")

// Process — event-sourced агрегат одного выполнения workflow.
//
// Процесс владеет ровно одним TaskList. Процесс с родительской позицией —
// дочерний (sub-process), без неё — корневой.
type Process struct {
	id              domain.ProcessID
	parentPosition  *domain.TaskListPosition
	taskList        *domain.TaskList
	config          map[string]any
	syncLogMessages bool
	version         int

	// pending — события, ещё не сохранённые в хранилище.
	pending []Event
}

// SetUp создаёт корневой процесс.
func SetUp(taskList *domain.TaskList, config map[string]any, now time.Time) (*Process, error) {
	return setUp(taskList, config, nil, false, now)
}

// SetUpAsSubProcess создаёт дочерний процесс, связанный с позицией родителя.
func SetUpAsSubProcess(parent domain.TaskListPosition, taskList *domain.TaskList, config map[string]any, syncLogMessages bool, now time.Time) (*Process, error) {
	return setUp(taskList, config, &parent, syncLogMessages, now)
}

func setUp(taskList *domain.TaskList, config map[string]any, parent *domain.TaskListPosition, syncLogMessages bool, now time.Time) (*Process, error) {
	if taskList == nil || taskList.Len() == 0 {
		return nil, domain.ErrEmptyTaskList
	}
	if taskList.IsStarted() {
		return nil, ErrTaskListStarted
	}

	defs := make([]domain.TaskDefinition, 0, taskList.Len())
	for _, task := range taskList.Tasks() {
		defs = append(defs, task.Definition())
	}

	p := &Process{}
	err := p.record(&ProcessWasSetUp{
		eventMeta:       eventMeta{ID: taskList.ID().ProcessID, At: now},
		TaskListID:      taskList.ID(),
		ParentPosition:  parent,
		Tasks:           defs,
		Config:          maps.Clone(config),
		SyncLogMessages: syncLogMessages,
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// FromHistory восстанавливает процесс из его событий.
//
// Состояние процесса полностью определяется событиями.
func FromHistory(events []Event) (*Process, error) {
	if len(events) == 0 {
		return nil, ErrEmptyHistory
	}
	p := &Process{}
	for i, e := range events {
		if err := p.apply(e); err != nil {
			return nil, fmt.Errorf("apply event %d (%s): %w", i+1, e.EventName(), err)
		}
	}
	return p, nil
}

// ID возвращает ID процесса.
func (p *Process) ID() domain.ProcessID { return p.id }

// NodeName возвращает узел, на котором живёт процесс.
func (p *Process) NodeName() domain.NodeName { return p.taskList.ID().NodeName }

// ParentPosition возвращает позицию задачи родителя.
func (p *Process) ParentPosition() (domain.TaskListPosition, bool) {
	if p.parentPosition == nil {
		return domain.TaskListPosition{}, false
	}
	return *p.parentPosition, true
}

// IsSubProcess возвращает true для дочернего процесса.
func (p *Process) IsSubProcess() bool { return p.parentPosition != nil }

// TaskList возвращает список задач.
func (p *Process) TaskList() *domain.TaskList { return p.taskList }

// Config возвращает копию конфигурации процесса.
func (p *Process) Config() map[string]any { return maps.Clone(p.config) }

// SyncLogMessages — пересылаются ли логи родителю.
func (p *Process) SyncLogMessages() bool { return p.syncLogMessages }

// Version возвращает количество применённых событий.
func (p *Process) Version() int { return p.version }

// IsFinished возвращает true, если все задачи завершены или одна из них упала.
// Упавшая задача останавливает процесс.
func (p *Process) IsFinished() bool {
	return p.taskList.IsCompleted() || p.taskList.HasFailedEntry()
}

// IsSuccessfulDone возвращает true, если все задачи завершены успешно.
func (p *Process) IsSuccessfulDone() bool {
	return p.taskList.IsSuccessfulDone()
}

// PendingEvents возвращает несохранённые события.
func (p *Process) PendingEvents() []Event {
	out := make([]Event, len(p.pending))
	copy(out, p.pending)
	return out
}

// MarkCommitted отмечает несохранённые события как сохранённые.
func (p *Process) MarkCommitted() {
	p.pending = nil
}

// PopRecordedEvents возвращает несохранённые события и очищает их.
func (p *Process) PopRecordedEvents() []Event {
	events := p.pending
	p.pending = nil
	return events
}

// RescheduleTaskList заменяет незапущенные задачи новыми.
func (p *Process) RescheduleTaskList(tasks []domain.Task, now time.Time) error {
	if p.IsFinished() {
		return ErrProcessFinished
	}
	if len(tasks) == 0 && !p.taskList.IsStarted() {
		return domain.ErrEmptyTaskList
	}
	defs := make([]domain.TaskDefinition, 0, len(tasks))
	for _, task := range tasks {
		defs = append(defs, task.Definition())
	}
	return p.record(&TaskListWasRescheduled{
		eventMeta: eventMeta{ID: p.id, At: now},
		Tasks:     defs,
	})
}

// record применяет событие и добавляет его в pending.
func (p *Process) record(e Event) error {
	if err := p.apply(e); err != nil {
		return err
	}
	p.pending = append(p.pending, e)
	return nil
}
