package process

import (
	"fmt"
	"maps"

	"github.com/shaiso/Conveyor/internal/domain"
)

// apply — шаг свёртки: изменяет состояние по одному событию.
func (p *Process) apply(e Event) error {
	if setup, ok := e.(*ProcessWasSetUp); ok {
		if err := p.applySetUp(setup); err != nil {
			return err
		}
		p.version++
		return nil
	}
	if p.taskList == nil {
		return ErrNotSetUp
	}

	var err error
	switch ev := e.(type) {
	case *TaskEntryMarkedAsRunning:
		err = p.withEntry(ev.Position, func(entry *domain.TaskListEntry) error {
			entry.MarkAsRunning(ev.At)
			return nil
		})
	case *TaskEntryMarkedAsDone:
		err = p.withEntry(ev.Position, func(entry *domain.TaskListEntry) error {
			entry.MarkAsSuccessfulDone(ev.At)
			return nil
		})
	case *TaskEntryMarkedAsFailed:
		err = p.withEntry(ev.Position, func(entry *domain.TaskListEntry) error {
			entry.MarkAsFailed(ev.At)
			return nil
		})
	case *LogMessageReceived:
		err = p.withEntry(ev.Message.Position, func(entry *domain.TaskListEntry) error {
			return entry.LogMessage(ev.Message)
		})
	case *TaskListWasRescheduled:
		var tasks []domain.Task
		tasks, err = buildTasks(ev.Tasks)
		if err == nil {
			err = p.taskList.Reschedule(tasks)
		}
	default:
		err = fmt.Errorf("%w: %T", ErrUnknownEvent, e)
	}
	if err != nil {
		return err
	}
	p.version++
	return nil
}

func (p *Process) applySetUp(e *ProcessWasSetUp) error {
	if p.taskList != nil {
		return ErrAlreadySetUp
	}
	tasks, err := buildTasks(e.Tasks)
	if err != nil {
		return err
	}
	taskList, err := domain.NewTaskList(e.TaskListID, tasks)
	if err != nil {
		return err
	}

	p.id = e.ID
	p.taskList = taskList
	p.config = maps.Clone(e.Config)
	p.syncLogMessages = e.SyncLogMessages
	if e.ParentPosition != nil {
		parent := *e.ParentPosition
		p.parentPosition = &parent
	}
	return nil
}

func (p *Process) withEntry(pos domain.TaskListPosition, fn func(*domain.TaskListEntry) error) error {
	entry, err := p.taskList.Entry(pos)
	if err != nil {
		return err
	}
	return fn(entry)
}

// buildTasks восстанавливает задачи из журнала без проверки payload-типов:
// они проверены при создании процесса.
func buildTasks(defs []domain.TaskDefinition) ([]domain.Task, error) {
	tasks := make([]domain.Task, 0, len(defs))
	for i, def := range defs {
		task, err := domain.NewTaskFromDefinition(def, nil)
		if err != nil {
			return nil, fmt.Errorf("task %d: %w", i+1, err)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}
