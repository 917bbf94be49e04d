package domain

import "fmt"

// TaskList — упорядоченный список задач процесса.
//
// Позиции непрерывны, начинаются с 1 и не переиспользуются.
type TaskList struct {
	id      TaskListID
	entries []*TaskListEntry
}

// NewTaskList создаёт список и назначает позиции 1..n.
func NewTaskList(id TaskListID, tasks []Task) (*TaskList, error) {
	if len(tasks) == 0 {
		return nil, ErrEmptyTaskList
	}
	tl := &TaskList{id: id}
	if err := tl.appendTasks(tasks); err != nil {
		return nil, err
	}
	return tl, nil
}

// ID возвращает идентификатор списка.
func (tl *TaskList) ID() TaskListID { return tl.id }

// Len возвращает количество entries.
func (tl *TaskList) Len() int { return len(tl.entries) }

// Entries возвращает entries в порядке позиций.
func (tl *TaskList) Entries() []*TaskListEntry {
	out := make([]*TaskListEntry, len(tl.entries))
	copy(out, tl.entries)
	return out
}

// Tasks возвращает задачи в порядке позиций.
func (tl *TaskList) Tasks() []Task {
	out := make([]Task, len(tl.entries))
	for i, e := range tl.entries {
		out[i] = e.Task()
	}
	return out
}

// Entry возвращает entry по позиции.
func (tl *TaskList) Entry(pos TaskListPosition) (*TaskListEntry, error) {
	if pos.TaskListID != tl.id {
		return nil, fmt.Errorf("%w: %s not in %s", ErrForeignPosition, pos, tl.id)
	}
	if pos.Position < 1 || pos.Position > len(tl.entries) {
		return nil, fmt.Errorf("%w: %s", ErrPositionNotFound, pos)
	}
	return tl.entries[pos.Position-1], nil
}

// NextNotStartedEntry возвращает первый entry в статусе not_started или nil.
func (tl *TaskList) NextNotStartedEntry() *TaskListEntry {
	for _, e := range tl.entries {
		if !e.IsStarted() {
			return e
		}
	}
	return nil
}

// IsStarted возвращает true, если хотя бы один entry запущен.
func (tl *TaskList) IsStarted() bool {
	for _, e := range tl.entries {
		if e.IsStarted() {
			return true
		}
	}
	return false
}

// IsCompleted возвращает true, если все entries завершены.
func (tl *TaskList) IsCompleted() bool {
	for _, e := range tl.entries {
		if !e.IsFinished() {
			return false
		}
	}
	return true
}

// IsSuccessfulDone возвращает true, если все entries в статусе done.
func (tl *TaskList) IsSuccessfulDone() bool {
	return tl.IsCompleted() && !tl.HasFailedEntry()
}

// HasFailedEntry возвращает true, если хотя бы один entry в статусе failed.
func (tl *TaskList) HasFailedEntry() bool {
	for _, e := range tl.entries {
		if e.IsFailed() {
			return true
		}
	}
	return false
}

// Reschedule заменяет незапущенный хвост списка новыми задачами.
//
// Запущенные и завершённые entries сохраняются вместе с позициями,
// новые задачи получают позиции после них.
func (tl *TaskList) Reschedule(tasks []Task) error {
	kept := 0
	for _, e := range tl.entries {
		if e.IsStarted() {
			kept = e.Position().Position
		}
	}
	tl.entries = tl.entries[:kept]
	if kept == 0 && len(tasks) == 0 {
		return ErrEmptyTaskList
	}
	return tl.appendTasks(tasks)
}

func (tl *TaskList) appendTasks(tasks []Task) error {
	for _, task := range tasks {
		pos, err := NewTaskListPosition(tl.id, len(tl.entries)+1)
		if err != nil {
			return err
		}
		tl.entries = append(tl.entries, NewTaskListEntry(pos, task))
	}
	return nil
}
