package domain

// TaskStatus — статус выполнения задачи в списке.
//
// Жизненный цикл:
//
//	not_started → in_progress → done
//	                          ↘ failed
type TaskStatus string

const (
	// TaskStatusNotStarted — задача ещё не запускалась.
	TaskStatusNotStarted TaskStatus = "not_started"

	// TaskStatusInProgress — команда отправлена, ждём ответ.
	TaskStatusInProgress TaskStatus = "in_progress"

	// TaskStatusDone — задача успешно завершена.
	TaskStatusDone TaskStatus = "done"

	// TaskStatusFailed — задача завершилась ошибкой.
	TaskStatusFailed TaskStatus = "failed"
)

// IsTerminal возвращает true, если статус финальный.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusDone, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление TaskStatus.
func (s TaskStatus) String() string {
	return string(s)
}
