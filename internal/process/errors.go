package process

import "errors"

// Ошибки процесса.
var (
	// ErrNotSetUp — событие применено к процессу до ProcessWasSetUp.
	ErrNotSetUp = errors.New("process is not set up")

	// ErrAlreadySetUp — повторный ProcessWasSetUp.
	ErrAlreadySetUp = errors.New("process is already set up")

	// ErrTaskListStarted — процесс нельзя создать из уже запущенного списка.
	ErrTaskListStarted = errors.New("task list is already started")

	// ErrMissingPosition — сообщение не содержит позицию задачи.
	ErrMissingPosition = errors.New("message has no task list position")

	// ErrForeignMessage — сообщение адресовано другому процессу.
	ErrForeignMessage = errors.New("message belongs to another process")

	// ErrUnsupportedMessage — процесс не умеет обрабатывать сообщение.
	ErrUnsupportedMessage = errors.New("unsupported message")

	// ErrEmptyHistory — нет событий для восстановления.
	ErrEmptyHistory = errors.New("event history is empty")

	// ErrUnknownEvent — имя события не зарегистрировано.
	ErrUnknownEvent = errors.New("unknown event")
)

// Ошибки фабрики.
var (
	// ErrDefinitionNotFound — нет определения для стартового сообщения.
	ErrDefinitionNotFound = errors.New("process definition not found")

	// ErrInvalidDefinition — определение процесса невалидно.
	ErrInvalidDefinition = errors.New("invalid process definition")
)
