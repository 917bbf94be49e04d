package processor

import "errors"

// Ошибки процессора.
var (
	// ErrMissingRepository — не задан репозиторий процессов.
	ErrMissingRepository = errors.New("process repository is required")

	// ErrMissingFactory — не задана фабрика процессов.
	ErrMissingFactory = errors.New("process factory is required")

	// ErrMissingDispatcher — не задан движок отправки сообщений.
	ErrMissingDispatcher = errors.New("message dispatcher is required")

	// ErrNotTrigger — сообщение без позиции не может запустить процесс.
	ErrNotTrigger = errors.New("message cannot start a process")
)
