package worker

import "errors"

// Ошибки воркера.
var (
	// ErrUnsupportedMessage — воркер отвечает только на команды collect-data и process-data.
	ErrUnsupportedMessage = errors.New("unsupported message")

	// ErrMissingPosition — команда не привязана к задаче процесса.
	ErrMissingPosition = errors.New("command has no task list position")

	// ErrUnknownExecutor — нет executor'а с таким именем.
	ErrUnknownExecutor = errors.New("unknown executor")

	// ErrHTTPRequest — HTTP-запрос завершился ошибкой.
	ErrHTTPRequest = errors.New("http request failed")
)
