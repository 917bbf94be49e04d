package engine

import "errors"

// Ошибки маршрутизации.
var (
	// ErrEmptyTarget — попытка получить канал для пустого target.
	ErrEmptyTarget = errors.New("target is empty")

	// ErrBusConstruction — не удалось создать диспетчер канала.
	ErrBusConstruction = errors.New("channel bus construction failed")

	// ErrNoHandler — для target не зарегистрирован локальный обработчик.
	ErrNoHandler = errors.New("no handler registered for target")

	// ErrHandlerExists — обработчик для target уже зарегистрирован.
	ErrHandlerExists = errors.New("handler already registered for target")

	// ErrDispatchRejected — плагин отклонил отправку сообщения.
	ErrDispatchRejected = errors.New("dispatch rejected by plugin")
)

// Ошибки конфигурации каналов.
var (
	// ErrInvalidRule — правило канала невалидно.
	ErrInvalidRule = errors.New("invalid channel rule")

	// ErrUnknownPlugin — правило ссылается на незарегистрированный плагин.
	ErrUnknownPlugin = errors.New("unknown channel plugin")

	// ErrUnknownDispatcher — правило ссылается на незарегистрированный диспетчер.
	ErrUnknownDispatcher = errors.New("unknown message dispatcher")
)
