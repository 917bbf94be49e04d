package message

import "errors"

// Ошибки сообщений.
var (
	// ErrUnknownMessage — имя сообщения не распознано.
	ErrUnknownMessage = errors.New("unknown message name")

	// ErrInvalidMessageName — имя не соответствует формату workflow-сообщения.
	ErrInvalidMessageName = errors.New("invalid workflow message name")

	// ErrNotAnswerable — на сообщение нельзя ответить (это не команда).
	ErrNotAnswerable = errors.New("message is not a command")

	// ErrNotProcessable — сообщение не является событием с данными.
	ErrNotProcessable = errors.New("message is not a data event")

	// ErrInvalidEnvelope — конверт не содержит обязательных полей.
	ErrInvalidEnvelope = errors.New("invalid message envelope")
)
