package mq

import "errors"

// Ошибки транспорта.
var (
	// ErrDisconnected — соединение с брокером потеряно, идёт переподключение.
	ErrDisconnected = errors.New("amqp connection is down")

	// ErrConnectionClosed — соединение закрыто вызовом Close.
	ErrConnectionClosed = errors.New("amqp connection is closed")

	// ErrNoPublisher — удалённый диспетчер запрошен без Publisher.
	ErrNoPublisher = errors.New("amqp publisher is not configured")
)
