package repo

import "errors"

// Общие ошибки репозиториев.
var (
	// ErrNotFound — агрегат не найден (нет событий).
	ErrNotFound = errors.New("not found")

	// ErrConcurrencyConflict — версия агрегата изменилась с момента загрузки.
	// Операцию нужно повторить на свежем состоянии.
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	// ErrInvalidRecord — запись события не содержит обязательных полей.
	ErrInvalidRecord = errors.New("invalid event record")

	// ErrStoreClosed — хранилище закрыто.
	ErrStoreClosed = errors.New("event store is closed")
)
