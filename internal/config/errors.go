package config

import "errors"

// Ошибки конфигурации.
var (
	// ErrInvalidConfig — конфигурация не прошла валидацию.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrReadConfig — файл конфигурации не удалось прочитать.
	ErrReadConfig = errors.New("read config")
)
