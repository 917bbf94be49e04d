// Package api содержит HTTP API узла.
//
// Структура:
//   - handler.go            — Handler с DI (репозиторий процессов, dispatcher, фабрика, проверки здоровья)
//   - routes.go             — регистрация маршрутов, /healthz и /metrics
//   - middleware.go         — middleware (logging, recovery)
//   - response.go           — унифицированные JSON-ответы и таблица ошибок узла
//   - dto.go                — Data Transfer Objects (request/response)
//   - process_handler.go    — чтение и перепланирование процессов
//   - message_handler.go    — приём входящих сообщений
//   - definition_handler.go — обработчики для /definitions
//
// API позволяет посмотреть состояние процесса (список задач, статусы,
// журнал), перепланировать его незапущенные задачи и отправить
// сообщение в движок узла.
package api
