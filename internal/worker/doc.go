// Package worker — встроенные обработчики команд процессов.
//
// Узел может сам отвечать на команды collect-data и process-data, не
// поднимая отдельный сервис: Handler регистрируется в Router узла под
// именем адресата и выполняет команду executor'ом.
//
//	h := worker.New(worker.Config{
//	    Name:       "crm",
//	    Dispatcher: eng,
//	    Logger:     logger,
//	})
//	router.MustRegister("crm", h)
//
// # Executor
//
// Выбирается по metadata.executor команды:
//   - http (по умолчанию) — GET для collect-data, POST с данными для process-data
//   - delay — ждёт metadata.duration_sec и возвращает данные без изменений
//   - transform — накладывает metadata.set на данные
//
// # Ответы и ошибки
//
// Успешный результат отправляется как ответ на команду (data-collected или
// data-processed) с той же позицией задачи. Ошибка отправляется процессу
// как LogMessage уровня error: HTTP-статус >= 400 становится кодом лога,
// инфраструктурные ошибки получают код 500.
//
// # Retry
//
// Инфраструктурные ошибки и ответы 5xx повторяются до metadata.max_attempts
// раз (по умолчанию Config.MaxAttempts) с экспоненциальной задержкой.
package worker
