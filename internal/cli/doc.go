// Package cli реализует инструмент командной строки Conveyor.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с API узла.
// Работает через HTTP и не импортирует internal/api; исключение —
// offline-проверка определений, которая использует фабрику процессов.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для API узла. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	proc, err := client.GetProcess(id)
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: conveyor process show ID --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - process: show, reschedule
//   - message: send
//   - definition: list, show, validate
//
// Каждая группа создаётся через фабричную функцию (NewProcessCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
