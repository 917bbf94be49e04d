// Package telemetry обеспечивает наблюдаемость узла.
//
// Включает:
//   - logging.go — structured logging через slog и поля процесса (process_id, task_list_position, channel)
//   - metrics.go — Prometheus метрики процессов и каналов
//
// Metrics подключается к processor.Processor и к каналам движка через
// engine.NewMetricsPlugin; узел экспортирует метрики на /metrics.
package telemetry
