// Package message описывает сообщения, которыми обмениваются узлы.
//
// Виды сообщений:
//   - WorkflowMessage    — команды collect-data/process-data и события data-collected/data-processed
//   - Log                — запись журнала задачи (processing-log-message)
//   - StartSubProcess    — команда запуска дочернего процесса
//   - SubProcessFinished — событие завершения дочернего процесса
//
// Все сообщения кодируются в Envelope (JSON) — см. codec.go.
package message
