// Package domain содержит модель выполнения процесса.
//
// Включает:
//   - ids.go       — NodeName, ProcessID, TaskListID, TaskListPosition
//   - task.go      — варианты Task (CollectData, ProcessData, RunSubProcess)
//   - entry.go     — TaskListEntry: состояние одной задачи на одной позиции
//   - tasklist.go  — TaskList: упорядоченный список entries процесса
//   - log.go       — LogMessage и вычисление уровня по коду
//   - definition.go — формат определения процесса
//
// Пакет не знает ни о хранилище событий, ни о транспорте.
package domain
