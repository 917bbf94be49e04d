// Package process содержит event-sourced агрегат Process.
//
// Состояние процесса — это свёртка его событий (apply.go). Команды
// агрегата (SetUp, Perform, ReceiveMessage, RescheduleTaskList)
// записывают события и возвращают Directive — какие сообщения
// отправить дальше.
//
// Factory создаёт процессы по определениям, зарегистрированным
// под именами стартовых сообщений.
package process
