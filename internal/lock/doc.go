// Package lock содержит неблокирующие блокировки по ключу.
//
// Блокировка берётся на время обработки сообщения процессом, чтобы два
// обработчика на одном узле (или на разных узлах при Redis) не изменяли
// один и тот же процесс одновременно.
//
// Реализации:
//   - LocalLock — в памяти процесса
//   - RedisLock — распределённая, SET NX + удаление по токену
//
// Блокировка реентерабельна в пределах context: повторный TryLock с тем же
// ключом внутри fn выполняет fn сразу.
package lock
