// Package processor — единая точка входа для входящих сообщений узла.
//
// Processor превращает входящее сообщение в изменение состояния процесса
// и исходящие сообщения:
//
//	сообщение ──► загрузка/создание Process ──► переход ──► сохранение ──► отправка
//
// Правила:
//   - сообщение с позицией в списке задач адресовано существующему процессу,
//     он восстанавливается из событий через репозиторий
//   - StartSubProcess создаёт подпроцесс
//   - остальные сообщения запускают новый процесс по определению,
//     найденному по имени сообщения
//   - события сохраняются до отправки исходящих сообщений
//   - конфликт версий и занятая блокировка повторяются (по умолчанию 3 попытки)
//   - любая ошибка превращается в LogMessage уровня error на той же позиции
//     и отправляется как обычное сообщение; ReceiveMessage ошибок не возвращает
package processor
