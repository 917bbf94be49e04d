// Package mq — транспорт сообщений между узлами через RabbitMQ.
//
// Структура:
//   - connection.go — соединение узла: переподключение и повторное объявление топологии
//   - topology.go   — обменники, очередь узла, DLQ, привязки
//   - errors.go     — ошибки транспорта
//   - publisher.go  — публикация сообщений и удалённый диспетчер для каналов
//   - consumer.go   — потребление входящей очереди узла, повторная подписка после обрыва
//
// Сообщения передаются в JSON-конверте message.Encode. Ключ маршрутизации —
// адресат сообщения (имя узла), поэтому сообщение попадает в очередь
// узла-адресата:
//
//	conveyor.nodes (direct)
//	└── conveyor.node.<node> [routing: <node>]  ──►  Router узла
//	        DLQ: conveyor.dlq.<node>
package mq
