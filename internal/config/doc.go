// Package config загружает конфигурацию узла из YAML.
//
// Путь к файлу задаётся CONVEYOR_CONFIG (по умолчанию conveyor.yaml).
// Параметры подключения переопределяются переменными окружения:
//   - DB_URL       — DSN PostgreSQL
//   - RABBITMQ_URL — URL RabbitMQ
//   - REDIS_ADDR   — адрес Redis для блокировок
//   - NODE_PORT    — порт HTTP API
//
// Пример:
//
//	node: billing
//	store: {driver: bolt, path: /var/lib/conveyor/events.db}
//	lock: {driver: local}
//	channels:
//	  to-shop:
//	    targets: [shop]
//	    utils: [logging]
//	    message_dispatcher: amqp
//	definitions:
//	  processing-message-invoice-data-collected:
//	    process_type: linear_messaging
//	    tasks:
//	      - {task_type: process_data, target: shop, allowed_types: [Invoice]}
package config
