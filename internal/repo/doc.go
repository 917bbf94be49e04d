// Package repo хранит процессы как потоки событий.
//
// EventStore — append-only поток событий агрегата с оптимистичной
// блокировкой по версии. Реализации:
//   - PgEventStore     — PostgreSQL (pgx), таблица event_stream
//   - BoltEventStore   — встраиваемое хранилище bbolt
//   - MemoryEventStore — в памяти, для тестов и локального запуска
//
// ProcessRepo загружает процесс свёрткой его событий и сохраняет
// новые события с проверкой версии.
package repo
