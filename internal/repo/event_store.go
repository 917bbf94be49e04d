package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Record — сохранённое событие агрегата.
type Record struct {
	EventID       uuid.UUID `json:"event_id"`
	Version       int       `json:"version"`
	EventName     string    `json:"event_name"`
	EventClass    string    `json:"event_class"`
	Payload       []byte    `json:"payload"`
	CreatedAt     time.Time `json:"created_at"`
	AggregateID   string    `json:"aggregate_id"`
	AggregateType string    `json:"aggregate_type"`
}

// StreamID — ключ потока событий.
type StreamID struct {
	AggregateType string
	AggregateID   string
}

// String возвращает "<type>/<id>".
func (s StreamID) String() string {
	return s.AggregateType + "/" + s.AggregateID
}

// EventStore — append-only хранилище потоков событий.
type EventStore interface {
	// Setup создаёт структуры хранения. Вызывается один раз при развёртывании.
	Setup(ctx context.Context) error

	// Append добавляет события в поток.
	//
	// expectedVersion — версия потока, на которой основаны события.
	// Если текущая версия отличается, возвращается ErrConcurrencyConflict.
	// Версии записей должны идти подряд начиная с expectedVersion+1.
	Append(ctx context.Context, stream StreamID, expectedVersion int, records []Record) error

	// Load возвращает события потока в порядке версий.
	Load(ctx context.Context, stream StreamID) ([]Record, error)
}

// validateAppend проверяет, что записи принадлежат потоку и идут подряд.
func validateAppend(stream StreamID, expectedVersion int, records []Record) error {
	for i, r := range records {
		if r.AggregateID != stream.AggregateID || r.AggregateType != stream.AggregateType {
			return fmt.Errorf("%w: record %d belongs to %s/%s", ErrInvalidRecord, i, r.AggregateType, r.AggregateID)
		}
		if r.Version != expectedVersion+i+1 {
			return fmt.Errorf("%w: record %d has version %d, want %d", ErrInvalidRecord, i, r.Version, expectedVersion+i+1)
		}
		if r.EventName == "" {
			return fmt.Errorf("%w: record %d has no event name", ErrInvalidRecord, i)
		}
	}
	return nil
}
