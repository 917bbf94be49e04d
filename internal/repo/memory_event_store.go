package repo

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// MemoryEventStore — EventStore в памяти.
type MemoryEventStore struct {
	mu      sync.RWMutex
	streams map[StreamID][]Record
}

// NewMemoryEventStore создаёт пустое хранилище.
func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{streams: make(map[StreamID][]Record)}
}

// Setup ничего не делает.
func (s *MemoryEventStore) Setup(context.Context) error { return nil }

// Append добавляет события с проверкой версии.
func (s *MemoryEventStore) Append(_ context.Context, stream StreamID, expectedVersion int, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := validateAppend(stream, expectedVersion, records); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := len(s.streams[stream])
	if current != expectedVersion {
		return fmt.Errorf("%w: %s at version %d, expected %d", ErrConcurrencyConflict, stream, current, expectedVersion)
	}
	s.streams[stream] = append(s.streams[stream], records...)
	return nil
}

// Load возвращает события потока в порядке версий.
func (s *MemoryEventStore) Load(_ context.Context, stream StreamID) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.streams[stream]), nil
}
