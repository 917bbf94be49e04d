package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/process"
)

// AggregateTypeProcess — тип агрегата процесса в потоке событий.
const AggregateTypeProcess = "process"

// ProcessRepo — репозиторий процессов поверх EventStore.
type ProcessRepo struct {
	store EventStore
	now   func() time.Time
}

// NewProcessRepo создаёт новый ProcessRepo.
func NewProcessRepo(store EventStore) *ProcessRepo {
	return &ProcessRepo{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Get восстанавливает процесс из истории событий.
func (r *ProcessRepo) Get(ctx context.Context, id domain.ProcessID) (*process.Process, error) {
	records, err := r.store.Load(ctx, processStream(id))
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: process %s", ErrNotFound, id)
	}

	events := make([]process.Event, 0, len(records))
	for _, rec := range records {
		e, err := process.DecodeEvent(rec.EventName, rec.Payload)
		if err != nil {
			return nil, fmt.Errorf("decode event %d of %s: %w", rec.Version, id, err)
		}
		events = append(events, e)
	}

	p, err := process.FromHistory(events)
	if err != nil {
		return nil, fmt.Errorf("rebuild process %s: %w", id, err)
	}
	return p, nil
}

// Save сохраняет новые события процесса.
//
// Возвращает ErrConcurrencyConflict, если поток изменился после загрузки.
func (r *ProcessRepo) Save(ctx context.Context, p *process.Process) error {
	pending := p.PendingEvents()
	if len(pending) == 0 {
		return nil
	}

	stream := processStream(p.ID())
	expected := p.Version() - len(pending)

	records := make([]Record, 0, len(pending))
	for i, e := range pending {
		payload, err := process.EncodeEvent(e)
		if err != nil {
			return err
		}
		records = append(records, Record{
			EventID:       uuid.New(),
			Version:       expected + i + 1,
			EventName:     e.EventName(),
			EventClass:    process.EventClass(e),
			Payload:       payload,
			CreatedAt:     r.now(),
			AggregateID:   stream.AggregateID,
			AggregateType: stream.AggregateType,
		})
	}

	if err := r.store.Append(ctx, stream, expected, records); err != nil {
		return fmt.Errorf("save process %s: %w", p.ID(), err)
	}
	p.MarkCommitted()
	return nil
}

func processStream(id domain.ProcessID) StreamID {
	return StreamID{AggregateType: AggregateTypeProcess, AggregateID: id.String()}
}
