package repo

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.etcd.io/bbolt"
)

// eventStreamBucketKey — корневой bucket потоков событий.
//
// Структура: event_stream / <aggregate_type> / <aggregate_id> / <version>,
// где version — 8-байтный big-endian, значение — Record в JSON.
var eventStreamBucketKey = []byte("event_stream")

// BoltEventStore — EventStore на bbolt.
type BoltEventStore struct {
	db *bbolt.DB
}

// OpenBoltEventStore открывает (или создаёт) файл хранилища.
func OpenBoltEventStore(path string, mode os.FileMode) (*BoltEventStore, error) {
	if mode == 0 {
		mode = 0600
	}
	db, err := bbolt.Open(path, mode, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}
	return &BoltEventStore{db: db}, nil
}

// NewBoltEventStore создаёт хранилище поверх открытой БД.
func NewBoltEventStore(db *bbolt.DB) *BoltEventStore {
	return &BoltEventStore{db: db}
}

// Close закрывает БД.
func (s *BoltEventStore) Close() error {
	return s.db.Close()
}

// Setup создаёт корневой bucket.
func (s *BoltEventStore) Setup(_ context.Context) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(eventStreamBucketKey)
		return err
	})
}

// Append добавляет события с проверкой версии.
func (s *BoltEventStore) Append(ctx context.Context, stream StreamID, expectedVersion int, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := validateAppend(stream, expectedVersion, records); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := createBucketIfNotExists(tx,
			eventStreamBucketKey,
			[]byte(stream.AggregateType),
			[]byte(stream.AggregateID),
		)
		if err != nil {
			return err
		}

		current := 0
		if k, _ := b.Cursor().Last(); k != nil {
			current = int(binary.BigEndian.Uint64(k))
		}
		if current != expectedVersion {
			return fmt.Errorf("%w: %s at version %d, expected %d", ErrConcurrencyConflict, stream, current, expectedVersion)
		}

		for _, r := range records {
			data, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("marshal record: %w", err)
			}
			if err := b.Put(versionKey(r.Version), data); err != nil {
				return fmt.Errorf("put record: %w", err)
			}
		}
		return nil
	})
}

// Load возвращает события потока в порядке версий.
func (s *BoltEventStore) Load(ctx context.Context, stream StreamID) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var records []Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := bucket(tx,
			eventStreamBucketKey,
			[]byte(stream.AggregateType),
			[]byte(stream.AggregateID),
		)
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var r Record
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("unmarshal record: %w", err)
			}
			records = append(records, r)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	return records, nil
}

func versionKey(v int) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(v))
	return k
}

// createBucketIfNotExists создаёт вложенные buckets по пути.
func createBucketIfNotExists(tx *bbolt.Tx, path ...[]byte) (*bbolt.Bucket, error) {
	b, err := tx.CreateBucketIfNotExists(path[0])
	if err != nil {
		return nil, fmt.Errorf("create bucket %s: %w", path[0], err)
	}
	for _, name := range path[1:] {
		b, err = b.CreateBucketIfNotExists(name)
		if err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", name, err)
		}
	}
	return b, nil
}

// bucket возвращает вложенный bucket или nil, если его нет.
func bucket(tx *bbolt.Tx, path ...[]byte) *bbolt.Bucket {
	b := tx.Bucket(path[0])
	for _, name := range path[1:] {
		if b == nil {
			return nil
		}
		b = b.Bucket(name)
	}
	return b
}
