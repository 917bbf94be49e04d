package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation — SQLSTATE нарушения уникальности.
const uniqueViolation = "23505"

const createEventStreamSQL = `
	CREATE TABLE IF NOT EXISTS event_stream (
		event_id       UUID PRIMARY KEY,
		version        INTEGER NOT NULL,
		event_name     TEXT NOT NULL,
		event_class    TEXT NOT NULL,
		payload        JSONB NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL,
		aggregate_id   TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		CONSTRAINT event_stream_version_uq UNIQUE (aggregate_id, aggregate_type, version)
	)
`

const createEventStreamIndexSQL = `
	CREATE INDEX IF NOT EXISTS event_stream_aggregate_idx
		ON event_stream (aggregate_type, aggregate_id, version)
`

// PostgresEventStore — EventStore на PostgreSQL.
type PostgresEventStore struct {
	pool *pgxpool.Pool
}

// NewPostgresEventStore создаёт новый PostgresEventStore.
func NewPostgresEventStore(pool *pgxpool.Pool) *PostgresEventStore {
	return &PostgresEventStore{pool: pool}
}

// Setup создаёт таблицу event_stream в одной транзакции.
func (s *PostgresEventStore) Setup(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin setup: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, createEventStreamSQL); err != nil {
		return fmt.Errorf("create event_stream: %w", err)
	}
	if _, err := tx.Exec(ctx, createEventStreamIndexSQL); err != nil {
		return fmt.Errorf("create event_stream index: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit setup: %w", err)
	}
	return nil
}

// Append добавляет события с проверкой версии.
func (s *PostgresEventStore) Append(ctx context.Context, stream StreamID, expectedVersion int, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := validateAppend(stream, expectedVersion, records); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var current int
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(version), 0) FROM event_stream
		WHERE aggregate_type = $1 AND aggregate_id = $2
	`, stream.AggregateType, stream.AggregateID).Scan(&current)
	if err != nil {
		return fmt.Errorf("select version: %w", err)
	}
	if current != expectedVersion {
		return fmt.Errorf("%w: %s at version %d, expected %d", ErrConcurrencyConflict, stream, current, expectedVersion)
	}

	query := `
		INSERT INTO event_stream (event_id, version, event_name, event_class, payload, created_at, aggregate_id, aggregate_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for _, r := range records {
		_, err := tx.Exec(ctx, query,
			r.EventID,
			r.Version,
			r.EventName,
			r.EventClass,
			r.Payload,
			r.CreatedAt,
			r.AggregateID,
			r.AggregateType,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return fmt.Errorf("%w: %s version %d", ErrConcurrencyConflict, stream, r.Version)
			}
			return fmt.Errorf("insert event: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

// Load возвращает события потока в порядке версий.
func (s *PostgresEventStore) Load(ctx context.Context, stream StreamID) ([]Record, error) {
	query := `
		SELECT event_id, version, event_name, event_class, payload, created_at, aggregate_id, aggregate_type
		FROM event_stream
		WHERE aggregate_type = $1 AND aggregate_id = $2
		ORDER BY version ASC
	`
	rows, err := s.pool.Query(ctx, query, stream.AggregateType, stream.AggregateID)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func scanRecord(row pgx.Row) (Record, error) {
	var r Record
	err := row.Scan(
		&r.EventID,
		&r.Version,
		&r.EventName,
		&r.EventClass,
		&r.Payload,
		&r.CreatedAt,
		&r.AggregateID,
		&r.AggregateType,
	)
	if err != nil {
		return Record{}, fmt.Errorf("scan event: %w", err)
	}
	return r, nil
}
