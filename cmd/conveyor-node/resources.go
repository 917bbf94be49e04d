package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"

	"github.com/shaiso/Conveyor/internal/config"
	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/lock"
	"github.com/shaiso/Conveyor/internal/repo"
	"github.com/shaiso/Conveyor/internal/scheduler"
)

// resources — то, что нужно закрыть при остановке, в обратном порядке открытия.
type resources struct {
	closers []io.Closer
	logger  *slog.Logger
}

func (r *resources) add(c io.Closer) {
	r.closers = append(r.closers, c)
}

// Close закрывает всё открытое и объединяет ошибки.
func (r *resources) Close() error {
	var errs error
	for _, c := range slices.Backward(r.closers) {
		errs = multierr.Append(errs, c.Close())
	}
	return errs
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// openStore открывает хранилище событий по драйверу из конфигурации.
func (r *resources) openStore(ctx context.Context, cfg config.StoreConfig) (repo.EventStore, error) {
	switch cfg.Driver {
	case config.StorePostgres:
		pool, err := repo.NewPool(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		r.add(closerFunc(func() error { pool.Close(); return nil }))
		return repo.NewPostgresEventStore(pool), nil

	case config.StoreBolt:
		store, err := repo.OpenBoltEventStore(cfg.Path, 0)
		if err != nil {
			return nil, err
		}
		r.add(store)
		return store, nil

	case config.StoreMemory, "":
		r.logger.Warn("using in-memory event store, processes are lost on restart")
		return repo.NewMemoryEventStore(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

// newLocker создаёт блокировку процессов; nil для драйвера none.
func (r *resources) newLocker(ctx context.Context, cfg config.LockConfig) (lock.Locker, error) {
	switch cfg.Driver {
	case config.LockNone:
		return nil, nil

	case config.LockRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		r.add(client)
		return lock.NewRedis(client, "conveyor:lock:", r.logger), nil

	case config.LockLocal, "":
		return lock.NewLocal(), nil
	}
	return nil, fmt.Errorf("unknown lock driver %q", cfg.Driver)
}

// triggersFromConfig переводит триггеры конфигурации в триггеры планировщика.
func triggersFromConfig(cfgs []config.TriggerConfig) []scheduler.Trigger {
	triggers := make([]scheduler.Trigger, len(cfgs))
	for i, c := range cfgs {
		var data any
		if c.Data != nil {
			data = c.Data
		}
		triggers[i] = scheduler.Trigger{
			Name:        c.Name,
			Cron:        c.Cron,
			PayloadType: c.PayloadType,
			Origin:      c.Origin,
			Data:        data,
			Metadata:    domain.Metadata(c.Metadata),
		}
	}
	return triggers
}
