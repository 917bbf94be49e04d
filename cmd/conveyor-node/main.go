// Conveyor Node — узел оркестрации процессов.
//
// Узел:
//   - Хранит процессы в журнале событий (memory, bolt или postgres)
//   - Принимает сообщения из RabbitMQ и HTTP API
//   - Продвигает процессы и отправляет команды через WorkflowEngine
//   - Запускает процессы по расписанию триггеров
//   - Обслуживает адресатов из workers встроенным HTTP-обработчиком
//
// Конфигурация читается из CONVEYOR_CONFIG (по умолчанию conveyor.yaml).
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Conveyor/internal/api"
	"github.com/shaiso/Conveyor/internal/config"
	"github.com/shaiso/Conveyor/internal/engine"
	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/process"
	"github.com/shaiso/Conveyor/internal/processor"
	"github.com/shaiso/Conveyor/internal/repo"
	"github.com/shaiso/Conveyor/internal/scheduler"
	"github.com/shaiso/Conveyor/internal/telemetry"
	"github.com/shaiso/Conveyor/internal/worker"
)

const (
	shutdownTimeout  = 10 * time.Second
	consumerPrefetch = 10
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()

	cfg, err := config.Load(config.Path())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	node := cfg.NodeName()
	logger = logger.With("node", node)
	logger.Info("starting conveyor-node")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	res := &resources{logger: logger}
	defer func() {
		if err := res.Close(); err != nil {
			logger.Error("failed to release resources", "error", err)
		}
	}()

	// Хранилище событий
	store, err := res.openStore(ctx, cfg.Store)
	if err != nil {
		logger.Error("failed to open event store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	if err := store.Setup(ctx); err != nil {
		logger.Error("failed to setup event store", "error", err)
		os.Exit(1)
	}
	processRepo := repo.NewProcessRepo(store)
	logger.Info("event store ready", "driver", cfg.Store.Driver)

	// Блокировки
	locker, err := res.newLocker(ctx, cfg.Lock)
	if err != nil {
		logger.Error("failed to create locker", "driver", cfg.Lock.Driver, "error", err)
		os.Exit(1)
	}

	// RabbitMQ
	var publisher *mq.Publisher
	var mqConn *mq.Connection
	if cfg.AMQP.URL != "" {
		mqConn, err = mq.Dial(mq.ConnectionConfig{
			URL:      cfg.AMQP.URL,
			Topology: mq.Topology{Node: node.String(), Targets: cfg.Workers},
			Logger:   logger,
		})
		if err != nil {
			logger.Warn("RabbitMQ not available, running with local channels only", "error", err)
		} else {
			res.add(mqConn)
			logger.Debug("amqp topology declared", "topology", mqConn.Topology().Info())
			publisher = mq.NewPublisher(mqConn, logger)
		}
	}

	// Метрики
	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)

	// WorkflowEngine
	dispatchers := map[string]engine.DispatcherFactory{}
	if publisher != nil {
		dispatchers[mq.DispatcherName] = mq.NewDispatcherFactory(publisher)
	}
	router := engine.NewRouter()
	eng, err := engine.New(engine.Config{
		Node:   node,
		Rules:  cfg.ChannelRules(),
		Router: router,
		Plugins: map[string]engine.Plugin{
			"logging": engine.NewLoggingPlugin(logger),
			"metrics": engine.NewMetricsPlugin(metrics),
		},
		Dispatchers: dispatchers,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("failed to create workflow engine", "error", err)
		os.Exit(1)
	}
	res.add(eng)

	// Processor
	factory, err := process.NewFactory(cfg.Definitions, cfg.PayloadTypeSet())
	if err != nil {
		logger.Error("invalid process definitions", "error", err)
		os.Exit(1)
	}
	proc, err := processor.New(processor.Config{
		Node:    node,
		Repo:    processRepo,
		Factory: factory,
		Engine:  eng,
		Locker:  locker,
		Metrics: metrics,
		LockTTL: cfg.Lock.TTL(),
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to create processor", "error", err)
		os.Exit(1)
	}
	router.MustRegister(node.String(), proc)

	// Встроенные обработчики команд
	for _, name := range cfg.Workers {
		if router.Has(name) {
			logger.Warn("worker target already served, skipping", "target", name)
			continue
		}
		router.MustRegister(name, worker.New(worker.Config{
			Name:        name,
			Dispatcher:  eng,
			MaxAttempts: 3,
			Logger:      logger,
		}))
	}

	// Scheduler
	sched, err := scheduler.New(scheduler.Config{
		Node:       node,
		Dispatcher: eng,
		Triggers:   triggersFromConfig(cfg.Triggers),
		Logger:     logger,
	})
	if err != nil {
		logger.Error("invalid triggers", "error", err)
		os.Exit(1)
	}

	// HTTP API
	checks := map[string]api.HealthCheck{}
	if mqConn != nil {
		checks["amqp"] = mqConn.Healthy
	}
	handler := api.NewHandler(api.Config{
		Node:        node,
		Processes:   processRepo,
		Dispatcher:  eng,
		Definitions: factory,
		Rescheduler: proc,
		Checks:      checks,
		Gatherer:    prometheus.DefaultGatherer,
		Logger:      logger,
	})
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return ignoreCanceled(sched.Start(gctx))
	})

	if mqConn != nil {
		consumer := mq.NewConsumer(mqConn, logger, mq.ConsumerConfig{
			Queue:     string(mq.NodeQueue(node.String())),
			Handler:   mq.HandlerFor(router),
			Permanent: permanentError,
			Prefetch:  consumerPrefetch,
		})
		g.Go(func() error {
			return ignoreCanceled(consumer.Start(gctx))
		})
	}

	logger.Info("conveyor-node started",
		"definitions", len(factory.MessageNames()),
		"triggers", len(cfg.Triggers),
		"local_targets", router.Targets(),
	)

	if err := g.Wait(); err != nil {
		logger.Error("node stopped with error", "error", err)
		cancel()
		return
	}
	logger.Info("conveyor-node stopped")
}

// permanentError дополняет mq.IsPermanent ошибками процессора и обработчиков.
func permanentError(err error) bool {
	return mq.IsPermanent(err) ||
		errors.Is(err, process.ErrDefinitionNotFound) ||
		errors.Is(err, process.ErrUnsupportedMessage) ||
		errors.Is(err, process.ErrForeignMessage) ||
		errors.Is(err, process.ErrMissingPosition) ||
		errors.Is(err, worker.ErrUnsupportedMessage) ||
		errors.Is(err, worker.ErrMissingPosition)
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
