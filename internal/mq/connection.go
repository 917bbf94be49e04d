package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/multierr"
)

const (
	heartbeat             = 10 * time.Second
	initialReconnectDelay = time.Second
	defaultMaxDelay       = 30 * time.Second
)

// Connection — AMQP соединение узла с автоматическим переподключением.
//
// Топология узла объявляется при каждом подключении, поэтому очередь узла
// и её привязки восстанавливаются и после перезапуска брокера.
type Connection struct {
	url      string
	topology Topology
	maxDelay time.Duration
	logger   *slog.Logger

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel
	ready   chan struct{} // закрывается при следующем успешном подключении
	closed  bool

	done chan struct{}
}

// ConnectionConfig — конфигурация Connection.
type ConnectionConfig struct {
	URL      string
	Topology Topology

	// MaxReconnectDelay — верхняя граница задержки переподключения (default: 30s).
	MaxReconnectDelay time.Duration

	Logger *slog.Logger
}

// Dial подключается к брокеру, объявляет топологию узла и следит за соединением.
func Dial(cfg ConnectionConfig) (*Connection, error) {
	c := newConnection(cfg)
	if err := c.open(); err != nil {
		return nil, err
	}
	go c.supervise()
	return c, nil
}

func newConnection(cfg ConnectionConfig) *Connection {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxDelay := cfg.MaxReconnectDelay
	if maxDelay <= 0 {
		maxDelay = defaultMaxDelay
	}
	return &Connection{
		url:      cfg.URL,
		topology: cfg.Topology,
		maxDelay: maxDelay,
		logger:   logger.With("node", cfg.Topology.Node),
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Topology возвращает топологию, которую объявляет соединение.
func (c *Connection) Topology() Topology { return c.topology }

// open устанавливает соединение, открывает канал и объявляет топологию.
func (c *Connection) open() error {
	props := amqp.NewConnectionProperties()
	props.SetClientConnectionName("conveyor-" + c.topology.Node)

	conn, err := amqp.DialConfig(c.url, amqp.Config{
		Properties: props,
		Heartbeat:  heartbeat,
		Locale:     "en_US",
	})
	if err != nil {
		return fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		return multierr.Append(fmt.Errorf("open channel: %w", err), conn.Close())
	}
	if err := c.topology.declare(ch); err != nil {
		return multierr.Append(fmt.Errorf("declare topology: %w", err), conn.Close())
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return multierr.Append(ErrConnectionClosed, conn.Close())
	}
	c.conn = conn
	c.channel = ch
	close(c.ready)
	c.ready = make(chan struct{})

	c.logger.Info("connected to RabbitMQ", "queue", NodeQueue(c.topology.Node))
	return nil
}

// supervise ждёт закрытия соединения или канала и переподключается.
func (c *Connection) supervise() {
	for {
		c.mu.RLock()
		conn, ch := c.conn, c.channel
		c.mu.RUnlock()

		connClosed := conn.NotifyClose(make(chan *amqp.Error, 1))
		chClosed := ch.NotifyClose(make(chan *amqp.Error, 1))

		var reason *amqp.Error
		select {
		case <-c.done:
			return
		case reason = <-connClosed:
		case reason = <-chClosed:
		}
		if reason != nil {
			c.logger.Warn("amqp connection lost", "error", reason, "code", reason.Code)
		}

		// канал мог закрыться отдельно от соединения
		if !conn.IsClosed() {
			conn.Close()
		}
		if !c.reconnect() {
			return
		}
	}
}

// reconnect подключается заново с экспоненциальной задержкой.
// Возвращает false, если соединение закрыто вызовом Close.
func (c *Connection) reconnect() bool {
	delay := initialReconnectDelay
	for attempt := 1; ; attempt++ {
		select {
		case <-c.done:
			return false
		case <-time.After(delay):
		}

		err := c.open()
		if err == nil {
			c.logger.Info("reconnected to RabbitMQ", "attempt", attempt)
			return true
		}
		if errors.Is(err, ErrConnectionClosed) {
			return false
		}
		c.logger.Warn("reconnect failed", "attempt", attempt, "next_delay", delay, "error", err)
		delay = nextReconnectDelay(delay, c.maxDelay)
	}
}

func nextReconnectDelay(current, limit time.Duration) time.Duration {
	return min(current*2, limit)
}

// Healthy возвращает nil, если соединение и канал открыты.
func (c *Connection) Healthy() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch {
	case c.closed:
		return ErrConnectionClosed
	case c.conn == nil || c.conn.IsClosed(), c.channel == nil || c.channel.IsClosed():
		return ErrDisconnected
	}
	return nil
}

// WaitReady блокируется, пока соединение не станет рабочим.
func (c *Connection) WaitReady(ctx context.Context) error {
	for {
		c.mu.RLock()
		ready := c.ready
		c.mu.RUnlock()

		err := c.Healthy()
		if err == nil || errors.Is(err, ErrConnectionClosed) {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return ErrConnectionClosed
		case <-ready:
		}
	}
}

// WithChannel выполняет fn с текущим каналом.
func (c *Connection) WithChannel(fn func(ch *amqp.Channel) error) error {
	if err := c.Healthy(); err != nil {
		return err
	}
	c.mu.RLock()
	ch := c.channel
	c.mu.RUnlock()
	return fn(ch)
}

// Close закрывает соединение и останавливает переподключение.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)

	var errs error
	if c.channel != nil && !c.channel.IsClosed() {
		if err := c.channel.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close channel: %w", err))
		}
	}
	if c.conn != nil && !c.conn.IsClosed() {
		if err := c.conn.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close connection: %w", err))
		}
	}

	c.logger.Info("amqp connection closed")
	return errs
}
