package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shaiso/Conveyor/internal/engine"
	"github.com/shaiso/Conveyor/internal/message"
)

// Handler обрабатывает входящее сообщение узла.
type Handler func(ctx context.Context, msg *Delivery) error

// Delivery — декодированное сообщение вместе с исходной AMQP доставкой.
type Delivery struct {
	Message message.Message
	Raw     amqp.Delivery
}

// resubscribeDelay — пауза перед повторной подпиской после ошибки.
const resubscribeDelay = time.Second

// Classifier решает, можно ли повторить обработку после ошибки.
// true — ошибка постоянная, сообщение уходит в DLQ узла.
type Classifier func(err error) bool

// Consumer читает очередь узла и передаёт сообщения Handler.
type Consumer struct {
	conn      *Connection
	logger    *slog.Logger
	queue     string
	handler   Handler
	permanent Classifier
	prefetch  int

	cancelFunc context.CancelFunc
}

// ConsumerConfig — конфигурация Consumer.
type ConsumerConfig struct {
	Queue   string
	Handler Handler

	// Permanent — классификатор ошибок (default: IsPermanent).
	Permanent Classifier

	// Prefetch — число неподтверждённых сообщений (default: 1).
	Prefetch int
}

// NewConsumer создаёт новый Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}

	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}

	permanent := cfg.Permanent
	if permanent == nil {
		permanent = IsPermanent
	}

	return &Consumer{
		conn:      conn,
		logger:    logger.With("queue", cfg.Queue),
		queue:     cfg.Queue,
		handler:   cfg.Handler,
		permanent: permanent,
		prefetch:  prefetch,
	}
}

// IsPermanent отмечает ошибки, которые не исчезнут при повторной доставке.
func IsPermanent(err error) bool {
	return errors.Is(err, message.ErrUnknownMessage) ||
		errors.Is(err, message.ErrInvalidMessageName) ||
		errors.Is(err, message.ErrInvalidEnvelope) ||
		errors.Is(err, engine.ErrNoHandler) ||
		errors.Is(err, engine.ErrDispatchRejected)
}

// Start читает очередь до отмены ctx, переподписываясь после реконнекта.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel
	defer cancel()

	for {
		if err := c.conn.WaitReady(ctx); err != nil {
			return err
		}

		deliveries, err := c.subscribe()
		if err != nil {
			c.logger.Error("failed to subscribe", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(resubscribeDelay):
			}
			continue
		}

		c.logger.Info("consumer started", "prefetch", c.prefetch)
		c.drain(ctx, deliveries)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("deliveries channel closed, waiting for reconnect")
	}
}

// Stop останавливает Consumer.
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
}

func (c *Consumer) subscribe() (<-chan amqp.Delivery, error) {
	var deliveries <-chan amqp.Delivery
	err := c.conn.WithChannel(func(ch *amqp.Channel) error {
		if err := ch.Qos(c.prefetch, 0, false); err != nil {
			return fmt.Errorf("set qos: %w", err)
		}
		// ack вручную после обработки
		d, err := ch.Consume(c.queue, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("consume %s: %w", c.queue, err)
		}
		deliveries = d
		return nil
	})
	return deliveries, err
}

// drain возвращается при отмене ctx или закрытии канала доставки.
func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-deliveries:
			if !ok {
				return
			}
			c.settle(raw, c.handle(ctx, raw))
		}
	}
}

// outcome — судьба доставки после обработки.
type outcome int

const (
	outcomeAck outcome = iota
	outcomeRequeue
	outcomeDeadLetter
)

func (c *Consumer) handle(ctx context.Context, raw amqp.Delivery) outcome {
	msg, err := message.Decode(raw.Body)
	if err != nil {
		c.logger.Error("failed to decode message", "error", err, "body", string(raw.Body))
		return outcomeDeadLetter
	}

	log := c.logger.With("message_id", msg.Header().UUID, "message_name", msg.Name())
	log.Debug("received message", "redelivered", raw.Redelivered)

	err = c.handler(ctx, &Delivery{Message: msg, Raw: raw})
	switch {
	case err == nil:
		return outcomeAck
	case c.permanent(err):
		log.Error("message rejected", "error", err)
		return outcomeDeadLetter
	default:
		log.Warn("handler failed, requeueing", "error", err)
		return outcomeRequeue
	}
}

func (c *Consumer) settle(raw amqp.Delivery, o outcome) {
	var err error
	switch o {
	case outcomeAck:
		err = raw.Ack(false)
	case outcomeRequeue:
		err = raw.Nack(false, true)
	case outcomeDeadLetter:
		err = raw.Nack(false, false)
	}
	if err != nil {
		c.logger.Error("failed to settle delivery", "delivery_tag", raw.DeliveryTag, "error", err)
	}
}

// HandlerFor передаёт декодированные сообщения диспетчеру (обычно Router узла).
func HandlerFor(d engine.Dispatcher) Handler {
	return func(ctx context.Context, delivery *Delivery) error {
		return d.Dispatch(ctx, delivery.Message)
	}
}
