package mq

import (
	"context"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shaiso/Conveyor/internal/engine"
	"github.com/shaiso/Conveyor/internal/message"
)

// DispatcherName — имя удалённого диспетчера в конфигурации каналов.
const DispatcherName = "amqp"

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn     *Connection
	exchange Exchange
	logger   *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:     conn,
		exchange: ExchangeNodes,
		logger:   logger,
	}
}

// Publish публикует сообщение; ключ маршрутизации — адресат сообщения.
func (p *Publisher) Publish(ctx context.Context, msg message.Message) error {
	body, err := message.Encode(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	routingKey := RoutingKeyFor(msg.Target())
	header := msg.Header()

	return p.conn.WithChannel(func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(p.exchange), // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    header.UUID.String(),
				Timestamp:    header.CreatedAt,
				Type:         msg.Name(),
				AppId:        header.Sender,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", p.exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", p.exchange,
			"routing_key", routingKey,
			"message_id", header.UUID,
			"message_name", msg.Name(),
		)
		return nil
	})
}

// RemoteDispatcher отправляет сообщения канала через Publisher.
type RemoteDispatcher struct {
	channel   string
	target    string
	publisher *Publisher
}

// Dispatch реализует engine.Dispatcher.
func (d *RemoteDispatcher) Dispatch(ctx context.Context, msg message.Message) error {
	if err := d.publisher.Publish(ctx, msg); err != nil {
		return fmt.Errorf("channel %s: %w", d.channel, err)
	}
	return nil
}

// Channel возвращает имя канала.
func (d *RemoteDispatcher) Channel() string { return d.channel }

// NewDispatcherFactory возвращает фабрику удалённых диспетчеров для WorkflowEngine.
func NewDispatcherFactory(p *Publisher) engine.DispatcherFactory {
	return func(_ context.Context, channel, target string) (engine.Dispatcher, error) {
		if p == nil || p.conn == nil {
			return nil, ErrNoPublisher
		}
		if err := p.conn.Healthy(); err != nil {
			return nil, err
		}
		return &RemoteDispatcher{channel: channel, target: target, publisher: p}, nil
	}
}
