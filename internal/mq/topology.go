package mq

import (
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeNodes Exchange = "conveyor.nodes"
	ExchangeDLQ   Exchange = "conveyor.dlq"
)

// NodeQueue возвращает имя входящей очереди узла.
func NodeQueue(node string) Queue {
	return Queue("conveyor.node." + node)
}

// NodeDLQ возвращает имя dead letter очереди узла.
func NodeDLQ(node string) Queue {
	return Queue("conveyor.dlq." + node)
}

// RoutingKeyFor возвращает ключ маршрутизации для адресата сообщения.
func RoutingKeyFor(target string) RoutingKey {
	return RoutingKey(target)
}

// Topology — объявление обменников и очередей одного узла.
type Topology struct {
	// Node — имя узла; очередь узла получает сообщения с target == Node.
	Node string

	// Targets — дополнительные адресаты, которых обслуживает узел.
	Targets []string
}

// declare объявляет обменники, очереди узла и привязки.
func (t Topology) declare(ch *amqp.Channel) error {
	if err := declareExchanges(ch); err != nil {
		return err
	}
	if err := t.declareQueues(ch); err != nil {
		return err
	}
	return t.bindQueues(ch)
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	for _, ex := range []Exchange{ExchangeNodes, ExchangeDLQ} {
		err := ch.ExchangeDeclare(
			string(ex), // name
			"direct",   // type
			true,       // durable
			false,      // auto-deleted
			false,      // internal
			false,      // no-wait
			nil,        // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex, err)
		}
	}
	return nil
}

// declareQueues создаёт очередь узла и его DLQ.
func (t Topology) declareQueues(ch *amqp.Channel) error {
	// Сообщения, отклонённые без requeue, уходят в DLQ узла
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": t.Node,
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		{NodeQueue(t.Node), dlqArgs},
		{NodeDLQ(t.Node), nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}
	return nil
}

// bindQueues привязывает очереди к обменникам.
func (t Topology) bindQueues(ch *amqp.Channel) error {
	type binding struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}

	bindings := []binding{
		{NodeQueue(t.Node), RoutingKeyFor(t.Node), ExchangeNodes},
		{NodeDLQ(t.Node), RoutingKeyFor(t.Node), ExchangeDLQ},
	}
	for _, target := range t.Targets {
		if target == t.Node {
			continue
		}
		bindings = append(bindings, binding{NodeQueue(t.Node), RoutingKeyFor(target), ExchangeNodes})
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}
	return nil
}

// Info возвращает описание топологии для логирования.
func (t Topology) Info() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (direct)\n", ExchangeNodes)
	fmt.Fprintf(&b, "└── %s [routing: %s", NodeQueue(t.Node), t.Node)
	for _, target := range t.Targets {
		if target != t.Node {
			fmt.Fprintf(&b, ", %s", target)
		}
	}
	fmt.Fprintf(&b, "]\n        DLQ: %s\n", NodeDLQ(t.Node))
	fmt.Fprintf(&b, "%s (direct)\n", ExchangeDLQ)
	fmt.Fprintf(&b, "└── %s [routing: %s]\n", NodeDLQ(t.Node), t.Node)
	return b.String()
}
