package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — имя обменника.
type Exchange string

// Queue — имя очереди.
type Queue string

// RoutingKey — ключ маршрутизации.
type RoutingKey string

const (
	// ExchangeWorkers — события справочника работников (topic).
	ExchangeWorkers Exchange = "wasteops.workers"

	// ExchangeDLQ — обменник недоставленных сообщений.
	ExchangeDLQ Exchange = "wasteops.dlq"
)

const (
	// QueueStatusAudit — события смены статуса для журнала аудита.
	QueueStatusAudit Queue = "workers.status_changed.audit"

	// QueueDLQWorkers — сообщения, отвергнутые обработчиком аудита.
	QueueDLQWorkers Queue = "dlq.workers"
)

const (
	// RoutingKeyStatusChanged — смена статуса работника.
	RoutingKeyStatusChanged RoutingKey = "worker.status_changed"

	// RoutingKeyWorkerEvents — все события работников (для подписчиков topic).
	RoutingKeyWorkerEvents RoutingKey = "worker.#"

	RoutingKeyDLQWorkers RoutingKey = "workers"
)

type exchangeDecl struct {
	name Exchange
	kind string
}

type queueDecl struct {
	name Queue
	args amqp.Table
}

type bindingDecl struct {
	queue      Queue
	routingKey RoutingKey
	exchange   Exchange
}

// topology — полное описание объектов брокера.
func topology() ([]exchangeDecl, []queueDecl, []bindingDecl) {
	exchanges := []exchangeDecl{
		{ExchangeWorkers, amqp.ExchangeTopic},
		{ExchangeDLQ, amqp.ExchangeDirect},
	}

	queues := []queueDecl{
		{QueueStatusAudit, amqp.Table{
			"x-dead-letter-exchange":    string(ExchangeDLQ),
			"x-dead-letter-routing-key": string(RoutingKeyDLQWorkers),
		}},
		{QueueDLQWorkers, nil},
	}

	bindings := []bindingDecl{
		{QueueStatusAudit, RoutingKeyStatusChanged, ExchangeWorkers},
		{QueueDLQWorkers, RoutingKeyDLQWorkers, ExchangeDLQ},
	}

	return exchanges, queues, bindings
}

// Declarer — часть *amqp.Channel, нужная для объявления топологии.
type Declarer interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

// SetupTopology объявляет обменники, очереди и привязки. Идемпотентна.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		return Declare(ch)
	})
}

// Declare объявляет топологию через d.
func Declare(d Declarer) error {
	exchanges, queues, bindings := topology()

	for _, ex := range exchanges {
		if err := d.ExchangeDeclare(string(ex.name), ex.kind, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	for _, q := range queues {
		if _, err := d.QueueDeclare(string(q.name), true, false, false, false, q.args); err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	for _, b := range bindings {
		if err := d.QueueBind(string(b.queue), string(b.routingKey), string(b.exchange), false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}

// TopologyInfo возвращает описание топологии для логирования при старте.
func TopologyInfo() string {
	return `
  WasteOps RabbitMQ topology:

    wasteops.workers (topic)
    └── workers.status_changed.audit [routing: worker.status_changed]
            Consumer: wasteops-audit
            DLQ: dlq.workers

    wasteops.dlq (direct)
    └── dlq.workers [routing: workers]
            Manual processing
`
}
