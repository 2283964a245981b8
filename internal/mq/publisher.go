package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/WasteOps/internal/domain"
	"github.com/shaiso/WasteOps/internal/telemetry"
)

// MessageType — тип события в конверте.
type MessageType string

// MessageTypeStatusChanged — смена статуса работника.
const MessageTypeStatusChanged MessageType = "worker.status_changed"

// Envelope — конверт события на проводе.
type Envelope struct {
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEnvelope упаковывает payload в конверт.
// Пустой id заменяется случайным UUID.
func NewEnvelope(id string, msgType MessageType, payload any, ts time.Time) (Envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal payload: %w", err)
	}
	if id == "" {
		id = uuid.NewString()
	}
	return Envelope{
		ID:        id,
		Type:      msgType,
		Payload:   body,
		Timestamp: ts.UTC(),
	}, nil
}

// publishing — AMQP-сообщение для конверта.
func publishing(env Envelope) (amqp.Publishing, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal envelope: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    env.ID,
		Type:         string(env.Type),
		Timestamp:    env.Timestamp,
		Body:         body,
	}, nil
}

// Publisher публикует события справочника в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, logger: logger}
}

// Publish отправляет конверт в exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, env Envelope) error {
	msg, err := publishing(env)
	if err != nil {
		return err
	}

	err = p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		return ch.PublishWithContext(ctx, string(exchange), string(routingKey), false, false, msg)
	})
	if err != nil {
		telemetry.EventsPublished.WithLabelValues(string(env.Type), "failed").Inc()
		return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
	}

	telemetry.EventsPublished.WithLabelValues(string(env.Type), "sent").Inc()
	p.logger.Debug("published event",
		"exchange", exchange,
		"routing_key", routingKey,
		"message_id", env.ID,
		"type", env.Type,
	)
	return nil
}

// PublishStatusChanged публикует смену статуса работника.
// MessageId совпадает с EventID: потребители дедуплицируют по нему.
func (p *Publisher) PublishStatusChanged(ctx context.Context, event domain.StatusChanged) error {
	env, err := NewEnvelope(event.EventID.String(), MessageTypeStatusChanged, event, event.OccurredAt)
	if err != nil {
		return err
	}
	return p.Publish(ctx, ExchangeWorkers, RoutingKeyStatusChanged, env)
}

// StatusChanged реализует directory.EventSink.
func (p *Publisher) StatusChanged(ctx context.Context, event domain.StatusChanged) error {
	return p.PublishStatusChanged(ctx, event)
}
