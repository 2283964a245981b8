package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrPoison — сообщение невозможно обработать никогда.
// Обработчик оборачивает им ошибку, чтобы сообщение ушло в DLQ без повтора.
var ErrPoison = errors.New("poison message")

// Handler обрабатывает одно событие.
type Handler func(ctx context.Context, env Envelope) error

// Consumer читает события из очереди.
//
// Исход доставки:
//   - handler вернул nil — ack;
//   - конверт не разбирается или ошибка ErrPoison — nack в DLQ;
//   - прочая ошибка — одна повторная доставка, затем DLQ.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    Queue
	handler  Handler
	prefetch int
}

// ConsumerConfig — параметры Consumer.
type ConsumerConfig struct {
	Queue    Queue
	Handler  Handler
	Prefetch int
	Logger   *slog.Logger
}

// NewConsumer создаёт Consumer.
func NewConsumer(conn *Connection, cfg ConsumerConfig) *Consumer {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Consumer{
		conn:     conn,
		logger:   cfg.Logger.With("queue", cfg.Queue),
		queue:    cfg.Queue,
		handler:  cfg.Handler,
		prefetch: cfg.Prefetch,
	}
}

// Run потребляет сообщения до отмены ctx. После разрыва соединения
// ждёт переподключения и подписывается заново.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		deliveries, err := c.subscribe()
		if err != nil {
			c.logger.Error("subscribe failed", "error", err)
		} else {
			c.logger.Info("consumer started")
			if err := c.drain(ctx, deliveries); err == nil || ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("deliveries channel closed, waiting for reconnect")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.conn.ReconnectNotify():
		}
	}
}

func (c *Consumer) subscribe() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, ErrNoChannel
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := ch.Consume(string(c.queue), "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", c.queue, err)
	}
	return deliveries, nil
}

func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-deliveries:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.handle(ctx, raw)
		}
	}
}

// handle обрабатывает одну доставку и подтверждает её.
func (c *Consumer) handle(ctx context.Context, raw amqp.Delivery) {
	env, err := DecodeEnvelope(raw.Body)
	if err != nil {
		c.logger.Error("undecodable message", "error", err, "body", string(raw.Body))
		c.settle(raw.Nack(false, false))
		return
	}

	log := c.logger.With("message_id", env.ID, "type", env.Type)

	err = c.handler(ctx, env)
	switch {
	case err == nil:
		c.settle(raw.Ack(false))
	case errors.Is(err, ErrPoison):
		log.Error("message rejected", "error", err)
		c.settle(raw.Nack(false, false))
	case raw.Redelivered:
		log.Error("handler failed on redelivery, dead-lettering", "error", err)
		c.settle(raw.Nack(false, false))
	default:
		log.Warn("handler failed, requeueing", "error", err)
		c.settle(raw.Nack(false, true))
	}
}

func (c *Consumer) settle(err error) {
	if err != nil {
		c.logger.Warn("settle delivery", "error", err)
	}
}

// DecodeEnvelope разбирает конверт. Конверт без id или type недопустим.
func DecodeEnvelope(body []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.ID == "" || env.Type == "" {
		return Envelope{}, errors.New("envelope without id or type")
	}
	return env, nil
}

// ParsePayload разбирает payload конверта в T.
func ParsePayload[T any](env Envelope) (T, error) {
	var out T
	if len(env.Payload) == 0 {
		return out, errors.New("empty payload")
	}
	if err := json.Unmarshal(env.Payload, &out); err != nil {
		return out, fmt.Errorf("unmarshal %s payload: %w", env.Type, err)
	}
	return out, nil
}
