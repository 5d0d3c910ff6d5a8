package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler — обработчик сообщения.
// Ошибка → nack с возвратом в очередь.
type Handler func(ctx context.Context, msg *Message) error

// ConsumerConfig — конфигурация consumer.
type ConsumerConfig struct {
	// Queue — имя очереди. Игнорируется, если задан Declare.
	Queue Queue

	// Declare объявляет очередь при каждом (пере)подключении
	// и возвращает её имя. Нужен для временных очередей.
	Declare func(conn *Connection) (Queue, error)

	// Handler — обработчик сообщений.
	Handler Handler

	// Prefetch — количество сообщений для предварительной загрузки.
	Prefetch int
}

// Consumer потребляет сообщения о событиях из очереди.
type Consumer struct {
	conn   *Connection
	logger *slog.Logger
	cfg    ConsumerConfig
}

// NewConsumer создаёт новый Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{conn: conn, logger: logger, cfg: cfg}
}

// Run потребляет сообщения, пока не отменён ctx.
// После разрыва соединения ждёт переподключения и продолжает.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		deliveries, queue, err := c.setup()
		if err != nil {
			c.logger.Error("failed to setup consume", "queue", queue, "error", err)
		} else {
			c.logger.Info("consumer started", "queue", queue)
			err := c.process(ctx, deliveries)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("deliveries closed, waiting for reconnect", "queue", queue, "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.conn.ReconnectNotify():
		}
	}
}

func (c *Consumer) setup() (<-chan amqp.Delivery, Queue, error) {
	queue := c.cfg.Queue
	if c.cfg.Declare != nil {
		q, err := c.cfg.Declare(c.conn)
		if err != nil {
			return nil, "", err
		}
		queue = q
	}

	var deliveries <-chan amqp.Delivery
	err := c.conn.WithChannel(func(ch *amqp.Channel) error {
		if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
			return fmt.Errorf("set qos: %w", err)
		}
		d, err := ch.Consume(string(queue), "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("consume: %w", err)
		}
		deliveries = d
		return nil
	})
	return deliveries, queue, err
}

func (c *Consumer) process(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("deliveries channel closed")
			}
			c.handle(ctx, raw)
		}
	}
}

// handle обрабатывает одно сообщение.
func (c *Consumer) handle(ctx context.Context, raw amqp.Delivery) {
	msg, err := DecodeMessage(raw.Body)
	if err != nil {
		c.logger.Error("failed to decode message", "error", err, "body", string(raw.Body))
		// Некорректное сообщение — в DLQ
		_ = raw.Nack(false, false)
		return
	}

	if err := c.cfg.Handler(ctx, msg); err != nil {
		c.logger.Error("handler failed", "message_id", msg.ID, "type", msg.Type, "error", err)
		_ = raw.Nack(false, true)
		return
	}
	_ = raw.Ack(false)
}

// DecodeMessage разбирает тело сообщения.
func DecodeMessage(body []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal message: %w", err)
	}
	if msg.Type == "" || msg.Payload == nil {
		return nil, fmt.Errorf("message %q: missing type or payload", msg.ID)
	}
	return &msg, nil
}
