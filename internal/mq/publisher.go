package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Conveyor/internal/domain"
)

const publishTimeout = 5 * time.Second

// Message — сообщение о событии.
type Message struct {
	// ID — идентификатор события.
	ID string `json:"id"`

	// Type — тип события, он же routing key.
	Type domain.EventType `json:"type"`

	// Payload — событие.
	Payload *domain.Event `json:"payload"`

	// Timestamp — время события.
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage оборачивает событие в сообщение.
func NewMessage(ev *domain.Event) *Message {
	return &Message{
		ID:        ev.ID.String(),
		Type:      ev.Type,
		Payload:   ev,
		Timestamp: ev.Timestamp,
	}
}

// Publisher публикует события в ExchangeEvents.
// Реализует engine.EventSink.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, logger: logger}
}

// Emit публикует событие. Routing key — тип события.
func (p *Publisher) Emit(ctx context.Context, ev *domain.Event) error {
	msg := NewMessage(ev)
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return p.conn.WithChannel(func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(ctx,
			string(ExchangeEvents),
			string(msg.Type),
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish %s: %w", msg.Type, err)
		}

		p.logger.Debug("published event", "type", msg.Type, "message_id", msg.ID)
		return nil
	})
}
