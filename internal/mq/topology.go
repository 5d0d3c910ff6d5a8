package mq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// Обменники.
const (
	// ExchangeEvents — topic exchange событий, routing key = тип события
	// ("session.started", "runner.finished", ...).
	ExchangeEvents Exchange = "conveyor.events"

	// ExchangeDLQ — сообщения, которые consumer не смог разобрать.
	ExchangeDLQ Exchange = "conveyor.dlq"
)

// Очереди.
const (
	// QueueEventsArchive — долговременная очередь всех событий.
	QueueEventsArchive Queue = "events.archive"

	// QueueDLQEvents — DLQ событий.
	QueueDLQEvents Queue = "dlq.events"
)

const dlqRoutingKey = "events"

// AllEvents — шаблон routing key для всех событий.
const AllEvents = "#"

// SetupTopology объявляет обменники и очереди.
//
//	conveyor.events (topic)
//	└── events.archive [routing: #]   DLQ: dlq.events
//	conveyor.dlq (direct)
//	└── dlq.events [routing: events]
func SetupTopology(conn *Connection) error {
	return conn.WithChannel(func(ch *amqp.Channel) error {
		exchanges := []struct {
			name Exchange
			kind string
		}{
			{ExchangeEvents, amqp.ExchangeTopic},
			{ExchangeDLQ, amqp.ExchangeDirect},
		}
		for _, ex := range exchanges {
			if err := ch.ExchangeDeclare(string(ex.name), ex.kind, true, false, false, false, nil); err != nil {
				return fmt.Errorf("declare exchange %s: %w", ex.name, err)
			}
		}

		queues := []struct {
			name     Queue
			exchange Exchange
			key      string
			args     amqp.Table
		}{
			{QueueEventsArchive, ExchangeEvents, AllEvents, amqp.Table{
				"x-dead-letter-exchange":    string(ExchangeDLQ),
				"x-dead-letter-routing-key": dlqRoutingKey,
			}},
			{QueueDLQEvents, ExchangeDLQ, dlqRoutingKey, nil},
		}
		for _, q := range queues {
			if _, err := ch.QueueDeclare(string(q.name), true, false, false, false, q.args); err != nil {
				return fmt.Errorf("declare queue %s: %w", q.name, err)
			}
			if err := ch.QueueBind(string(q.name), q.key, string(q.exchange), false, nil); err != nil {
				return fmt.Errorf("bind queue %s to %s: %w", q.name, q.exchange, err)
			}
		}
		return nil
	})
}

// DeclareWatchQueue объявляет временную очередь наблюдателя, привязанную
// к ExchangeEvents по pattern. Очередь удаляется вместе с соединением,
// поэтому наблюдатель не забирает события у архива.
func DeclareWatchQueue(conn *Connection, pattern string) (Queue, error) {
	if pattern == "" {
		pattern = AllEvents
	}

	var name Queue
	err := conn.WithChannel(func(ch *amqp.Channel) error {
		q, err := ch.QueueDeclare("", false, true, true, false, nil)
		if err != nil {
			return fmt.Errorf("declare watch queue: %w", err)
		}
		if err := ch.QueueBind(q.Name, pattern, string(ExchangeEvents), false, nil); err != nil {
			return fmt.Errorf("bind watch queue: %w", err)
		}
		name = Queue(q.Name)
		return nil
	})
	return name, err
}
