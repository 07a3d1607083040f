// Package queue_publisher publishes domain events to RabbitMQ.  Errors
// are logged and returned so callers can ignore broker failures without
// interrupting the request that triggered the event.
package queue_publisher

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	q "github.com/iliyamo/gym-session-reservation/internal/queue"
)

// PublishReservationEvent publishes a ReservationEvent to the durable
// reservation.notifications queue.  Messages are marked persistent so
// they survive broker restarts.
func PublishReservationEvent(ctx context.Context, event q.ReservationEvent) error {
	conn, err := amqp.Dial(q.BrokerURL())
	if err != nil {
		log.Printf("rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	// Idempotent declare so publisher and consumer can start in any order.
	if _, err := ch.QueueDeclare(
		"reservation.notifications", // name
		true,                        // durable
		false,                       // autoDelete
		false,                       // exclusive
		false,                       // noWait
		nil,                         // args
	); err != nil {
		log.Printf("rabbitmq: queue declare failed: %v", err)
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		log.Printf("rabbitmq: marshal event failed: %v", err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx,
		"",                          // default exchange
		"reservation.notifications", // routing key = queue name
		false,                       // mandatory
		false,                       // immediate
		pub,
	); err != nil {
		log.Printf("rabbitmq: publish failed: %v", err)
		return err
	}

	return nil
}
