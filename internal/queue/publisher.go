package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends ReservationChangedEvent messages to a durable queue on
// the default exchange.  Each publish dials the broker, so a broker outage
// never leaves a broken connection behind.  Errors are returned, not
// logged; callers treat them as non-fatal.
type Publisher struct {
	url   string
	queue string
}

func NewPublisher(url, queue string) *Publisher {
	return &Publisher{url: url, queue: queue}
}

// defaultDialTimeout bounds connection setup when ctx has no deadline.
const defaultDialTimeout = 5 * time.Second

// dialTimeout is the time left before ctx's deadline, or
// defaultDialTimeout.
func dialTimeout(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return defaultDialTimeout
	}
	left := time.Until(deadline)
	if left < time.Millisecond {
		return time.Millisecond
	}
	return left
}

// Publish delivers ev as a persistent JSON message.  Dialling and the AMQP
// handshake share ctx's deadline.
func (p *Publisher) Publish(ctx context.Context, ev ReservationChangedEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Dial:   amqp.DefaultDial(dialTimeout(ctx)),
		Locale: "en_US",
	})
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq declare %s: %w", p.queue, err)
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         ev.Action,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}
