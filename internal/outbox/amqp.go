package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPPublisher sends persistent JSON messages to a durable queue through
// the default exchange.
type AMQPPublisher struct {
	conn  *amqp.Connection
	queue string

	mu sync.Mutex
	ch *amqp.Channel
}

func NewAMQPPublisher(url, queue string) (*AMQPPublisher, error) {
	const op = "outbox.NewAMQPPublisher"

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("%s: dial: %w", op, err)
	}

	p := &AMQPPublisher{conn: conn, queue: queue}
	if err := p.open(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return p, nil
}

func (p *AMQPPublisher) open() error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("channel: %w", err)
	}

	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return fmt.Errorf("queue declare: %w", err)
	}

	p.ch = ch
	return nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, m Message) error {
	const op = "outbox.AMQPPublisher.Publish"

	body, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// a channel is closed by the broker after a failed publish
	if p.ch == nil || p.ch.IsClosed() {
		if err := p.open(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    m.ID.String(),
		Type:         m.Type,
		Timestamp:    m.OccurredAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil {
		_ = p.ch.Close()
	}
	return p.conn.Close()
}
