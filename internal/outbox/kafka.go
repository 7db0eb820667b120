package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaPublisher writes messages to one topic keyed by aggregate id, so all
// notifications of an aggregate land on the same partition in order.
type KafkaPublisher struct {
	w *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{w: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, m Message) error {
	const op = "outbox.KafkaPublisher.Publish"

	body, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(m.AggregateID.String()),
		Value: body,
		Time:  m.OccurredAt,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(m.Type)},
			{Key: "message_id", Value: []byte(m.ID.String())},
		},
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}
