package outbox

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Publisher delivers one message to a downstream system. Delivery is at
// least once: a message may be published again if marking it dispatched
// fails afterwards.
type Publisher interface {
	Publish(ctx context.Context, m Message) error
	Close() error
}

// Fanout publishes every message to all of its publishers in order and
// fails on the first error.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, m Message) error {
	for _, p := range f {
		if err := p.Publish(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (f Fanout) Close() error {
	var err error
	for _, p := range f {
		err = errors.Join(err, p.Close())
	}
	return err
}

// LogPublisher writes messages to the log. It is used when no broker is
// configured.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, m Message) error {
	p.logger.Info("notification",
		zap.String("id", m.ID.String()),
		zap.String("type", m.Type),
		zap.String("aggregate_type", m.AggregateType),
		zap.String("aggregate_id", m.AggregateID.String()),
		zap.Time("occurred_at", m.OccurredAt),
		zap.Any("payload", m.Payload),
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
