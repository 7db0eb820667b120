package outbox

import (
	"time"

	"github.com/google/uuid"

	"github.com/kirinyoku/tix-reserve/internal/domain"
)

// Message is the wire form of an outbox record.
type Message struct {
	ID            uuid.UUID      `json:"id"`
	Type          string         `json:"type"`
	AggregateType string         `json:"aggregate_type"`
	AggregateID   uuid.UUID      `json:"aggregate_id"`
	OccurredAt    time.Time      `json:"occurred_at"`
	Payload       map[string]any `json:"payload,omitempty"`
}

func newMessage(n domain.Notification) Message {
	return Message{
		ID:            n.ID,
		Type:          string(n.Type),
		AggregateType: string(n.AggregateType),
		AggregateID:   n.AggregateID,
		OccurredAt:    n.OccurredAt,
		Payload:       n.Payload,
	}
}
