package domain

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationEventCreated         NotificationType = "event.created"
	NotificationEventPublished       NotificationType = "event.published"
	NotificationEventCancelled       NotificationType = "event.cancelled"
	NotificationTicketsReserved      NotificationType = "tickets.reserved"
	NotificationTicketsReleased      NotificationType = "tickets.released"
	NotificationTicketsSoldOut       NotificationType = "tickets.sold_out"
	NotificationReservationCreated   NotificationType = "reservation.created"
	NotificationReservationConfirmed NotificationType = "reservation.confirmed"
	NotificationReservationCancelled NotificationType = "reservation.cancelled"
	NotificationReservationExpired   NotificationType = "reservation.expired"
)

type AggregateType string

const (
	AggregateEvent       AggregateType = "event"
	AggregateReservation AggregateType = "reservation"
)

// Notification is a lifecycle fact recorded by an aggregate. It is persisted
// to the outbox in the same write as the aggregate and delivered later.
type Notification struct {
	ID            uuid.UUID
	Type          NotificationType
	AggregateType AggregateType
	AggregateID   uuid.UUID
	OccurredAt    time.Time
	Payload       map[string]any
}

// recorder accumulates notifications until they are pulled for the outbox.
type recorder struct {
	pending []Notification
}

func (r *recorder) record(
	typ NotificationType,
	aggType AggregateType,
	aggID uuid.UUID,
	at time.Time,
	payload map[string]any,
) {
	r.pending = append(r.pending, Notification{
		ID:            uuid.New(),
		Type:          typ,
		AggregateType: aggType,
		AggregateID:   aggID,
		OccurredAt:    at,
		Payload:       payload,
	})
}

func (r *recorder) pull() []Notification {
	out := r.pending
	r.pending = nil
	return out
}

func (r *recorder) peek() []Notification {
	return r.pending
}
