package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ReleaseReason string

const (
	ReleaseCancelled ReleaseReason = "cancelled"
	ReleaseExpired   ReleaseReason = "expired"
)

// Ticket is one inventory line (a ticket class) owned by an Event.
//
// AvailableQuantity + ReservedQuantity == TotalQuantity holds after every
// call to Reserve or Release; nothing else mutates the counts.
type Ticket struct {
	ID                uuid.UUID
	EventID           uuid.UUID
	Name              string
	Description       string
	PriceCents        int64
	TotalQuantity     int
	AvailableQuantity int
	ReservedQuantity  int
	CreatedAt         time.Time
	UpdatedAt         time.Time

	recorder
}

// NewTicket creates a ticket line with its full quantity available.
func NewTicket(eventID uuid.UUID, name, description string, priceCents int64, total int, now time.Time) (Ticket, error) {
	if priceCents < 0 {
		return Ticket{}, fmt.Errorf("%w: %d", ErrInvalidPrice, priceCents)
	}
	if total <= 0 {
		return Ticket{}, fmt.Errorf("%w: total quantity %d", ErrInvalidQuantity, total)
	}

	return Ticket{
		ID:                uuid.New(),
		EventID:           eventID,
		Name:              name,
		Description:       description,
		PriceCents:        priceCents,
		TotalQuantity:     total,
		AvailableQuantity: total,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

func (t *Ticket) CanReserve(quantity int) bool {
	return quantity > 0 && t.AvailableQuantity >= quantity
}

func (t *Ticket) IsSoldOut() bool {
	return t.AvailableQuantity == 0
}

// SoldQuantity is the part of the total that is neither available nor held.
func (t *Ticket) SoldQuantity() int {
	return t.TotalQuantity - t.AvailableQuantity - t.ReservedQuantity
}

func (t *Ticket) Reserve(quantity int, now time.Time) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidQuantity, quantity)
	}
	if quantity > t.AvailableQuantity {
		return fmt.Errorf("%w: requested %d, available %d", ErrInsufficientInventory, quantity, t.AvailableQuantity)
	}

	t.AvailableQuantity -= quantity
	t.ReservedQuantity += quantity
	t.UpdatedAt = now

	t.record(NotificationTicketsReserved, AggregateEvent, t.EventID, now, map[string]any{
		"ticket_id": t.ID.String(),
		"quantity":  quantity,
		"available": t.AvailableQuantity,
	})

	if t.AvailableQuantity == 0 {
		t.record(NotificationTicketsSoldOut, AggregateEvent, t.EventID, now, map[string]any{
			"ticket_id": t.ID.String(),
		})
	}

	return nil
}

// Release returns held units to the available pool. The reason is carried
// on the notification only.
func (t *Ticket) Release(quantity int, reason ReleaseReason, now time.Time) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidQuantity, quantity)
	}
	if quantity > t.ReservedQuantity {
		return fmt.Errorf("%w: release %d exceeds reserved %d", ErrInvalidQuantity, quantity, t.ReservedQuantity)
	}

	t.AvailableQuantity += quantity
	t.ReservedQuantity -= quantity
	t.UpdatedAt = now

	t.record(NotificationTicketsReleased, AggregateEvent, t.EventID, now, map[string]any{
		"ticket_id": t.ID.String(),
		"quantity":  quantity,
		"reason":    string(reason),
		"available": t.AvailableQuantity,
	})

	return nil
}

// Notifications returns the ticket's pending notifications without draining them.
func (t *Ticket) Notifications() []Notification {
	return t.peek()
}
