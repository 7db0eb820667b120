package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// HoldDuration is how long a pending reservation keeps its tickets.
const HoldDuration = 15 * time.Minute

type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCancelled ReservationStatus = "cancelled"
	ReservationExpired   ReservationStatus = "expired"
)

// Reservation is a user's timed claim on units of one ticket line.
//
// Pending is the only non-terminal state: Confirm, Cancel and MarkAsExpired
// each move it one way, and nothing moves a reservation back to Pending.
type Reservation struct {
	ID                  uuid.UUID
	EventID             uuid.UUID
	TicketID            uuid.UUID
	UserID              string
	Quantity            int
	PricePerTicketCents int64
	PaymentID           string
	Status              ReservationStatus
	CreatedAt           time.Time
	ExpiresAt           time.Time
	ConfirmedAt         *time.Time
	CancelledAt         *time.Time
	ExpiredAt           *time.Time
	Version             int

	recorder
}

// NewReservation snapshots the ticket price and starts a pending hold. The
// caller is responsible for having reserved the units on the ticket.
func NewReservation(ticket *Ticket, userID string, quantity int, now time.Time) (*Reservation, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidQuantity, quantity)
	}

	r := &Reservation{
		ID:                  uuid.New(),
		EventID:             ticket.EventID,
		TicketID:            ticket.ID,
		UserID:              userID,
		Quantity:            quantity,
		PricePerTicketCents: ticket.PriceCents,
		Status:              ReservationPending,
		CreatedAt:           now,
		ExpiresAt:           now.Add(HoldDuration),
	}

	r.record(NotificationReservationCreated, AggregateReservation, r.ID, now, map[string]any{
		"event_id":   r.EventID.String(),
		"ticket_id":  r.TicketID.String(),
		"user_id":    r.UserID,
		"quantity":   r.Quantity,
		"expires_at": r.ExpiresAt,
	})

	return r, nil
}

func (r *Reservation) TotalPriceCents() int64 {
	return r.PricePerTicketCents * int64(r.Quantity)
}

// IsExpired reports a pending hold past its deadline, swept or not.
func (r *Reservation) IsExpired(now time.Time) bool {
	return r.Status == ReservationPending && now.After(r.ExpiresAt)
}

func (r *Reservation) CanBeConfirmed(now time.Time) bool {
	return r.Status == ReservationPending && !r.IsExpired(now)
}

func (r *Reservation) CanBeCancelled() bool {
	return r.Status == ReservationPending || r.Status == ReservationExpired
}

// Confirm finalizes the hold. Inventory was already accounted for when the
// reservation was created.
func (r *Reservation) Confirm(paymentID string, now time.Time) error {
	if r.Status != ReservationPending {
		return fmt.Errorf("%w: %s is %s", ErrInvalidReservationStatus, r.ID, r.Status)
	}
	if r.IsExpired(now) {
		return fmt.Errorf("%w: %s expired at %s", ErrReservationExpired, r.ID, r.ExpiresAt.Format(time.RFC3339))
	}

	r.Status = ReservationConfirmed
	r.PaymentID = paymentID
	r.ConfirmedAt = &now

	r.record(NotificationReservationConfirmed, AggregateReservation, r.ID, now, map[string]any{
		"payment_id":  paymentID,
		"total_cents": r.TotalPriceCents(),
	})

	return nil
}

// Cancel moves a pending or expired reservation to cancelled. Units are
// released only when leaving pending; an expired hold gave them back already.
func (r *Reservation) Cancel(ticket *Ticket, now time.Time) error {
	switch r.Status {
	case ReservationConfirmed:
		return fmt.Errorf("%w: %s", ErrCannotCancelConfirmed, r.ID)
	case ReservationCancelled:
		return fmt.Errorf("%w: %s is already cancelled", ErrInvalidReservationStatus, r.ID)
	}

	if r.Status == ReservationPending {
		if err := r.release(ticket, ReleaseCancelled, now); err != nil {
			return err
		}
	}

	r.Status = ReservationCancelled
	r.CancelledAt = &now

	r.record(NotificationReservationCancelled, AggregateReservation, r.ID, now, map[string]any{
		"ticket_id": r.TicketID.String(),
		"quantity":  r.Quantity,
	})

	return nil
}

// MarkAsExpired is driven by the expiry sweeper, not by users.
func (r *Reservation) MarkAsExpired(ticket *Ticket, now time.Time) error {
	if r.Status != ReservationPending {
		return fmt.Errorf("%w: %s is %s", ErrInvalidReservationStatus, r.ID, r.Status)
	}

	if err := r.release(ticket, ReleaseExpired, now); err != nil {
		return err
	}

	r.Status = ReservationExpired
	r.ExpiredAt = &now

	r.record(NotificationReservationExpired, AggregateReservation, r.ID, now, map[string]any{
		"ticket_id": r.TicketID.String(),
		"quantity":  r.Quantity,
	})

	return nil
}

func (r *Reservation) release(ticket *Ticket, reason ReleaseReason, now time.Time) error {
	if ticket == nil || ticket.ID != r.TicketID {
		return fmt.Errorf("%w: %s", ErrTicketNotFound, r.TicketID)
	}
	return ticket.Release(r.Quantity, reason, now)
}

func (r *Reservation) PullNotifications() []Notification {
	return r.pull()
}

func (r *Reservation) Notifications() []Notification {
	return r.peek()
}

// Clone returns a copy without pending notifications.
func (r *Reservation) Clone() *Reservation {
	cp := *r
	cp.recorder = recorder{}
	return &cp
}
