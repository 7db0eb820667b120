package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type EventStatus string

const (
	EventDraft     EventStatus = "draft"
	EventPublished EventStatus = "published"
	EventSoldOut   EventStatus = "sold_out"
	EventCancelled EventStatus = "cancelled"
	EventCompleted EventStatus = "completed"
)

func (s EventStatus) Valid() bool {
	switch s {
	case EventDraft, EventPublished, EventSoldOut, EventCancelled, EventCompleted:
		return true
	}
	return false
}

// Event is the aggregate root owning its ticket inventory lines. Version is
// the optimistic concurrency stamp maintained by the store.
type Event struct {
	ID             uuid.UUID
	Name           string
	Description    string
	Venue          string
	EventDate      time.Time
	SalesStartDate time.Time
	SalesEndDate   time.Time
	OrganizerID    string
	Status         EventStatus
	Tickets        []Ticket
	Version        int
	CreatedAt      time.Time
	UpdatedAt      time.Time

	recorder
}

type NewEventParams struct {
	Name           string
	Description    string
	Venue          string
	EventDate      time.Time
	SalesStartDate time.Time
	SalesEndDate   time.Time
	OrganizerID    string
	Tickets        []NewTicketParams
}

type NewTicketParams struct {
	Name          string
	Description   string
	PriceCents    int64
	TotalQuantity int
}

// NewEvent builds a draft event with fully available tickets.
func NewEvent(p NewEventParams, now time.Time) (*Event, error) {
	if p.SalesStartDate.After(p.SalesEndDate) {
		return nil, ErrInvalidSalesWindow
	}

	e := &Event{
		ID:             uuid.New(),
		Name:           p.Name,
		Description:    p.Description,
		Venue:          p.Venue,
		EventDate:      p.EventDate,
		SalesStartDate: p.SalesStartDate,
		SalesEndDate:   p.SalesEndDate,
		OrganizerID:    p.OrganizerID,
		Status:         EventDraft,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	e.Tickets = make([]Ticket, 0, len(p.Tickets))
	for _, tp := range p.Tickets {
		t, err := NewTicket(e.ID, tp.Name, tp.Description, tp.PriceCents, tp.TotalQuantity, now)
		if err != nil {
			return nil, err
		}
		e.Tickets = append(e.Tickets, t)
	}

	e.record(NotificationEventCreated, AggregateEvent, e.ID, now, map[string]any{
		"name":    e.Name,
		"tickets": len(e.Tickets),
	})

	return e, nil
}

// IsSoldOut reports whether no ticket line has units available.
func (e *Event) IsSoldOut() bool {
	for i := range e.Tickets {
		if e.Tickets[i].AvailableQuantity != 0 {
			return false
		}
	}
	return true
}

func (e *Event) TotalAvailableTickets() int {
	var n int
	for i := range e.Tickets {
		n += e.Tickets[i].AvailableQuantity
	}
	return n
}

func (e *Event) TotalReservedTickets() int {
	var n int
	for i := range e.Tickets {
		n += e.Tickets[i].ReservedQuantity
	}
	return n
}

func (e *Event) HasSalesStarted(now time.Time) bool {
	return !now.Before(e.SalesStartDate)
}

func (e *Event) HasSalesEnded(now time.Time) bool {
	return now.After(e.SalesEndDate)
}

// ValidateCanPurchase must pass before any ticket of this event is reserved.
func (e *Event) ValidateCanPurchase(now time.Time) error {
	if e.Status != EventPublished {
		return fmt.Errorf("%w: event %s is %s", ErrEventNotPublished, e.ID, e.Status)
	}
	if !e.HasSalesStarted(now) {
		return fmt.Errorf("%w: sales start at %s", ErrEventSalesNotStarted, e.SalesStartDate.Format(time.RFC3339))
	}
	if e.HasSalesEnded(now) {
		return fmt.Errorf("%w: sales ended at %s", ErrEventSalesEnded, e.SalesEndDate.Format(time.RFC3339))
	}
	return nil
}

func (e *Event) IsAvailableForPurchase(now time.Time) bool {
	return e.ValidateCanPurchase(now) == nil
}

// FindTicket returns a pointer into the event's own ticket slice, so changes
// made through it are part of the aggregate.
func (e *Event) FindTicket(id uuid.UUID) (*Ticket, error) {
	for i := range e.Tickets {
		if e.Tickets[i].ID == id {
			return &e.Tickets[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrTicketNotFound, id)
}

func (e *Event) Publish(now time.Time) error {
	if e.Status == EventCancelled {
		return fmt.Errorf("%w: %s", ErrEventAlreadyCancelled, e.ID)
	}

	e.Status = EventPublished
	e.UpdatedAt = now
	e.record(NotificationEventPublished, AggregateEvent, e.ID, now, nil)

	return nil
}

func (e *Event) Cancel(reason string, now time.Time) error {
	if e.Status == EventCancelled {
		return fmt.Errorf("%w: %s", ErrEventAlreadyCancelled, e.ID)
	}

	e.Status = EventCancelled
	e.UpdatedAt = now
	e.record(NotificationEventCancelled, AggregateEvent, e.ID, now, map[string]any{
		"reason": reason,
	})

	return nil
}

// PullNotifications drains the event's notifications and those of its tickets.
func (e *Event) PullNotifications() []Notification {
	out := e.pull()
	for i := range e.Tickets {
		out = append(out, e.Tickets[i].pull()...)
	}
	return out
}

// Notifications lists pending notifications without draining them.
func (e *Event) Notifications() []Notification {
	out := append([]Notification(nil), e.peek()...)
	for i := range e.Tickets {
		out = append(out, e.Tickets[i].peek()...)
	}
	return out
}

// Clone returns a deep copy without pending notifications.
func (e *Event) Clone() *Event {
	cp := *e
	cp.recorder = recorder{}
	cp.Tickets = make([]Ticket, len(e.Tickets))
	for i, t := range e.Tickets {
		t.recorder = recorder{}
		cp.Tickets[i] = t
	}
	return &cp
}
