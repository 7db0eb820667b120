package query

import (
	"time"

	"github.com/google/uuid"

	"github.com/kirinyoku/tix-reserve/internal/domain"
)

type TicketView struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	PriceCents        int64     `json:"price_cents"`
	TotalQuantity     int       `json:"total_quantity"`
	AvailableQuantity int       `json:"available_quantity"`
	ReservedQuantity  int       `json:"reserved_quantity"`
	SoldQuantity      int       `json:"sold_quantity"`
	IsSoldOut         bool      `json:"is_sold_out"`
}

type EventDetails struct {
	ID                     uuid.UUID          `json:"id"`
	Name                   string             `json:"name"`
	Description            string             `json:"description"`
	Venue                  string             `json:"venue"`
	EventDate              time.Time          `json:"event_date"`
	SalesStartDate         time.Time          `json:"sales_start_date"`
	SalesEndDate           time.Time          `json:"sales_end_date"`
	OrganizerID            string             `json:"organizer_id"`
	Status                 domain.EventStatus `json:"status"`
	Tickets                []TicketView       `json:"tickets"`
	TotalAvailableTickets  int                `json:"total_available_tickets"`
	TotalReservedTickets   int                `json:"total_reserved_tickets"`
	IsSoldOut              bool               `json:"is_sold_out"`
	IsAvailableForPurchase bool               `json:"is_available_for_purchase"`
	HasSalesStarted        bool               `json:"has_sales_started"`
	HasSalesEnded          bool               `json:"has_sales_ended"`
	Version                int                `json:"version"`
	CreatedAt              time.Time          `json:"created_at"`
	UpdatedAt              time.Time          `json:"updated_at"`
}

type EventSummary struct {
	ID                     uuid.UUID          `json:"id"`
	Name                   string             `json:"name"`
	Venue                  string             `json:"venue"`
	EventDate              time.Time          `json:"event_date"`
	Status                 domain.EventStatus `json:"status"`
	TotalAvailableTickets  int                `json:"total_available_tickets"`
	MinPriceCents          int64              `json:"min_price_cents"`
	MaxPriceCents          int64              `json:"max_price_cents"`
	IsSoldOut              bool               `json:"is_sold_out"`
	IsAvailableForPurchase bool               `json:"is_available_for_purchase"`
}

type ReservationView struct {
	ID                  uuid.UUID                `json:"id"`
	EventID             uuid.UUID                `json:"event_id"`
	EventName           string                   `json:"event_name"`
	EventVenue          string                   `json:"event_venue"`
	EventDate           time.Time                `json:"event_date"`
	TicketID            uuid.UUID                `json:"ticket_id"`
	TicketName          string                   `json:"ticket_name"`
	UserID              string                   `json:"user_id"`
	Quantity            int                      `json:"quantity"`
	PricePerTicketCents int64                    `json:"price_per_ticket_cents"`
	TotalPriceCents     int64                    `json:"total_price_cents"`
	PaymentID           string                   `json:"payment_id,omitempty"`
	Status              domain.ReservationStatus `json:"status"`
	CreatedAt           time.Time                `json:"created_at"`
	ExpiresAt           *time.Time               `json:"expires_at,omitempty"`
	ConfirmedAt         *time.Time               `json:"confirmed_at,omitempty"`
	CancelledAt         *time.Time               `json:"cancelled_at,omitempty"`
	ExpiredAt           *time.Time               `json:"expired_at,omitempty"`
	IsExpired           bool                     `json:"is_expired"`
	MinutesUntilExpiry  *int                     `json:"minutes_until_expiry,omitempty"`
	CanBeCancelled      bool                     `json:"can_be_cancelled"`
	CanBeConfirmed      bool                     `json:"can_be_confirmed"`
}

func newEventDetails(e *domain.Event, now time.Time) EventDetails {
	d := EventDetails{
		ID:                     e.ID,
		Name:                   e.Name,
		Description:            e.Description,
		Venue:                  e.Venue,
		EventDate:              e.EventDate,
		SalesStartDate:         e.SalesStartDate,
		SalesEndDate:           e.SalesEndDate,
		OrganizerID:            e.OrganizerID,
		Status:                 e.Status,
		Tickets:                make([]TicketView, 0, len(e.Tickets)),
		TotalAvailableTickets:  e.TotalAvailableTickets(),
		TotalReservedTickets:   e.TotalReservedTickets(),
		IsSoldOut:              e.IsSoldOut(),
		IsAvailableForPurchase: e.IsAvailableForPurchase(now),
		HasSalesStarted:        e.HasSalesStarted(now),
		HasSalesEnded:          e.HasSalesEnded(now),
		Version:                e.Version,
		CreatedAt:              e.CreatedAt,
		UpdatedAt:              e.UpdatedAt,
	}

	for i := range e.Tickets {
		t := &e.Tickets[i]
		d.Tickets = append(d.Tickets, TicketView{
			ID:                t.ID,
			Name:              t.Name,
			Description:       t.Description,
			PriceCents:        t.PriceCents,
			TotalQuantity:     t.TotalQuantity,
			AvailableQuantity: t.AvailableQuantity,
			ReservedQuantity:  t.ReservedQuantity,
			SoldQuantity:      t.SoldQuantity(),
			IsSoldOut:         t.IsSoldOut(),
		})
	}

	return d
}

func newEventSummary(e *domain.Event, now time.Time) EventSummary {
	s := EventSummary{
		ID:                     e.ID,
		Name:                   e.Name,
		Venue:                  e.Venue,
		EventDate:              e.EventDate,
		Status:                 e.Status,
		TotalAvailableTickets:  e.TotalAvailableTickets(),
		IsSoldOut:              e.IsSoldOut(),
		IsAvailableForPurchase: e.IsAvailableForPurchase(now),
	}

	for i, t := range e.Tickets {
		if i == 0 || t.PriceCents < s.MinPriceCents {
			s.MinPriceCents = t.PriceCents
		}
		if t.PriceCents > s.MaxPriceCents {
			s.MaxPriceCents = t.PriceCents
		}
	}

	return s
}

// newReservationView derives the time-dependent fields at now. e may be nil
// if the event could not be loaded.
func newReservationView(r *domain.Reservation, e *domain.Event, now time.Time) ReservationView {
	v := ReservationView{
		ID:                  r.ID,
		EventID:             r.EventID,
		TicketID:            r.TicketID,
		UserID:              r.UserID,
		Quantity:            r.Quantity,
		PricePerTicketCents: r.PricePerTicketCents,
		TotalPriceCents:     r.TotalPriceCents(),
		PaymentID:           r.PaymentID,
		Status:              r.Status,
		CreatedAt:           r.CreatedAt,
		ConfirmedAt:         r.ConfirmedAt,
		CancelledAt:         r.CancelledAt,
		ExpiredAt:           r.ExpiredAt,
		IsExpired:           r.IsExpired(now),
		CanBeCancelled:      r.CanBeCancelled(),
		CanBeConfirmed:      r.CanBeConfirmed(now),
	}

	if r.Status == domain.ReservationPending {
		exp := r.ExpiresAt
		v.ExpiresAt = &exp
		mins := max(0, int(r.ExpiresAt.Sub(now)/time.Minute))
		v.MinutesUntilExpiry = &mins
	}

	if e != nil {
		v.EventName = e.Name
		v.EventVenue = e.Venue
		v.EventDate = e.EventDate
		if t, err := e.FindTicket(r.TicketID); err == nil {
			v.TicketName = t.Name
		}
	}

	return v
}
