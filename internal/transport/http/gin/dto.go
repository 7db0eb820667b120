package httpgin

import (
	"time"

	"github.com/kirinyoku/tix-reserve/internal/service/events"
)

type TicketRequest struct {
	Name          string `json:"name" binding:"required"`
	Description   string `json:"description"`
	PriceCents    int64  `json:"price_cents"`
	TotalQuantity int    `json:"total_quantity"`
}

type CreateEventRequest struct {
	Name           string          `json:"name" binding:"required"`
	Description    string          `json:"description"`
	Venue          string          `json:"venue" binding:"required"`
	EventDate      time.Time       `json:"event_date" binding:"required"`
	SalesStartDate time.Time       `json:"sales_start_date" binding:"required"`
	SalesEndDate   time.Time       `json:"sales_end_date" binding:"required"`
	OrganizerID    string          `json:"organizer_id"`
	Tickets        []TicketRequest `json:"tickets" binding:"required,min=1,dive"`
	Draft          bool            `json:"draft"`
}

func (r CreateEventRequest) toInput() events.CreateInput {
	in := events.CreateInput{
		Name:           r.Name,
		Description:    r.Description,
		Venue:          r.Venue,
		EventDate:      r.EventDate,
		SalesStartDate: r.SalesStartDate,
		SalesEndDate:   r.SalesEndDate,
		OrganizerID:    r.OrganizerID,
		Tickets:        make([]events.TicketInput, 0, len(r.Tickets)),
		Draft:          r.Draft,
	}
	for _, t := range r.Tickets {
		in.Tickets = append(in.Tickets, events.TicketInput{
			Name:          t.Name,
			Description:   t.Description,
			PriceCents:    t.PriceCents,
			TotalQuantity: t.TotalQuantity,
		})
	}
	return in
}

type CancelEventRequest struct {
	Reason string `json:"reason"`
}

type CreateReservationRequest struct {
	EventID  string `json:"event_id" binding:"required,uuid"`
	TicketID string `json:"ticket_id" binding:"required,uuid"`
	UserID   string `json:"user_id" binding:"required"`
	Quantity int    `json:"quantity"`
}

type ConfirmReservationRequest struct {
	PaymentID string `json:"payment_id" binding:"required"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type CreateEventResponse struct {
	EventID string `json:"event_id"`
}

type CreateReservationResponse struct {
	ReservationID string `json:"reservation_id"`
}

// parseDateQuery accepts RFC3339 or a plain YYYY-MM-DD date.
func parseDateQuery(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
