package domain

import "errors"

// Kind classifies a domain error for callers at the boundary.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindBusinessRule
	KindStateConflict
	KindGone
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindBusinessRule:
		return "business_rule_violation"
	case KindStateConflict:
		return "state_conflict"
	case KindGone:
		return "gone"
	default:
		return "unknown"
	}
}

// Error is a classified domain failure. Sentinels below are compared with
// errors.Is; extra context is added by wrapping them.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

var (
	ErrEventNotFound       = newError(KindNotFound, "event_not_found", "event not found")
	ErrTicketNotFound      = newError(KindNotFound, "ticket_not_found", "ticket not found")
	ErrReservationNotFound = newError(KindNotFound, "reservation_not_found", "reservation not found")

	ErrEventNotPublished     = newError(KindBusinessRule, "event_not_published", "event is not published")
	ErrEventSalesNotStarted  = newError(KindBusinessRule, "event_sales_not_started", "ticket sales have not started")
	ErrEventSalesEnded       = newError(KindBusinessRule, "event_sales_ended", "ticket sales have ended")
	ErrInvalidQuantity       = newError(KindBusinessRule, "invalid_quantity", "quantity must be greater than 0")
	ErrInsufficientInventory = newError(KindBusinessRule, "insufficient_inventory", "not enough tickets available")
	ErrInvalidSalesWindow    = newError(KindBusinessRule, "invalid_sales_window", "sales start date must not be after sales end date")
	ErrInvalidPrice          = newError(KindBusinessRule, "invalid_price", "price must not be negative")

	ErrInvalidReservationStatus = newError(KindStateConflict, "invalid_reservation_status", "operation not allowed in current reservation status")
	ErrCannotCancelConfirmed    = newError(KindStateConflict, "cannot_cancel_confirmed", "confirmed reservations cannot be cancelled")
	ErrEventAlreadyCancelled    = newError(KindStateConflict, "event_already_cancelled", "event is already cancelled")
	ErrConcurrencyConflict      = newError(KindStateConflict, "concurrency_conflict", "resource was modified concurrently, retry the operation")

	ErrReservationExpired = newError(KindGone, "reservation_expired", "reservation has expired")
)

// KindOf returns the kind of the first domain error in err's chain.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

// AsError returns the first domain error in err's chain.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
