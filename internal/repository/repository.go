package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kirinyoku/tix-reserve/internal/domain"
)

// EventFilter narrows Events().List. Zero values match everything.
type EventFilter struct {
	Status      domain.EventStatus
	OrganizerID string
	From        *time.Time
	To          *time.Time
}

// ReservationFilter narrows Reservations().List. Zero values match everything.
type ReservationFilter struct {
	EventID uuid.UUID
	Status  domain.ReservationStatus
}

// EventRepository persists Event aggregates together with their tickets.
//
// Insert always stores version 0. Replace is conditioned on the id and the
// expected version, stores expectedVersion+1 and updates e.Version on
// success; a miss returns ErrVersionConflict. Implementations never retry.
type EventRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Event, error)
	List(ctx context.Context, f EventFilter) ([]*domain.Event, error)
	Insert(ctx context.Context, e *domain.Event) error
	Replace(ctx context.Context, e *domain.Event, expectedVersion int) error
}

type ReservationRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Reservation, error)
	List(ctx context.Context, f ReservationFilter) ([]*domain.Reservation, error)
	Insert(ctx context.Context, r *domain.Reservation) error
	Replace(ctx context.Context, r *domain.Reservation, expectedVersion int) error

	// ListByUserID returns the user's reservations, newest first.
	ListByUserID(ctx context.Context, userID string) ([]*domain.Reservation, error)
	// ListExpiredPending returns pending reservations whose hold ended
	// before now, oldest deadline first. A limit <= 0 means no limit.
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*domain.Reservation, error)
}

// OutboxRecord is a stored notification awaiting delivery.
type OutboxRecord struct {
	domain.Notification

	Attempts     int
	LastError    string
	DispatchedAt *time.Time
}

type OutboxRepository interface {
	Append(ctx context.Context, ns ...domain.Notification) error
	// FetchPending returns undelivered records in occurrence order. Inside a
	// transaction the rows stay claimed until it ends. A limit <= 0 means
	// no limit.
	FetchPending(ctx context.Context, limit int) ([]OutboxRecord, error)
	MarkDispatched(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

type Repos interface {
	Events() EventRepository
	Reservations() ReservationRepository
	Outbox() OutboxRepository
}

// Store hands out repositories bound to the store itself and runs fn with
// repositories bound to a single transaction. Everything written through tx
// commits together or not at all.
type Store interface {
	Repos
	RunTx(ctx context.Context, fn func(ctx context.Context, tx Repos) error) error
}
