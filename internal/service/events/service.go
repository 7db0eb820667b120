package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kirinyoku/tix-reserve/internal/clock"
	"github.com/kirinyoku/tix-reserve/internal/domain"
	"github.com/kirinyoku/tix-reserve/internal/repository"
	redisrepo "github.com/kirinyoku/tix-reserve/internal/repository/redis"
	"github.com/kirinyoku/tix-reserve/internal/service/retry"
	"github.com/kirinyoku/tix-reserve/internal/uow"
)

type Service struct {
	store  repository.Store
	cache  *redisrepo.Cache
	uow    *uow.UoW
	clock  clock.Clock
	retry  retry.Policy
	wake   func()
	logger *zap.Logger
	tracer trace.Tracer
}

// New builds the service. wake is called after every commit that appended
// outbox records and may be nil.
func New(
	store repository.Store,
	cache *redisrepo.Cache,
	clk clock.Clock,
	policy retry.Policy,
	wake func(),
	logger *zap.Logger,
) *Service {
	if wake == nil {
		wake = func() {}
	}

	return &Service{
		store:  store,
		cache:  cache,
		uow:    uow.New(store),
		clock:  clk,
		retry:  policy,
		wake:   wake,
		logger: logger,
		tracer: otel.Tracer("tix-reserve/service/events"),
	}
}

type TicketInput struct {
	Name          string
	Description   string
	PriceCents    int64
	TotalQuantity int
}

type CreateInput struct {
	Name           string
	Description    string
	Venue          string
	EventDate      time.Time
	SalesStartDate time.Time
	SalesEndDate   time.Time
	OrganizerID    string
	Tickets        []TicketInput
	// Draft leaves the event unpublished.
	Draft bool
}

// Create stores a new event and, unless in.Draft is set, publishes it in
// the same write.
//
// Returns:
//   - uuid.UUID: the event ID.
//   - error: domain.ErrInvalidSalesWindow, domain.ErrInvalidPrice or
//     domain.ErrInvalidQuantity when the input is invalid.
func (s *Service) Create(ctx context.Context, in CreateInput) (uuid.UUID, error) {
	const op = "service.events.Create"

	ctx, span := s.tracer.Start(ctx, "events.create")
	defer span.End()

	now := s.clock.Now()

	params := domain.NewEventParams{
		Name:           in.Name,
		Description:    in.Description,
		Venue:          in.Venue,
		EventDate:      in.EventDate,
		SalesStartDate: in.SalesStartDate,
		SalesEndDate:   in.SalesEndDate,
		OrganizerID:    in.OrganizerID,
		Tickets:        make([]domain.NewTicketParams, 0, len(in.Tickets)),
	}
	for _, t := range in.Tickets {
		params.Tickets = append(params.Tickets, domain.NewTicketParams{
			Name:          t.Name,
			Description:   t.Description,
			PriceCents:    t.PriceCents,
			TotalQuantity: t.TotalQuantity,
		})
	}

	e, err := domain.NewEvent(params, now)
	if err != nil {
		return uuid.Nil, s.fail(span, op, err)
	}

	if !in.Draft {
		if err := e.Publish(now); err != nil {
			return uuid.Nil, s.fail(span, op, err)
		}
	}

	err = s.uow.Do(ctx, func(ctx context.Context, tx repository.Repos, after func(uow.AfterCommit)) error {
		if err := tx.Events().Insert(ctx, e); err != nil {
			return err
		}
		if err := tx.Outbox().Append(ctx, e.PullNotifications()...); err != nil {
			return err
		}
		after(s.committed(e.ID))
		return nil
	})
	if err != nil {
		return uuid.Nil, s.fail(span, op, err)
	}

	span.SetAttributes(attribute.String("event.id", e.ID.String()), attribute.Int("event.tickets", len(e.Tickets)))
	s.logger.Info("event created",
		zap.String("event_id", e.ID.String()),
		zap.String("status", string(e.Status)),
		zap.Int("tickets", len(e.Tickets)),
	)

	return e.ID, nil
}

// Publish opens a draft event for sales.
//
// Returns:
//   - error: domain.ErrEventNotFound, domain.ErrEventAlreadyCancelled.
func (s *Service) Publish(ctx context.Context, id uuid.UUID) error {
	const op = "service.events.Publish"

	ctx, span := s.tracer.Start(ctx, "events.publish", trace.WithAttributes(attribute.String("event.id", id.String())))
	defer span.End()

	if err := s.mutate(ctx, id, func(e *domain.Event, now time.Time) error {
		return e.Publish(now)
	}); err != nil {
		return s.fail(span, op, err)
	}

	s.logger.Info("event published", zap.String("event_id", id.String()))
	return nil
}

// Cancel stops sales for the event. Reservations in flight against it lose
// their version race and then fail the published check on retry.
//
// Returns:
//   - error: domain.ErrEventNotFound, domain.ErrEventAlreadyCancelled.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) error {
	const op = "service.events.Cancel"

	ctx, span := s.tracer.Start(ctx, "events.cancel", trace.WithAttributes(attribute.String("event.id", id.String())))
	defer span.End()

	if err := s.mutate(ctx, id, func(e *domain.Event, now time.Time) error {
		return e.Cancel(reason, now)
	}); err != nil {
		return s.fail(span, op, err)
	}

	s.logger.Info("event cancelled", zap.String("event_id", id.String()), zap.String("reason", reason))
	return nil
}

// mutate is the optimistic read-modify-write loop for a single event.
func (s *Service) mutate(ctx context.Context, id uuid.UUID, fn func(e *domain.Event, now time.Time) error) error {
	return retry.Do(ctx, s.retry, func(ctx context.Context) error {
		return s.uow.Do(ctx, func(ctx context.Context, tx repository.Repos, after func(uow.AfterCommit)) error {
			e, err := tx.Events().GetByID(ctx, id)
			if err != nil {
				return translate(err)
			}

			if err := fn(e, s.clock.Now()); err != nil {
				return err
			}

			if err := tx.Events().Replace(ctx, e, e.Version); err != nil {
				return translate(err)
			}
			if err := tx.Outbox().Append(ctx, e.PullNotifications()...); err != nil {
				return err
			}

			after(s.committed(id))
			return nil
		})
	})
}

func (s *Service) committed(id uuid.UUID) uow.AfterCommit {
	return func(ctx context.Context) {
		if err := s.cache.InvalidateEvent(ctx, id); err != nil {
			s.logger.Warn("invalidate event cache", zap.String("event_id", id.String()), zap.Error(err))
		}
		s.wake()
	}
}

func (s *Service) fail(span trace.Span, op string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return fmt.Errorf("%s: %w", op, err)
}
