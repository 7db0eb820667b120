package reservation

import (
	"context"
	"errors"
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

// Limiter is satisfied by redisrepo.SlidingWindowLimiter.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, current int64, retryAfter time.Duration, err error)
}

type Service struct {
	store   repository.Store
	cache   *redisrepo.Cache
	limiter Limiter
	uow     *uow.UoW
	clock   clock.Clock
	retry   retry.Policy
	wake    func()
	logger  *zap.Logger
	tracer  trace.Tracer
}

// New builds the service. limiter and wake may be nil.
func New(
	store repository.Store,
	cache *redisrepo.Cache,
	limiter Limiter,
	clk clock.Clock,
	policy retry.Policy,
	wake func(),
	logger *zap.Logger,
) *Service {
	if wake == nil {
		wake = func() {}
	}

	policy.OnRetry = func(attempt int, err error, wait time.Duration) {
		logger.Debug("optimistic conflict, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	return &Service{
		store:   store,
		cache:   cache,
		limiter: limiter,
		uow:     uow.New(store),
		clock:   clk,
		retry:   policy,
		wake:    wake,
		logger:  logger,
		tracer:  otel.Tracer("tix-reserve/service/reservation"),
	}
}

type ReserveInput struct {
	EventID  uuid.UUID
	TicketID uuid.UUID
	UserID   string
	Quantity int
	// RateLimitKey, when set, is checked against the limiter first.
	RateLimitKey string
}

// Reserve holds quantity units of a ticket for the user for
// domain.HoldDuration. The event replace, the reservation insert and their
// notifications commit in one transaction.
//
// Returns:
//   - uuid.UUID: the pending reservation ID.
//   - error: domain.ErrInvalidQuantity, domain.ErrEventNotFound,
//     domain.ErrTicketNotFound, domain.ErrEventNotPublished,
//     domain.ErrEventSalesNotStarted, domain.ErrEventSalesEnded,
//     domain.ErrInsufficientInventory, domain.ErrConcurrencyConflict when the
//     retry budget is spent, RateLimitedError.
func (s *Service) Reserve(ctx context.Context, in ReserveInput) (uuid.UUID, error) {
	const op = "service.reservation.Reserve"

	ctx, span := s.tracer.Start(ctx, "reservation.reserve", trace.WithAttributes(
		attribute.String("event.id", in.EventID.String()),
		attribute.String("ticket.id", in.TicketID.String()),
		attribute.Int("reservation.quantity", in.Quantity),
	))
	defer span.End()

	if in.Quantity <= 0 {
		return uuid.Nil, s.fail(span, op, fmt.Errorf("%w: %d", domain.ErrInvalidQuantity, in.Quantity))
	}
	if in.UserID == "" {
		return uuid.Nil, s.fail(span, op, ErrMissingUser)
	}

	if s.limiter != nil && in.RateLimitKey != "" {
		ok, _, wait, err := s.limiter.Allow(ctx, in.RateLimitKey)
		if err != nil {
			s.logger.Warn("rate limiter unavailable", zap.Error(err))
		} else if !ok {
			return uuid.Nil, s.fail(span, op, RateLimitedError{RetryAfter: wait})
		}
	}

	var id uuid.UUID

	err := retry.Do(ctx, s.retry, func(ctx context.Context) error {
		return s.uow.Do(ctx, func(ctx context.Context, tx repository.Repos, after func(uow.AfterCommit)) error {
			now := s.clock.Now()

			e, err := tx.Events().GetByID(ctx, in.EventID)
			if err != nil {
				return translate(err, domain.ErrEventNotFound)
			}

			ticket, err := e.FindTicket(in.TicketID)
			if err != nil {
				return err
			}

			if err := e.ValidateCanPurchase(now); err != nil {
				return err
			}

			if err := ticket.Reserve(in.Quantity, now); err != nil {
				return err
			}

			r, err := domain.NewReservation(ticket, in.UserID, in.Quantity, now)
			if err != nil {
				return err
			}

			if err := tx.Events().Replace(ctx, e, e.Version); err != nil {
				return translate(err, domain.ErrEventNotFound)
			}
			if err := tx.Reservations().Insert(ctx, r); err != nil {
				return translate(err, domain.ErrReservationNotFound)
			}
			if err := tx.Outbox().Append(ctx, append(e.PullNotifications(), r.PullNotifications()...)...); err != nil {
				return err
			}

			id = r.ID
			after(s.committed(e.ID))
			return nil
		})
	})
	if err != nil {
		return uuid.Nil, s.fail(span, op, err)
	}

	span.SetAttributes(attribute.String("reservation.id", id.String()))
	s.logger.Info("tickets reserved",
		zap.String("reservation_id", id.String()),
		zap.String("event_id", in.EventID.String()),
		zap.String("ticket_id", in.TicketID.String()),
		zap.String("user_id", in.UserID),
		zap.Int("quantity", in.Quantity),
	)

	return id, nil
}

// Confirm finalizes a pending reservation with a payment reference. The
// event is not re-checked and inventory does not move.
//
// Returns:
//   - error: domain.ErrReservationNotFound, domain.ErrInvalidReservationStatus,
//     domain.ErrReservationExpired.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID, paymentID string) error {
	const op = "service.reservation.Confirm"

	ctx, span := s.tracer.Start(ctx, "reservation.confirm", trace.WithAttributes(
		attribute.String("reservation.id", id.String()),
	))
	defer span.End()

	var eventID uuid.UUID

	err := retry.Do(ctx, s.retry, func(ctx context.Context) error {
		return s.uow.Do(ctx, func(ctx context.Context, tx repository.Repos, after func(uow.AfterCommit)) error {
			r, err := tx.Reservations().GetByID(ctx, id)
			if err != nil {
				return translate(err, domain.ErrReservationNotFound)
			}

			if err := r.Confirm(paymentID, s.clock.Now()); err != nil {
				return err
			}

			if err := tx.Reservations().Replace(ctx, r, r.Version); err != nil {
				return translate(err, domain.ErrReservationNotFound)
			}
			if err := tx.Outbox().Append(ctx, r.PullNotifications()...); err != nil {
				return err
			}

			eventID = r.EventID
			after(s.committed(r.EventID))
			return nil
		})
	})
	if err != nil {
		return s.fail(span, op, err)
	}

	s.logger.Info("reservation confirmed",
		zap.String("reservation_id", id.String()),
		zap.String("event_id", eventID.String()),
	)

	return nil
}

// Cancel releases a pending reservation's units and marks it cancelled.
// Event and reservation are replaced together.
//
// Returns:
//   - error: domain.ErrReservationNotFound, domain.ErrEventNotFound,
//     domain.ErrCannotCancelConfirmed, domain.ErrInvalidReservationStatus.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	const op = "service.reservation.Cancel"

	ctx, span := s.tracer.Start(ctx, "reservation.cancel", trace.WithAttributes(
		attribute.String("reservation.id", id.String()),
	))
	defer span.End()

	err := retry.Do(ctx, s.retry, func(ctx context.Context) error {
		return s.release(ctx, id, func(r *domain.Reservation, ticket *domain.Ticket, now time.Time) (bool, error) {
			held := r.Status == domain.ReservationPending
			if err := r.Cancel(ticket, now); err != nil {
				return false, err
			}
			return held, nil
		})
	})
	if err != nil {
		return s.fail(span, op, err)
	}

	s.logger.Info("reservation cancelled", zap.String("reservation_id", id.String()))
	return nil
}

// Expire moves an overdue pending reservation to expired and returns its
// units. It reports false without error when the reservation is no longer
// pending or not yet overdue, so the sweeper can treat races as no-ops.
func (s *Service) Expire(ctx context.Context, id uuid.UUID) (bool, error) {
	const op = "service.reservation.Expire"

	ctx, span := s.tracer.Start(ctx, "reservation.expire", trace.WithAttributes(
		attribute.String("reservation.id", id.String()),
	))
	defer span.End()

	var expired bool

	err := retry.Do(ctx, s.retry, func(ctx context.Context) error {
		expired = false
		return s.release(ctx, id, func(r *domain.Reservation, ticket *domain.Ticket, now time.Time) (bool, error) {
			if !r.IsExpired(now) {
				return false, errSkip
			}
			if err := r.MarkAsExpired(ticket, now); err != nil {
				return false, err
			}
			expired = true
			return true, nil
		})
	})
	if errors.Is(err, errSkip) {
		return false, nil
	}
	if err != nil {
		return false, s.fail(span, op, err)
	}

	span.SetAttributes(attribute.Bool("reservation.expired", expired))
	return expired, nil
}

var errSkip = errors.New("nothing to do")

// release loads a reservation with its event and applies fn inside one
// transaction. fn reports whether ticket inventory changed, in which case
// the event is replaced as well.
func (s *Service) release(
	ctx context.Context,
	id uuid.UUID,
	fn func(r *domain.Reservation, ticket *domain.Ticket, now time.Time) (bool, error),
) error {
	return s.uow.Do(ctx, func(ctx context.Context, tx repository.Repos, after func(uow.AfterCommit)) error {
		r, err := tx.Reservations().GetByID(ctx, id)
		if err != nil {
			return translate(err, domain.ErrReservationNotFound)
		}

		e, err := tx.Events().GetByID(ctx, r.EventID)
		if err != nil {
			return translate(err, domain.ErrEventNotFound)
		}

		ticket, err := e.FindTicket(r.TicketID)
		if err != nil {
			return err
		}

		changed, err := fn(r, ticket, s.clock.Now())
		if err != nil {
			return err
		}

		if changed {
			if err := tx.Events().Replace(ctx, e, e.Version); err != nil {
				return translate(err, domain.ErrEventNotFound)
			}
		}
		if err := tx.Reservations().Replace(ctx, r, r.Version); err != nil {
			return translate(err, domain.ErrReservationNotFound)
		}
		if err := tx.Outbox().Append(ctx, append(e.PullNotifications(), r.PullNotifications()...)...); err != nil {
			return err
		}

		after(s.committed(e.ID))
		return nil
	})
}

func (s *Service) committed(eventID uuid.UUID) uow.AfterCommit {
	return func(ctx context.Context) {
		if err := s.cache.InvalidateEvent(ctx, eventID); err != nil {
			s.logger.Warn("invalidate event cache", zap.String("event_id", eventID.String()), zap.Error(err))
		}
		s.wake()
	}
}

func (s *Service) fail(span trace.Span, op string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return fmt.Errorf("%s: %w", op, err)
}
