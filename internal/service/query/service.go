package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kirinyoku/tix-reserve/internal/clock"
	"github.com/kirinyoku/tix-reserve/internal/domain"
	"github.com/kirinyoku/tix-reserve/internal/repository"
	redisrepo "github.com/kirinyoku/tix-reserve/internal/repository/redis"
)

type Config struct {
	EventTTL       time.Duration
	EventsListTTL  time.Duration
	MaxListResults int
}

type Service struct {
	store  repository.Store
	cache  *redisrepo.Cache
	clock  clock.Clock
	logger *zap.Logger
	cfg    Config
}

func New(store repository.Store, cache *redisrepo.Cache, clk clock.Clock, logger *zap.Logger, cfg Config) *Service {
	if cfg.EventTTL <= 0 {
		cfg.EventTTL = 30 * time.Second
	}

	if cfg.EventsListTTL <= 0 {
		cfg.EventsListTTL = 15 * time.Second
	}

	return &Service{
		store:  store,
		cache:  cache,
		clock:  clk,
		logger: logger,
		cfg:    cfg,
	}
}

// GetEvent returns the event with its tickets and derived availability.
// The stored event is cached; derived flags are computed per call.
//
// Returns:
//   - error: domain.ErrEventNotFound if the event does not exist.
func (s *Service) GetEvent(ctx context.Context, id uuid.UUID) (*EventDetails, error) {
	const op = "service.query.GetEvent"

	e, err := s.loadEvent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	d := newEventDetails(e, s.clock.Now())
	return &d, nil
}

// ListAvailableEvents lists published events that have not happened yet,
// optionally bounded by event date, ordered by event date.
func (s *Service) ListAvailableEvents(ctx context.Context, from, to *time.Time) ([]EventSummary, error) {
	const op = "service.query.ListAvailableEvents"

	key := redisrepo.KeyAvailableEvents(formatBound(from), formatBound(to))

	events, err := redisrepo.GetOrSetJSON(ctx, s.cache, key, s.cfg.EventsListTTL,
		func(ctx context.Context) ([]domain.Event, error) {
			es, err := s.store.Events().List(ctx, repository.EventFilter{
				Status: domain.EventPublished,
				From:   from,
				To:     to,
			})
			if err != nil {
				return nil, err
			}

			out := make([]domain.Event, 0, len(es))
			for _, e := range es {
				out = append(out, *e)
			}
			return out, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.clock.Now()
	out := make([]EventSummary, 0, len(events))
	for i := range events {
		e := &events[i]
		if !e.EventDate.After(now) {
			continue
		}
		out = append(out, newEventSummary(e, now))
		if s.cfg.MaxListResults > 0 && len(out) == s.cfg.MaxListResults {
			break
		}
	}

	return out, nil
}

// GetReservation returns the reservation with its event context.
//
// Returns:
//   - error: domain.ErrReservationNotFound if it does not exist.
func (s *Service) GetReservation(ctx context.Context, id uuid.UUID) (*ReservationView, error) {
	const op = "service.query.GetReservation"

	r, err := s.store.Reservations().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, domain.ErrReservationNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	e, err := s.loadEvent(ctx, r.EventID)
	if err != nil {
		s.logger.Warn("reservation event unavailable",
			zap.String("reservation_id", r.ID.String()),
			zap.String("event_id", r.EventID.String()),
			zap.Error(err),
		)
		e = nil
	}

	v := newReservationView(r, e, s.clock.Now())
	return &v, nil
}

// ListUserReservations returns the user's reservations, newest first.
func (s *Service) ListUserReservations(ctx context.Context, userID string) ([]ReservationView, error) {
	const op = "service.query.ListUserReservations"

	rs, err := s.store.Reservations().ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.clock.Now()
	events := make(map[uuid.UUID]*domain.Event)
	out := make([]ReservationView, 0, len(rs))

	for _, r := range rs {
		e, seen := events[r.EventID]
		if !seen {
			e, err = s.loadEvent(ctx, r.EventID)
			if err != nil {
				s.logger.Warn("reservation event unavailable",
					zap.String("event_id", r.EventID.String()),
					zap.Error(err),
				)
				e = nil
			}
			events[r.EventID] = e
		}
		out = append(out, newReservationView(r, e, now))
	}

	return out, nil
}

func (s *Service) loadEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	e, err := redisrepo.GetOrSetJSON(ctx, s.cache, redisrepo.KeyEventDetails(id), s.cfg.EventTTL,
		func(ctx context.Context) (domain.Event, error) {
			e, err := s.store.Events().GetByID(ctx, id)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return domain.Event{}, domain.ErrEventNotFound
				}
				return domain.Event{}, err
			}
			return *e, nil
		},
	)
	if err != nil {
		return nil, err
	}

	return &e, nil
}

func formatBound(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
