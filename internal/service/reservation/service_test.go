package reservation_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kirinyoku/tix-reserve/internal/clock"
	"github.com/kirinyoku/tix-reserve/internal/domain"
	"github.com/kirinyoku/tix-reserve/internal/repository"
	memoryrepo "github.com/kirinyoku/tix-reserve/internal/repository/memory"
	"github.com/kirinyoku/tix-reserve/internal/service/reservation"
	"github.com/kirinyoku/tix-reserve/internal/service/retry"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store *memoryrepo.Store
	clock *clock.Manual
	svc   *reservation.Service
	event *domain.Event
	wakes atomic.Int32
}

func fastRetry() retry.Policy {
	return retry.Policy{MaxAttempts: 5, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func newFixture(t *testing.T, total int) *fixture {
	t.Helper()
	return newFixtureWithStore(t, total, nil)
}

// newFixtureWithStore seeds a published event whose sales window is open at
// testNow. wrap, when set, decorates the store used by the service.
func newFixtureWithStore(t *testing.T, total int, wrap func(repository.Store) repository.Store) *fixture {
	t.Helper()

	f := &fixture{
		store: memoryrepo.NewStore(),
		clock: clock.NewManual(testNow),
	}

	e, err := domain.NewEvent(domain.NewEventParams{
		Name:           "Concert",
		Venue:          "Arena",
		EventDate:      testNow.Add(30 * 24 * time.Hour),
		SalesStartDate: testNow.Add(-24 * time.Hour),
		SalesEndDate:   testNow.Add(7 * 24 * time.Hour),
		Tickets:        []domain.NewTicketParams{{Name: "General", PriceCents: 5000, TotalQuantity: total}},
	}, testNow)
	require.NoError(t, err)
	require.NoError(t, e.Publish(testNow))
	e.PullNotifications()
	require.NoError(t, f.store.Events().Insert(context.Background(), e))
	f.event = e

	var store repository.Store = f.store
	if wrap != nil {
		store = wrap(store)
	}

	f.svc = reservation.New(store, nil, nil, f.clock, fastRetry(), func() { f.wakes.Add(1) }, zap.NewNop())
	return f
}

func (f *fixture) ticketID() uuid.UUID {
	return f.event.Tickets[0].ID
}

func (f *fixture) reserve(t *testing.T, qty int) uuid.UUID {
	t.Helper()
	id, err := f.svc.Reserve(context.Background(), reservation.ReserveInput{
		EventID:  f.event.ID,
		TicketID: f.ticketID(),
		UserID:   "user@test.com",
		Quantity: qty,
	})
	require.NoError(t, err)
	return id
}

func (f *fixture) ticket(t *testing.T) domain.Ticket {
	t.Helper()
	e, err := f.store.Events().GetByID(context.Background(), f.event.ID)
	require.NoError(t, err)
	return e.Tickets[0]
}

func (f *fixture) reservation(t *testing.T, id uuid.UUID) *domain.Reservation {
	t.Helper()
	r, err := f.store.Reservations().GetByID(context.Background(), id)
	require.NoError(t, err)
	return r
}

func (f *fixture) outboxTypes(t *testing.T) []domain.NotificationType {
	t.Helper()
	recs, err := f.store.Outbox().FetchPending(context.Background(), 0)
	require.NoError(t, err)
	out := make([]domain.NotificationType, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Type)
	}
	return out
}

func TestReserve_HappyPath(t *testing.T) {
	f := newFixture(t, 50)

	id := f.reserve(t, 5)

	tk := f.ticket(t)
	assert.Equal(t, 45, tk.AvailableQuantity)
	assert.Equal(t, 5, tk.ReservedQuantity)

	r := f.reservation(t, id)
	assert.Equal(t, domain.ReservationPending, r.Status)
	assert.Equal(t, testNow.Add(15*time.Minute), r.ExpiresAt)
	assert.Equal(t, 0, r.Version)
	assert.Equal(t, int64(25000), r.TotalPriceCents())

	e, err := f.store.Events().GetByID(context.Background(), f.event.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, e.Version)

	assert.Equal(t,
		[]domain.NotificationType{domain.NotificationTicketsReserved, domain.NotificationReservationCreated},
		f.outboxTypes(t),
	)
	assert.Equal(t, int32(1), f.wakes.Load())
}

func TestReserve_LastUnitsSellOut(t *testing.T) {
	f := newFixture(t, 5)

	f.reserve(t, 5)

	tk := f.ticket(t)
	assert.Equal(t, 0, tk.AvailableQuantity)
	assert.Equal(t, 5, tk.ReservedQuantity)
	assert.Contains(t, f.outboxTypes(t), domain.NotificationTicketsSoldOut)
}

func TestReserve_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(f *fixture, in *reservation.ReserveInput)
		wantErr error
		kind    domain.Kind
	}{
		{
			name:    "zero quantity",
			mutate:  func(_ *fixture, in *reservation.ReserveInput) { in.Quantity = 0 },
			wantErr: domain.ErrInvalidQuantity,
			kind:    domain.KindBusinessRule,
		},
		{
			name:    "more than available",
			mutate:  func(_ *fixture, in *reservation.ReserveInput) { in.Quantity = 11 },
			wantErr: domain.ErrInsufficientInventory,
			kind:    domain.KindBusinessRule,
		},
		{
			name:    "unknown event",
			mutate:  func(_ *fixture, in *reservation.ReserveInput) { in.EventID = uuid.New() },
			wantErr: domain.ErrEventNotFound,
			kind:    domain.KindNotFound,
		},
		{
			name:    "unknown ticket",
			mutate:  func(_ *fixture, in *reservation.ReserveInput) { in.TicketID = uuid.New() },
			wantErr: domain.ErrTicketNotFound,
			kind:    domain.KindNotFound,
		},
		{
			name:    "sales ended",
			mutate:  func(f *fixture, _ *reservation.ReserveInput) { f.clock.Advance(8 * 24 * time.Hour) },
			wantErr: domain.ErrEventSalesEnded,
			kind:    domain.KindBusinessRule,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 10)
			in := reservation.ReserveInput{
				EventID:  f.event.ID,
				TicketID: f.ticketID(),
				UserID:   "u1",
				Quantity: 2,
			}
			tt.mutate(f, &in)

			_, err := f.svc.Reserve(context.Background(), in)

			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.kind, domain.KindOf(err))

			tk := f.ticket(t)
			assert.Equal(t, 10, tk.AvailableQuantity)
			assert.Equal(t, 0, tk.ReservedQuantity)
			assert.Empty(t, f.outboxTypes(t))
		})
	}
}

func TestReserve_UnpublishedEvent(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	e, err := f.store.Events().GetByID(ctx, f.event.ID)
	require.NoError(t, err)
	require.NoError(t, e.Cancel("weather", testNow))
	require.NoError(t, f.store.Events().Replace(ctx, e, e.Version))

	_, err = f.svc.Reserve(ctx, reservation.ReserveInput{
		EventID: f.event.ID, TicketID: f.ticketID(), UserID: "u1", Quantity: 1,
	})
	assert.ErrorIs(t, err, domain.ErrEventNotPublished)
}

type fakeLimiter struct {
	allowed bool
	keys    []string
}

func (l *fakeLimiter) Allow(_ context.Context, key string) (bool, int64, time.Duration, error) {
	l.keys = append(l.keys, key)
	return l.allowed, 1, 30 * time.Second, nil
}

func TestReserve_RateLimited(t *testing.T) {
	f := newFixture(t, 10)
	lim := &fakeLimiter{allowed: false}
	svc := reservation.New(f.store, nil, lim, f.clock, fastRetry(), nil, zap.NewNop())

	_, err := svc.Reserve(context.Background(), reservation.ReserveInput{
		EventID: f.event.ID, TicketID: f.ticketID(), UserID: "u1", Quantity: 1, RateLimitKey: "u1",
	})

	var rl reservation.RateLimitedError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 30*time.Second, rl.RetryAfter)
	assert.Equal(t, []string{"u1"}, lim.keys)
	assert.Equal(t, 10, f.ticket(t).AvailableQuantity)
}

func TestConfirm(t *testing.T) {
	f := newFixture(t, 50)
	id := f.reserve(t, 2)
	f.clock.Advance(5 * time.Minute)

	require.NoError(t, f.svc.Confirm(context.Background(), id, "pay-123"))

	r := f.reservation(t, id)
	assert.Equal(t, domain.ReservationConfirmed, r.Status)
	assert.Equal(t, "pay-123", r.PaymentID)
	require.NotNil(t, r.ConfirmedAt)
	assert.Equal(t, 1, r.Version)

	tk := f.ticket(t)
	assert.Equal(t, 48, tk.AvailableQuantity)
	assert.Equal(t, 2, tk.ReservedQuantity)

	err := f.svc.Confirm(context.Background(), id, "pay-456")
	assert.ErrorIs(t, err, domain.ErrInvalidReservationStatus)
}

func TestConfirm_AfterHoldElapsedIsGone(t *testing.T) {
	f := newFixture(t, 50)
	id := f.reserve(t, 2)
	f.clock.Advance(16 * time.Minute)

	err := f.svc.Confirm(context.Background(), id, "pay-123")

	require.ErrorIs(t, err, domain.ErrReservationExpired)
	assert.Equal(t, domain.KindGone, domain.KindOf(err))
	r := f.reservation(t, id)
	assert.Equal(t, domain.ReservationPending, r.Status)
	assert.Equal(t, 0, r.Version)
}

func TestConfirm_NotFound(t *testing.T) {
	f := newFixture(t, 5)
	err := f.svc.Confirm(context.Background(), uuid.New(), "pay")
	assert.ErrorIs(t, err, domain.ErrReservationNotFound)
}

func TestCancel_ReleasesInventory(t *testing.T) {
	f := newFixture(t, 50)
	id := f.reserve(t, 4)

	require.NoError(t, f.svc.Cancel(context.Background(), id))

	r := f.reservation(t, id)
	assert.Equal(t, domain.ReservationCancelled, r.Status)
	require.NotNil(t, r.CancelledAt)

	tk := f.ticket(t)
	assert.Equal(t, 50, tk.AvailableQuantity)
	assert.Equal(t, 0, tk.ReservedQuantity)
	assert.Contains(t, f.outboxTypes(t), domain.NotificationTicketsReleased)

	err := f.svc.Cancel(context.Background(), id)
	assert.ErrorIs(t, err, domain.ErrInvalidReservationStatus)
	assert.Equal(t, 50, f.ticket(t).AvailableQuantity)
}

func TestCancel_ConfirmedIsRejected(t *testing.T) {
	f := newFixture(t, 50)
	id := f.reserve(t, 3)
	require.NoError(t, f.svc.Confirm(context.Background(), id, "pay"))

	err := f.svc.Cancel(context.Background(), id)

	require.ErrorIs(t, err, domain.ErrCannotCancelConfirmed)
	assert.Equal(t, domain.KindStateConflict, domain.KindOf(err))
	assert.Equal(t, domain.ReservationConfirmed, f.reservation(t, id).Status)
	tk := f.ticket(t)
	assert.Equal(t, 47, tk.AvailableQuantity)
	assert.Equal(t, 3, tk.ReservedQuantity)
}

func TestExpire(t *testing.T) {
	f := newFixture(t, 50)
	id := f.reserve(t, 3)

	expired, err := f.svc.Expire(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, expired)

	f.clock.Advance(16 * time.Minute)

	expired, err = f.svc.Expire(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, expired)

	r := f.reservation(t, id)
	assert.Equal(t, domain.ReservationExpired, r.Status)
	assert.Equal(t, 50, f.ticket(t).AvailableQuantity)

	expired, err = f.svc.Expire(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, expired)
	assert.Equal(t, 50, f.ticket(t).AvailableQuantity)

	require.NoError(t, f.svc.Cancel(context.Background(), id))
	assert.Equal(t, 50, f.ticket(t).AvailableQuantity)
	assert.Equal(t, 0, f.ticket(t).ReservedQuantity)
}

// staleStore serves the event as it was before a concurrent writer
// committed, on the first read only.
type staleStore struct {
	repository.Store
	snapshot  *domain.Event
	reads     atomic.Int32
	conflicts atomic.Int32
}

func (s *staleStore) RunTx(ctx context.Context, fn func(ctx context.Context, tx repository.Repos) error) error {
	return s.Store.RunTx(ctx, func(ctx context.Context, tx repository.Repos) error {
		return fn(ctx, staleRepos{Repos: tx, s: s})
	})
}

type staleRepos struct {
	repository.Repos
	s *staleStore
}

func (r staleRepos) Events() repository.EventRepository {
	return staleEvents{EventRepository: r.Repos.Events(), s: r.s}
}

type staleEvents struct {
	repository.EventRepository
	s *staleStore
}

func (e staleEvents) GetByID(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	if e.s.reads.Add(1) == 1 {
		return e.s.snapshot.Clone(), nil
	}
	return e.EventRepository.GetByID(ctx, id)
}

func (e staleEvents) Replace(ctx context.Context, ev *domain.Event, expectedVersion int) error {
	err := e.EventRepository.Replace(ctx, ev, expectedVersion)
	if errors.Is(err, repository.ErrVersionConflict) {
		e.s.conflicts.Add(1)
	}
	return err
}

func TestReserve_EventCancelledAfterReadIsRejectedOnRetry(t *testing.T) {
	ss := &staleStore{}
	f := newFixtureWithStore(t, 10, func(s repository.Store) repository.Store {
		ss.Store = s
		return ss
	})
	ctx := context.Background()

	ss.snapshot = f.event.Clone()
	require.Equal(t, 0, ss.snapshot.Version)

	stored, err := f.store.Events().GetByID(ctx, f.event.ID)
	require.NoError(t, err)
	require.NoError(t, stored.Cancel("venue closed", testNow))
	require.NoError(t, f.store.Events().Replace(ctx, stored, 0))

	_, err = f.svc.Reserve(ctx, reservation.ReserveInput{
		EventID: f.event.ID, TicketID: f.ticketID(), UserID: "u1", Quantity: 3,
	})

	require.ErrorIs(t, err, domain.ErrEventNotPublished)
	assert.Equal(t, int32(1), ss.conflicts.Load())
	assert.Equal(t, int32(2), ss.reads.Load())

	tk := f.ticket(t)
	assert.Equal(t, 10, tk.AvailableQuantity)
	assert.Equal(t, 0, tk.ReservedQuantity)

	e, err := f.store.Events().GetByID(ctx, f.event.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EventCancelled, e.Status)
	assert.Equal(t, 1, e.Version)

	rs, err := f.store.Reservations().ListByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, rs)
	assert.Empty(t, f.outboxTypes(t))
}

// conflictingStore fails the next n event replaces with a version conflict,
// as if another writer had committed first.
type conflictingStore struct {
	repository.Store
	remaining atomic.Int32
	attempts  atomic.Int32
}

func (s *conflictingStore) RunTx(ctx context.Context, fn func(ctx context.Context, tx repository.Repos) error) error {
	return s.Store.RunTx(ctx, func(ctx context.Context, tx repository.Repos) error {
		return fn(ctx, conflictingRepos{Repos: tx, s: s})
	})
}

type conflictingRepos struct {
	repository.Repos
	s *conflictingStore
}

func (r conflictingRepos) Events() repository.EventRepository {
	return conflictingEvents{EventRepository: r.Repos.Events(), s: r.s}
}

type conflictingEvents struct {
	repository.EventRepository
	s *conflictingStore
}

func (e conflictingEvents) Replace(ctx context.Context, ev *domain.Event, expectedVersion int) error {
	e.s.attempts.Add(1)
	if e.s.remaining.Add(-1) >= 0 {
		return repository.ErrVersionConflict
	}
	return e.EventRepository.Replace(ctx, ev, expectedVersion)
}

func TestReserve_RetriesVersionConflicts(t *testing.T) {
	cs := &conflictingStore{}
	cs.remaining.Store(2)
	f := newFixtureWithStore(t, 10, func(s repository.Store) repository.Store {
		cs.Store = s
		return cs
	})

	f.reserve(t, 3)

	assert.Equal(t, int32(3), cs.attempts.Load())
	tk := f.ticket(t)
	assert.Equal(t, 7, tk.AvailableQuantity)
	assert.Equal(t, 3, tk.ReservedQuantity)
}

func TestReserve_ConflictBudgetExhausted(t *testing.T) {
	cs := &conflictingStore{}
	cs.remaining.Store(100)
	f := newFixtureWithStore(t, 10, func(s repository.Store) repository.Store {
		cs.Store = s
		return cs
	})

	_, err := f.svc.Reserve(context.Background(), reservation.ReserveInput{
		EventID: f.event.ID, TicketID: f.ticketID(), UserID: "u1", Quantity: 3,
	})

	require.ErrorIs(t, err, domain.ErrConcurrencyConflict)
	assert.Equal(t, domain.KindStateConflict, domain.KindOf(err))
	assert.Equal(t, int32(5), cs.attempts.Load())
	assert.Equal(t, 10, f.ticket(t).AvailableQuantity)

	rs, err := f.store.Reservations().ListByUserID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, rs)
	assert.Empty(t, f.outboxTypes(t))
}

// The memory store commits one transaction at a time, so this checks the
// inventory accounting under parallel callers. Version races are covered by
// the conflict and stale-read tests above.
func TestReserve_ParallelCallersNeverOversell(t *testing.T) {
	f := newFixture(t, 50)

	const workers = 40
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		rejected  atomic.Int32
	)

	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Reserve(context.Background(), reservation.ReserveInput{
				EventID:  f.event.ID,
				TicketID: f.ticketID(),
				UserID:   uuid.NewString(),
				Quantity: 2,
			})
			switch {
			case err == nil:
				succeeded.Add(1)
			case domain.KindOf(err) == domain.KindBusinessRule:
				rejected.Add(1)
			default:
				t.Errorf("worker %d: unexpected error: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(25), succeeded.Load())
	assert.Equal(t, int32(15), rejected.Load())

	tk := f.ticket(t)
	assert.Equal(t, 0, tk.AvailableQuantity)
	assert.Equal(t, 50, tk.ReservedQuantity)
}
