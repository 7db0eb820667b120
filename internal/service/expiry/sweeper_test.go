package expiry_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kirinyoku/tix-reserve/internal/clock"
	"github.com/kirinyoku/tix-reserve/internal/domain"
	memoryrepo "github.com/kirinyoku/tix-reserve/internal/repository/memory"
	"github.com/kirinyoku/tix-reserve/internal/service/expiry"
	"github.com/kirinyoku/tix-reserve/internal/service/reservation"
	"github.com/kirinyoku/tix-reserve/internal/service/retry"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func seedEvent(t *testing.T, store *memoryrepo.Store, total int) *domain.Event {
	t.Helper()
	e, err := domain.NewEvent(domain.NewEventParams{
		Name:           "Concert",
		EventDate:      testNow.Add(30 * 24 * time.Hour),
		SalesStartDate: testNow.Add(-time.Hour),
		SalesEndDate:   testNow.Add(24 * time.Hour),
		Tickets:        []domain.NewTicketParams{{Name: "General", PriceCents: 5000, TotalQuantity: total}},
	}, testNow)
	require.NoError(t, err)
	require.NoError(t, e.Publish(testNow))
	require.NoError(t, store.Events().Insert(context.Background(), e))
	return e
}

func TestSweepOnce_ReleasesOverdueHolds(t *testing.T) {
	ctx := context.Background()
	store := memoryrepo.NewStore()
	clk := clock.NewManual(testNow)
	e := seedEvent(t, store, 50)

	res := reservation.New(store, nil, nil, clk,
		retry.Policy{MaxAttempts: 5, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond},
		nil, zap.NewNop())

	reserve := func(qty int) uuid.UUID {
		id, err := res.Reserve(ctx, reservation.ReserveInput{
			EventID: e.ID, TicketID: e.Tickets[0].ID, UserID: "u1", Quantity: qty,
		})
		require.NoError(t, err)
		return id
	}

	old1 := reserve(3)
	old2 := reserve(4)
	clk.Advance(10 * time.Minute)
	fresh := reserve(5)
	clk.Advance(6 * time.Minute)

	sw := expiry.New(store.Reservations(), res, clk, zap.NewNop(), expiry.Config{BatchSize: 10, Concurrency: 2})

	result, err := sw.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, expiry.Result{Scanned: 2, Expired: 2}, result)

	for _, id := range []uuid.UUID{old1, old2} {
		r, err := store.Reservations().GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.ReservationExpired, r.Status)
	}
	r, err := store.Reservations().GetByID(ctx, fresh)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationPending, r.Status)

	got, err := store.Events().GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 45, got.Tickets[0].AvailableQuantity)
	assert.Equal(t, 5, got.Tickets[0].ReservedQuantity)

	result, err = sw.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, expiry.Result{}, result)
}

type fakeExpirer struct {
	mu    sync.Mutex
	fail  map[uuid.UUID]bool
	skip  map[uuid.UUID]bool
	calls []uuid.UUID
}

func (f *fakeExpirer) Expire(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id)
	if f.fail[id] {
		return false, errors.New("boom")
	}
	return !f.skip[id], nil
}

func TestSweepOnce_ContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	store := memoryrepo.NewStore()
	e := seedEvent(t, store, 50)

	var ids []uuid.UUID
	for i := range 5 {
		tk := e.Tickets[0]
		r, err := domain.NewReservation(&tk, "u1", 1, testNow.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		require.NoError(t, store.Reservations().Insert(ctx, r))
		ids = append(ids, r.ID)
	}

	fe := &fakeExpirer{
		fail: map[uuid.UUID]bool{ids[1]: true},
		skip: map[uuid.UUID]bool{ids[3]: true},
	}
	clk := clock.NewFixed(testNow.Add(time.Hour))
	sw := expiry.New(store.Reservations(), fe, clk, zap.NewNop(), expiry.Config{BatchSize: 10, Concurrency: 3})

	result, err := sw.SweepOnce(ctx)
	require.NoError(t, err)

	assert.Equal(t, expiry.Result{Scanned: 5, Expired: 3, Skipped: 1, Failed: 1}, result)
	assert.ElementsMatch(t, ids, fe.calls)
}

func TestSweepOnce_RespectsBatchSize(t *testing.T) {
	ctx := context.Background()
	store := memoryrepo.NewStore()
	e := seedEvent(t, store, 50)

	for i := range 4 {
		tk := e.Tickets[0]
		r, err := domain.NewReservation(&tk, "u1", 1, testNow.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		require.NoError(t, store.Reservations().Insert(ctx, r))
	}

	fe := &fakeExpirer{}
	sw := expiry.New(store.Reservations(), fe, clock.NewFixed(testNow.Add(time.Hour)), zap.NewNop(),
		expiry.Config{BatchSize: 3})

	result, err := sw.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Scanned)
	assert.Len(t, fe.calls, 3)
}

func TestRun_StopsOnCancel(t *testing.T) {
	store := memoryrepo.NewStore()
	fe := &fakeExpirer{}
	sw := expiry.New(store.Reservations(), fe, clock.NewFixed(testNow), zap.NewNop(),
		expiry.Config{Interval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sw.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
