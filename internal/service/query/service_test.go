package query_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kirinyoku/tix-reserve/internal/clock"
	"github.com/kirinyoku/tix-reserve/internal/domain"
	memoryrepo "github.com/kirinyoku/tix-reserve/internal/repository/memory"
	"github.com/kirinyoku/tix-reserve/internal/service/query"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func insertEvent(t *testing.T, store *memoryrepo.Store, name string, eventDate time.Time, publish bool) *domain.Event {
	t.Helper()
	e, err := domain.NewEvent(domain.NewEventParams{
		Name:           name,
		Venue:          "Arena",
		EventDate:      eventDate,
		SalesStartDate: testNow.Add(-time.Hour),
		SalesEndDate:   testNow.Add(24 * time.Hour),
		Tickets: []domain.NewTicketParams{
			{Name: "General", PriceCents: 5000, TotalQuantity: 50},
			{Name: "VIP", PriceCents: 15000, TotalQuantity: 5},
		},
	}, testNow)
	require.NoError(t, err)
	if publish {
		require.NoError(t, e.Publish(testNow))
	}
	require.NoError(t, store.Events().Insert(context.Background(), e))
	return e
}

func TestGetEvent(t *testing.T) {
	store := memoryrepo.NewStore()
	e := insertEvent(t, store, "Concert", testNow.Add(48*time.Hour), true)
	svc := query.New(store, nil, clock.NewFixed(testNow), zap.NewNop(), query.Config{})

	d, err := svc.GetEvent(context.Background(), e.ID)
	require.NoError(t, err)

	assert.Equal(t, "Concert", d.Name)
	assert.Equal(t, 55, d.TotalAvailableTickets)
	assert.True(t, d.IsAvailableForPurchase)
	assert.True(t, d.HasSalesStarted)
	assert.False(t, d.HasSalesEnded)
	require.Len(t, d.Tickets, 2)
	assert.Equal(t, int64(15000), d.Tickets[1].PriceCents)
	assert.Equal(t, 0, d.Tickets[1].SoldQuantity)

	_, err = svc.GetEvent(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrEventNotFound)
}

func TestListAvailableEvents(t *testing.T) {
	store := memoryrepo.NewStore()
	later := insertEvent(t, store, "Later", testNow.Add(72*time.Hour), true)
	sooner := insertEvent(t, store, "Sooner", testNow.Add(24*time.Hour), true)
	insertEvent(t, store, "Draft", testNow.Add(48*time.Hour), false)
	insertEvent(t, store, "Past", testNow.Add(-time.Hour), true)

	svc := query.New(store, nil, clock.NewFixed(testNow), zap.NewNop(), query.Config{})

	got, err := svc.ListAvailableEvents(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, sooner.ID, got[0].ID)
	assert.Equal(t, later.ID, got[1].ID)
	assert.Equal(t, int64(5000), got[0].MinPriceCents)
	assert.Equal(t, int64(15000), got[0].MaxPriceCents)

	to := testNow.Add(48 * time.Hour)
	got, err = svc.ListAvailableEvents(context.Background(), nil, &to)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, sooner.ID, got[0].ID)
}

func TestListAvailableEvents_MaxResults(t *testing.T) {
	store := memoryrepo.NewStore()
	for i := range 3 {
		insertEvent(t, store, "E", testNow.Add(time.Duration(i+1)*time.Hour), true)
	}
	svc := query.New(store, nil, clock.NewFixed(testNow), zap.NewNop(), query.Config{MaxListResults: 2})

	got, err := svc.ListAvailableEvents(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestGetReservation_Views(t *testing.T) {
	ctx := context.Background()
	store := memoryrepo.NewStore()
	e := insertEvent(t, store, "Concert", testNow.Add(48*time.Hour), true)
	clk := clock.NewManual(testNow)
	svc := query.New(store, nil, clk, zap.NewNop(), query.Config{})

	tk := e.Tickets[1]
	r, err := domain.NewReservation(&tk, "u1", 2, testNow)
	require.NoError(t, err)
	require.NoError(t, store.Reservations().Insert(ctx, r))

	clk.Advance(5*time.Minute + 30*time.Second)

	v, err := svc.GetReservation(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationPending, v.Status)
	assert.Equal(t, "Concert", v.EventName)
	assert.Equal(t, "VIP", v.TicketName)
	assert.Equal(t, int64(30000), v.TotalPriceCents)
	require.NotNil(t, v.ExpiresAt)
	require.NotNil(t, v.MinutesUntilExpiry)
	assert.Equal(t, 9, *v.MinutesUntilExpiry)
	assert.True(t, v.CanBeConfirmed)
	assert.True(t, v.CanBeCancelled)
	assert.False(t, v.IsExpired)

	clk.Advance(15 * time.Minute)

	v, err = svc.GetReservation(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, v.IsExpired)
	assert.False(t, v.CanBeConfirmed)
	assert.True(t, v.CanBeCancelled)
	assert.Equal(t, 0, *v.MinutesUntilExpiry)

	require.NoError(t, r.Confirm("pay", testNow.Add(time.Minute)))
	require.NoError(t, store.Reservations().Replace(ctx, r, r.Version))

	v, err = svc.GetReservation(ctx, r.ID)
	require.NoError(t, err)
	assert.Nil(t, v.ExpiresAt)
	assert.Nil(t, v.MinutesUntilExpiry)
	assert.False(t, v.CanBeCancelled)

	_, err = svc.GetReservation(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrReservationNotFound)
}

// can_be_cancelled tells the client whether DELETE will succeed, so it must
// agree with Reservation.Cancel in every state, including swept holds.
func TestGetReservation_CanBeCancelledMatchesCancel(t *testing.T) {
	ctx := context.Background()
	later := testNow.Add(20 * time.Minute)

	tests := []struct {
		name   string
		setup  func(r *domain.Reservation, tk *domain.Ticket) error
		expect bool
	}{
		{name: "pending", setup: func(*domain.Reservation, *domain.Ticket) error { return nil }, expect: true},
		{name: "expired", setup: func(r *domain.Reservation, tk *domain.Ticket) error { return r.MarkAsExpired(tk, later) }, expect: true},
		{name: "confirmed", setup: func(r *domain.Reservation, _ *domain.Ticket) error { return r.Confirm("pay", testNow) }, expect: false},
		{name: "cancelled", setup: func(r *domain.Reservation, tk *domain.Ticket) error { return r.Cancel(tk, testNow) }, expect: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memoryrepo.NewStore()
			e := insertEvent(t, store, "Concert", testNow.Add(48*time.Hour), true)
			svc := query.New(store, nil, clock.NewFixed(later), zap.NewNop(), query.Config{})

			tk := e.Tickets[0]
			require.NoError(t, tk.Reserve(1, testNow))
			r, err := domain.NewReservation(&tk, "u1", 1, testNow)
			require.NoError(t, err)
			require.NoError(t, tt.setup(r, &tk))
			require.NoError(t, store.Reservations().Insert(ctx, r))

			v, err := svc.GetReservation(ctx, r.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.expect, v.CanBeCancelled)

			cancelErr := r.Clone().Cancel(&tk, later)
			assert.Equal(t, v.CanBeCancelled, cancelErr == nil, "cancel: %v", cancelErr)
		})
	}
}

func TestListUserReservations_NewestFirst(t *testing.T) {
	ctx := context.Background()
	store := memoryrepo.NewStore()
	e := insertEvent(t, store, "Concert", testNow.Add(48*time.Hour), true)
	svc := query.New(store, nil, clock.NewFixed(testNow.Add(time.Hour)), zap.NewNop(), query.Config{})

	var ids []uuid.UUID
	for i := range 3 {
		tk := e.Tickets[0]
		r, err := domain.NewReservation(&tk, "u1", 1, testNow.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		require.NoError(t, store.Reservations().Insert(ctx, r))
		ids = append(ids, r.ID)
	}
	tk := e.Tickets[0]
	other, err := domain.NewReservation(&tk, "u2", 1, testNow)
	require.NoError(t, err)
	require.NoError(t, store.Reservations().Insert(ctx, other))

	got, err := svc.ListUserReservations(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, ids[2], got[0].ID)
	assert.Equal(t, ids[1], got[1].ID)
	assert.Equal(t, ids[0], got[2].ID)
	for _, v := range got {
		assert.Equal(t, "Concert", v.EventName)
	}

	got, err = svc.ListUserReservations(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, got)
}
