package outbox_test

import (
	"context"
	"encoding/json"
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
	"github.com/kirinyoku/tix-reserve/internal/outbox"
	memoryrepo "github.com/kirinyoku/tix-reserve/internal/repository/memory"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fakePublisher struct {
	mu     sync.Mutex
	failOn map[domain.NotificationType]bool
	got    []outbox.Message
}

func (p *fakePublisher) Publish(_ context.Context, m outbox.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failOn[domain.NotificationType(m.Type)] {
		return errors.New("broker down")
	}
	p.got = append(p.got, m)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.got))
	for _, m := range p.got {
		out = append(out, m.Type)
	}
	return out
}

func appendN(t *testing.T, store *memoryrepo.Store, types ...domain.NotificationType) {
	t.Helper()
	ns := make([]domain.Notification, 0, len(types))
	for _, typ := range types {
		ns = append(ns, domain.Notification{
			ID:            uuid.New(),
			Type:          typ,
			AggregateType: domain.AggregateEvent,
			AggregateID:   uuid.New(),
			OccurredAt:    testNow,
			Payload:       map[string]any{"quantity": 2},
		})
	}
	require.NoError(t, store.Outbox().Append(context.Background(), ns...))
}

func TestDispatchOnce_PublishesInOrder(t *testing.T) {
	store := memoryrepo.NewStore()
	appendN(t, store, domain.NotificationTicketsReserved, domain.NotificationReservationCreated, domain.NotificationTicketsSoldOut)

	pub := &fakePublisher{}
	d := outbox.NewDispatcher(store, pub, clock.NewFixed(testNow), zap.NewNop(), outbox.Config{BatchSize: 10})

	n, err := d.DispatchOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"tickets.reserved", "reservation.created", "tickets.sold_out"}, pub.types())

	pending, err := store.Outbox().FetchPending(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, pending)

	n, err = d.DispatchOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDispatchOnce_StopsBatchAtFailure(t *testing.T) {
	store := memoryrepo.NewStore()
	appendN(t, store, domain.NotificationTicketsReserved, domain.NotificationTicketsSoldOut, domain.NotificationReservationCreated)

	pub := &fakePublisher{failOn: map[domain.NotificationType]bool{domain.NotificationTicketsSoldOut: true}}
	d := outbox.NewDispatcher(store, pub, clock.NewFixed(testNow), zap.NewNop(), outbox.Config{BatchSize: 10})

	n, err := d.DispatchOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"tickets.reserved"}, pub.types())

	pending, err := store.Outbox().FetchPending(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, domain.NotificationTicketsSoldOut, pending[0].Type)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Equal(t, "broker down", pending[0].LastError)

	pub.mu.Lock()
	pub.failOn = nil
	pub.mu.Unlock()

	n, err = d.DispatchOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"tickets.reserved", "tickets.sold_out", "reservation.created"}, pub.types())
}

func TestDispatchOnce_RespectsBatchSize(t *testing.T) {
	store := memoryrepo.NewStore()
	appendN(t, store, domain.NotificationEventCreated, domain.NotificationEventPublished, domain.NotificationEventCancelled)

	pub := &fakePublisher{}
	d := outbox.NewDispatcher(store, pub, clock.NewFixed(testNow), zap.NewNop(), outbox.Config{BatchSize: 2})

	n, err := d.DispatchOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	pending, err := store.Outbox().FetchPending(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestRun_NotifyTriggersDispatch(t *testing.T) {
	store := memoryrepo.NewStore()
	pub := &fakePublisher{}
	d := outbox.NewDispatcher(store, pub, clock.NewFixed(testNow), zap.NewNop(), outbox.Config{PollInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	appendN(t, store, domain.NotificationReservationConfirmed)
	d.Notify()

	assert.Eventually(t, func() bool {
		return len(pub.types()) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

func TestMessage_JSONShape(t *testing.T) {
	store := memoryrepo.NewStore()
	appendN(t, store, domain.NotificationTicketsReleased)

	pub := &fakePublisher{}
	d := outbox.NewDispatcher(store, pub, clock.NewFixed(testNow), zap.NewNop(), outbox.Config{})
	_, err := d.DispatchOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, pub.got, 1)

	body, err := json.Marshal(pub.got[0])
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(body, &m))
	assert.Equal(t, "tickets.released", m["type"])
	assert.Equal(t, "event", m["aggregate_type"])
	assert.Equal(t, float64(2), m["payload"].(map[string]any)["quantity"])
}

func TestFanout_StopsAtFirstError(t *testing.T) {
	ok := &fakePublisher{}
	bad := &fakePublisher{failOn: map[domain.NotificationType]bool{domain.NotificationEventCreated: true}}
	after := &fakePublisher{}

	f := outbox.Fanout{ok, bad, after}
	err := f.Publish(context.Background(), outbox.Message{Type: string(domain.NotificationEventCreated)})

	require.Error(t, err)
	assert.Len(t, ok.got, 1)
	assert.Empty(t, after.got)
	assert.NoError(t, f.Close())
}
