// Package memoryrepo is an in-process implementation of the repository
// contract. Every write runs against a private copy of the data that replaces
// the shared copy only when the whole transaction succeeds.
package memoryrepo

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/kirinyoku/tix-reserve/internal/domain"
	"github.com/kirinyoku/tix-reserve/internal/repository"
)

type state struct {
	events       map[uuid.UUID]*domain.Event
	reservations map[uuid.UUID]*domain.Reservation
	outbox       []*repository.OutboxRecord
}

func newState() *state {
	return &state{
		events:       make(map[uuid.UUID]*domain.Event),
		reservations: make(map[uuid.UUID]*domain.Reservation),
	}
}

// clone copies the maps and the outbox slice. Aggregates are stored as
// private copies and never mutated in place, so the pointers can be shared.
func (s *state) clone() *state {
	cp := &state{
		events:       make(map[uuid.UUID]*domain.Event, len(s.events)),
		reservations: make(map[uuid.UUID]*domain.Reservation, len(s.reservations)),
		outbox:       make([]*repository.OutboxRecord, len(s.outbox)),
	}
	for k, v := range s.events {
		cp.events[k] = v
	}
	for k, v := range s.reservations {
		cp.reservations[k] = v
	}
	copy(cp.outbox, s.outbox)
	return cp
}

type Store struct {
	writeMu sync.Mutex // serializes commits

	mu sync.RWMutex
	st *state
}

var _ repository.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{st: newState()}
}

func (s *Store) Events() repository.EventRepository {
	return &EventRepo{base{store: s}}
}

func (s *Store) Reservations() repository.ReservationRepository {
	return &ReservationRepo{base{store: s}}
}

func (s *Store) Outbox() repository.OutboxRepository {
	return &OutboxRepo{base{store: s}}
}

// RunTx gives fn repositories over a snapshot taken after every earlier
// commit. Optimistic checks inside fn see the latest committed versions.
func (s *Store) RunTx(ctx context.Context, fn func(ctx context.Context, tx repository.Repos) error) error {
	return s.write(ctx, func(st *state) error {
		return fn(ctx, &txRepos{store: s, st: st})
	})
}

func (s *Store) read(fn func(st *state) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.st)
}

func (s *Store) write(ctx context.Context, fn func(st *state) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	next := s.st.clone()
	s.mu.RUnlock()

	if err := fn(next); err != nil {
		return err
	}

	s.mu.Lock()
	s.st = next
	s.mu.Unlock()

	return nil
}

type txRepos struct {
	store *Store
	st    *state
}

func (t *txRepos) Events() repository.EventRepository {
	return &EventRepo{base{store: t.store, tx: t.st}}
}

func (t *txRepos) Reservations() repository.ReservationRepository {
	return &ReservationRepo{base{store: t.store, tx: t.st}}
}

func (t *txRepos) Outbox() repository.OutboxRepository {
	return &OutboxRepo{base{store: t.store, tx: t.st}}
}

// base routes a repository call either into the open transaction or into a
// single-statement transaction of its own.
type base struct {
	store *Store
	tx    *state
}

func (b base) read(fn func(st *state) error) error {
	if b.tx != nil {
		return fn(b.tx)
	}
	return b.store.read(fn)
}

func (b base) write(ctx context.Context, fn func(st *state) error) error {
	if b.tx != nil {
		return fn(b.tx)
	}
	return b.store.write(ctx, fn)
}
