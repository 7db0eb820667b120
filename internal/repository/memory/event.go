package memoryrepo

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/kirinyoku/tix-reserve/internal/domain"
	"github.com/kirinyoku/tix-reserve/internal/repository"
)

type EventRepo struct {
	base
}

func (r *EventRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Event, error) {
	const op = "memoryrepo.EventRepo.GetByID"

	var out *domain.Event
	err := r.read(func(st *state) error {
		e, ok := st.events[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = e.Clone()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// List orders events by event date, then id.
func (r *EventRepo) List(_ context.Context, f repository.EventFilter) ([]*domain.Event, error) {
	var out []*domain.Event
	_ = r.read(func(st *state) error {
		for _, e := range st.events {
			if matchEvent(e, f) {
				out = append(out, e.Clone())
			}
		}
		return nil
	})

	sort.Slice(out, func(i, j int) bool {
		if !out[i].EventDate.Equal(out[j].EventDate) {
			return out[i].EventDate.Before(out[j].EventDate)
		}
		return out[i].ID.String() < out[j].ID.String()
	})

	return out, nil
}

func matchEvent(e *domain.Event, f repository.EventFilter) bool {
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if f.OrganizerID != "" && e.OrganizerID != f.OrganizerID {
		return false
	}
	if f.From != nil && e.EventDate.Before(*f.From) {
		return false
	}
	if f.To != nil && e.EventDate.After(*f.To) {
		return false
	}
	return true
}

func (r *EventRepo) Insert(ctx context.Context, e *domain.Event) error {
	const op = "memoryrepo.EventRepo.Insert"

	err := r.write(ctx, func(st *state) error {
		if _, ok := st.events[e.ID]; ok {
			return repository.ErrConflict
		}
		cp := e.Clone()
		cp.Version = 0
		st.events[e.ID] = cp
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	e.Version = 0
	return nil
}

func (r *EventRepo) Replace(ctx context.Context, e *domain.Event, expectedVersion int) error {
	const op = "memoryrepo.EventRepo.Replace"

	err := r.write(ctx, func(st *state) error {
		cur, ok := st.events[e.ID]
		if !ok || cur.Version != expectedVersion {
			return repository.ErrVersionConflict
		}
		cp := e.Clone()
		cp.Version = expectedVersion + 1
		st.events[e.ID] = cp
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	e.Version = expectedVersion + 1
	return nil
}
