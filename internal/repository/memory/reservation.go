package memoryrepo

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kirinyoku/tix-reserve/internal/domain"
	"github.com/kirinyoku/tix-reserve/internal/repository"
)

type ReservationRepo struct {
	base
}

func (r *ReservationRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Reservation, error) {
	const op = "memoryrepo.ReservationRepo.GetByID"

	var out *domain.Reservation
	err := r.read(func(st *state) error {
		res, ok := st.reservations[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = res.Clone()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// List orders reservations newest first.
func (r *ReservationRepo) List(_ context.Context, f repository.ReservationFilter) ([]*domain.Reservation, error) {
	out := r.collect(func(res *domain.Reservation) bool {
		if f.EventID != uuid.Nil && res.EventID != f.EventID {
			return false
		}
		return f.Status == "" || res.Status == f.Status
	})
	sortNewestFirst(out)
	return out, nil
}

func (r *ReservationRepo) ListByUserID(_ context.Context, userID string) ([]*domain.Reservation, error) {
	out := r.collect(func(res *domain.Reservation) bool {
		return res.UserID == userID
	})
	sortNewestFirst(out)
	return out, nil
}

func (r *ReservationRepo) ListExpiredPending(_ context.Context, now time.Time, limit int) ([]*domain.Reservation, error) {
	out := r.collect(func(res *domain.Reservation) bool {
		return res.Status == domain.ReservationPending && res.ExpiresAt.Before(now)
	})

	sort.Slice(out, func(i, j int) bool {
		return out[i].ExpiresAt.Before(out[j].ExpiresAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *ReservationRepo) Insert(ctx context.Context, res *domain.Reservation) error {
	const op = "memoryrepo.ReservationRepo.Insert"

	err := r.write(ctx, func(st *state) error {
		if _, ok := st.reservations[res.ID]; ok {
			return repository.ErrConflict
		}
		cp := res.Clone()
		cp.Version = 0
		st.reservations[res.ID] = cp
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	res.Version = 0
	return nil
}

func (r *ReservationRepo) Replace(ctx context.Context, res *domain.Reservation, expectedVersion int) error {
	const op = "memoryrepo.ReservationRepo.Replace"

	err := r.write(ctx, func(st *state) error {
		cur, ok := st.reservations[res.ID]
		if !ok || cur.Version != expectedVersion {
			return repository.ErrVersionConflict
		}
		cp := res.Clone()
		cp.Version = expectedVersion + 1
		st.reservations[res.ID] = cp
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	res.Version = expectedVersion + 1
	return nil
}

func (r *ReservationRepo) collect(keep func(*domain.Reservation) bool) []*domain.Reservation {
	var out []*domain.Reservation
	_ = r.read(func(st *state) error {
		for _, res := range st.reservations {
			if keep(res) {
				out = append(out, res.Clone())
			}
		}
		return nil
	})
	return out
}

func sortNewestFirst(rs []*domain.Reservation) {
	sort.Slice(rs, func(i, j int) bool {
		if !rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
			return rs[i].CreatedAt.After(rs[j].CreatedAt)
		}
		return rs[i].ID.String() < rs[j].ID.String()
	})
}
