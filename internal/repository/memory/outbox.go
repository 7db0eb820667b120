package memoryrepo

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/kirinyoku/tix-reserve/internal/domain"
	"github.com/kirinyoku/tix-reserve/internal/repository"
)

type OutboxRepo struct {
	base
}

func (r *OutboxRepo) Append(ctx context.Context, ns ...domain.Notification) error {
	if len(ns) == 0 {
		return nil
	}

	return r.write(ctx, func(st *state) error {
		for _, n := range ns {
			st.outbox = append(st.outbox, &repository.OutboxRecord{Notification: n})
		}
		return nil
	})
}

// FetchPending returns records in append order, which is occurrence order
// for notifications recorded by one process.
func (r *OutboxRepo) FetchPending(_ context.Context, limit int) ([]repository.OutboxRecord, error) {
	var out []repository.OutboxRecord
	_ = r.read(func(st *state) error {
		for _, rec := range st.outbox {
			out = append(out, *rec)
			if limit > 0 && len(out) == limit {
				break
			}
		}
		return nil
	})
	return out, nil
}

// MarkDispatched drops the record. Nothing reads delivered records back, and
// every write transaction copies the outbox slice.
func (r *OutboxRepo) MarkDispatched(ctx context.Context, id uuid.UUID, _ time.Time) error {
	const op = "memoryrepo.OutboxRepo.MarkDispatched"

	err := r.write(ctx, func(st *state) error {
		i := slices.IndexFunc(st.outbox, func(rec *repository.OutboxRecord) bool { return rec.ID == id })
		if i < 0 {
			return repository.ErrNotFound
		}
		st.outbox = slices.Delete(st.outbox, i, i+1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *OutboxRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	const op = "memoryrepo.OutboxRepo.MarkFailed"

	err := r.update(ctx, id, func(rec *repository.OutboxRecord) {
		rec.Attempts++
		rec.LastError = reason
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// update replaces the record with a modified copy so snapshots held by
// readers stay untouched.
func (r *OutboxRepo) update(ctx context.Context, id uuid.UUID, fn func(rec *repository.OutboxRecord)) error {
	return r.write(ctx, func(st *state) error {
		for i, rec := range st.outbox {
			if rec.ID != id {
				continue
			}
			cp := *rec
			fn(&cp)
			st.outbox[i] = &cp
			return nil
		}
		return repository.ErrNotFound
	})
}
