package postgresrepo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kirinyoku/tix-reserve/internal/domain"
	"github.com/kirinyoku/tix-reserve/internal/repository"
)

type OutboxRepo struct {
	db DB
}

// Append queues all notifications in one round trip.
func (r *OutboxRepo) Append(ctx context.Context, ns ...domain.Notification) error {
	const op = "postgresrepo.OutboxRepo.Append"

	if len(ns) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, n := range ns {
		payload, err := json.Marshal(n.Payload)
		if err != nil {
			return fmt.Errorf("%s: encode payload: %w", op, err)
		}
		batch.Queue(
			`INSERT INTO outbox (id, type, aggregate_type, aggregate_id, occurred_at, payload)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			n.ID, string(n.Type), string(n.AggregateType), n.AggregateID, n.OccurredAt, payload,
		)
	}

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	for range ns {
		if _, err := br.Exec(); err != nil {
			return wrapDBErr(op, err)
		}
	}

	return nil
}

// FetchPending returns records in append order and locks them with SKIP
// LOCKED, so concurrent dispatchers split the backlog.
func (r *OutboxRepo) FetchPending(ctx context.Context, limit int) ([]repository.OutboxRecord, error) {
	const op = "postgresrepo.OutboxRepo.FetchPending"

	rows, err := r.db.Query(ctx,
		`SELECT id, type, aggregate_type, aggregate_id, occurred_at, payload, attempts, last_error
		   FROM outbox
		  WHERE dispatched_at IS NULL
		  ORDER BY seq
		  LIMIT NULLIF(GREATEST($1::bigint, 0), 0)
		  FOR UPDATE SKIP LOCKED`,
		limit,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}
	defer rows.Close()

	var out []repository.OutboxRecord
	for rows.Next() {
		var (
			rec     repository.OutboxRecord
			typ     string
			aggType string
			payload []byte
		)
		if err := rows.Scan(
			&rec.ID, &typ, &aggType, &rec.AggregateID, &rec.OccurredAt, &payload,
			&rec.Attempts, &rec.LastError,
		); err != nil {
			return nil, wrapDBErr(op, err)
		}

		rec.Type = domain.NotificationType(typ)
		rec.AggregateType = domain.AggregateType(aggType)
		if err := json.Unmarshal(payload, &rec.Payload); err != nil {
			return nil, fmt.Errorf("%s: decode payload: %w", op, err)
		}

		out = append(out, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func (r *OutboxRepo) MarkDispatched(ctx context.Context, id uuid.UUID, at time.Time) error {
	const op = "postgresrepo.OutboxRepo.MarkDispatched"

	tag, err := r.db.Exec(ctx, `UPDATE outbox SET dispatched_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return wrapDBErr(op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	return nil
}

func (r *OutboxRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	const op = "postgresrepo.OutboxRepo.MarkFailed"

	tag, err := r.db.Exec(ctx,
		`UPDATE outbox SET attempts = attempts + 1, last_error = $2 WHERE id = $1`, id, reason,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	return nil
}
