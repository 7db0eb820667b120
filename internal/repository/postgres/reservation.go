package postgresrepo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kirinyoku/tix-reserve/internal/domain"
	"github.com/kirinyoku/tix-reserve/internal/repository"
)

type ReservationRepo struct {
	db DB
}

const reservationColumns = `id, event_id, ticket_id, user_id, quantity, price_per_ticket_cents,
	payment_id, status, created_at, expires_at, confirmed_at, cancelled_at, expired_at, version`

func scanReservation(row pgx.Row) (*domain.Reservation, error) {
	var (
		r      domain.Reservation
		status string
	)

	if err := row.Scan(
		&r.ID, &r.EventID, &r.TicketID, &r.UserID, &r.Quantity, &r.PricePerTicketCents,
		&r.PaymentID, &status, &r.CreatedAt, &r.ExpiresAt,
		&r.ConfirmedAt, &r.CancelledAt, &r.ExpiredAt, &r.Version,
	); err != nil {
		return nil, err
	}

	r.Status = domain.ReservationStatus(status)
	return &r, nil
}

func (r *ReservationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	const op = "postgresrepo.ReservationRepo.GetByID"

	res, err := scanReservation(r.db.QueryRow(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return res, nil
}

func (r *ReservationRepo) List(ctx context.Context, f repository.ReservationFilter) ([]*domain.Reservation, error) {
	const op = "postgresrepo.ReservationRepo.List"

	var eventID *uuid.UUID
	if f.EventID != uuid.Nil {
		eventID = &f.EventID
	}

	return r.query(ctx, op,
		`SELECT `+reservationColumns+` FROM reservations
		  WHERE ($1::uuid IS NULL OR event_id = $1)
		    AND ($2 = '' OR status = $2)
		  ORDER BY created_at DESC, id`,
		eventID, string(f.Status),
	)
}

func (r *ReservationRepo) ListByUserID(ctx context.Context, userID string) ([]*domain.Reservation, error) {
	const op = "postgresrepo.ReservationRepo.ListByUserID"

	return r.query(ctx, op,
		`SELECT `+reservationColumns+` FROM reservations
		  WHERE user_id = $1
		  ORDER BY created_at DESC, id`,
		userID,
	)
}

func (r *ReservationRepo) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*domain.Reservation, error) {
	const op = "postgresrepo.ReservationRepo.ListExpiredPending"

	return r.query(ctx, op,
		`SELECT `+reservationColumns+` FROM reservations
		  WHERE status = $1 AND expires_at < $2
		  ORDER BY expires_at
		  LIMIT NULLIF(GREATEST($3::bigint, 0), 0)`,
		string(domain.ReservationPending), now, limit,
	)
}

func (r *ReservationRepo) Insert(ctx context.Context, res *domain.Reservation) error {
	const op = "postgresrepo.ReservationRepo.Insert"

	if _, err := r.db.Exec(ctx,
		`INSERT INTO reservations (`+reservationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 0)`,
		res.ID, res.EventID, res.TicketID, res.UserID, res.Quantity, res.PricePerTicketCents,
		res.PaymentID, string(res.Status), res.CreatedAt, res.ExpiresAt,
		res.ConfirmedAt, res.CancelledAt, res.ExpiredAt,
	); err != nil {
		return wrapDBErr(op, err)
	}

	res.Version = 0
	return nil
}

func (r *ReservationRepo) Replace(ctx context.Context, res *domain.Reservation, expectedVersion int) error {
	const op = "postgresrepo.ReservationRepo.Replace"

	tag, err := r.db.Exec(ctx,
		`UPDATE reservations
		    SET user_id = $3, quantity = $4, price_per_ticket_cents = $5, payment_id = $6,
		        status = $7, expires_at = $8, confirmed_at = $9, cancelled_at = $10,
		        expired_at = $11, version = $2 + 1
		  WHERE id = $1 AND version = $2`,
		res.ID, expectedVersion, res.UserID, res.Quantity, res.PricePerTicketCents, res.PaymentID,
		string(res.Status), res.ExpiresAt, res.ConfirmedAt, res.CancelledAt, res.ExpiredAt,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrVersionConflict)
	}

	res.Version = expectedVersion + 1
	return nil
}

func (r *ReservationRepo) query(ctx context.Context, op, sql string, args ...any) ([]*domain.Reservation, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}
	defer rows.Close()

	var out []*domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, res)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}
