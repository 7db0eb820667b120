package postgresrepo

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kirinyoku/tix-reserve/internal/domain"
	"github.com/kirinyoku/tix-reserve/internal/repository"
)

type EventRepo struct {
	db DB
}

// ticketDocument is the JSONB shape of one entry of events.tickets.
type ticketDocument struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	PriceCents        int64     `json:"price_cents"`
	TotalQuantity     int       `json:"total_quantity"`
	AvailableQuantity int       `json:"available_quantity"`
	ReservedQuantity  int       `json:"reserved_quantity"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func encodeTickets(ts []domain.Ticket) ([]byte, error) {
	docs := make([]ticketDocument, 0, len(ts))
	for _, t := range ts {
		docs = append(docs, ticketDocument{
			ID:                t.ID,
			Name:              t.Name,
			Description:       t.Description,
			PriceCents:        t.PriceCents,
			TotalQuantity:     t.TotalQuantity,
			AvailableQuantity: t.AvailableQuantity,
			ReservedQuantity:  t.ReservedQuantity,
			CreatedAt:         t.CreatedAt,
			UpdatedAt:         t.UpdatedAt,
		})
	}
	return json.Marshal(docs)
}

func decodeTickets(eventID uuid.UUID, raw []byte) ([]domain.Ticket, error) {
	var docs []ticketDocument
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, err
	}

	out := make([]domain.Ticket, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.Ticket{
			ID:                d.ID,
			EventID:           eventID,
			Name:              d.Name,
			Description:       d.Description,
			PriceCents:        d.PriceCents,
			TotalQuantity:     d.TotalQuantity,
			AvailableQuantity: d.AvailableQuantity,
			ReservedQuantity:  d.ReservedQuantity,
			CreatedAt:         d.CreatedAt,
			UpdatedAt:         d.UpdatedAt,
		})
	}
	return out, nil
}

const eventColumns = `id, name, description, venue, event_date, sales_start_date, sales_end_date,
	organizer_id, status, tickets, version, created_at, updated_at`

func scanEvent(row pgx.Row) (*domain.Event, error) {
	var (
		e       domain.Event
		status  string
		tickets []byte
	)

	if err := row.Scan(
		&e.ID, &e.Name, &e.Description, &e.Venue, &e.EventDate, &e.SalesStartDate, &e.SalesEndDate,
		&e.OrganizerID, &status, &tickets, &e.Version, &e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}

	e.Status = domain.EventStatus(status)

	ts, err := decodeTickets(e.ID, tickets)
	if err != nil {
		return nil, fmt.Errorf("decode tickets: %w", err)
	}
	e.Tickets = ts

	return &e, nil
}

// GetByID returns the event with its tickets.
//
// Returns:
//   - error: repository.ErrNotFound if no event has the id.
func (r *EventRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	const op = "postgresrepo.EventRepo.GetByID"

	e, err := scanEvent(r.db.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return e, nil
}

func (r *EventRepo) List(ctx context.Context, f repository.EventFilter) ([]*domain.Event, error) {
	const op = "postgresrepo.EventRepo.List"

	var (
		where []string
		args  []any
	)

	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.OrganizerID != "" {
		add("organizer_id = $%d", f.OrganizerID)
	}
	if f.From != nil {
		add("event_date >= $%d", *f.From)
	}
	if f.To != nil {
		add("event_date <= $%d", *f.To)
	}

	sql := `SELECT ` + eventColumns + ` FROM events`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	sql += ` ORDER BY event_date, id`

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}
	defer rows.Close()

	var out []*domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, e)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

// Insert stores the event at version 0.
//
// Returns:
//   - error: repository.ErrConflict if the id is taken.
func (r *EventRepo) Insert(ctx context.Context, e *domain.Event) error {
	const op = "postgresrepo.EventRepo.Insert"

	tickets, err := encodeTickets(e.Tickets)
	if err != nil {
		return fmt.Errorf("%s: encode tickets: %w", op, err)
	}

	if _, err := r.db.Exec(ctx,
		`INSERT INTO events (`+eventColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, $11, $12)`,
		e.ID, e.Name, e.Description, e.Venue, e.EventDate, e.SalesStartDate, e.SalesEndDate,
		e.OrganizerID, string(e.Status), tickets, e.CreatedAt, e.UpdatedAt,
	); err != nil {
		return wrapDBErr(op, err)
	}

	e.Version = 0
	return nil
}

// Replace overwrites the event if its stored version is still expectedVersion.
//
// Returns:
//   - error: repository.ErrVersionConflict if no row matched id and version.
func (r *EventRepo) Replace(ctx context.Context, e *domain.Event, expectedVersion int) error {
	const op = "postgresrepo.EventRepo.Replace"

	tickets, err := encodeTickets(e.Tickets)
	if err != nil {
		return fmt.Errorf("%s: encode tickets: %w", op, err)
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE events
		    SET name = $3, description = $4, venue = $5, event_date = $6,
		        sales_start_date = $7, sales_end_date = $8, organizer_id = $9,
		        status = $10, tickets = $11, updated_at = $12, version = $2 + 1
		  WHERE id = $1 AND version = $2`,
		e.ID, expectedVersion, e.Name, e.Description, e.Venue, e.EventDate,
		e.SalesStartDate, e.SalesEndDate, e.OrganizerID,
		string(e.Status), tickets, e.UpdatedAt,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrVersionConflict)
	}

	e.Version = expectedVersion + 1
	return nil
}
