package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/eventify-trnc/eventify/internal/domain/event"
	"github.com/eventify-trnc/eventify/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EventsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewEventsRepo(pool *pgxpool.Pool, prom *observability.Prom) *EventsRepo {
	return &EventsRepo{pool: pool, prom: prom}
}

func (r *EventsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

const eventColumns = `id, title, description, city, category, event_date, event_time, location, capacity, image_url, created_by, created_at, updated_at`

func scanEvent(row pgx.Row) (event.Event, error) {
	var e event.Event
	err := row.Scan(
		&e.ID, &e.Title, &e.Description, &e.City, &e.Category,
		&e.Date, &e.Time, &e.Location, &e.Capacity, &e.ImageURL,
		&e.CreatedBy, &e.CreatedAt, &e.UpdatedAt,
	)
	return e, err
}

func (r *EventsRepo) Create(ctx context.Context, req event.CreateEventRequest, createdBy string) (event.Event, error) {
	e := event.NewFromCreateRequest(req, createdBy)

	err := r.observe("events.create", func() error {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO events (`+eventColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
			e.ID, e.Title, e.Description, e.City, e.Category,
			e.Date, e.Time, e.Location, e.Capacity, e.ImageURL,
			e.CreatedBy, e.CreatedAt, e.UpdatedAt,
		)
		return err
	})
	if err != nil {
		return event.Event{}, err
	}

	return e, nil
}

func (r *EventsRepo) GetByID(ctx context.Context, id string) (event.Event, error) {
	var e event.Event

	err := r.observe("events.get_by_id", func() error {
		var scanErr error
		e, scanErr = scanEvent(r.pool.QueryRow(ctx,
			`SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
		return scanErr
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return event.Event{}, event.ErrNotFound
		}
		return event.Event{}, err
	}

	return e, nil
}

// GetWithStats joins the live active-participant count onto the event.
func (r *EventsRepo) GetWithStats(ctx context.Context, id string) (event.WithStats, error) {
	var e event.Event
	var registered int

	err := r.observe("events.get_with_stats", func() error {
		return r.pool.QueryRow(ctx, `
			SELECT e.id, e.title, e.description, e.city, e.category,
			       e.event_date, e.event_time, e.location, e.capacity, e.image_url,
			       e.created_by, e.created_at, e.updated_at,
			       COALESCE((
			           SELECT SUM(jsonb_array_length(r.participants))
			           FROM registrations r
			           WHERE r.event_id = e.id AND r.status = 'active'
			       ), 0)
			FROM events e
			WHERE e.id = $1`, id).Scan(
			&e.ID, &e.Title, &e.Description, &e.City, &e.Category,
			&e.Date, &e.Time, &e.Location, &e.Capacity, &e.ImageURL,
			&e.CreatedBy, &e.CreatedAt, &e.UpdatedAt,
			&registered,
		)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return event.WithStats{}, event.ErrNotFound
		}
		return event.WithStats{}, err
	}

	return e.Stats(registered), nil
}

// List applies the filter as AND conditions and orders ascending by
// (date, time). today is the server's current day for the upcoming
// restriction; the free-text search matches title, description and
// location case-insensitively.
func (r *EventsRepo) List(ctx context.Context, filter event.ListFilter, today string) ([]event.WithStats, error) {
	base := `
		SELECT e.id, e.title, e.description, e.city, e.category,
		       e.event_date, e.event_time, e.location, e.capacity, e.image_url,
		       e.created_by, e.created_at, e.updated_at,
		       COALESCE(SUM(jsonb_array_length(r.participants)) FILTER (WHERE r.status = 'active'), 0) AS registered
		FROM events e
		LEFT JOIN registrations r ON r.event_id = e.id
	`

	var conds []string
	var args []interface{}
	pos := 1

	if filter.City != nil {
		conds = append(conds, fmt.Sprintf("e.city = $%d", pos))
		args = append(args, *filter.City)
		pos++
	}

	if filter.Category != nil {
		conds = append(conds, fmt.Sprintf("e.category = $%d", pos))
		args = append(args, *filter.Category)
		pos++
	}

	if filter.Date != nil {
		conds = append(conds, fmt.Sprintf("e.event_date = $%d", pos))
		args = append(args, *filter.Date)
		pos++
	}

	if filter.Search != nil {
		conds = append(conds, fmt.Sprintf("(e.title ILIKE $%d OR e.description ILIKE $%d OR e.location ILIKE $%d)", pos, pos, pos))
		args = append(args, "%"+*filter.Search+"%")
		pos++
	}

	if filter.Upcoming {
		conds = append(conds, fmt.Sprintf("e.event_date >= $%d", pos))
		args = append(args, today)
		pos++
	}

	query := base
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	// stable ordering: ascending by calendar date, then start time
	query += " GROUP BY e.id ORDER BY e.event_date ASC, e.event_time ASC, e.id ASC"

	var rows pgx.Rows
	err := r.observe("events.list", func() error {
		var qerr error
		rows, qerr = r.pool.Query(ctx, query, args...)
		return qerr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]event.WithStats, 0)
	for rows.Next() {
		var e event.Event
		var registered int

		err = rows.Scan(
			&e.ID, &e.Title, &e.Description, &e.City, &e.Category,
			&e.Date, &e.Time, &e.Location, &e.Capacity, &e.ImageURL,
			&e.CreatedBy, &e.CreatedAt, &e.UpdatedAt,
			&registered,
		)
		if err != nil {
			return nil, err
		}

		out = append(out, e.Stats(registered))
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

// Update applies a partial patch: the row is read under lock, merged
// with the supplied fields, and written back in one transaction.
func (r *EventsRepo) Update(ctx context.Context, id string, req event.UpdateEventRequest) (event.Event, error) {
	var e event.Event

	err := r.observe("events.update", func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		current, err := scanEvent(tx.QueryRow(ctx,
			`SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}

		e = current.ApplyUpdate(req)

		if _, err := tx.Exec(ctx, `
			UPDATE events
			SET title = $2,
			    description = $3,
			    city = $4,
			    category = $5,
			    event_date = $6,
			    event_time = $7,
			    location = $8,
			    capacity = $9,
			    image_url = $10,
			    updated_at = $11
			WHERE id = $1`,
			id,
			e.Title, e.Description, e.City, e.Category,
			e.Date, e.Time, e.Location, e.Capacity, e.ImageURL,
			e.UpdatedAt,
		); err != nil {
			return err
		}

		return tx.Commit(ctx)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return event.Event{}, event.ErrNotFound
		}
		return event.Event{}, err
	}

	return e, nil
}

// Delete removes the event and, through it, every registration that
// references it. The registrations table cascades on the foreign key,
// but we delete explicitly inside one transaction so the cascade is a
// backstop rather than the contract.
func (r *EventsRepo) Delete(ctx context.Context, id string) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}

	defer func() { _ = tx.Rollback(ctx) }()

	err = r.observe("events.delete", func() error {
		if _, e := tx.Exec(ctx, `DELETE FROM registrations WHERE event_id = $1`, id); e != nil {
			return e
		}

		tag, e := tx.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
		if e != nil {
			return e
		}
		if tag.RowsAffected() == 0 {
			return event.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}
