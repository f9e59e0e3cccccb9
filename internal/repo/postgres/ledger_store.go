package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/eventify-trnc/eventify/internal/domain/event"
	"github.com/eventify-trnc/eventify/internal/domain/registration"
	"github.com/eventify-trnc/eventify/internal/ledger"
	"github.com/eventify-trnc/eventify/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IsUniqueViolation reports whether err is a postgres 23505.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// LedgerStore implements ledger.Store on postgres. The event-lock is a
// transaction holding the event row FOR UPDATE, so the whole
// check-then-act in ledger.Reserve serializes per event; a partial
// unique index on (event_id, user_id) WHERE status = 'active' backs the
// duplicate check as a second line of defence.
type LedgerStore struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewLedgerStore(pool *pgxpool.Pool, prom *observability.Prom) *LedgerStore {
	return &LedgerStore{pool: pool, prom: prom}
}

func (s *LedgerStore) observe(op string, fn func() error) error {
	if s.prom != nil {
		return s.prom.ObserveDB(op, fn)
	}
	return fn()
}

const registrationColumns = `id, event_id, user_id, participants, status, idempotency_key, registered_at, updated_at`

func scanRegistration(row pgx.Row) (registration.Registration, error) {
	var r registration.Registration
	var participants []byte
	var idemKey *string

	err := row.Scan(&r.ID, &r.EventID, &r.UserID, &participants, &r.Status, &idemKey, &r.RegisteredAt, &r.UpdatedAt)
	if err != nil {
		return registration.Registration{}, err
	}

	if err := json.Unmarshal(participants, &r.Participants); err != nil {
		return registration.Registration{}, err
	}
	if idemKey != nil {
		r.IdempotencyKey = *idemKey
	}
	return r, nil
}

func (s *LedgerStore) WithEventLock(ctx context.Context, eventID string, fn func(tx ledger.Tx, ev event.Event) error) error {
	dbtx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}

	defer func() { _ = dbtx.Rollback(ctx) }()

	var ev event.Event
	err = s.observe("ledger.lock_event", func() error {
		var scanErr error
		ev, scanErr = scanEvent(dbtx.QueryRow(ctx,
			`SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, eventID))
		return scanErr
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return event.ErrNotFound
		}
		return err
	}

	if err := fn(&ledgerTx{tx: dbtx, store: s}, ev); err != nil {
		return err
	}

	return dbtx.Commit(ctx)
}

func (s *LedgerStore) WithRegistrationLock(ctx context.Context, registrationID string, fn func(tx ledger.Tx, reg registration.Registration) error) error {
	dbtx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}

	defer func() { _ = dbtx.Rollback(ctx) }()

	var reg registration.Registration
	err = s.observe("ledger.lock_registration", func() error {
		var scanErr error
		reg, scanErr = scanRegistration(dbtx.QueryRow(ctx,
			`SELECT `+registrationColumns+` FROM registrations WHERE id = $1 FOR UPDATE`, registrationID))
		return scanErr
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return registration.ErrNotFound
		}
		return err
	}

	if err := fn(&ledgerTx{tx: dbtx, store: s}, reg); err != nil {
		return err
	}

	return dbtx.Commit(ctx)
}

func (s *LedgerStore) ActiveParticipantCount(ctx context.Context, eventID string) (int, error) {
	var total int
	err := s.observe("ledger.active_count", func() error {
		return s.pool.QueryRow(ctx, `
			SELECT COALESCE(SUM(jsonb_array_length(participants)), 0)
			FROM registrations
			WHERE event_id = $1 AND status = 'active'`, eventID).Scan(&total)
	})
	return total, err
}

func (s *LedgerStore) HasActive(ctx context.Context, eventID, userID string) (bool, error) {
	var exists bool
	err := s.observe("ledger.has_active", func() error {
		return s.pool.QueryRow(ctx, `
			SELECT EXISTS(
				SELECT 1 FROM registrations
				WHERE event_id = $1 AND LOWER(user_id) = LOWER($2) AND status = 'active'
			)`, eventID, userID).Scan(&exists)
	})
	return exists, err
}

func (s *LedgerStore) ListForUser(ctx context.Context, userID string) (regs []registration.Registration, err error) {
	var rows pgx.Rows

	err = s.observe("ledger.list_for_user", func() error {
		var qerr error
		rows, qerr = s.pool.Query(ctx, `
			SELECT `+registrationColumns+`
			FROM registrations
			WHERE LOWER(user_id) = LOWER($1) AND status = 'active'
			ORDER BY registered_at ASC, id ASC`, userID)
		return qerr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	regs = make([]registration.Registration, 0)
	for rows.Next() {
		r, scanErr := scanRegistration(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		regs = append(regs, r)
	}

	return regs, rows.Err()
}

func (s *LedgerStore) ListForEvent(ctx context.Context, eventID string) (regs []registration.Registration, err error) {
	var rows pgx.Rows

	err = s.observe("ledger.list_for_event", func() error {
		var qerr error
		rows, qerr = s.pool.Query(ctx, `
			SELECT `+registrationColumns+`
			FROM registrations
			WHERE event_id = $1 AND status = 'active'
			ORDER BY registered_at ASC, id ASC`, eventID)
		return qerr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	regs = make([]registration.Registration, 0)
	for rows.Next() {
		r, scanErr := scanRegistration(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		regs = append(regs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	// a deleted event must answer not-found, not an empty list
	if len(regs) == 0 {
		var dummy string
		err = s.observe("ledger.list_for_event.check_event", func() error {
			return s.pool.QueryRow(ctx, `SELECT id FROM events WHERE id = $1`, eventID).Scan(&dummy)
		})
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, event.ErrNotFound
		}
		if err != nil {
			return nil, err
		}
	}

	return regs, nil
}

type ledgerTx struct {
	tx    pgx.Tx
	store *LedgerStore
}

func (t *ledgerTx) ActiveParticipantCount(ctx context.Context, eventID string) (int, error) {
	var total int
	err := t.store.observe("ledger.tx.active_count", func() error {
		return t.tx.QueryRow(ctx, `
			SELECT COALESCE(SUM(jsonb_array_length(participants)), 0)
			FROM registrations
			WHERE event_id = $1 AND status = 'active'`, eventID).Scan(&total)
	})
	return total, err
}

func (t *ledgerTx) HasActive(ctx context.Context, eventID, userID string) (bool, error) {
	var exists bool
	err := t.store.observe("ledger.tx.has_active", func() error {
		return t.tx.QueryRow(ctx, `
			SELECT EXISTS(
				SELECT 1 FROM registrations
				WHERE event_id = $1 AND LOWER(user_id) = LOWER($2) AND status = 'active'
			)`, eventID, userID).Scan(&exists)
	})
	return exists, err
}

func (t *ledgerTx) FindByIdempotencyKey(ctx context.Context, key string) (registration.Registration, bool, error) {
	var reg registration.Registration

	err := t.store.observe("ledger.tx.find_by_idempotency_key", func() error {
		var scanErr error
		reg, scanErr = scanRegistration(t.tx.QueryRow(ctx,
			`SELECT `+registrationColumns+` FROM registrations WHERE idempotency_key = $1`, key))
		return scanErr
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return registration.Registration{}, false, nil
		}
		return registration.Registration{}, false, err
	}

	return reg, true, nil
}

func (t *ledgerTx) Insert(ctx context.Context, reg registration.Registration) error {
	participants, err := json.Marshal(reg.Participants)
	if err != nil {
		return err
	}

	var idemKey *string
	if reg.IdempotencyKey != "" {
		idemKey = &reg.IdempotencyKey
	}

	err = t.store.observe("ledger.tx.insert", func() error {
		_, execErr := t.tx.Exec(ctx, `
			INSERT INTO registrations (`+registrationColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			reg.ID, reg.EventID, reg.UserID, participants, reg.Status, idemKey, reg.RegisteredAt, reg.UpdatedAt,
		)
		return execErr
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "registrations_event_user_active_uniq" {
			return registration.ErrAlreadyRegistered
		}
		return err
	}

	return nil
}

func (t *ledgerTx) MarkCancelled(ctx context.Context, registrationID string, at time.Time) (registration.Registration, error) {
	var reg registration.Registration

	err := t.store.observe("ledger.tx.mark_cancelled", func() error {
		var scanErr error
		reg, scanErr = scanRegistration(t.tx.QueryRow(ctx, `
			UPDATE registrations
			SET status = 'cancelled', updated_at = $2
			WHERE id = $1
			RETURNING `+registrationColumns, registrationID, at))
		return scanErr
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return registration.Registration{}, registration.ErrNotFound
		}
		return registration.Registration{}, err
	}

	return reg, nil
}
