// Package ledger is the registration bookkeeping engine. It owns the two
// invariants of the system, at most one active registration per
// (event, user) and active participant counts never exceeding an
// event's capacity, and enforces them once over a pluggable backing
// store. The postgres adapter backs the server; the local adapter backs
// the offline mirror. Both guarantee that the function passed to
// WithEventLock runs exclusively with respect to other reservations and
// cancellations on the same event.
package ledger

import (
	"context"
	"time"

	"github.com/eventify-trnc/eventify/internal/domain/event"
	"github.com/eventify-trnc/eventify/internal/domain/registration"
)

// Tx is the slice of store operations available inside a locked
// section. Implementations run them against the same transaction (or
// under the same mutex) as the surrounding lock.
type Tx interface {
	ActiveParticipantCount(ctx context.Context, eventID string) (int, error)
	HasActive(ctx context.Context, eventID, userID string) (bool, error)
	FindByIdempotencyKey(ctx context.Context, key string) (registration.Registration, bool, error)
	Insert(ctx context.Context, reg registration.Registration) error
	MarkCancelled(ctx context.Context, registrationID string, at time.Time) (registration.Registration, error)
}

type Store interface {
	// WithEventLock runs fn while holding exclusive access to the
	// event's registrations. ev is the event as of lock acquisition.
	// Returns event.ErrNotFound when the event does not exist.
	WithEventLock(ctx context.Context, eventID string, fn func(tx Tx, ev event.Event) error) error

	// WithRegistrationLock runs fn while holding the registration row.
	// Returns registration.ErrNotFound when the id is unknown.
	WithRegistrationLock(ctx context.Context, registrationID string, fn func(tx Tx, reg registration.Registration) error) error

	ActiveParticipantCount(ctx context.Context, eventID string) (int, error)
	HasActive(ctx context.Context, eventID, userID string) (bool, error)
	ListForUser(ctx context.Context, userID string) ([]registration.Registration, error)
	ListForEvent(ctx context.Context, eventID string) ([]registration.Registration, error)
}

type Ledger struct {
	store Store
	now   func() time.Time
}

func New(store Store) *Ledger {
	return &Ledger{
		store: store,
		now:   time.Now,
	}
}

// NewAtClock is for tests that need to pin "today".
func NewAtClock(store Store, now func() time.Time) *Ledger {
	return &Ledger{store: store, now: now}
}

// Reserve runs the whole check-then-act sequence under the event lock:
// idempotency replay, past-event check, duplicate check, capacity
// check, insert. A replayed idempotency key returns the original
// registration without consuming capacity again.
func (l *Ledger) Reserve(ctx context.Context, eventID, userID string, participants []registration.Participant, idempotencyKey string) (registration.Registration, error) {
	if len(participants) == 0 {
		return registration.Registration{}, registration.ErrNoParticipants
	}

	now := l.now().UTC()

	for _, p := range participants {
		if err := p.Validate(now); err != nil {
			return registration.Registration{}, err
		}
	}

	var out registration.Registration

	err := l.store.WithEventLock(ctx, eventID, func(tx Tx, ev event.Event) error {
		if idempotencyKey != "" {
			existing, ok, err := tx.FindByIdempotencyKey(ctx, idempotencyKey)
			if err != nil {
				return err
			}
			if ok {
				out = existing
				return nil
			}
		}

		if ev.StartsBefore(event.Day(now)) {
			return registration.ErrPastEvent
		}

		dup, err := tx.HasActive(ctx, eventID, userID)
		if err != nil {
			return err
		}
		if dup {
			return registration.ErrAlreadyRegistered
		}

		taken, err := tx.ActiveParticipantCount(ctx, eventID)
		if err != nil {
			return err
		}
		if taken+len(participants) > ev.Capacity {
			return &registration.CapacityError{Remaining: ev.Capacity - taken}
		}

		out = registration.New(eventID, userID, participants, idempotencyKey)
		return tx.Insert(ctx, out)
	})
	if err != nil {
		return registration.Registration{}, err
	}

	return out, nil
}

// Cancel flips an active registration to cancelled, freeing its slots
// immediately. Cancelling twice is an error, not a no-op. asAdmin skips
// the ownership check.
func (l *Ledger) Cancel(ctx context.Context, registrationID, userID string, asAdmin bool) (registration.Registration, error) {
	var out registration.Registration

	err := l.store.WithRegistrationLock(ctx, registrationID, func(tx Tx, reg registration.Registration) error {
		if !asAdmin && !reg.BelongsTo(userID) {
			return registration.ErrNotOwner
		}

		if reg.Status == registration.StatusCancelled {
			return registration.ErrAlreadyCancelled
		}

		cancelled, err := tx.MarkCancelled(ctx, registrationID, l.now().UTC())
		if err != nil {
			return err
		}

		out = cancelled
		return nil
	})
	if err != nil {
		return registration.Registration{}, err
	}

	return out, nil
}

// ActiveCountFor is the capacity gate: the sum of participant counts
// across the event's active registrations.
func (l *Ledger) ActiveCountFor(ctx context.Context, eventID string) (int, error) {
	return l.store.ActiveParticipantCount(ctx, eventID)
}

func (l *Ledger) HasActiveRegistration(ctx context.Context, eventID, userID string) (bool, error) {
	return l.store.HasActive(ctx, eventID, userID)
}

// ListForUser returns the user's active registrations.
func (l *Ledger) ListForUser(ctx context.Context, userID string) ([]registration.Registration, error) {
	return l.store.ListForUser(ctx, userID)
}

// ListForEvent returns the event's active registrations, or
// event.ErrNotFound when the event itself is gone; an empty list and a
// deleted event are different answers.
func (l *Ledger) ListForEvent(ctx context.Context, eventID string) ([]registration.Registration, error) {
	return l.store.ListForEvent(ctx, eventID)
}
