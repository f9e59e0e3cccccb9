// Package mirror is the offline fallback: the same ledger engine run
// against the file-backed local store, plus the reconciliation that
// runs when the remote service becomes reachable again. The remote is
// always authoritative; local records only fill the gap while offline.
package mirror

import (
	"context"
	"errors"
	"strings"

	"github.com/eventify-trnc/eventify/internal/domain/event"
	"github.com/eventify-trnc/eventify/internal/domain/registration"
	"github.com/eventify-trnc/eventify/internal/ledger"
	"github.com/eventify-trnc/eventify/internal/repo/local"
)

// Remote is the slice of the registration service the mirror talks to
// when connectivity is back.
type Remote interface {
	ListEvents(ctx context.Context) ([]event.Event, error)
	ListForUser(ctx context.Context, userID string) ([]registration.Registration, error)
	Reserve(ctx context.Context, eventID, userID string, participants []registration.Participant, idempotencyKey string) (registration.Registration, error)
}

type Mirror struct {
	store  *local.Store
	ledger *ledger.Ledger
	remote Remote
}

func New(store *local.Store, remote Remote) *Mirror {
	return &Mirror{
		store:  store,
		ledger: ledger.New(store),
		remote: remote,
	}
}

// Reserve and Cancel are the offline operations. They run the exact
// same invariant checks as the server because it is the same engine;
// only the backing store differs. Offline identity is the user's email.
func (m *Mirror) Reserve(ctx context.Context, eventID, userEmail string, participants []registration.Participant) (registration.Registration, error) {
	return m.ledger.Reserve(ctx, eventID, strings.ToLower(userEmail), participants, "")
}

func (m *Mirror) Cancel(ctx context.Context, registrationID, userEmail string) (registration.Registration, error) {
	return m.ledger.Cancel(ctx, registrationID, strings.ToLower(userEmail), false)
}

func (m *Mirror) MyRegistrations(ctx context.Context, userEmail string) ([]registration.Registration, error) {
	return m.ledger.ListForUser(ctx, userEmail)
}

func (m *Mirror) Events() []event.Event {
	return m.store.Events()
}

// Sync reconciles the local store with the remote service for one user.
//
//  1. Refresh the event snapshot (cascading away registrations whose
//     event was deleted server-side).
//  2. Push local-only registrations up, keyed by a deterministic
//     idempotency key so a retried sync never double-books. A pair the
//     remote already holds, matched case-insensitively by
//     (eventId, user), is never re-submitted.
//  3. Overwrite the user's local records with the remote's answer.
func (m *Mirror) Sync(ctx context.Context, userID string) error {
	events, err := m.remote.ListEvents(ctx)
	if err != nil {
		return err
	}
	if err := m.store.ReplaceEvents(events); err != nil {
		return err
	}

	remoteRegs, err := m.remote.ListForUser(ctx, userID)
	if err != nil {
		return err
	}

	taken := make(map[string]struct{}, len(remoteRegs))
	for _, r := range remoteRegs {
		taken[r.EventID] = struct{}{}
	}

	localRegs, err := m.store.ListForUser(ctx, userID)
	if err != nil {
		return err
	}

	merged := remoteRegs

	for _, lr := range localRegs {
		if _, ok := taken[lr.EventID]; ok {
			continue // remote already has this (event, user) pair
		}

		pushed, err := m.remote.Reserve(ctx, lr.EventID, userID, lr.Participants, "mirror:"+lr.ID)
		if err != nil {
			switch {
			case errors.Is(err, registration.ErrAlreadyRegistered):
				// raced with another device; remote wins
				continue
			case errors.Is(err, registration.ErrEventFull),
				errors.Is(err, registration.ErrPastEvent),
				errors.Is(err, event.ErrNotFound):
				// the offline booking lost; drop it on overwrite below
				continue
			default:
				return err
			}
		}

		merged = append(merged, pushed)
		taken[lr.EventID] = struct{}{}
	}

	return m.store.ReplaceForUser(userID, merged)
}
