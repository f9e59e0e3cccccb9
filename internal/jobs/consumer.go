package jobs

import (
	"context"
	"errors"

	"github.com/eventify-trnc/eventify/internal/domain/event"
	"github.com/eventify-trnc/eventify/internal/domain/job"
	"github.com/eventify-trnc/eventify/internal/domain/registration"
	"github.com/eventify-trnc/eventify/internal/ledger"
	"github.com/eventify-trnc/eventify/internal/notifications"
	"github.com/eventify-trnc/eventify/internal/queue/worker"
)

type EventsGetter interface {
	GetByID(ctx context.Context, id string) (event.Event, error)
}

// RegistrationLocker reads a registration under its event lock so the
// status check cannot race a concurrent cancellation.
type RegistrationLocker interface {
	WithRegistrationLock(ctx context.Context, registrationID string, fn func(tx ledger.Tx, reg registration.Registration) error) error
}

// NewRegistrationConfirmationHandler sends the confirmation mail for a
// fresh registration.
func NewRegistrationConfirmationHandler(events EventsGetter, notifier notifications.Notifier) worker.Handler {
	return func(ctx context.Context, j job.Job) error {
		decoded, err := DecodePayload(j)
		if err != nil {
			return err
		}
		p, ok := decoded.(RegistrationConfirmationPayload)
		if !ok {
			return ErrPayloadTypeMismatch
		}

		ev, err := events.GetByID(ctx, p.EventID)
		if err != nil {
			if errors.Is(err, event.ErrNotFound) {
				// event deleted since the registration, nothing to confirm
				return nil
			}
			return err
		}

		return notifier.SendRegistrationConfirmation(ctx, notifications.RegistrationConfirmationInput{
			Email:          p.Email,
			Name:           p.Name,
			EventTitle:     ev.Title,
			EventDate:      ev.Date,
			EventTime:      ev.Time,
			EventLocation:  ev.Location,
			RegistrationID: p.RegistrationID,
		})
	}
}

// NewEventReminderHandler sends the day-before reminder, skipping
// registrations cancelled in the meantime.
func NewEventReminderHandler(events EventsGetter, regs RegistrationLocker, notifier notifications.Notifier) worker.Handler {
	return func(ctx context.Context, j job.Job) error {
		decoded, err := DecodePayload(j)
		if err != nil {
			return err
		}
		p, ok := decoded.(EventReminderPayload)
		if !ok {
			return ErrPayloadTypeMismatch
		}

		stillActive := false
		err = regs.WithRegistrationLock(ctx, p.RegistrationID, func(_ ledger.Tx, reg registration.Registration) error {
			stillActive = reg.Status == registration.StatusActive
			return nil
		})
		if err != nil {
			if errors.Is(err, registration.ErrNotFound) {
				return nil
			}
			return err
		}
		if !stillActive {
			return nil
		}

		ev, err := events.GetByID(ctx, p.EventID)
		if err != nil {
			if errors.Is(err, event.ErrNotFound) {
				return nil
			}
			return err
		}

		return notifier.SendEventReminder(ctx, notifications.EventReminderInput{
			Email:         p.Email,
			Name:          p.Name,
			EventTitle:    ev.Title,
			EventDate:     ev.Date,
			EventTime:     ev.Time,
			EventLocation: ev.Location,
		})
	}
}
