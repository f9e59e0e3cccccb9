package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/eventify-trnc/eventify/internal/cache"
	"github.com/eventify-trnc/eventify/internal/domain/event"
	"github.com/eventify-trnc/eventify/internal/domain/registration"
	"github.com/eventify-trnc/eventify/internal/domain/user"
	"github.com/eventify-trnc/eventify/internal/observability"
)

// Reserver is the capacity engine the service drives. Both the postgres
// and the file-backed ledger satisfy it.
type Reserver interface {
	Reserve(ctx context.Context, eventID, userID string, participants []registration.Participant, idempotencyKey string) (registration.Registration, error)
	Cancel(ctx context.Context, registrationID, userID string, asAdmin bool) (registration.Registration, error)
	ListForUser(ctx context.Context, userID string) ([]registration.Registration, error)
	ListForEvent(ctx context.Context, eventID string) ([]registration.Registration, error)
}

type UsersReader interface {
	GetByID(ctx context.Context, id string) (user.User, error)
}

type EventsReader interface {
	GetByID(ctx context.Context, id string) (event.Event, error)
}

// NotificationEnqueuer schedules the post-reservation jobs. Failures here
// never fail the reservation itself.
type NotificationEnqueuer interface {
	EnqueueRegistrationConfirmation(ctx context.Context, reg registration.Registration, ev event.Event) error
	EnqueueEventReminder(ctx context.Context, reg registration.Registration, ev event.Event) error
}

type RegistrationsService struct {
	ledger   Reserver
	users    UsersReader
	events   EventsReader
	enqueuer NotificationEnqueuer
	cache    *cache.Cache
	log      *slog.Logger
	prom     *observability.Prom
}

// NewRegistrationsService takes the same cache the events service reads
// through, so reservations and cancellations drop the cached listings
// whose occupancy they changed.
func NewRegistrationsService(
	ledger Reserver,
	users UsersReader,
	events EventsReader,
	enqueuer NotificationEnqueuer,
	c *cache.Cache,
	log *slog.Logger,
	prom *observability.Prom,
) *RegistrationsService {
	return &RegistrationsService{
		ledger:   ledger,
		users:    users,
		events:   events,
		enqueuer: enqueuer,
		cache:    c,
		log:      log,
		prom:     prom,
	}
}

func (s *RegistrationsService) invalidateEvents() {
	if s.cache != nil {
		s.cache.Clear()
	}
}

// RegistrationWithEvent carries a registration together with its event,
// the shape the "my registrations" listing renders.
type RegistrationWithEvent struct {
	registration.Registration
	Event event.Event `json:"event"`
}

// Register reserves spots for userID on eventID. An empty participant
// list registers the account holder using their profile data.
func (s *RegistrationsService) Register(ctx context.Context, eventID, userID string, participants []registration.Participant, idempotencyKey string) (registration.Registration, error) {
	if len(participants) == 0 {
		u, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return registration.Registration{}, err
		}
		participants = []registration.Participant{{
			Name:      u.Name,
			Email:     u.Email,
			Phone:     u.Phone,
			Birthdate: u.Birthdate,
		}}
	}

	reg, err := s.ledger.Reserve(ctx, eventID, userID, participants, idempotencyKey)

	s.countReservation(err)

	if err != nil {
		return registration.Registration{}, err
	}

	s.invalidateEvents()
	s.enqueueNotifications(ctx, reg)

	return reg, nil
}

func (s *RegistrationsService) countReservation(err error) {
	if s.prom == nil {
		return
	}

	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, registration.ErrAlreadyRegistered):
		outcome = "duplicate"
	case errors.Is(err, registration.ErrEventFull):
		outcome = "full"
	case errors.Is(err, registration.ErrPastEvent):
		outcome = "past"
	default:
		outcome = "error"
	}
	s.prom.ReservationsTotal.WithLabelValues(outcome).Inc()
}

func (s *RegistrationsService) enqueueNotifications(ctx context.Context, reg registration.Registration) {
	if s.enqueuer == nil || len(reg.Participants) == 0 {
		return
	}

	ev, err := s.events.GetByID(ctx, reg.EventID)
	if err != nil {
		s.log.WarnContext(ctx, "could not load event for notifications",
			"event_id", reg.EventID, "registration_id", reg.ID, "error", err)
		return
	}

	if err := s.enqueuer.EnqueueRegistrationConfirmation(ctx, reg, ev); err != nil {
		s.log.WarnContext(ctx, "enqueue confirmation failed",
			"registration_id", reg.ID, "error", err)
	}
	if err := s.enqueuer.EnqueueEventReminder(ctx, reg, ev); err != nil {
		s.log.WarnContext(ctx, "enqueue reminder failed",
			"registration_id", reg.ID, "error", err)
	}
}

// Cancel releases the spots held by a registration. Only the owner (or
// an admin) may cancel.
func (s *RegistrationsService) Cancel(ctx context.Context, registrationID, userID string, asAdmin bool) (registration.Registration, error) {
	reg, err := s.ledger.Cancel(ctx, registrationID, userID, asAdmin)
	if err != nil {
		return registration.Registration{}, err
	}

	s.invalidateEvents()

	return reg, nil
}

// MyRegistrations lists the caller's registrations with their events,
// soonest event first.
func (s *RegistrationsService) MyRegistrations(ctx context.Context, userID string) ([]RegistrationWithEvent, error) {
	regs, err := s.ledger.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	evs := make(map[string]event.Event, len(regs))
	out := make([]RegistrationWithEvent, 0, len(regs))

	for _, reg := range regs {
		ev, ok := evs[reg.EventID]
		if !ok {
			ev, err = s.events.GetByID(ctx, reg.EventID)
			if err != nil {
				if errors.Is(err, event.ErrNotFound) {
					// event was deleted underneath the registration
					continue
				}
				return nil, err
			}
			evs[reg.EventID] = ev
		}
		out = append(out, RegistrationWithEvent{Registration: reg, Event: ev})
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Event, out[j].Event
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		return out[i].RegisteredAt.Before(out[j].RegisteredAt)
	})

	return out, nil
}

// ForEvent lists every registration of one event, for the admin surface.
func (s *RegistrationsService) ForEvent(ctx context.Context, eventID string) ([]registration.Registration, error) {
	return s.ledger.ListForEvent(ctx, eventID)
}
