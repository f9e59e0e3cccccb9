package registration

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
)

// Participant is a value type embedded in a registration; it carries no
// identity of its own.
type Participant struct {
	Name      string `json:"name" binding:"required,min=2,max=120"`
	Email     string `json:"email" binding:"required,email"`
	Phone     string `json:"phone" binding:"required,max=20"`
	Birthdate string `json:"birthdate" binding:"required,datetime=2006-01-02"`
}

// Validate covers the one rule the binding tags cannot express: a
// birthdate may not lie in the future relative to now.
func (p Participant) Validate(now time.Time) error {
	bd, err := time.Parse("2006-01-02", p.Birthdate)
	if err != nil {
		return fmt.Errorf("%w: birthdate must be a YYYY-MM-DD date", ErrInvalidParticipant)
	}

	if bd.After(now) {
		return fmt.Errorf("%w: birthdate cannot be in the future", ErrInvalidParticipant)
	}

	return nil
}

type Registration struct {
	ID             string        `json:"id"`
	EventID        string        `json:"eventId"`
	UserID         string        `json:"userId"`
	Participants   []Participant `json:"participants"`
	Status         Status        `json:"status"`
	IdempotencyKey string        `json:"-"`
	RegisteredAt   time.Time     `json:"registeredAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// Slots is the number of capacity slots this registration occupies
// while active.
func (r Registration) Slots() int {
	return len(r.Participants)
}

// BelongsTo matches the registration's owner against an identifier,
// case-insensitively so that email-keyed offline records line up with
// server-side account ids.
func (r Registration) BelongsTo(userID string) bool {
	return strings.EqualFold(r.UserID, userID)
}

var (
	ErrNotFound           = errors.New("registration not found")
	ErrAlreadyRegistered  = errors.New("already registered for this event")
	ErrEventFull          = errors.New("event is full")
	ErrPastEvent          = errors.New("cannot register for past events")
	ErrNotOwner           = errors.New("registration belongs to another user")
	ErrAlreadyCancelled   = errors.New("registration is already cancelled")
	ErrNoParticipants     = errors.New("at least one participant is required")
	ErrInvalidParticipant = errors.New("invalid participant")
)

// CapacityError reports how many spots were left at the moment the
// reservation was rejected. errors.Is(err, ErrEventFull) holds for it.
type CapacityError struct {
	Remaining int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("event is full: only %d spots available", e.Remaining)
}

func (e *CapacityError) Is(target error) bool {
	return target == ErrEventFull
}

type CreateRegistrationRequest struct {
	EventID      string        `json:"eventId" binding:"required"`
	Participants []Participant `json:"participants" binding:"omitempty,min=1,max=10,dive"`
}
