package jobs

import "errors"

const (
	TypeRegistrationConfirmation = "registration.confirmation"
	TypeEventReminder            = "event.reminder"
)

var (
	ErrInvalidJobType      = errors.New("invalid job type")
	ErrInvalidJobPayload   = errors.New("invalid job payload")
	ErrPayloadTypeMismatch = errors.New("payload type mismatch for job type")
)

func IsValidType(t string) bool {
	switch t {
	case TypeRegistrationConfirmation, TypeEventReminder:
		return true
	default:
		return false
	}
}
