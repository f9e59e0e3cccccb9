package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/eventify-trnc/eventify/internal/domain/job"
)

// DecodePayload unmarshals a job's payload into the typed struct for
// its declared type.
func DecodePayload(j job.Job) (any, error) {
	if !IsValidType(j.Type) {
		return nil, ErrInvalidJobType
	}
	if len(j.Payload) == 0 {
		return nil, ErrInvalidJobPayload
	}

	switch j.Type {
	case TypeRegistrationConfirmation:
		var p RegistrationConfirmationPayload
		if err := json.Unmarshal(j.Payload, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
		}
		if p.RegistrationID == "" || p.EventID == "" || p.Email == "" {
			return nil, ErrInvalidJobPayload
		}
		return p, nil

	case TypeEventReminder:
		var p EventReminderPayload
		if err := json.Unmarshal(j.Payload, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
		}
		if p.RegistrationID == "" || p.EventID == "" || p.Email == "" {
			return nil, ErrInvalidJobPayload
		}
		return p, nil

	default:
		return nil, ErrInvalidJobType
	}
}
