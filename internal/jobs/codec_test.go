package jobs

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/eventify-trnc/eventify/internal/domain/job"
)

func TestDecodePayloadRoundTrip(t *testing.T) {
	raw, err := RegistrationConfirmationPayload{
		RegistrationID: "reg-1",
		EventID:        "ev-1",
		Email:          "alice@example.com",
		Name:           "Alice",
	}.JSON()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, err := DecodePayload(job.Job{Type: TypeRegistrationConfirmation, Payload: raw})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	p, ok := got.(RegistrationConfirmationPayload)
	if !ok {
		t.Fatalf("decoded %T, want RegistrationConfirmationPayload", got)
	}
	if p.RegistrationID != "reg-1" || p.Email != "alice@example.com" {
		t.Fatalf("round trip lost fields: %+v", p)
	}
}

func TestDecodePayloadRejectsBadJobs(t *testing.T) {
	valid, _ := EventReminderPayload{
		RegistrationID: "reg-1", EventID: "ev-1", Email: "a@b.c", Name: "A",
	}.JSON()

	tests := []struct {
		name    string
		job     job.Job
		wantErr error
	}{
		{
			name:    "unknown type",
			job:     job.Job{Type: "send_fax", Payload: valid},
			wantErr: ErrInvalidJobType,
		},
		{
			name:    "empty payload",
			job:     job.Job{Type: TypeEventReminder},
			wantErr: ErrInvalidJobPayload,
		},
		{
			name:    "malformed json",
			job:     job.Job{Type: TypeEventReminder, Payload: json.RawMessage(`{"registrationId":`)},
			wantErr: ErrInvalidJobPayload,
		},
		{
			name:    "missing required fields",
			job:     job.Job{Type: TypeEventReminder, Payload: json.RawMessage(`{"name":"Alice"}`)},
			wantErr: ErrInvalidJobPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePayload(tt.job)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
