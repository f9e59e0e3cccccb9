package registration

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// New builds an active registration. Participant emails are lowercased
// on the way in; the offline mirror relies on that for merging.
func New(eventID, userID string, participants []Participant, idempotencyKey string) Registration {
	now := time.Now().UTC()

	parts := make([]Participant, len(participants))
	for i, p := range participants {
		p.Email = strings.ToLower(strings.TrimSpace(p.Email))
		parts[i] = p
	}

	return Registration{
		ID:             uuid.NewString(),
		EventID:        eventID,
		UserID:         userID,
		Participants:   parts,
		Status:         StatusActive,
		IdempotencyKey: idempotencyKey,
		RegisteredAt:   now,
		UpdatedAt:      now,
	}
}
