package notifications

import (
	"context"
	"log/slog"
)

// LogNotifier is the dev-mode delivery path: it writes what would have
// been emailed to the log, the way the original printed emails to the
// console when no SMTP host was configured.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) SendRegistrationConfirmation(ctx context.Context, in RegistrationConfirmationInput) error {
	n.log.InfoContext(ctx, "notification.registration_confirmation",
		"email", in.Email,
		"name", in.Name,
		"event", in.EventTitle,
		"date", in.EventDate,
		"registration_id", in.RegistrationID,
	)
	return nil
}

func (n *LogNotifier) SendEventReminder(ctx context.Context, in EventReminderInput) error {
	n.log.InfoContext(ctx, "notification.event_reminder",
		"email", in.Email,
		"name", in.Name,
		"event", in.EventTitle,
		"date", in.EventDate,
		"time", in.EventTime,
	)
	return nil
}
