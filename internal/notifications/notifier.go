package notifications

import "context"

type RegistrationConfirmationInput struct {
	Email          string
	Name           string
	EventTitle     string
	EventDate      string
	EventTime      string
	EventLocation  string
	RegistrationID string
}

type EventReminderInput struct {
	Email         string
	Name          string
	EventTitle    string
	EventDate     string
	EventTime     string
	EventLocation string
}

type Notifier interface {
	SendRegistrationConfirmation(ctx context.Context, input RegistrationConfirmationInput) error
	SendEventReminder(ctx context.Context, input EventReminderInput) error
}
