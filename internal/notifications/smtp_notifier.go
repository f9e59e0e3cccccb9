package notifications

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	Username string
	Password string
}

// SMTPNotifier delivers plain-text mail over authenticated SMTP.
type SMTPNotifier struct {
	cfg SMTPConfig
}

func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg}
}

func (n *SMTPNotifier) SendRegistrationConfirmation(ctx context.Context, in RegistrationConfirmationInput) error {
	subject := "Registration confirmed: " + in.EventTitle
	body := fmt.Sprintf(
		"Hello %s,\n\nYour registration for %s on %s at %s (%s) is confirmed.\n\nRegistration reference: %s\n",
		in.Name, in.EventTitle, in.EventDate, in.EventTime, in.EventLocation, in.RegistrationID,
	)
	return n.send(ctx, in.Email, subject, body)
}

func (n *SMTPNotifier) SendEventReminder(ctx context.Context, in EventReminderInput) error {
	subject := "Reminder: " + in.EventTitle + " is tomorrow"
	body := fmt.Sprintf(
		"Hello %s,\n\nThis is a reminder that %s takes place on %s at %s, %s.\n\nSee you there!\n",
		in.Name, in.EventTitle, in.EventDate, in.EventTime, in.EventLocation,
	)
	return n.send(ctx, in.Email, subject, body)
}

func (n *SMTPNotifier) send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := strings.Join([]string{
		"From: " + n.cfg.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"utf-8\"",
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)

	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}

	return smtp.SendMail(addr, auth, n.cfg.From, []string{to}, []byte(msg))
}
