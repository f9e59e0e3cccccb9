package notifications

import (
	"context"
	"errors"
	"testing"
	"time"
)

type flakyNotifier struct {
	err   error
	calls int
}

func (f *flakyNotifier) SendRegistrationConfirmation(context.Context, RegistrationConfirmationInput) error {
	f.calls++
	return f.err
}

func (f *flakyNotifier) SendEventReminder(context.Context, EventReminderInput) error {
	f.calls++
	return f.err
}

func TestCircuitOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &flakyNotifier{err: errors.New("relay down")}
	n := NewProtectedNotifier(inner, ProtectedNotifierConfig{
		FailureThreshold: 3,
		Cooldown:         time.Minute,
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := n.SendRegistrationConfirmation(ctx, RegistrationConfirmationInput{}); err == nil {
			t.Fatalf("call %d: want inner error", i)
		}
	}

	err := n.SendRegistrationConfirmation(ctx, RegistrationConfirmationInput{})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	if inner.calls != 3 {
		t.Fatalf("inner calls = %d, want 3 (open circuit must fail fast)", inner.calls)
	}
}

func TestCircuitRecoversThroughHalfOpen(t *testing.T) {
	inner := &flakyNotifier{err: errors.New("relay down")}
	n := NewProtectedNotifier(inner, ProtectedNotifierConfig{
		FailureThreshold: 1,
		Cooldown:         10 * time.Millisecond,
	})
	ctx := context.Background()

	if err := n.SendEventReminder(ctx, EventReminderInput{}); err == nil {
		t.Fatal("want inner error")
	}
	if err := n.SendEventReminder(ctx, EventReminderInput{}); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}

	// cooldown elapses, relay is healthy again: the trial call closes it
	time.Sleep(20 * time.Millisecond)
	inner.err = nil

	if err := n.SendEventReminder(ctx, EventReminderInput{}); err != nil {
		t.Fatalf("half-open trial: %v", err)
	}
	if err := n.SendEventReminder(ctx, EventReminderInput{}); err != nil {
		t.Fatalf("closed again: %v", err)
	}
}

func TestCircuitReopensOnHalfOpenFailure(t *testing.T) {
	inner := &flakyNotifier{err: errors.New("relay down")}
	n := NewProtectedNotifier(inner, ProtectedNotifierConfig{
		FailureThreshold: 1,
		Cooldown:         10 * time.Millisecond,
	})
	ctx := context.Background()

	if err := n.SendEventReminder(ctx, EventReminderInput{}); err == nil {
		t.Fatal("want inner error")
	}

	time.Sleep(20 * time.Millisecond)

	// trial still fails: back to open, next call fails fast
	if err := n.SendEventReminder(ctx, EventReminderInput{}); errors.Is(err, ErrCircuitOpen) || err == nil {
		t.Fatalf("trial call should reach the relay, got %v", err)
	}
	if err := n.SendEventReminder(ctx, EventReminderInput{}); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
}
