package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eventify-trnc/eventify/internal/domain/event"
	"github.com/eventify-trnc/eventify/internal/domain/registration"
	"github.com/eventify-trnc/eventify/internal/ledger"
	"github.com/eventify-trnc/eventify/internal/repo/local"
	"github.com/google/uuid"
)

var testClock = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func newLedger(t *testing.T) (*ledger.Ledger, *local.Store) {
	t.Helper()

	store, err := local.Open("")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	return ledger.NewAtClock(store, func() time.Time { return testClock }), store
}

func putEvent(t *testing.T, store *local.Store, capacity int, date string) event.Event {
	t.Helper()

	ev := event.Event{
		ID:        uuid.NewString(),
		Title:     "Beach Cleanup",
		City:      "Kyrenia",
		Category:  event.CategoryEnvironment,
		Date:      date,
		Time:      "10:00",
		Location:  "Escape Beach",
		Capacity:  capacity,
		CreatedBy: uuid.NewString(),
	}
	if err := store.PutEvent(ev); err != nil {
		t.Fatalf("put event: %v", err)
	}
	return ev
}

func participants(n int) []registration.Participant {
	out := make([]registration.Participant, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, registration.Participant{
			Name:      "Guest",
			Email:     "guest" + uuid.NewString()[:8] + "@example.com",
			Phone:     "05331234567",
			Birthdate: "1990-01-01",
		})
	}
	return out
}

// Capacity 2 walk-through: 1 spot, then 1 more fills it, a third is
// rejected with the remaining count, and a cancellation reopens it.
func TestReserveCapacityWalkthrough(t *testing.T) {
	ctx := context.Background()
	l, store := newLedger(t)
	ev := putEvent(t, store, 2, "2025-07-01")

	first, err := l.Reserve(ctx, ev.ID, "alice", participants(1), "")
	if err != nil {
		t.Fatalf("first reserve: %v", err)
	}

	if _, err := l.Reserve(ctx, ev.ID, "bob", participants(1), ""); err != nil {
		t.Fatalf("second reserve: %v", err)
	}

	_, err = l.Reserve(ctx, ev.ID, "carol", participants(1), "")
	if !errors.Is(err, registration.ErrEventFull) {
		t.Fatalf("want ErrEventFull, got %v", err)
	}
	var capErr *registration.CapacityError
	if !errors.As(err, &capErr) {
		t.Fatalf("want CapacityError, got %T", err)
	}
	if capErr.Remaining != 0 {
		t.Fatalf("remaining = %d, want 0", capErr.Remaining)
	}

	if _, err := l.Cancel(ctx, first.ID, "alice", false); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if _, err := l.Reserve(ctx, ev.ID, "carol", participants(1), ""); err != nil {
		t.Fatalf("reserve after cancel: %v", err)
	}

	count, err := l.ActiveCountFor(ctx, ev.ID)
	if err != nil {
		t.Fatalf("active count: %v", err)
	}
	if count != 2 {
		t.Fatalf("active count = %d, want 2", count)
	}
}

func TestReserveGroupOverCapacity(t *testing.T) {
	ctx := context.Background()
	l, store := newLedger(t)
	ev := putEvent(t, store, 5, "2025-07-01")

	if _, err := l.Reserve(ctx, ev.ID, "alice", participants(3), ""); err != nil {
		t.Fatalf("group reserve: %v", err)
	}

	_, err := l.Reserve(ctx, ev.ID, "bob", participants(3), "")
	var capErr *registration.CapacityError
	if !errors.As(err, &capErr) {
		t.Fatalf("want CapacityError, got %v", err)
	}
	if capErr.Remaining != 2 {
		t.Fatalf("remaining = %d, want 2", capErr.Remaining)
	}

	// a group that exactly fits is fine
	if _, err := l.Reserve(ctx, ev.ID, "bob", participants(2), ""); err != nil {
		t.Fatalf("exact-fit reserve: %v", err)
	}
}

func TestReserveDuplicateRejected(t *testing.T) {
	ctx := context.Background()
	l, store := newLedger(t)
	ev := putEvent(t, store, 10, "2025-07-01")

	if _, err := l.Reserve(ctx, ev.ID, "alice", participants(1), ""); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	_, err := l.Reserve(ctx, ev.ID, "alice", participants(1), "")
	if !errors.Is(err, registration.ErrAlreadyRegistered) {
		t.Fatalf("want ErrAlreadyRegistered, got %v", err)
	}

	// user ids compare case-insensitively
	_, err = l.Reserve(ctx, ev.ID, "ALICE", participants(1), "")
	if !errors.Is(err, registration.ErrAlreadyRegistered) {
		t.Fatalf("want ErrAlreadyRegistered for case variant, got %v", err)
	}
}

func TestCancelThenReRegisterGetsNewID(t *testing.T) {
	ctx := context.Background()
	l, store := newLedger(t)
	ev := putEvent(t, store, 10, "2025-07-01")

	first, err := l.Reserve(ctx, ev.ID, "alice", participants(1), "")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	cancelled, err := l.Cancel(ctx, first.ID, "alice", false)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != registration.StatusCancelled {
		t.Fatalf("status = %q, want cancelled", cancelled.Status)
	}

	second, err := l.Reserve(ctx, ev.ID, "alice", participants(1), "")
	if err != nil {
		t.Fatalf("re-register: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("re-registration reused the old id")
	}
}

func TestCancelTwiceRejected(t *testing.T) {
	ctx := context.Background()
	l, store := newLedger(t)
	ev := putEvent(t, store, 10, "2025-07-01")

	reg, err := l.Reserve(ctx, ev.ID, "alice", participants(1), "")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if _, err := l.Cancel(ctx, reg.ID, "alice", false); err != nil {
		t.Fatalf("first cancel: %v", err)
	}

	_, err = l.Cancel(ctx, reg.ID, "alice", false)
	if !errors.Is(err, registration.ErrAlreadyCancelled) {
		t.Fatalf("want ErrAlreadyCancelled, got %v", err)
	}
}

func TestCancelOwnership(t *testing.T) {
	ctx := context.Background()
	l, store := newLedger(t)
	ev := putEvent(t, store, 10, "2025-07-01")

	reg, err := l.Reserve(ctx, ev.ID, "alice", participants(1), "")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if _, err := l.Cancel(ctx, reg.ID, "mallory", false); !errors.Is(err, registration.ErrNotOwner) {
		t.Fatalf("want ErrNotOwner, got %v", err)
	}

	// admin override
	if _, err := l.Cancel(ctx, reg.ID, "mallory", true); err != nil {
		t.Fatalf("admin cancel: %v", err)
	}
}

func TestReservePastEvent(t *testing.T) {
	ctx := context.Background()
	l, store := newLedger(t)
	past := putEvent(t, store, 10, "2025-06-14")
	today := putEvent(t, store, 10, "2025-06-15")

	_, err := l.Reserve(ctx, past.ID, "alice", participants(1), "")
	if !errors.Is(err, registration.ErrPastEvent) {
		t.Fatalf("want ErrPastEvent, got %v", err)
	}

	// same-day events still accept registrations
	if _, err := l.Reserve(ctx, today.ID, "alice", participants(1), ""); err != nil {
		t.Fatalf("same-day reserve: %v", err)
	}
}

func TestReserveUnknownEvent(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)

	_, err := l.Reserve(ctx, uuid.NewString(), "alice", participants(1), "")
	if !errors.Is(err, event.ErrNotFound) {
		t.Fatalf("want event.ErrNotFound, got %v", err)
	}
}

func TestReserveNoParticipants(t *testing.T) {
	ctx := context.Background()
	l, store := newLedger(t)
	ev := putEvent(t, store, 10, "2025-07-01")

	_, err := l.Reserve(ctx, ev.ID, "alice", nil, "")
	if !errors.Is(err, registration.ErrNoParticipants) {
		t.Fatalf("want ErrNoParticipants, got %v", err)
	}
}

func TestReserveInvalidParticipant(t *testing.T) {
	ctx := context.Background()
	l, store := newLedger(t)
	ev := putEvent(t, store, 10, "2025-07-01")

	ps := participants(1)
	ps[0].Birthdate = "2030-01-01" // future

	_, err := l.Reserve(ctx, ev.ID, "alice", ps, "")
	if !errors.Is(err, registration.ErrInvalidParticipant) {
		t.Fatalf("want ErrInvalidParticipant, got %v", err)
	}
}

// A replayed idempotency key returns the original registration without
// consuming capacity again.
func TestReserveIdempotencyReplay(t *testing.T) {
	ctx := context.Background()
	l, store := newLedger(t)
	ev := putEvent(t, store, 2, "2025-07-01")

	key := uuid.NewString()

	first, err := l.Reserve(ctx, ev.ID, "alice", participants(1), key)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	replayed, err := l.Reserve(ctx, ev.ID, "alice", participants(1), key)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if replayed.ID != first.ID {
		t.Fatalf("replay returned a different registration: %s vs %s", replayed.ID, first.ID)
	}

	count, err := l.ActiveCountFor(ctx, ev.ID)
	if err != nil {
		t.Fatalf("active count: %v", err)
	}
	if count != 1 {
		t.Fatalf("active count = %d, want 1", count)
	}
}
