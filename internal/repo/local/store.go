// Package local is the file-backed ledger store used by the offline
// mirror: a snapshot of events plus the user's registrations,
// persisted as a single JSON document after every mutation.
// Consistency is
// best-effort and single-writer: one process, one store file.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/eventify-trnc/eventify/internal/domain/event"
	"github.com/eventify-trnc/eventify/internal/domain/registration"
	"github.com/eventify-trnc/eventify/internal/ledger"
)

type snapshot struct {
	Events        map[string]event.Event                 `json:"events"`
	Registrations map[string]registration.Registration   `json:"registrations"`
}

type Store struct {
	mu   sync.Mutex // guards data maps, lock table, and file writes
	path string     // empty = memory only

	events map[string]event.Event
	regs   map[string]registration.Registration

	eventLocks map[string]*sync.Mutex
}

// Open loads (or creates) a store at path. An empty path keeps
// everything in memory, which the tests use.
func Open(path string) (*Store, error) {
	s := &Store{
		path:       path,
		events:     make(map[string]event.Event),
		regs:       make(map[string]registration.Registration),
		eventLocks: make(map[string]*sync.Mutex),
	}

	if path == "" {
		return s, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, err
	}

	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}

	if snap.Events != nil {
		s.events = snap.Events
	}
	if snap.Registrations != nil {
		s.regs = snap.Registrations
	}

	return s, nil
}

// persist writes the whole snapshot out. Caller holds s.mu.
func (s *Store) persist() error {
	if s.path == "" {
		return nil
	}

	raw, err := json.MarshalIndent(snapshot{Events: s.events, Registrations: s.regs}, "", "  ")
	if err != nil {
		return err
	}

	// write-then-rename so a crash never leaves a torn file
	tmp := filepath.Join(filepath.Dir(s.path), "."+filepath.Base(s.path)+".tmp")
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) eventLock(eventID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.eventLocks[eventID]
	if !ok {
		l = &sync.Mutex{}
		s.eventLocks[eventID] = l
	}
	return l
}

// WithEventLock serializes reservations per event with an in-process
// mutex; there is no server arbitrating writers here.
func (s *Store) WithEventLock(ctx context.Context, eventID string, fn func(tx ledger.Tx, ev event.Event) error) error {
	l := s.eventLock(eventID)
	l.Lock()
	defer l.Unlock()

	s.mu.Lock()
	ev, ok := s.events[eventID]
	s.mu.Unlock()

	if !ok {
		return event.ErrNotFound
	}

	if err := fn(&tx{store: s}, ev); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist()
}

func (s *Store) WithRegistrationLock(ctx context.Context, registrationID string, fn func(tx ledger.Tx, reg registration.Registration) error) error {
	s.mu.Lock()
	reg, ok := s.regs[registrationID]
	s.mu.Unlock()

	if !ok {
		return registration.ErrNotFound
	}

	// take the owning event's lock so cancellations order with reserves
	l := s.eventLock(reg.EventID)
	l.Lock()
	defer l.Unlock()

	// re-read: the registration may have changed while we waited
	s.mu.Lock()
	reg, ok = s.regs[registrationID]
	s.mu.Unlock()
	if !ok {
		return registration.ErrNotFound
	}

	if err := fn(&tx{store: s}, reg); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist()
}

func (s *Store) ActiveParticipantCount(ctx context.Context, eventID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, r := range s.regs {
		if r.EventID == eventID && r.Status == registration.StatusActive {
			total += r.Slots()
		}
	}
	return total, nil
}

func (s *Store) HasActive(ctx context.Context, eventID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.regs {
		if r.EventID == eventID && r.Status == registration.StatusActive && r.BelongsTo(userID) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListForUser(ctx context.Context, userID string) ([]registration.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]registration.Registration, 0)
	for _, r := range s.regs {
		if r.Status == registration.StatusActive && r.BelongsTo(userID) {
			out = append(out, r)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].RegisteredAt.Before(out[j].RegisteredAt) })
	return out, nil
}

func (s *Store) ListForEvent(ctx context.Context, eventID string) ([]registration.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[eventID]; !ok {
		return nil, event.ErrNotFound
	}

	out := make([]registration.Registration, 0)
	for _, r := range s.regs {
		if r.EventID == eventID && r.Status == registration.StatusActive {
			out = append(out, r)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].RegisteredAt.Before(out[j].RegisteredAt) })
	return out, nil
}

// --- event snapshot (the mirror's copy of the listing) ---

func (s *Store) PutEvent(ev event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events[ev.ID] = ev
	return s.persist()
}

func (s *Store) GetEvent(id string) (event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.events[id]
	if !ok {
		return event.Event{}, event.ErrNotFound
	}
	return ev, nil
}

func (s *Store) Events() []event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]event.Event, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Time < out[j].Time
	})
	return out
}

// DeleteEvent removes an event and every registration referencing it;
// no orphan registrations may remain.
func (s *Store) DeleteEvent(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[id]; !ok {
		return event.ErrNotFound
	}

	delete(s.events, id)
	for rid, r := range s.regs {
		if r.EventID == id {
			delete(s.regs, rid)
		}
	}
	return s.persist()
}

// ReplaceEvents swaps the whole event snapshot for a fresh server copy,
// cascading away registrations whose event disappeared.
func (s *Store) ReplaceEvents(events []event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = make(map[string]event.Event, len(events))
	for _, ev := range events {
		s.events[ev.ID] = ev
	}
	for rid, r := range s.regs {
		if _, ok := s.events[r.EventID]; !ok {
			delete(s.regs, rid)
		}
	}
	return s.persist()
}

// ReplaceForUser overwrites the user's records with the server's
// authoritative set, matching owners case-insensitively.
func (s *Store) ReplaceForUser(userID string, regs []registration.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for rid, r := range s.regs {
		if r.BelongsTo(userID) {
			delete(s.regs, rid)
		}
	}
	for _, r := range regs {
		s.regs[r.ID] = r
	}
	return s.persist()
}

// --- ledger.Tx over the shared maps ---

type tx struct {
	store *Store
}

func (t *tx) ActiveParticipantCount(ctx context.Context, eventID string) (int, error) {
	return t.store.ActiveParticipantCount(ctx, eventID)
}

func (t *tx) HasActive(ctx context.Context, eventID, userID string) (bool, error) {
	return t.store.HasActive(ctx, eventID, userID)
}

func (t *tx) FindByIdempotencyKey(ctx context.Context, key string) (registration.Registration, bool, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	for _, r := range t.store.regs {
		if r.IdempotencyKey != "" && r.IdempotencyKey == key {
			return r, true, nil
		}
	}
	return registration.Registration{}, false, nil
}

func (t *tx) Insert(ctx context.Context, reg registration.Registration) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	t.store.regs[reg.ID] = reg
	return nil
}

func (t *tx) MarkCancelled(ctx context.Context, registrationID string, at time.Time) (registration.Registration, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	reg, ok := t.store.regs[registrationID]
	if !ok {
		return registration.Registration{}, registration.ErrNotFound
	}

	reg.Status = registration.StatusCancelled
	reg.UpdatedAt = at
	t.store.regs[registrationID] = reg
	return reg, nil
}
