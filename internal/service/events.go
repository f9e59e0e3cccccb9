package service

import (
	"context"
	"fmt"
	"time"

	"github.com/eventify-trnc/eventify/internal/cache"
	"github.com/eventify-trnc/eventify/internal/domain/event"
)

// EventsRepository is the slice of storage the events service needs.
type EventsRepository interface {
	Create(ctx context.Context, req event.CreateEventRequest, createdBy string) (event.Event, error)
	GetByID(ctx context.Context, id string) (event.Event, error)
	GetWithStats(ctx context.Context, id string) (event.WithStats, error)
	List(ctx context.Context, filter event.ListFilter, today string) ([]event.WithStats, error)
	Update(ctx context.Context, id string, req event.UpdateEventRequest) (event.Event, error)
	Delete(ctx context.Context, id string) error
}

type EventsService struct {
	repo  EventsRepository
	cache *cache.Cache
	now   func() time.Time
}

func NewEventsService(repo EventsRepository, c *cache.Cache) *EventsService {
	return &EventsService{repo: repo, cache: c, now: time.Now}
}

func (s *EventsService) List(ctx context.Context, filter event.ListFilter) ([]event.WithStats, error) {
	today := event.Day(s.now())
	key := listCacheKey(filter, today)

	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			if items, ok := v.([]event.WithStats); ok {
				return items, nil
			}
		}
	}

	items, err := s.repo.List(ctx, filter, today)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Set(key, items)
	}
	return items, nil
}

func (s *EventsService) Get(ctx context.Context, id string) (event.WithStats, error) {
	return s.repo.GetWithStats(ctx, id)
}

func (s *EventsService) Create(ctx context.Context, req event.CreateEventRequest, createdBy string) (event.Event, error) {
	ev, err := s.repo.Create(ctx, req, createdBy)
	if err != nil {
		return event.Event{}, err
	}
	s.invalidate()
	return ev, nil
}

func (s *EventsService) Update(ctx context.Context, id string, req event.UpdateEventRequest) (event.Event, error) {
	ev, err := s.repo.Update(ctx, id, req)
	if err != nil {
		return event.Event{}, err
	}
	s.invalidate()
	return ev, nil
}

// Delete removes the event and all of its registrations.
func (s *EventsService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

func (s *EventsService) invalidate() {
	if s.cache != nil {
		s.cache.Clear()
	}
}

func listCacheKey(f event.ListFilter, today string) string {
	str := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}
	return fmt.Sprintf("events:list:%s|%s|%s|%s|%t|%s",
		str(f.City), str(f.Category), str(f.Date), str(f.Search), f.Upcoming, today)
}
