package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/eventify-trnc/eventify/internal/domain/event"
	"github.com/eventify-trnc/eventify/internal/http/handlers"
	"github.com/eventify-trnc/eventify/internal/http/middlewares"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type fakeEventsService struct {
	listFn   func(ctx context.Context, filter event.ListFilter) ([]event.WithStats, error)
	getFn    func(ctx context.Context, id string) (event.WithStats, error)
	createFn func(ctx context.Context, req event.CreateEventRequest, createdBy string) (event.Event, error)
	updateFn func(ctx context.Context, id string, req event.UpdateEventRequest) (event.Event, error)
	deleteFn func(ctx context.Context, id string) error
}

func (f *fakeEventsService) List(ctx context.Context, filter event.ListFilter) ([]event.WithStats, error) {
	if f.listFn != nil {
		return f.listFn(ctx, filter)
	}
	return []event.WithStats{}, nil
}

func (f *fakeEventsService) Get(ctx context.Context, id string) (event.WithStats, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return event.WithStats{}, nil
}

func (f *fakeEventsService) Create(ctx context.Context, req event.CreateEventRequest, createdBy string) (event.Event, error) {
	if f.createFn != nil {
		return f.createFn(ctx, req, createdBy)
	}
	return event.Event{}, nil
}

func (f *fakeEventsService) Update(ctx context.Context, id string, req event.UpdateEventRequest) (event.Event, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, id, req)
	}
	return event.Event{}, nil
}

func (f *fakeEventsService) Delete(ctx context.Context, id string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return nil
}

func sampleEvent() event.Event {
	return event.Event{
		ID:       uuid.NewString(),
		Title:    "Beach Cleanup",
		City:     "Kyrenia",
		Category: event.CategoryEnvironment,
		Date:     "2099-07-01",
		Time:     "10:00",
		Location: "Escape Beach",
		Capacity: 50,
	}
}

const validCreateBody = `{
	"title": "Beach Cleanup",
	"description": "Monthly shoreline cleanup",
	"city": "Kyrenia",
	"category": "Environment",
	"date": "2099-07-01",
	"time": "10:00",
	"location": "Escape Beach",
	"capacity": 50
}`

func TestListEventsHandler(t *testing.T) {
	var gotFilter event.ListFilter

	svc := &fakeEventsService{
		listFn: func(_ context.Context, filter event.ListFilter) ([]event.WithStats, error) {
			gotFilter = filter
			ev := sampleEvent()
			return []event.WithStats{ev.Stats(10)}, nil
		},
	}
	h := handlers.NewEventsHandler(svc)

	r := gin.New()
	r.GET("/events", h.ListEvents)

	req := httptest.NewRequest(http.MethodGet, "/events?city=Kyrenia&category=Environment&search=beach", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", w.Code, w.Body.String())
	}

	if gotFilter.City == nil || *gotFilter.City != "Kyrenia" {
		t.Fatalf("city filter not forwarded: %+v", gotFilter)
	}
	if gotFilter.Search == nil || *gotFilter.Search != "beach" {
		t.Fatalf("search filter not forwarded: %+v", gotFilter)
	}
	if gotFilter.Upcoming {
		t.Fatal("upcoming filter should be off without the query param")
	}

	var resp struct {
		Items []struct {
			RegisteredCount int  `json:"registeredCount"`
			AvailableSpots  int  `json:"availableSpots"`
			IsFull          bool `json:"isFull"`
		} `json:"items"`
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Count != 1 || resp.Items[0].RegisteredCount != 10 || resp.Items[0].AvailableSpots != 40 {
		t.Fatalf("derived fields wrong: %s", w.Body.String())
	}
}

// The listing returns all events by default; upcoming is an opt-in
// restriction.
func TestListEventsUpcomingOptIn(t *testing.T) {
	tests := []struct {
		name         string
		query        string
		wantUpcoming bool
	}{
		{name: "no params lists everything", query: "", wantUpcoming: false},
		{name: "upcoming=true restricts", query: "?upcoming=true", wantUpcoming: true},
		{name: "upcoming=false lists everything", query: "?upcoming=false", wantUpcoming: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			var gotFilter event.ListFilter
			svc := &fakeEventsService{
				listFn: func(_ context.Context, filter event.ListFilter) ([]event.WithStats, error) {
					gotFilter = filter
					return []event.WithStats{}, nil
				},
			}
			h := handlers.NewEventsHandler(svc)

			r := gin.New()
			r.GET("/events", h.ListEvents)

			req := httptest.NewRequest(http.MethodGet, "/events"+tt.query, nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", w.Code)
			}
			if gotFilter.Upcoming != tt.wantUpcoming {
				t.Fatalf("Upcoming = %v, want %v", gotFilter.Upcoming, tt.wantUpcoming)
			}
		})
	}
}

func TestGetEventHandler(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		setup      func(*fakeEventsService)
		wantStatus int
	}{
		{
			name: "found",
			id:   uuid.NewString(),
			setup: func(f *fakeEventsService) {
				f.getFn = func(_ context.Context, id string) (event.WithStats, error) {
					ev := sampleEvent()
					ev.ID = id
					return ev.Stats(0), nil
				}
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "not found",
			id:   uuid.NewString(),
			setup: func(f *fakeEventsService) {
				f.getFn = func(context.Context, string) (event.WithStats, error) {
					return event.WithStats{}, event.ErrNotFound
				}
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "invalid id",
			id:         "not-a-uuid",
			setup:      func(*fakeEventsService) {},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeEventsService{}
			tt.setup(svc)

			h := handlers.NewEventsHandler(svc)

			r := gin.New()
			r.GET("/events/:id", h.GetEventByID)

			req := httptest.NewRequest(http.MethodGet, "/events/"+tt.id, nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body=%s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestCreateEventHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setup      func(*fakeEventsService)
		wantStatus int
	}{
		{
			name: "created",
			body: validCreateBody,
			setup: func(f *fakeEventsService) {
				f.createFn = func(_ context.Context, req event.CreateEventRequest, createdBy string) (event.Event, error) {
					return event.NewFromCreateRequest(req, createdBy), nil
				}
			},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "missing fields",
			body:       `{"title": ""}`,
			setup:      func(*fakeEventsService) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "bad category",
			body: `{
				"title": "Beach Cleanup",
				"description": "Monthly shoreline cleanup",
				"city": "Kyrenia",
				"category": "Gardening",
				"date": "2099-07-01",
				"time": "10:00",
				"location": "Escape Beach",
				"capacity": 50
			}`,
			setup:      func(*fakeEventsService) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "zero capacity",
			body: `{
				"title": "Beach Cleanup",
				"description": "Monthly shoreline cleanup",
				"city": "Kyrenia",
				"category": "Environment",
				"date": "2099-07-01",
				"time": "10:00",
				"location": "Escape Beach",
				"capacity": 0
			}`,
			setup:      func(*fakeEventsService) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "service error",
			body: validCreateBody,
			setup: func(f *fakeEventsService) {
				f.createFn = func(context.Context, event.CreateEventRequest, string) (event.Event, error) {
					return event.Event{}, errors.New("db error")
				}
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeEventsService{}
			tt.setup(svc)

			h := handlers.NewEventsHandler(svc)
			authMW := middlewares.NewAuthMiddleware(&fakeVerifier{claims: userClaims("admin-1")})

			r := gin.New()
			r.POST("/events", authMW.RequireAuth(), h.CreateEvent)

			req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer token")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body=%s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestUpdateEventHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		check      func(t *testing.T, req event.UpdateEventRequest)
	}{
		{
			name:       "partial patch accepted",
			body:       `{"capacity": 75}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, req event.UpdateEventRequest) {
				if req.Capacity == nil || *req.Capacity != 75 {
					t.Fatalf("capacity not forwarded: %+v", req)
				}
				if req.Title != nil || req.Date != nil {
					t.Fatalf("absent fields should stay nil: %+v", req)
				}
			},
		},
		{
			name:       "supplied field still validated",
			body:       `{"category": "Gardening"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad date rejected",
			body:       `{"date": "07/01/2099"}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			var gotReq event.UpdateEventRequest
			svc := &fakeEventsService{
				updateFn: func(_ context.Context, id string, req event.UpdateEventRequest) (event.Event, error) {
					gotReq = req
					return sampleEvent(), nil
				},
			}
			h := handlers.NewEventsHandler(svc)

			r := gin.New()
			r.PUT("/events/:id", h.UpdateEvent)

			req := httptest.NewRequest(http.MethodPut, "/events/"+uuid.NewString(), bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body=%s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.check != nil {
				tt.check(t, gotReq)
			}
		})
	}
}

func TestDeleteEventHandler(t *testing.T) {
	id := uuid.NewString()

	var deleted string
	svc := &fakeEventsService{
		deleteFn: func(_ context.Context, evID string) error {
			deleted = evID
			return nil
		},
	}
	h := handlers.NewEventsHandler(svc)

	r := gin.New()
	r.DELETE("/events/:id", h.DeleteEvent)

	req := httptest.NewRequest(http.MethodDelete, "/events/"+id, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204, body=%s", w.Code, w.Body.String())
	}
	if deleted != id {
		t.Fatalf("deleted id = %q, want %q", deleted, id)
	}
}
