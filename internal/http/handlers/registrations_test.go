package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/eventify-trnc/eventify/internal/auth"
	"github.com/eventify-trnc/eventify/internal/domain/event"
	"github.com/eventify-trnc/eventify/internal/domain/registration"
	"github.com/eventify-trnc/eventify/internal/http/handlers"
	"github.com/eventify-trnc/eventify/internal/http/middlewares"
	"github.com/eventify-trnc/eventify/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeVerifier satisfies middlewares.TokenVerifier so tests can mint an
// identity without real JWTs.
type fakeVerifier struct {
	claims *auth.Claims
	err    error
}

func (f *fakeVerifier) VerifyAccessToken(string) (*auth.Claims, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.claims, nil
}

type fakeRegistrationsService struct {
	registerFn func(ctx context.Context, eventID, userID string, participants []registration.Participant, idempotencyKey string) (registration.Registration, error)
	cancelFn   func(ctx context.Context, registrationID, userID string, asAdmin bool) (registration.Registration, error)
	mineFn     func(ctx context.Context, userID string) ([]service.RegistrationWithEvent, error)
	forEventFn func(ctx context.Context, eventID string) ([]registration.Registration, error)
}

func (f *fakeRegistrationsService) Register(ctx context.Context, eventID, userID string, participants []registration.Participant, idempotencyKey string) (registration.Registration, error) {
	if f.registerFn != nil {
		return f.registerFn(ctx, eventID, userID, participants, idempotencyKey)
	}
	return registration.Registration{}, nil
}

func (f *fakeRegistrationsService) Cancel(ctx context.Context, registrationID, userID string, asAdmin bool) (registration.Registration, error) {
	if f.cancelFn != nil {
		return f.cancelFn(ctx, registrationID, userID, asAdmin)
	}
	return registration.Registration{}, nil
}

func (f *fakeRegistrationsService) MyRegistrations(ctx context.Context, userID string) ([]service.RegistrationWithEvent, error) {
	if f.mineFn != nil {
		return f.mineFn(ctx, userID)
	}
	return nil, nil
}

func (f *fakeRegistrationsService) ForEvent(ctx context.Context, eventID string) ([]registration.Registration, error) {
	if f.forEventFn != nil {
		return f.forEventFn(ctx, eventID)
	}
	return nil, nil
}

func userClaims(userID string) *auth.Claims {
	return &auth.Claims{UserID: userID, Email: "alice@example.com", Role: "user"}
}

func registerBody(eventID string) string {
	return `{"eventId":"` + eventID + `"}`
}

func TestRegisterHandler(t *testing.T) {
	eventID := uuid.NewString()

	tests := []struct {
		name       string
		body       string
		setup      func(*fakeRegistrationsService)
		wantStatus int
		wantCode   string
	}{
		{
			name: "created",
			body: registerBody(eventID),
			setup: func(f *fakeRegistrationsService) {
				f.registerFn = func(ctx context.Context, evID, userID string, _ []registration.Participant, _ string) (registration.Registration, error) {
					return registration.New(evID, userID, []registration.Participant{{
						Name: "Alice", Email: "alice@example.com", Birthdate: "1990-01-01",
					}}, ""), nil
				}
			},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "missing event id",
			body:       `{}`,
			setup:      func(*fakeRegistrationsService) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "event not found",
			body: registerBody(eventID),
			setup: func(f *fakeRegistrationsService) {
				f.registerFn = func(context.Context, string, string, []registration.Participant, string) (registration.Registration, error) {
					return registration.Registration{}, event.ErrNotFound
				}
			},
			wantStatus: http.StatusNotFound,
			wantCode:   "not_found",
		},
		{
			name: "past event",
			body: registerBody(eventID),
			setup: func(f *fakeRegistrationsService) {
				f.registerFn = func(context.Context, string, string, []registration.Participant, string) (registration.Registration, error) {
					return registration.Registration{}, registration.ErrPastEvent
				}
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "duplicate",
			body: registerBody(eventID),
			setup: func(f *fakeRegistrationsService) {
				f.registerFn = func(context.Context, string, string, []registration.Participant, string) (registration.Registration, error) {
					return registration.Registration{}, registration.ErrAlreadyRegistered
				}
			},
			wantStatus: http.StatusConflict,
			wantCode:   "already_registered",
		},
		{
			name: "capacity exceeded carries remaining spots",
			body: registerBody(eventID),
			setup: func(f *fakeRegistrationsService) {
				f.registerFn = func(context.Context, string, string, []registration.Participant, string) (registration.Registration, error) {
					return registration.Registration{}, &registration.CapacityError{Remaining: 3}
				}
			},
			wantStatus: http.StatusConflict,
			wantCode:   "event_full",
		},
		{
			name: "internal error",
			body: registerBody(eventID),
			setup: func(f *fakeRegistrationsService) {
				f.registerFn = func(context.Context, string, string, []registration.Participant, string) (registration.Registration, error) {
					return registration.Registration{}, errors.New("boom")
				}
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeRegistrationsService{}
			tt.setup(svc)

			h := handlers.NewRegistrationsHandler(svc)
			authMW := middlewares.NewAuthMiddleware(&fakeVerifier{claims: userClaims("user-1")})

			r := gin.New()
			r.POST("/registrations", authMW.RequireAuth(), h.Register)

			req := httptest.NewRequest(http.MethodPost, "/registrations", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer token")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body=%s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantCode != "" && !strings.Contains(w.Body.String(), tt.wantCode) {
				t.Fatalf("body missing code %q: %s", tt.wantCode, w.Body.String())
			}
		})
	}
}

func TestRegisterCapacityMessage(t *testing.T) {
	eventID := uuid.NewString()

	svc := &fakeRegistrationsService{
		registerFn: func(context.Context, string, string, []registration.Participant, string) (registration.Registration, error) {
			return registration.Registration{}, &registration.CapacityError{Remaining: 2}
		},
	}
	h := handlers.NewRegistrationsHandler(svc)
	authMW := middlewares.NewAuthMiddleware(&fakeVerifier{claims: userClaims("user-1")})

	r := gin.New()
	r.POST("/registrations", authMW.RequireAuth(), h.Register)

	req := httptest.NewRequest(http.MethodPost, "/registrations", bytes.NewBufferString(registerBody(eventID)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	if !strings.Contains(w.Body.String(), "only 2 spots available") {
		t.Fatalf("message should carry remaining spots: %s", w.Body.String())
	}
}

func TestRegisterForwardsIdempotencyKey(t *testing.T) {
	eventID := uuid.NewString()

	var gotKey string
	svc := &fakeRegistrationsService{
		registerFn: func(_ context.Context, evID, userID string, _ []registration.Participant, key string) (registration.Registration, error) {
			gotKey = key
			return registration.New(evID, userID, nil, key), nil
		},
	}
	h := handlers.NewRegistrationsHandler(svc)
	authMW := middlewares.NewAuthMiddleware(&fakeVerifier{claims: userClaims("user-1")})

	r := gin.New()
	r.POST("/registrations", authMW.RequireAuth(), h.Register)

	req := httptest.NewRequest(http.MethodPost, "/registrations", bytes.NewBufferString(registerBody(eventID)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer token")
	req.Header.Set("Idempotency-Key", "client-key-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body=%s", w.Code, w.Body.String())
	}
	if gotKey != "client-key-1" {
		t.Fatalf("idempotency key = %q, want client-key-1", gotKey)
	}
}

func TestRegisterRequiresAuth(t *testing.T) {
	h := handlers.NewRegistrationsHandler(&fakeRegistrationsService{})
	authMW := middlewares.NewAuthMiddleware(&fakeVerifier{err: errors.New("bad token")})

	r := gin.New()
	r.POST("/registrations", authMW.RequireAuth(), h.Register)

	req := httptest.NewRequest(http.MethodPost, "/registrations", bytes.NewBufferString(registerBody(uuid.NewString())))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestCancelHandler(t *testing.T) {
	regID := uuid.NewString()

	tests := []struct {
		name       string
		setup      func(*fakeRegistrationsService)
		wantStatus int
		wantCode   string
	}{
		{
			name: "ok",
			setup: func(f *fakeRegistrationsService) {
				f.cancelFn = func(_ context.Context, id, userID string, _ bool) (registration.Registration, error) {
					return registration.Registration{ID: id, UserID: userID, Status: registration.StatusCancelled}, nil
				}
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "not found",
			setup: func(f *fakeRegistrationsService) {
				f.cancelFn = func(context.Context, string, string, bool) (registration.Registration, error) {
					return registration.Registration{}, registration.ErrNotFound
				}
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name: "not owner",
			setup: func(f *fakeRegistrationsService) {
				f.cancelFn = func(context.Context, string, string, bool) (registration.Registration, error) {
					return registration.Registration{}, registration.ErrNotOwner
				}
			},
			wantStatus: http.StatusForbidden,
		},
		{
			name: "already cancelled",
			setup: func(f *fakeRegistrationsService) {
				f.cancelFn = func(context.Context, string, string, bool) (registration.Registration, error) {
					return registration.Registration{}, registration.ErrAlreadyCancelled
				}
			},
			wantStatus: http.StatusConflict,
			wantCode:   "already_cancelled",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeRegistrationsService{}
			tt.setup(svc)

			h := handlers.NewRegistrationsHandler(svc)
			authMW := middlewares.NewAuthMiddleware(&fakeVerifier{claims: userClaims("user-1")})

			r := gin.New()
			r.PUT("/registrations/:id/cancel", authMW.RequireAuth(), h.Cancel)

			req := httptest.NewRequest(http.MethodPut, "/registrations/"+regID+"/cancel", nil)
			req.Header.Set("Authorization", "Bearer token")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body=%s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantCode != "" && !strings.Contains(w.Body.String(), tt.wantCode) {
				t.Fatalf("body missing code %q: %s", tt.wantCode, w.Body.String())
			}
		})
	}
}

// Admin cancel passes asAdmin through so the service can skip the
// ownership check.
func TestCancelAsAdmin(t *testing.T) {
	regID := uuid.NewString()

	var gotAsAdmin bool
	svc := &fakeRegistrationsService{
		cancelFn: func(_ context.Context, id, userID string, asAdmin bool) (registration.Registration, error) {
			gotAsAdmin = asAdmin
			return registration.Registration{ID: id, Status: registration.StatusCancelled}, nil
		},
	}
	h := handlers.NewRegistrationsHandler(svc)
	authMW := middlewares.NewAuthMiddleware(&fakeVerifier{
		claims: &auth.Claims{UserID: "admin-1", Email: "admin@example.com", Role: "admin"},
	})

	r := gin.New()
	r.PUT("/registrations/:id/cancel", authMW.RequireAuth(), h.Cancel)

	req := httptest.NewRequest(http.MethodPut, "/registrations/"+regID+"/cancel", nil)
	req.Header.Set("Authorization", "Bearer token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", w.Code, w.Body.String())
	}
	if !gotAsAdmin {
		t.Fatal("asAdmin not propagated for admin caller")
	}
}

func TestMyRegistrationsHandler(t *testing.T) {
	evID := uuid.NewString()

	svc := &fakeRegistrationsService{
		mineFn: func(_ context.Context, userID string) ([]service.RegistrationWithEvent, error) {
			return []service.RegistrationWithEvent{{
				Registration: registration.Registration{ID: uuid.NewString(), EventID: evID, UserID: userID, Status: registration.StatusActive},
				Event:        event.Event{ID: evID, Title: "Jazz Night"},
			}}, nil
		},
	}
	h := handlers.NewRegistrationsHandler(svc)
	authMW := middlewares.NewAuthMiddleware(&fakeVerifier{claims: userClaims("user-1")})

	r := gin.New()
	r.GET("/registrations", authMW.RequireAuth(), h.MyRegistrations)

	req := httptest.NewRequest(http.MethodGet, "/registrations", nil)
	req.Header.Set("Authorization", "Bearer token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		Items []struct {
			Event struct {
				Title string `json:"title"`
			} `json:"event"`
		} `json:"items"`
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Count != 1 || len(resp.Items) != 1 || resp.Items[0].Event.Title != "Jazz Night" {
		t.Fatalf("unexpected response: %s", w.Body.String())
	}
}
