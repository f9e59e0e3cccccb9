package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/eventify-trnc/eventify/internal/domain/event"
	"github.com/eventify-trnc/eventify/internal/domain/registration"
	"github.com/eventify-trnc/eventify/internal/http/middlewares"
	"github.com/eventify-trnc/eventify/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type RegistrationsService interface {
	Register(ctx context.Context, eventID, userID string, participants []registration.Participant, idempotencyKey string) (registration.Registration, error)
	Cancel(ctx context.Context, registrationID, userID string, asAdmin bool) (registration.Registration, error)
	MyRegistrations(ctx context.Context, userID string) ([]service.RegistrationWithEvent, error)
	ForEvent(ctx context.Context, eventID string) ([]registration.Registration, error)
}

type RegistrationsHandler struct {
	svc RegistrationsService
}

func NewRegistrationsHandler(svc RegistrationsService) *RegistrationsHandler {
	return &RegistrationsHandler{svc: svc}
}

func (h *RegistrationsHandler) Register(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	var req registration.CreateRegistrationRequest
	if !BindJSON(ctx, &req) {
		return
	}
	if uuid.Validate(req.EventID) != nil {
		RespondBadRequest(ctx, "eventId must be a valid UUID", nil)
		return
	}

	idemKey := strings.TrimSpace(ctx.GetHeader("Idempotency-Key"))

	reg, err := h.svc.Register(ctx.Request.Context(), req.EventID, userID, req.Participants, idemKey)
	if err != nil {
		h.respondReserveError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, reg)
}

func (h *RegistrationsHandler) respondReserveError(ctx *gin.Context, err error) {
	var capErr *registration.CapacityError

	switch {
	case errors.Is(err, event.ErrNotFound):
		RespondNotFound(ctx, "Event not found")
	case errors.Is(err, registration.ErrPastEvent):
		RespondBadRequest(ctx, "This event has already taken place", nil)
	case errors.Is(err, registration.ErrAlreadyRegistered):
		RespondConflict(ctx, "already_registered", "You already have an active registration for this event")
	case errors.As(err, &capErr):
		RespondConflict(ctx, "event_full", capErr.Error())
	case errors.Is(err, registration.ErrEventFull):
		RespondConflict(ctx, "event_full", "This event is already at full capacity")
	case errors.Is(err, registration.ErrNoParticipants):
		RespondBadRequest(ctx, "At least one participant is required", nil)
	case errors.Is(err, registration.ErrInvalidParticipant):
		RespondBadRequest(ctx, err.Error(), nil)
	default:
		RespondInternal(ctx, "Could not register for event")
	}
}

func (h *RegistrationsHandler) Cancel(ctx *gin.Context) {
	registrationID := ctx.Param("id")
	if uuid.Validate(registrationID) != nil {
		RespondBadRequest(ctx, "registration id must be a valid UUID", nil)
		return
	}

	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	role, _ := middlewares.RoleFromContext(ctx)
	asAdmin := role == "admin"

	reg, err := h.svc.Cancel(ctx.Request.Context(), registrationID, userID, asAdmin)
	if err != nil {
		switch {
		case errors.Is(err, registration.ErrNotFound):
			RespondNotFound(ctx, "Registration not found")
		case errors.Is(err, registration.ErrNotOwner):
			RespondForbidden(ctx, "You can only cancel your own registrations")
		case errors.Is(err, registration.ErrAlreadyCancelled):
			RespondConflict(ctx, "already_cancelled", "This registration was already cancelled")
		default:
			RespondInternal(ctx, "Could not cancel registration")
		}
		return
	}

	ctx.JSON(http.StatusOK, reg)
}

func (h *RegistrationsHandler) MyRegistrations(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	items, err := h.svc.MyRegistrations(ctx.Request.Context(), userID)
	if err != nil {
		RespondInternal(ctx, "Could not list registrations")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items": items,
		"count": len(items),
	})
}

// ListForEvent powers the admin attendance view.
func (h *RegistrationsHandler) ListForEvent(ctx *gin.Context) {
	eventID := ctx.Param("eventId")
	if uuid.Validate(eventID) != nil {
		RespondBadRequest(ctx, "event id must be a valid UUID", nil)
		return
	}

	regs, err := h.svc.ForEvent(ctx.Request.Context(), eventID)
	if err != nil {
		if errors.Is(err, event.ErrNotFound) {
			RespondNotFound(ctx, "Event not found")
			return
		}
		RespondInternal(ctx, "Could not list registrations")
		return
	}

	spots := 0
	for _, reg := range regs {
		if reg.Status == registration.StatusActive {
			spots += reg.Slots()
		}
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items":           regs,
		"count":           len(regs),
		"registeredCount": spots,
	})
}
