package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/eventify-trnc/eventify/internal/domain/event"
	"github.com/eventify-trnc/eventify/internal/http/middlewares"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// EventsService is the slice of the events surface the handler consumes.
type EventsService interface {
	List(ctx context.Context, filter event.ListFilter) ([]event.WithStats, error)
	Get(ctx context.Context, id string) (event.WithStats, error)
	Create(ctx context.Context, req event.CreateEventRequest, createdBy string) (event.Event, error)
	Update(ctx context.Context, id string, req event.UpdateEventRequest) (event.Event, error)
	Delete(ctx context.Context, id string) error
}

type EventsHandler struct {
	svc EventsService
}

func NewEventsHandler(svc EventsService) *EventsHandler {
	return &EventsHandler{svc: svc}
}

func (h *EventsHandler) ListEvents(ctx *gin.Context) {
	filter := listFilterFromQuery(ctx)

	items, err := h.svc.List(ctx.Request.Context(), filter)
	if err != nil {
		RespondInternal(ctx, "Could not list events")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items": items,
		"count": len(items),
	})
}

func (h *EventsHandler) GetEventByID(ctx *gin.Context) {
	id := ctx.Param("id")
	if uuid.Validate(id) != nil {
		RespondBadRequest(ctx, "event id must be a valid UUID", nil)
		return
	}

	ev, err := h.svc.Get(ctx.Request.Context(), id)
	if err != nil {
		if errors.Is(err, event.ErrNotFound) {
			RespondNotFound(ctx, "Event not found")
			return
		}
		RespondInternal(ctx, "Could not fetch event")
		return
	}

	ctx.JSON(http.StatusOK, ev)
}

func (h *EventsHandler) CreateEvent(ctx *gin.Context) {
	var req event.CreateEventRequest
	if !BindJSON(ctx, &req) {
		return
	}

	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	ev, err := h.svc.Create(ctx.Request.Context(), req, userID)
	if err != nil {
		RespondInternal(ctx, "Could not create event")
		return
	}

	ctx.JSON(http.StatusCreated, ev)
}

func (h *EventsHandler) UpdateEvent(ctx *gin.Context) {
	id := ctx.Param("id")
	if uuid.Validate(id) != nil {
		RespondBadRequest(ctx, "event id must be a valid UUID", nil)
		return
	}

	var req event.UpdateEventRequest
	if !BindJSON(ctx, &req) {
		return
	}

	ev, err := h.svc.Update(ctx.Request.Context(), id, req)
	if err != nil {
		if errors.Is(err, event.ErrNotFound) {
			RespondNotFound(ctx, "Event not found")
			return
		}
		RespondInternal(ctx, "Could not update event")
		return
	}

	ctx.JSON(http.StatusOK, ev)
}

func (h *EventsHandler) DeleteEvent(ctx *gin.Context) {
	id := ctx.Param("id")
	if uuid.Validate(id) != nil {
		RespondBadRequest(ctx, "event id must be a valid UUID", nil)
		return
	}

	if err := h.svc.Delete(ctx.Request.Context(), id); err != nil {
		if errors.Is(err, event.ErrNotFound) {
			RespondNotFound(ctx, "Event not found")
			return
		}
		RespondInternal(ctx, "Could not delete event")
		return
	}

	ctx.Status(http.StatusNoContent)
}

func listFilterFromQuery(ctx *gin.Context) event.ListFilter {
	var filter event.ListFilter

	if v, ok := ctx.GetQuery("city"); ok && v != "" {
		filter.City = &v
	}
	if v, ok := ctx.GetQuery("category"); ok && v != "" {
		filter.Category = &v
	}
	if v, ok := ctx.GetQuery("date"); ok && v != "" {
		filter.Date = &v
	}
	if v, ok := ctx.GetQuery("search"); ok && v != "" {
		filter.Search = &v
	}

	// upcoming is opt-in; without it the listing includes past events
	filter.Upcoming = ctx.Query("upcoming") == "true"

	return filter
}
