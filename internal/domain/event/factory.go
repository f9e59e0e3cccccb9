package event

import (
	"time"

	"github.com/google/uuid"
)

func NewFromCreateRequest(req CreateEventRequest, createdBy string) Event {
	now := time.Now().UTC()

	return Event{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		City:        req.City,
		Category:    req.Category,
		Date:        req.Date,
		Time:        req.Time,
		Location:    req.Location,
		Capacity:    req.Capacity,
		ImageURL:    req.ImageURL,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// ApplyUpdate returns a copy of e with the patch applied. Nil fields
// keep their stored value; the id and creation metadata never change.
func (e Event) ApplyUpdate(req UpdateEventRequest) Event {
	if req.Title != nil {
		e.Title = *req.Title
	}
	if req.Description != nil {
		e.Description = *req.Description
	}
	if req.City != nil {
		e.City = *req.City
	}
	if req.Category != nil {
		e.Category = *req.Category
	}
	if req.Date != nil {
		e.Date = *req.Date
	}
	if req.Time != nil {
		e.Time = *req.Time
	}
	if req.Location != nil {
		e.Location = *req.Location
	}
	if req.Capacity != nil {
		e.Capacity = *req.Capacity
	}
	if req.ImageURL != nil {
		e.ImageURL = *req.ImageURL
	}
	e.UpdatedAt = time.Now().UTC()
	return e
}
