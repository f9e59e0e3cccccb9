package event

import (
	"errors"
	"time"
)

// Calendar fields are stored as zero-padded strings so that
// (date, time) ordering is plain lexicographic ordering.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

type Category string

const (
	CategorySports      Category = "Sports"
	CategoryCulture     Category = "Culture"
	CategoryEducation   Category = "Education"
	CategoryEnvironment Category = "Environment"
	CategoryMusic       Category = "Music & Entertainment"
)

func (c Category) IsValid() bool {
	switch c {
	case CategorySports, CategoryCulture, CategoryEducation, CategoryEnvironment, CategoryMusic:
		return true
	default:
		return false
	}
}

type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	City        string    `json:"city"`
	Category    Category  `json:"category"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	Location    string    `json:"location"`
	Capacity    int       `json:"capacity"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	CreatedBy   string    `json:"createdBy,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// WithStats is the read shape callers see: the event plus its live
// occupancy, derived from active registrations only.
type WithStats struct {
	Event
	RegisteredCount int  `json:"registeredCount"`
	AvailableSpots  int  `json:"availableSpots"`
	IsFull          bool `json:"isFull"`
}

func (e Event) Stats(registered int) WithStats {
	return WithStats{
		Event:           e,
		RegisteredCount: registered,
		AvailableSpots:  e.Capacity - registered,
		IsFull:          registered >= e.Capacity,
	}
}

// StartsBefore reports whether the event's calendar date is strictly
// before the given day (a DateLayout string).
func (e Event) StartsBefore(day string) bool {
	return e.Date < day
}

// StartAt combines the date and time fields into a wall-clock instant.
func (e Event) StartAt() (time.Time, error) {
	return time.Parse(DateLayout+" "+TimeLayout, e.Date+" "+e.Time)
}

// Day formats an instant into the canonical date string used for
// upcoming/past comparisons.
func Day(t time.Time) string {
	return t.Format(DateLayout)
}

// ListFilter holds optional AND conditions; nil means "don't filter".
type ListFilter struct {
	City     *string
	Category *string
	Date     *string
	Search   *string
	Upcoming bool
}

var ErrNotFound = errors.New("event not found")

type CreateEventRequest struct {
	Title       string   `json:"title" binding:"required,min=3,max=200"`
	Description string   `json:"description" binding:"required,max=2000"`
	City        string   `json:"city" binding:"required,min=2,max=80"`
	Category    Category `json:"category" binding:"required,oneof='Sports' 'Culture' 'Education' 'Environment' 'Music & Entertainment'"`
	Date        string   `json:"date" binding:"required,datetime=2006-01-02"`
	Time        string   `json:"time" binding:"required,datetime=15:04"`
	Location    string   `json:"location" binding:"required,max=200"`
	Capacity    int      `json:"capacity" binding:"required,min=1,max=50000"`
	ImageURL    string   `json:"imageUrl" binding:"omitempty,url"`
}

// Partial patch; absent fields keep their stored value and only the
// supplied ones are re-validated.
type UpdateEventRequest struct {
	Title       *string   `json:"title" binding:"omitempty,min=3,max=200"`
	Description *string   `json:"description" binding:"omitempty,max=2000"`
	City        *string   `json:"city" binding:"omitempty,min=2,max=80"`
	Category    *Category `json:"category" binding:"omitempty,oneof='Sports' 'Culture' 'Education' 'Environment' 'Music & Entertainment'"`
	Date        *string   `json:"date" binding:"omitempty,datetime=2006-01-02"`
	Time        *string   `json:"time" binding:"omitempty,datetime=15:04"`
	Location    *string   `json:"location" binding:"omitempty,max=200"`
	Capacity    *int      `json:"capacity" binding:"omitempty,min=1,max=50000"`
	ImageURL    *string   `json:"imageUrl" binding:"omitempty,url"`
}
