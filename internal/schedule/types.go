package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/moonseer/church-planner-core/internal/auth"
)

// Field limits, in characters.
const (
	maxTitleLength       = 200
	maxDescriptionLength = 4000
	maxLocationLength    = 200
)

// ErrEventNotFound is returned when an event does not exist.
var ErrEventNotFound = errors.New("event not found")

// Event is a scheduled service, rehearsal or meeting.
type Event struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// OwningTenantID implements auth.TenantScoped.
func (e *Event) OwningTenantID() string {
	return e.TenantID
}

// Validate checks field lengths and that the event ends after it starts.
// Errors wrap auth.ErrValidation.
func (e *Event) Validate() error {
	e.Title = strings.TrimSpace(e.Title)
	e.Location = strings.TrimSpace(e.Location)

	switch {
	case e.Title == "":
		return fmt.Errorf("%w: title is required", auth.ErrValidation)
	case utf8.RuneCountInString(e.Title) > maxTitleLength:
		return fmt.Errorf("%w: title must be at most %d characters", auth.ErrValidation, maxTitleLength)
	case utf8.RuneCountInString(e.Description) > maxDescriptionLength:
		return fmt.Errorf("%w: description must be at most %d characters", auth.ErrValidation, maxDescriptionLength)
	case utf8.RuneCountInString(e.Location) > maxLocationLength:
		return fmt.Errorf("%w: location must be at most %d characters", auth.ErrValidation, maxLocationLength)
	case e.StartsAt.IsZero() || e.EndsAt.IsZero():
		return fmt.Errorf("%w: starts_at and ends_at are required", auth.ErrValidation)
	case !e.EndsAt.After(e.StartsAt):
		return fmt.Errorf("%w: ends_at must be after starts_at", auth.ErrValidation)
	}
	return nil
}

// NewEvent is the input for creating an event. TenantID is honoured only
// for superadmins; everyone else creates in their own church.
type NewEvent struct {
	TenantID    string    `json:"tenant_id,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
}

// EventPatch is a partial update. Nil fields are left unchanged.
type EventPatch struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Location    *string    `json:"location,omitempty"`
	StartsAt    *time.Time `json:"starts_at,omitempty"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
}

// Apply copies the set fields of p onto e.
func (p EventPatch) Apply(e *Event) {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Location != nil {
		e.Location = *p.Location
	}
	if p.StartsAt != nil {
		e.StartsAt = *p.StartsAt
	}
	if p.EndsAt != nil {
		e.EndsAt = *p.EndsAt
	}
}

// Range restricts a listing to events overlapping [From, To). Zero bounds
// are open.
type Range struct {
	From time.Time
	To   time.Time
}
