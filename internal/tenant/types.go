package tenant

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/moonseer/church-planner-core/internal/auth"
)

// maxNameLength bounds a church's display name in characters.
const maxNameLength = 120

// DefaultTimezone is used when a church is created without one.
const DefaultTimezone = "UTC"

// ErrChurchNotFound is returned when a church does not exist.
var ErrChurchNotFound = errors.New("church not found")

// Church is a tenant.
type Church struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Timezone  string    `json:"timezone"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OwningTenantID implements auth.TenantScoped. A church owns itself.
func (c *Church) OwningTenantID() string {
	return c.ID
}

// NewChurch is the input for creating a church.
type NewChurch struct {
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
}

// Normalize trims the name and fills in the default timezone.
func (n *NewChurch) Normalize() {
	n.Name = strings.TrimSpace(n.Name)
	n.Timezone = strings.TrimSpace(n.Timezone)
	if n.Timezone == "" {
		n.Timezone = DefaultTimezone
	}
}

// Validate checks a normalized NewChurch. Errors wrap auth.ErrValidation.
func (n NewChurch) Validate() error {
	if n.Name == "" {
		return fmt.Errorf("%w: church name is required", auth.ErrValidation)
	}
	if utf8.RuneCountInString(n.Name) > maxNameLength {
		return fmt.Errorf("%w: church name must be at most %d characters", auth.ErrValidation, maxNameLength)
	}
	if _, err := time.LoadLocation(n.Timezone); err != nil {
		return fmt.Errorf("%w: unknown timezone %q", auth.ErrValidation, n.Timezone)
	}
	return nil
}
