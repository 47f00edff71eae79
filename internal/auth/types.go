package auth

import (
	"errors"
	"fmt"
	"net/mail"
	"slices"
	"strings"
	"time"
)

// Role represents an authorisation tier in the system.
type Role string

const (
	// RoleUser is a church member. Reads schedules of their own church.
	RoleUser Role = "user"

	// RoleAdmin manages their church: events, member roles, unlocks and
	// the audit trail. Scoped to a single tenant.
	RoleAdmin Role = "admin"

	// RoleSuperAdmin operates the platform. Bypasses tenant scoping and is
	// the only role that can move accounts between churches.
	RoleSuperAdmin Role = "superadmin"
)

// ValidRoles is the set of assignable roles.
var ValidRoles = []Role{RoleUser, RoleAdmin, RoleSuperAdmin}

// IsValidRole returns true if r is one of ValidRoles.
func IsValidRole(r Role) bool {
	return slices.Contains(ValidRoles, r)
}

// maxEmailLength follows the RFC 5321 path limit.
const maxEmailLength = 254

// NormalizeEmail lower-cases and trims an email address. Emails are the
// login key and compare case-insensitively.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks that email is a bare address (no display name).
func ValidateEmail(email string) error {
	if email == "" || len(email) > maxEmailLength {
		return fmt.Errorf("%w: email is required and must be at most %d characters", ErrValidation, maxEmailLength)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return fmt.Errorf("%w: email address is not valid", ErrValidation)
	}
	return nil
}

// Account is an identity record. The secret hash is populated only when a
// lookup explicitly asks for it.
type Account struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	Name           string     `json:"name,omitempty"`
	SecretHash     string     `json:"-"` // never serialised
	Role           Role       `json:"role"`
	TenantID       string     `json:"tenant_id,omitempty"`
	FailedAttempts int        `json:"-"`
	LockedUntil    *time.Time `json:"locked_until,omitempty"`
	IsActive       bool       `json:"is_active"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// OwningTenantID implements TenantScoped.
func (a *Account) OwningTenantID() string {
	return a.TenantID
}

// LockState returns the persisted lockout counters as a state machine value.
func (a *Account) LockState() LockState {
	s := LockState{FailedAttempts: a.FailedAttempts}
	if a.LockedUntil != nil {
		s.LockedUntil = *a.LockedUntil
	}
	return s
}

// Identity returns the request identity derived from this account.
func (a *Account) Identity() Identity {
	return Identity{AccountID: a.ID, Role: a.Role, TenantID: a.TenantID}
}

// NewAccount is the input to CredentialStore.Create. Password is plaintext
// and is hashed by the store after passing the password policy.
type NewAccount struct {
	Email    string
	Password string //nolint:gosec // plaintext input, never persisted
	Name     string
	Role     Role
	TenantID string
}

// Sentinel errors for auth operations. The HTTP layer classifies errors
// with errors.Is against this set.
var (
	ErrValidation           = errors.New("validation failed")
	ErrUnauthenticated      = errors.New("unauthenticated")
	ErrInvalidCredentials   = fmt.Errorf("%w: invalid credentials", ErrUnauthenticated)
	ErrTokenInvalid         = fmt.Errorf("%w: invalid token", ErrUnauthenticated)
	ErrTokenExpired         = fmt.Errorf("%w: token has expired", ErrUnauthenticated)
	ErrNoToken              = fmt.Errorf("%w: no token presented", ErrUnauthenticated)
	ErrMalformedToken       = fmt.Errorf("%w: malformed credential", ErrUnauthenticated)
	ErrForbidden            = errors.New("insufficient permissions")
	ErrAccountDisabled      = fmt.Errorf("%w: account is disabled", ErrForbidden)
	ErrTenantMismatch       = fmt.Errorf("%w: resource belongs to another tenant", ErrForbidden)
	ErrAccountNotFound      = errors.New("account not found")
	ErrDuplicateEmail       = errors.New("email already registered")
	ErrRateLimited          = errors.New("too many attempts")
	ErrMissingSigningSecret = errors.New("token signing secret is not configured")
	ErrInvalidRole          = fmt.Errorf("%w: unknown role", ErrValidation)
	ErrAlreadyInTenant      = errors.New("account already belongs to a church")
)

// LockedError reports a login refused because the account is locked.
// It wraps ErrRateLimited.
type LockedError struct {
	Until     time.Time
	Remaining time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked for %s", e.Remaining.Round(time.Second))
}

func (e *LockedError) Unwrap() error {
	return ErrRateLimited
}
