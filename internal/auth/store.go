package auth

import "context"

// CredentialStore persists accounts, their secret hashes and lockout
// counters. It is the single source of truth for an account's live role,
// tenant and lock state.
//
// Implementations hash plaintext themselves: no method accepts a
// precomputed hash.
type CredentialStore interface {
	// FindByEmail looks up an account by login email. The secret hash is
	// populated only when includeSecret is true.
	FindByEmail(ctx context.Context, email string, includeSecret bool) (*Account, error)

	// FindByID looks up an account by ID. The secret hash is never populated.
	FindByID(ctx context.Context, id string) (*Account, error)

	// Create validates and hashes the password, then persists the account.
	Create(ctx context.Context, in NewAccount) (*Account, error)

	// UpdateSecret re-hashes a new password and clears the lockout state.
	UpdateSecret(ctx context.Context, id, newPlaintext string) error

	// UpgradeSecretHash re-hashes an already verified password with the
	// current hasher parameters. Counters are left untouched.
	UpgradeSecretHash(ctx context.Context, id, plaintext string) error

	// RecordFailedAttempt applies a failed login atomically.
	RecordFailedAttempt(ctx context.Context, id string) (LockoutDecision, error)

	// RecordSuccessfulLogin resets the lockout state and stamps last login.
	// It returns *LockedError instead when the account is locked at the
	// time of the write.
	RecordSuccessfulLogin(ctx context.Context, id string) error

	SetRole(ctx context.Context, id string, role Role) error
	SetTenant(ctx context.Context, id, tenantID string) error
	SetActive(ctx context.Context, id string, active bool) error
	Unlock(ctx context.Context, id string) error

	ListByTenant(ctx context.Context, tenantID string) ([]Account, error)
	Count(ctx context.Context) (int, error)
}
