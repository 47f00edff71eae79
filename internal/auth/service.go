package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// dummyPassword is hashed once at startup so that logins for unknown
// emails spend the same Argon2id work as real ones.
const dummyPassword = "Dummy-password-for-timing-1!"

// RequestMeta is the caller context recorded on security events.
type RequestMeta struct {
	RemoteAddr string
	ActorID    string
}

// ServiceConfig holds the collaborators of a Service.
type ServiceConfig struct {
	Store  CredentialStore
	Tokens *TokenService
	Hasher Hasher
	Events EventSink
	Logger *slog.Logger
	Now    func() time.Time
}

// Service implements registration, login and account administration on
// top of the credential store, lockout policy and token service.
type Service struct {
	store     CredentialStore
	tokens    *TokenService
	hasher    Hasher
	events    EventSink
	logger    *slog.Logger
	now       func() time.Time
	dummyHash string
}

// NewService validates cfg and precomputes the timing-equalisation hash.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil || cfg.Tokens == nil {
		return nil, errors.New("auth service requires a store and a token service")
	}
	if cfg.Hasher == (Hasher{}) {
		cfg.Hasher = DefaultHasher()
	}
	if cfg.Events == nil {
		cfg.Events = DiscardEvents
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	dummy, err := cfg.Hasher.Hash(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("preparing dummy hash: %w", err)
	}

	return &Service{
		store:     cfg.Store,
		tokens:    cfg.Tokens,
		hasher:    cfg.Hasher,
		events:    cfg.Events,
		logger:    cfg.Logger,
		now:       cfg.Now,
		dummyHash: dummy,
	}, nil
}

// Store returns the underlying credential store.
func (s *Service) Store() CredentialStore {
	return s.store
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	Account *Account
	Token   IssuedToken
}

// Register creates a self-service account. Public registration always
// yields a user with no church; roles and tenants are granted later.
func (s *Service) Register(ctx context.Context, in NewAccount, meta RequestMeta) (*Account, error) {
	in.Role = RoleUser
	in.TenantID = ""

	acc, err := s.store.Create(ctx, in)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, SecurityEvent{Type: EventAccountCreated, AccountID: acc.ID}, meta)
	s.logger.Info("account registered", "account_id", acc.ID)
	return acc, nil
}

// Login verifies credentials and issues a session token.
//
// Failures are ErrInvalidCredentials for an unknown email or wrong
// password, *LockedError while the account is locked (including the
// attempt that locks it) and ErrAccountDisabled for a deactivated account
// with a correct password.
func (s *Service) Login(ctx context.Context, email, password string, meta RequestMeta) (*LoginResult, error) {
	acc, err := s.store.FindByEmail(ctx, email, true)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			_, _ = s.hasher.Verify(password, s.dummyHash) //nolint:errcheck // timing only
			s.emit(ctx, SecurityEvent{Type: EventLoginFailed, Details: map[string]any{"reason": "unknown_email"}}, meta)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("looking up account: %w", err)
	}

	now := s.now()
	if state := acc.LockState(); state.IsLocked(now) {
		lockErr := &LockedError{Until: state.LockedUntil, Remaining: state.Remaining(now)}
		s.emit(ctx, SecurityEvent{
			Type: EventLoginRejected, AccountID: acc.ID, TenantID: acc.TenantID,
			Details: map[string]any{"reason": "locked", "remaining_seconds": int(lockErr.Remaining.Seconds())},
		}, meta)
		return nil, lockErr
	}

	ok, err := s.hasher.Verify(password, acc.SecretHash)
	if err != nil {
		return nil, fmt.Errorf("verifying password: %w", err)
	}
	if !ok {
		return nil, s.recordFailure(ctx, acc, meta)
	}

	if !acc.IsActive {
		s.emit(ctx, SecurityEvent{
			Type: EventLoginRejected, AccountID: acc.ID, TenantID: acc.TenantID,
			Details: map[string]any{"reason": "disabled"},
		}, meta)
		return nil, ErrAccountDisabled
	}

	if err := s.store.RecordSuccessfulLogin(ctx, acc.ID); err != nil {
		var lockErr *LockedError
		if errors.As(err, &lockErr) {
			s.emit(ctx, SecurityEvent{
				Type: EventLoginRejected, AccountID: acc.ID, TenantID: acc.TenantID,
				Details: map[string]any{"reason": "locked", "remaining_seconds": int(lockErr.Remaining.Seconds())},
			}, meta)
			return nil, lockErr
		}
		return nil, fmt.Errorf("recording login: %w", err)
	}

	if s.hasher.NeedsRehash(acc.SecretHash) {
		if err := s.store.UpgradeSecretHash(ctx, acc.ID, password); err != nil {
			s.logger.Warn("secret hash upgrade failed", "account_id", acc.ID, "error", err)
		} else {
			s.emit(ctx, SecurityEvent{Type: EventSecretHashUpdate, AccountID: acc.ID, TenantID: acc.TenantID}, meta)
		}
	}

	token, err := s.tokens.Issue(acc.ID)
	if err != nil {
		return nil, fmt.Errorf("issuing token: %w", err)
	}

	acc.SecretHash = ""
	acc.FailedAttempts = 0
	acc.LockedUntil = nil
	stamped := now.UTC().Truncate(time.Second)
	acc.LastLoginAt = &stamped

	s.emit(ctx, SecurityEvent{Type: EventLoginSucceeded, AccountID: acc.ID, TenantID: acc.TenantID}, meta)
	return &LoginResult{Account: acc, Token: token}, nil
}

// recordFailure persists a failed attempt and returns the error the
// caller should see.
func (s *Service) recordFailure(ctx context.Context, acc *Account, meta RequestMeta) error {
	decision, err := s.store.RecordFailedAttempt(ctx, acc.ID)
	if err != nil {
		return fmt.Errorf("recording failed attempt: %w", err)
	}

	s.emit(ctx, SecurityEvent{
		Type: EventLoginFailed, AccountID: acc.ID, TenantID: acc.TenantID,
		Details: map[string]any{"reason": "bad_password", "failed_attempts": decision.State.FailedAttempts},
	}, meta)

	if decision.JustLocked {
		s.logger.Warn("account locked after repeated failures",
			"account_id", acc.ID,
			"failed_attempts", decision.State.FailedAttempts,
			"locked_until", decision.State.LockedUntil,
		)
		s.emit(ctx, SecurityEvent{
			Type: EventAccountLocked, AccountID: acc.ID, TenantID: acc.TenantID,
			Details: map[string]any{"locked_until": decision.State.LockedUntil.UTC().Format(time.RFC3339)},
		}, meta)
	}

	if lockErr := decision.Err(); lockErr != nil {
		return lockErr
	}
	return ErrInvalidCredentials
}

// ChangePassword replaces the caller's password after re-verifying the
// current one. A wrong current password counts as a failed login.
func (s *Service) ChangePassword(ctx context.Context, accountID, current, next string, meta RequestMeta) error {
	ref, err := s.store.FindByID(ctx, accountID)
	if err != nil {
		return err
	}
	acc, err := s.store.FindByEmail(ctx, ref.Email, true)
	if err != nil {
		return err
	}

	now := s.now()
	if state := acc.LockState(); state.IsLocked(now) {
		return &LockedError{Until: state.LockedUntil, Remaining: state.Remaining(now)}
	}

	ok, err := s.hasher.Verify(current, acc.SecretHash)
	if err != nil {
		return fmt.Errorf("verifying password: %w", err)
	}
	if !ok {
		return s.recordFailure(ctx, acc, meta)
	}

	if err := s.store.UpdateSecret(ctx, acc.ID, next); err != nil {
		return err
	}

	s.emit(ctx, SecurityEvent{Type: EventPasswordChanged, AccountID: acc.ID, TenantID: acc.TenantID}, meta)
	return nil
}

// loadManaged fetches target and checks the caller may administer it.
func (s *Service) loadManaged(ctx context.Context, caller Identity, targetID string) (*Account, error) {
	if !caller.Can(PermAccountsManage) {
		return nil, ErrForbidden
	}
	return LoadScoped(ctx, caller, func(ctx context.Context) (*Account, error) {
		return s.store.FindByID(ctx, targetID)
	})
}

// ListAccounts returns the accounts of tenantID after a boundary check.
func (s *Service) ListAccounts(ctx context.Context, caller Identity, tenantID string) ([]Account, error) {
	if !caller.Can(PermAccountsManage) {
		return nil, ErrForbidden
	}
	if err := AssertSameTenant(tenantID, caller); err != nil {
		return nil, err
	}
	return s.store.ListByTenant(ctx, tenantID)
}

// SetRole changes the role of an account in the caller's church.
func (s *Service) SetRole(ctx context.Context, caller Identity, targetID string, role Role, meta RequestMeta) (*Account, error) {
	if !IsValidRole(role) {
		return nil, ErrInvalidRole
	}
	acc, err := s.loadManaged(ctx, caller, targetID)
	if err != nil {
		return nil, err
	}
	if !CanAssignRole(caller.Role, role) || (acc.Role == RoleSuperAdmin && !caller.IsSuperAdmin()) {
		return nil, ErrForbidden
	}
	if acc.ID == caller.AccountID && role != caller.Role {
		return nil, fmt.Errorf("%w: cannot change your own role", ErrForbidden)
	}

	if err := s.store.SetRole(ctx, acc.ID, role); err != nil {
		return nil, err
	}

	s.emit(ctx, SecurityEvent{
		Type: EventRoleChanged, AccountID: acc.ID, TenantID: acc.TenantID,
		Details: map[string]any{"from": string(acc.Role), "to": string(role)},
	}, s.withActor(meta, caller))
	acc.Role = role
	return acc, nil
}

// SetActive enables or disables an account in the caller's church.
func (s *Service) SetActive(ctx context.Context, caller Identity, targetID string, active bool, meta RequestMeta) (*Account, error) {
	acc, err := s.loadManaged(ctx, caller, targetID)
	if err != nil {
		return nil, err
	}
	if acc.ID == caller.AccountID && !active {
		return nil, fmt.Errorf("%w: cannot deactivate your own account", ErrForbidden)
	}
	if acc.Role == RoleSuperAdmin && !caller.IsSuperAdmin() {
		return nil, ErrForbidden
	}

	if err := s.store.SetActive(ctx, acc.ID, active); err != nil {
		return nil, err
	}

	s.emit(ctx, SecurityEvent{
		Type: EventActiveChanged, AccountID: acc.ID, TenantID: acc.TenantID,
		Details: map[string]any{"active": active},
	}, s.withActor(meta, caller))
	acc.IsActive = active
	return acc, nil
}

// Unlock clears the lockout state of an account in the caller's church.
func (s *Service) Unlock(ctx context.Context, caller Identity, targetID string, meta RequestMeta) (*Account, error) {
	acc, err := s.loadManaged(ctx, caller, targetID)
	if err != nil {
		return nil, err
	}
	if err := s.store.Unlock(ctx, acc.ID); err != nil {
		return nil, err
	}

	s.emit(ctx, SecurityEvent{Type: EventAccountUnlocked, AccountID: acc.ID, TenantID: acc.TenantID}, s.withActor(meta, caller))
	acc.FailedAttempts = 0
	acc.LockedUntil = nil
	return acc, nil
}

// AssignTenant moves an account to another church. Superadmin only.
// It does not check that tenantID names a church; callers look the church
// up first (the HTTP handler answers 404 for an unknown one).
func (s *Service) AssignTenant(ctx context.Context, caller Identity, targetID, tenantID string, meta RequestMeta) (*Account, error) {
	if !caller.Can(PermTenantsAssign) {
		return nil, ErrForbidden
	}
	acc, err := s.store.FindByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetTenant(ctx, acc.ID, tenantID); err != nil {
		return nil, err
	}

	s.emit(ctx, SecurityEvent{
		Type: EventTenantChanged, AccountID: acc.ID, TenantID: tenantID,
		Details: map[string]any{"from": acc.TenantID, "to": tenantID},
	}, s.withActor(meta, caller))
	acc.TenantID = tenantID
	return acc, nil
}

func (s *Service) withActor(meta RequestMeta, caller Identity) RequestMeta {
	meta.ActorID = caller.AccountID
	return meta
}

func (s *Service) emit(ctx context.Context, ev SecurityEvent, meta RequestMeta) {
	ev.ActorID = meta.ActorID
	ev.RemoteAddr = meta.RemoteAddr
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = s.now().UTC()
	}
	s.events.Emit(ctx, ev)
}
