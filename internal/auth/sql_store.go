package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/moonseer/church-planner-core/internal/infrastructure/database"
)

// StoreOptions configures a SQLStore. Zero fields take defaults.
type StoreOptions struct {
	// Policy is applied on Create and UpdateSecret. The zero value selects
	// DefaultPasswordPolicy.
	Policy  PasswordPolicy
	Lockout LockoutPolicy
	Hasher  Hasher
	Now     func() time.Time
}

// SQLStore implements CredentialStore over database/sql. The same queries
// serve SQLite and Postgres; placeholders are rebound per dialect.
type SQLStore struct {
	db      *database.DB
	policy  PasswordPolicy
	lockout LockoutPolicy
	hasher  Hasher
	now     func() time.Time
}

// NewSQLStore creates a credential store backed by db.
func NewSQLStore(db *database.DB, opts StoreOptions) *SQLStore {
	if opts.Policy == (PasswordPolicy{}) {
		opts.Policy = DefaultPasswordPolicy()
	}
	if opts.Hasher == (Hasher{}) {
		opts.Hasher = DefaultHasher()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &SQLStore{
		db:      db,
		policy:  opts.Policy,
		lockout: opts.Lockout.normalized(),
		hasher:  opts.Hasher,
		now:     opts.Now,
	}
}

const accountColumns = "id, email, name, role, tenant_id, failed_attempts, locked_until, is_active, last_login_at, created_at, updated_at"

// FindByEmail retrieves an account by its login email.
func (s *SQLStore) FindByEmail(ctx context.Context, email string, includeSecret bool) (*Account, error) {
	cols := accountColumns
	if includeSecret {
		cols += ", secret_hash"
	}
	row := s.db.QueryRowContext(ctx, "SELECT "+cols+" FROM accounts WHERE email = ?", NormalizeEmail(email))
	return s.scanAccount(row, includeSecret)
}

// FindByID retrieves an account by ID without its secret.
func (s *SQLStore) FindByID(ctx context.Context, id string) (*Account, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+accountColumns+" FROM accounts WHERE id = ?", id)
	return s.scanAccount(row, false)
}

// Create inserts a new account. The email is normalised and the password
// must pass the policy before it is hashed.
func (s *SQLStore) Create(ctx context.Context, in NewAccount) (*Account, error) {
	email := NormalizeEmail(in.Email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	role := in.Role
	if role == "" {
		role = RoleUser
	}
	if !IsValidRole(role) {
		return nil, ErrInvalidRole
	}
	if err := s.policy.Check(in.Password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	now := s.now().UTC().Truncate(time.Second)
	acc := &Account{
		Email:     email,
		Name:      in.Name,
		Role:      role,
		TenantID:  in.TenantID,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Short IDs can collide; a collision on id gets a fresh one.
	ts := formatTime(now)
	dialect := s.db.Dialect()
	for range maxIDAttempts {
		acc.ID = newAccountID()
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO accounts (id, email, name, secret_hash, role, tenant_id, failed_attempts, is_active, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, 0, 1, ?, ?)`,
			acc.ID, acc.Email, acc.Name, hash, string(acc.Role), nullString(acc.TenantID), ts, ts,
		)
		if err == nil {
			return acc, nil
		}
		if !dialect.IsPrimaryKeyViolation(err, "accounts") {
			break
		}
	}
	if dialect.IsUniqueViolation(err) && !dialect.IsPrimaryKeyViolation(err, "accounts") {
		return nil, ErrDuplicateEmail
	}
	return nil, fmt.Errorf("creating account: %w", err)
}

// maxIDAttempts bounds the retries on an account ID collision.
const maxIDAttempts = 3

func newAccountID() string {
	return "acc-" + uuid.NewString()[:8]
}

// UpdateSecret changes an account's password and returns it to Unlocked(0).
func (s *SQLStore) UpdateSecret(ctx context.Context, id, newPlaintext string) error {
	if err := s.policy.Check(newPlaintext); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(newPlaintext)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	return s.exec(ctx, "updating secret",
		`UPDATE accounts SET secret_hash = ?, failed_attempts = 0, locked_until = NULL, updated_at = ? WHERE id = ?`,
		hash, formatTime(s.now()), id)
}

// UpgradeSecretHash replaces the stored hash of a verified password.
func (s *SQLStore) UpgradeSecretHash(ctx context.Context, id, plaintext string) error {
	hash, err := s.hasher.Hash(plaintext)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	return s.exec(ctx, "upgrading secret hash",
		`UPDATE accounts SET secret_hash = ?, updated_at = ? WHERE id = ?`,
		hash, formatTime(s.now()), id)
}

// RecordFailedAttempt reads the lock state, applies the lockout policy and
// writes the result inside one transaction. SQLite takes the write lock at
// BEGIN; Postgres locks the row with SELECT ... FOR UPDATE. Concurrent
// failures for one account are therefore counted exactly.
func (s *SQLStore) RecordFailedAttempt(ctx context.Context, id string) (LockoutDecision, error) {
	d := s.db.Dialect()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return LockoutDecision{}, fmt.Errorf("beginning lockout transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	state, err := s.lockStateForUpdate(ctx, tx, id)
	if err != nil {
		return LockoutDecision{}, err
	}

	now := s.now()
	decision := s.lockout.OnFailure(state, now)

	if decision.State != state {
		_, err = tx.ExecContext(ctx,
			d.Rebind(`UPDATE accounts SET failed_attempts = ?, locked_until = ?, updated_at = ? WHERE id = ?`),
			decision.State.FailedAttempts, nullTime(decision.State.LockedUntil), formatTime(now), id,
		)
		if err != nil {
			return LockoutDecision{}, fmt.Errorf("writing lock state: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return LockoutDecision{}, fmt.Errorf("committing lock state: %w", err)
	}
	return decision, nil
}

// RecordSuccessfulLogin resets the counters and stamps last_login_at.
//
// The reset runs under the same row lock as RecordFailedAttempt and only
// while the account is unlocked. A lock committed by concurrent failures
// after the caller read the account is kept, and *LockedError is returned.
func (s *SQLStore) RecordSuccessfulLogin(ctx context.Context, id string) error {
	d := s.db.Dialect()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning login transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	state, err := s.lockStateForUpdate(ctx, tx, id)
	if err != nil {
		return err
	}

	now := s.now()
	if state = s.lockout.Evaluate(state, now); state.IsLocked(now) {
		return &LockedError{Until: state.LockedUntil, Remaining: state.Remaining(now)}
	}

	ts := formatTime(now)
	_, err = tx.ExecContext(ctx,
		d.Rebind(`UPDATE accounts SET failed_attempts = 0, locked_until = NULL, last_login_at = ?, updated_at = ? WHERE id = ?`),
		ts, ts, id,
	)
	if err != nil {
		return fmt.Errorf("recording login: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing login: %w", err)
	}
	return nil
}

// lockStateForUpdate reads an account's lock columns inside tx, taking the
// row lock on Postgres.
func (s *SQLStore) lockStateForUpdate(ctx context.Context, tx *sql.Tx, id string) (LockState, error) {
	d := s.db.Dialect()

	var (
		attempts    int
		lockedUntil sql.NullString
	)
	err := tx.QueryRowContext(ctx,
		d.Rebind("SELECT failed_attempts, locked_until FROM accounts WHERE id = ?"+d.ForUpdate()), id,
	).Scan(&attempts, &lockedUntil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return LockState{}, ErrAccountNotFound
		}
		return LockState{}, fmt.Errorf("reading lock state: %w", err)
	}
	return LockState{FailedAttempts: attempts, LockedUntil: parseNullTime(lockedUntil)}, nil
}

// SetRole changes an account's role.
func (s *SQLStore) SetRole(ctx context.Context, id string, role Role) error {
	if !IsValidRole(role) {
		return ErrInvalidRole
	}
	return s.exec(ctx, "setting role",
		`UPDATE accounts SET role = ?, updated_at = ? WHERE id = ?`,
		string(role), formatTime(s.now()), id)
}

// SetTenant attaches an account to a church. An empty tenantID detaches it.
func (s *SQLStore) SetTenant(ctx context.Context, id, tenantID string) error {
	return s.exec(ctx, "setting tenant",
		`UPDATE accounts SET tenant_id = ?, updated_at = ? WHERE id = ?`,
		nullString(tenantID), formatTime(s.now()), id)
}

// SetActive enables or disables an account.
func (s *SQLStore) SetActive(ctx context.Context, id string, active bool) error {
	return s.exec(ctx, "setting active",
		`UPDATE accounts SET is_active = ?, updated_at = ? WHERE id = ?`,
		boolToInt(active), formatTime(s.now()), id)
}

// Unlock clears the lockout state without touching the password.
func (s *SQLStore) Unlock(ctx context.Context, id string) error {
	return s.exec(ctx, "unlocking account",
		`UPDATE accounts SET failed_attempts = 0, locked_until = NULL, updated_at = ? WHERE id = ?`,
		formatTime(s.now()), id)
}

// ListByTenant returns the accounts attached to a church, oldest first.
func (s *SQLStore) ListByTenant(ctx context.Context, tenantID string) ([]Account, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE tenant_id = ? ORDER BY created_at ASC, email ASC", tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	defer rows.Close()

	accounts := []Account{}
	for rows.Next() {
		a, err := s.scanAccount(rows, false)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating accounts: %w", err)
	}
	return accounts, nil
}

// Count returns the total number of accounts.
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM accounts").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting accounts: %w", err)
	}
	return count, nil
}

// exec runs a single-row UPDATE and maps zero affected rows to ErrAccountNotFound.
func (s *SQLStore) exec(ctx context.Context, op, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// scanner is an interface for sql.Row and sql.Rows Scan methods.
type scanner interface {
	Scan(dest ...any) error
}

// scanAccount scans one account row. Expired locks are normalised to
// Unlocked(0) on the way out; the next write persists that.
func (s *SQLStore) scanAccount(sc scanner, withSecret bool) (*Account, error) {
	var (
		a                     Account
		role                  string
		tenantID, lockedUntil sql.NullString
		lastLogin             sql.NullString
		isActive              int
		createdAt, updatedAt  string
		secret                sql.NullString
	)
	dest := []any{&a.ID, &a.Email, &a.Name, &role, &tenantID, &a.FailedAttempts,
		&lockedUntil, &isActive, &lastLogin, &createdAt, &updatedAt}
	if withSecret {
		dest = append(dest, &secret)
	}

	if err := sc.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("scanning account: %w", err)
	}

	a.Role = Role(role)
	a.TenantID = tenantID.String
	a.IsActive = isActive != 0
	a.SecretHash = secret.String

	state := s.lockout.Evaluate(LockState{FailedAttempts: a.FailedAttempts, LockedUntil: parseNullTime(lockedUntil)}, s.now())
	a.FailedAttempts = state.FailedAttempts
	if !state.LockedUntil.IsZero() {
		t := state.LockedUntil
		a.LockedUntil = &t
	}
	if t := parseNullTime(lastLogin); !t.IsZero() {
		a.LastLoginAt = &t
	}

	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	a.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled

	return &a, nil
}

// Helper functions.

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}

func parseNullTime(ns sql.NullString) time.Time {
	if !ns.Valid || ns.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
