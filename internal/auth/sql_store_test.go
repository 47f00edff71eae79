package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func TestSQLStore_CreateAndFind(t *testing.T) {
	store, _ := testStore(t, newTestClock())
	ctx := t.Context()

	acc, err := store.Create(ctx, NewAccount{
		Email:    "  Grace@Example.COM ",
		Password: testPassword,
		Name:     "Grace",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if !strings.HasPrefix(acc.ID, "acc-") {
		t.Errorf("ID = %q, want acc- prefix", acc.ID)
	}
	if acc.Email != "grace@example.com" {
		t.Errorf("Email = %q, want normalised", acc.Email)
	}
	if acc.Role != RoleUser {
		t.Errorf("Role = %q, want default %q", acc.Role, RoleUser)
	}
	if acc.SecretHash != "" {
		t.Error("Create() must not return the secret hash")
	}

	byID, err := store.FindByID(ctx, acc.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if byID.SecretHash != "" {
		t.Error("FindByID() must never populate the secret hash")
	}
	if byID.Name != "Grace" || !byID.IsActive {
		t.Errorf("FindByID() = %+v", byID)
	}

	noSecret, err := store.FindByEmail(ctx, "GRACE@example.com", false)
	if err != nil {
		t.Fatalf("FindByEmail(includeSecret=false) error = %v", err)
	}
	if noSecret.SecretHash != "" {
		t.Error("secret hash should be excluded by default")
	}

	withSecret, err := store.FindByEmail(ctx, "grace@example.com", true)
	if err != nil {
		t.Fatalf("FindByEmail(includeSecret=true) error = %v", err)
	}
	if !strings.HasPrefix(withSecret.SecretHash, "$argon2id$") {
		t.Errorf("SecretHash = %q, want argon2id PHC string", withSecret.SecretHash)
	}
	ok, err := testHasher().Verify(testPassword, withSecret.SecretHash)
	if err != nil || !ok {
		t.Errorf("stored hash does not verify: ok=%v err=%v", ok, err)
	}
}

func TestSQLStore_FindNotFound(t *testing.T) {
	store, _ := testStore(t, newTestClock())

	if _, err := store.FindByEmail(t.Context(), "nobody@example.com", true); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("FindByEmail() error = %v, want ErrAccountNotFound", err)
	}
	if _, err := store.FindByID(t.Context(), "acc-missing"); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("FindByID() error = %v, want ErrAccountNotFound", err)
	}
}

func TestSQLStore_CreateDuplicateEmail(t *testing.T) {
	store, _ := testStore(t, newTestClock())
	seedTestAccount(t, store, "dup@example.com", RoleUser, "")

	_, err := store.Create(t.Context(), NewAccount{Email: "DUP@example.com", Password: testPassword})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("Create() error = %v, want ErrDuplicateEmail", err)
	}
}

func TestSQLStore_CreateValidation(t *testing.T) {
	store, _ := testStore(t, newTestClock())

	tests := []struct {
		name string
		in   NewAccount
		want error
	}{
		{"bad email", NewAccount{Email: "not-an-email", Password: testPassword}, ErrValidation},
		{"display name email", NewAccount{Email: "Grace <g@example.com>", Password: testPassword}, ErrValidation},
		{"bad role", NewAccount{Email: "r@example.com", Password: testPassword, Role: "owner"}, ErrInvalidRole},
		{"weak password", NewAccount{Email: "w@example.com", Password: "Weak1"}, ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := store.Create(t.Context(), tt.in); !errors.Is(err, tt.want) {
				t.Errorf("Create() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSQLStore_CreateWeakPasswordListsRules(t *testing.T) {
	store, _ := testStore(t, newTestClock())

	_, err := store.Create(t.Context(), NewAccount{Email: "a@x.com", Password: "Weak1"})
	var pe *PolicyError
	if !errors.As(err, &pe) {
		t.Fatalf("Create() error = %v, want *PolicyError", err)
	}
	want := map[Rule]bool{RuleMinLength: true, RuleSymbol: true}
	if len(pe.Failed) != len(want) {
		t.Fatalf("Failed = %v, want %v", pe.Failed, want)
	}
	for _, r := range pe.Failed {
		if !want[r] {
			t.Errorf("unexpected failed rule %s", r)
		}
	}

	if n, _ := store.Count(t.Context()); n != 0 {
		t.Errorf("Count() = %d, rejected account must not be persisted", n)
	}
}

func TestSQLStore_CreateWithTenant(t *testing.T) {
	store, db := testStore(t, newTestClock())
	seedTestChurch(t, db, "ch-alpha")

	acc := seedTestAccount(t, store, "member@example.com", RoleAdmin, "ch-alpha")

	got, err := store.FindByID(t.Context(), acc.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got.TenantID != "ch-alpha" || got.OwningTenantID() != "ch-alpha" {
		t.Errorf("TenantID = %q, want ch-alpha", got.TenantID)
	}
	if got.Role != RoleAdmin {
		t.Errorf("Role = %q, want admin", got.Role)
	}
}

func TestSQLStore_RecordFailedAttempt_LocksAtThreshold(t *testing.T) {
	clock := newTestClock()
	store, _ := testStore(t, clock)
	acc := seedTestAccount(t, store, "lock@example.com", RoleUser, "")
	ctx := t.Context()

	for i := 1; i < DefaultLockoutThreshold; i++ {
		d, err := store.RecordFailedAttempt(ctx, acc.ID)
		if err != nil {
			t.Fatalf("RecordFailedAttempt() #%d error = %v", i, err)
		}
		if d.Locked || d.State.FailedAttempts != i {
			t.Fatalf("after %d failures: %+v", i, d)
		}
	}

	d, err := store.RecordFailedAttempt(ctx, acc.ID)
	if err != nil {
		t.Fatalf("RecordFailedAttempt() error = %v", err)
	}
	if !d.Locked || !d.JustLocked {
		t.Fatalf("decision = %+v, want JustLocked", d)
	}

	got, err := store.FindByID(ctx, acc.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got.LockedUntil == nil {
		t.Fatal("LockedUntil should be persisted")
	}
	if want := clock.Now().Add(DefaultLockoutDuration); !got.LockedUntil.Equal(want) {
		t.Errorf("LockedUntil = %v, want %v", got.LockedUntil, want)
	}

	// While locked the counter does not move.
	d, err = store.RecordFailedAttempt(ctx, acc.ID)
	if err != nil {
		t.Fatalf("RecordFailedAttempt() while locked error = %v", err)
	}
	if !d.Locked || d.JustLocked || d.State.FailedAttempts != DefaultLockoutThreshold {
		t.Errorf("decision while locked = %+v", d)
	}
	var le *LockedError
	if !errors.As(d.Err(), &le) || !errors.Is(d.Err(), ErrRateLimited) {
		t.Errorf("Err() = %v, want *LockedError wrapping ErrRateLimited", d.Err())
	}
}

func TestSQLStore_ExpiredLockSelfHeals(t *testing.T) {
	clock := newTestClock()
	store, _ := testStore(t, clock)
	acc := seedTestAccount(t, store, "heal@example.com", RoleUser, "")
	ctx := t.Context()

	for range DefaultLockoutThreshold {
		if _, err := store.RecordFailedAttempt(ctx, acc.ID); err != nil {
			t.Fatalf("RecordFailedAttempt() error = %v", err)
		}
	}

	clock.Advance(DefaultLockoutDuration + time.Second)

	// The read path already reports Unlocked(0).
	got, err := store.FindByID(ctx, acc.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got.LockedUntil != nil || got.FailedAttempts != 0 {
		t.Errorf("expired lock not normalised on read: locked_until=%v attempts=%d", got.LockedUntil, got.FailedAttempts)
	}

	// The next failure starts counting from zero.
	d, err := store.RecordFailedAttempt(ctx, acc.ID)
	if err != nil {
		t.Fatalf("RecordFailedAttempt() error = %v", err)
	}
	if d.Locked || d.State.FailedAttempts != 1 {
		t.Errorf("decision after expiry = %+v, want Unlocked(1)", d)
	}
}

func TestSQLStore_RecordSuccessfulLoginResets(t *testing.T) {
	clock := newTestClock()
	store, _ := testStore(t, clock)
	acc := seedTestAccount(t, store, "reset@example.com", RoleUser, "")
	ctx := t.Context()

	for range 3 {
		if _, err := store.RecordFailedAttempt(ctx, acc.ID); err != nil {
			t.Fatalf("RecordFailedAttempt() error = %v", err)
		}
	}

	if err := store.RecordSuccessfulLogin(ctx, acc.ID); err != nil {
		t.Fatalf("RecordSuccessfulLogin() error = %v", err)
	}

	got, err := store.FindByID(ctx, acc.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got.FailedAttempts != 0 {
		t.Errorf("FailedAttempts = %d, want 0", got.FailedAttempts)
	}
	if got.LastLoginAt == nil || !got.LastLoginAt.Equal(clock.Now()) {
		t.Errorf("LastLoginAt = %v, want %v", got.LastLoginAt, clock.Now())
	}
}

func TestSQLStore_RecordSuccessfulLoginKeepsLock(t *testing.T) {
	clock := newTestClock()
	store, _ := testStore(t, clock)
	acc := seedTestAccount(t, store, "held@example.com", RoleUser, "")
	ctx := t.Context()

	for range DefaultLockoutThreshold {
		if _, err := store.RecordFailedAttempt(ctx, acc.ID); err != nil {
			t.Fatalf("RecordFailedAttempt() error = %v", err)
		}
	}

	clock.Advance(time.Minute)
	err := store.RecordSuccessfulLogin(ctx, acc.ID)
	var le *LockedError
	if !errors.As(err, &le) {
		t.Fatalf("RecordSuccessfulLogin() while locked error = %v, want *LockedError", err)
	}
	if le.Remaining != DefaultLockoutDuration-time.Minute {
		t.Errorf("Remaining = %v, want %v", le.Remaining, DefaultLockoutDuration-time.Minute)
	}

	got, err := store.FindByID(ctx, acc.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got.LockedUntil == nil || got.FailedAttempts != DefaultLockoutThreshold {
		t.Errorf("lock state = failed %d until %v, want unchanged", got.FailedAttempts, got.LockedUntil)
	}

	// Once the window has passed the reset goes through.
	clock.Advance(DefaultLockoutDuration)
	if err := store.RecordSuccessfulLogin(ctx, acc.ID); err != nil {
		t.Fatalf("RecordSuccessfulLogin() after expiry error = %v", err)
	}
	if err := store.RecordSuccessfulLogin(ctx, "acc-missing"); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("RecordSuccessfulLogin(missing) error = %v, want ErrAccountNotFound", err)
	}
}

func TestSQLStore_UpdateSecretClearsLock(t *testing.T) {
	store, _ := testStore(t, newTestClock())
	acc := seedTestAccount(t, store, "change@example.com", RoleUser, "")
	ctx := t.Context()

	for range DefaultLockoutThreshold {
		if _, err := store.RecordFailedAttempt(ctx, acc.ID); err != nil {
			t.Fatalf("RecordFailedAttempt() error = %v", err)
		}
	}

	if err := store.UpdateSecret(ctx, acc.ID, "short"); !errors.Is(err, ErrValidation) {
		t.Errorf("UpdateSecret(weak) error = %v, want ErrValidation", err)
	}

	const next = "Another-strong-2"
	if err := store.UpdateSecret(ctx, acc.ID, next); err != nil {
		t.Fatalf("UpdateSecret() error = %v", err)
	}

	got, err := store.FindByEmail(ctx, acc.Email, true)
	if err != nil {
		t.Fatalf("FindByEmail() error = %v", err)
	}
	if got.LockedUntil != nil || got.FailedAttempts != 0 {
		t.Errorf("lock not cleared: %+v", got)
	}
	if ok, _ := testHasher().Verify(next, got.SecretHash); !ok {
		t.Error("new password should verify")
	}
	if ok, _ := testHasher().Verify(testPassword, got.SecretHash); ok {
		t.Error("old password should no longer verify")
	}

	if err := store.UpdateSecret(ctx, "acc-missing", next); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("UpdateSecret(missing) error = %v, want ErrAccountNotFound", err)
	}
}

func TestSQLStore_UpgradeSecretHashFromBcrypt(t *testing.T) {
	store, db := testStore(t, newTestClock())
	acc := seedTestAccount(t, store, "legacy@example.com", RoleUser, "")
	ctx := t.Context()

	legacy, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	if _, err := db.ExecContext(ctx, "UPDATE accounts SET secret_hash = ? WHERE id = ?", string(legacy), acc.ID); err != nil {
		t.Fatalf("planting legacy hash: %v", err)
	}

	if err := store.UpgradeSecretHash(ctx, acc.ID, testPassword); err != nil {
		t.Fatalf("UpgradeSecretHash() error = %v", err)
	}

	got, err := store.FindByEmail(ctx, acc.Email, true)
	if err != nil {
		t.Fatalf("FindByEmail() error = %v", err)
	}
	if testHasher().NeedsRehash(got.SecretHash) {
		t.Errorf("hash %q still needs rehash", got.SecretHash)
	}
}

func TestSQLStore_AdminMutations(t *testing.T) {
	store, db := testStore(t, newTestClock())
	seedTestChurch(t, db, "ch-alpha")
	acc := seedTestAccount(t, store, "member@example.com", RoleUser, "")
	ctx := t.Context()

	if err := store.SetRole(ctx, acc.ID, RoleAdmin); err != nil {
		t.Fatalf("SetRole() error = %v", err)
	}
	if err := store.SetRole(ctx, acc.ID, Role("owner")); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("SetRole(invalid) error = %v, want ErrInvalidRole", err)
	}
	if err := store.SetTenant(ctx, acc.ID, "ch-alpha"); err != nil {
		t.Fatalf("SetTenant() error = %v", err)
	}
	if err := store.SetActive(ctx, acc.ID, false); err != nil {
		t.Fatalf("SetActive() error = %v", err)
	}

	got, err := store.FindByID(ctx, acc.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got.Role != RoleAdmin || got.TenantID != "ch-alpha" || got.IsActive {
		t.Errorf("after mutations = %+v", got)
	}

	if err := store.SetTenant(ctx, acc.ID, ""); err != nil {
		t.Fatalf("SetTenant(\"\") error = %v", err)
	}
	got, _ = store.FindByID(ctx, acc.ID)
	if got.TenantID != "" {
		t.Errorf("TenantID = %q, want detached", got.TenantID)
	}

	for name, err := range map[string]error{
		"SetRole":   store.SetRole(ctx, "acc-missing", RoleUser),
		"SetTenant": store.SetTenant(ctx, "acc-missing", ""),
		"SetActive": store.SetActive(ctx, "acc-missing", true),
		"Unlock":    store.Unlock(ctx, "acc-missing"),
	} {
		if !errors.Is(err, ErrAccountNotFound) {
			t.Errorf("%s(missing) error = %v, want ErrAccountNotFound", name, err)
		}
	}
}

func TestSQLStore_Unlock(t *testing.T) {
	store, _ := testStore(t, newTestClock())
	acc := seedTestAccount(t, store, "unlock@example.com", RoleUser, "")
	ctx := t.Context()

	for range DefaultLockoutThreshold {
		if _, err := store.RecordFailedAttempt(ctx, acc.ID); err != nil {
			t.Fatalf("RecordFailedAttempt() error = %v", err)
		}
	}

	if err := store.Unlock(ctx, acc.ID); err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}

	got, _ := store.FindByID(ctx, acc.ID)
	if got.LockedUntil != nil || got.FailedAttempts != 0 {
		t.Errorf("after Unlock = %+v", got)
	}
}

func TestSQLStore_ListByTenantAndCount(t *testing.T) {
	store, db := testStore(t, newTestClock())
	seedTestChurch(t, db, "ch-alpha")
	seedTestChurch(t, db, "ch-beta")

	seedTestAccount(t, store, "a1@example.com", RoleAdmin, "ch-alpha")
	seedTestAccount(t, store, "a2@example.com", RoleUser, "ch-alpha")
	seedTestAccount(t, store, "b1@example.com", RoleUser, "ch-beta")
	seedTestAccount(t, store, "loose@example.com", RoleUser, "")

	alpha, err := store.ListByTenant(t.Context(), "ch-alpha")
	if err != nil {
		t.Fatalf("ListByTenant() error = %v", err)
	}
	if len(alpha) != 2 {
		t.Fatalf("ListByTenant(ch-alpha) = %d accounts, want 2", len(alpha))
	}
	for _, a := range alpha {
		if a.TenantID != "ch-alpha" {
			t.Errorf("leaked account %s from %s", a.Email, a.TenantID)
		}
		if a.SecretHash != "" {
			t.Error("ListByTenant must not return secrets")
		}
	}

	empty, err := store.ListByTenant(t.Context(), "ch-none")
	if err != nil {
		t.Fatalf("ListByTenant(ch-none) error = %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("ListByTenant(ch-none) = %v, want empty non-nil slice", empty)
	}

	n, err := store.Count(t.Context())
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 4 {
		t.Errorf("Count() = %d, want 4", n)
	}
}
