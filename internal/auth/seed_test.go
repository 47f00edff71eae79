package auth

import (
	"io"
	"log/slog"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSeedSuperAdmin_CreatesOnEmptyDB(t *testing.T) {
	store, _ := testStore(t, newTestClock())
	ctx := t.Context()

	password, err := SeedSuperAdmin(ctx, store, "Root@Platform.org", discardLogger())
	if err != nil {
		t.Fatalf("SeedSuperAdmin() error = %v", err)
	}

	if password == "" {
		t.Fatal("SeedSuperAdmin() should return generated password")
	}
	if !DefaultPasswordPolicy().Validate(password).OK() {
		t.Errorf("generated password %q fails the default policy", password)
	}

	acc, err := store.FindByEmail(ctx, "root@platform.org", true)
	if err != nil {
		t.Fatalf("FindByEmail() error = %v", err)
	}
	if acc.Role != RoleSuperAdmin {
		t.Errorf("Role = %q, want %q", acc.Role, RoleSuperAdmin)
	}
	if acc.TenantID != "" {
		t.Errorf("TenantID = %q, superadmin should not belong to a church", acc.TenantID)
	}

	ok, err := testHasher().Verify(password, acc.SecretHash)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !ok {
		t.Error("generated password should verify against stored hash")
	}
}

func TestSeedSuperAdmin_SkipsWhenAccountsExist(t *testing.T) {
	store, _ := testStore(t, newTestClock())
	seedTestAccount(t, store, "first@example.com", RoleUser, "")

	password, err := SeedSuperAdmin(t.Context(), store, "root@platform.org", discardLogger())
	if err != nil {
		t.Fatalf("SeedSuperAdmin() error = %v", err)
	}
	if password != "" {
		t.Error("SeedSuperAdmin() should skip when accounts exist")
	}

	if n, _ := store.Count(t.Context()); n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
}

func TestSeedSuperAdmin_SkipsWithoutEmail(t *testing.T) {
	store, _ := testStore(t, newTestClock())

	password, err := SeedSuperAdmin(t.Context(), store, "", discardLogger())
	if err != nil || password != "" {
		t.Errorf("SeedSuperAdmin(\"\") = %q, %v; want skip", password, err)
	}
}

func TestSeedSuperAdmin_UniquePasswords(t *testing.T) {
	first, _ := testStore(t, newTestClock())
	second, _ := testStore(t, newTestClock())

	p1, err := SeedSuperAdmin(t.Context(), first, "root@platform.org", discardLogger())
	if err != nil {
		t.Fatalf("SeedSuperAdmin() #1 error = %v", err)
	}
	p2, err := SeedSuperAdmin(t.Context(), second, "root@platform.org", discardLogger())
	if err != nil {
		t.Fatalf("SeedSuperAdmin() #2 error = %v", err)
	}
	if p1 == p2 {
		t.Error("generated passwords should be unique")
	}
}
