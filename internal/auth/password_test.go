package auth

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHasher_RoundTrip(t *testing.T) {
	h := testHasher()
	password := "Correct-Horse-1"

	hash, err := h.Hash(password)
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Errorf("hash should start with $argon2id$, got %q", hash)
	}

	ok, err := h.Verify(password, hash)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !ok {
		t.Error("Verify() should return true for correct password")
	}
}

func TestHasher_WrongPassword(t *testing.T) {
	h := testHasher()
	hash, err := h.Hash("Correct-Password-1")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	ok, err := h.Verify("Wrong-Password-1", hash)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if ok {
		t.Error("Verify() should return false for wrong password")
	}
}

func TestHasher_UniqueSalts(t *testing.T) {
	h := testHasher()

	hash1, err := h.Hash("Same-Password-1")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	hash2, err := h.Hash("Same-Password-1")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	if hash1 == hash2 {
		t.Error("two hashes of the same password should have different salts")
	}
}

func TestHasher_NormalisesBeforeHashing(t *testing.T) {
	h := testHasher()
	// U+FF21 FULLWIDTH LATIN CAPITAL LETTER A folds to "A" under NFKC.
	hash, err := h.Hash("Ａbcdef1!")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	ok, err := h.Verify("Abcdef1!", hash)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !ok {
		t.Error("Verify() should accept the NFKC-equivalent password")
	}
}

func TestHasher_VerifyInvalidFormat(t *testing.T) {
	tests := []struct {
		name string
		hash string
	}{
		{"empty", ""},
		{"not PHC", "plaintext"},
		{"wrong algorithm", "$scrypt$v=19$m=65536,t=3,p=1$salt$hash"},
		{"too few parts", "$argon2id$v=19$m=65536,t=3,p=1"},
		{"wrong version", "$argon2id$v=16$m=65536,t=3,p=1$c2FsdA$aGFzaA"},
		{"corrupt bcrypt", "$2a$10$short"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := testHasher().Verify("password", tt.hash)
			if err == nil {
				t.Error("Verify() should return error for invalid hash format")
			}
		})
	}
}

func TestHasher_PHCFormat(t *testing.T) {
	hash, err := DefaultHasher().Hash("test")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	parts := strings.Split(hash, "$")
	if len(parts) != 6 {
		t.Fatalf("PHC format should have 6 $-delimited parts, got %d: %q", len(parts), hash)
	}
	if parts[1] != "argon2id" {
		t.Errorf("algorithm should be argon2id, got %q", parts[1])
	}
	if parts[2] != "v=19" {
		t.Errorf("version should be v=19, got %q", parts[2])
	}
	if parts[3] != "m=65536,t=3,p=1" {
		t.Errorf("params should be m=65536,t=3,p=1, got %q", parts[3])
	}
}

func TestHasher_LegacyBcrypt(t *testing.T) {
	legacy, err := bcrypt.GenerateFromPassword([]byte("Legacy-Pass-1"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("GenerateFromPassword() error = %v", err)
	}
	h := testHasher()

	ok, err := h.Verify("Legacy-Pass-1", string(legacy))
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !ok {
		t.Error("Verify() should accept the correct legacy password")
	}

	ok, err = h.Verify("Wrong-Pass-1", string(legacy))
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if ok {
		t.Error("Verify() should reject a wrong legacy password")
	}

	if !h.NeedsRehash(string(legacy)) {
		t.Error("NeedsRehash() = false for bcrypt hash")
	}
}

func TestHasher_NeedsRehash(t *testing.T) {
	h := testHasher()
	current, err := h.Hash("Some-Pass-1")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if h.NeedsRehash(current) {
		t.Error("NeedsRehash() = true for hash with current parameters")
	}

	stronger := h
	stronger.Time++
	if !stronger.NeedsRehash(current) {
		t.Error("NeedsRehash() = false after parameters changed")
	}

	if !h.NeedsRehash("garbage") {
		t.Error("NeedsRehash() = false for unreadable hash")
	}
}
