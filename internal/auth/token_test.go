package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSigningSecret = "test-secret-key-at-least-32-characters-long"

func newTestTokenService(t *testing.T, ttl time.Duration) *TokenService {
	t.Helper()
	svc, err := NewTokenService(TokenConfig{Secret: testSigningSecret, TTL: ttl, Issuer: "churchplanner"})
	if err != nil {
		t.Fatalf("NewTokenService() error = %v", err)
	}
	return svc
}

func TestTokenService_RoundTrip(t *testing.T) {
	svc := newTestTokenService(t, 15*time.Minute)

	issued, err := svc.Issue("acc-001")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if issued.Value == "" {
		t.Fatal("Issue() returned empty token")
	}

	claims, err := svc.Verify(issued.Value)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.AccountID() != "acc-001" {
		t.Errorf("AccountID() = %q, want %q", claims.AccountID(), "acc-001")
	}
	if claims.ID == "" {
		t.Error("JTI (ID) should not be empty")
	}
	if !claims.ExpiresAt.Time.Equal(issued.ExpiresAt) {
		t.Errorf("ExpiresAt = %v, want %v", claims.ExpiresAt.Time, issued.ExpiresAt)
	}
}

func TestTokenService_VerifyIsIdempotent(t *testing.T) {
	svc := newTestTokenService(t, time.Hour)

	issued, err := svc.Issue("acc-002")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	for i := range 3 {
		claims, err := svc.Verify(issued.Value)
		if err != nil {
			t.Fatalf("Verify() #%d error = %v", i, err)
		}
		if claims.AccountID() != "acc-002" {
			t.Errorf("Verify() #%d AccountID = %q", i, claims.AccountID())
		}
	}
}

func TestTokenService_Expired(t *testing.T) {
	svc := newTestTokenService(t, time.Minute)
	issuedAt := time.Now()
	svc.now = func() time.Time { return issuedAt }

	issued, err := svc.Issue("acc-003")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	svc.now = func() time.Time { return issuedAt.Add(2 * time.Minute) }

	for range 2 {
		_, err = svc.Verify(issued.Value)
		if !errors.Is(err, ErrTokenExpired) {
			t.Fatalf("Verify() error = %v, want ErrTokenExpired", err)
		}
		if !errors.Is(err, ErrUnauthenticated) {
			t.Errorf("Verify() error = %v, want wrapped ErrUnauthenticated", err)
		}
	}
}

func TestTokenService_WrongSecret(t *testing.T) {
	issuer := newTestTokenService(t, time.Hour)
	other, err := NewTokenService(TokenConfig{Secret: "another-secret-key-at-least-32-characters", Issuer: "churchplanner"})
	if err != nil {
		t.Fatalf("NewTokenService() error = %v", err)
	}

	issued, err := issuer.Issue("acc-004")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if _, err := other.Verify(issued.Value); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Verify() error = %v, want ErrTokenInvalid", err)
	}
}

func TestTokenService_TamperedPayload(t *testing.T) {
	svc := newTestTokenService(t, time.Hour)
	issued, err := svc.Issue("acc-005")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	parts := strings.Split(issued.Value, ".")
	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "acc-999",
		Issuer:    "churchplanner",
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	forgedSigned, err := forged.SignedString([]byte("attacker-secret"))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	forgedParts := strings.Split(forgedSigned, ".")

	// Attacker payload with the original signature.
	tampered := parts[0] + "." + forgedParts[1] + "." + parts[2]
	if _, err := svc.Verify(tampered); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Verify() error = %v, want ErrTokenInvalid", err)
	}
}

func TestTokenService_RejectsNoneAlgorithm(t *testing.T) {
	svc := newTestTokenService(t, time.Hour)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "acc-001",
		Issuer:    "churchplanner",
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	if _, err := svc.Verify(raw); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Verify() error = %v, want ErrTokenInvalid", err)
	}
}

func TestTokenService_WrongIssuer(t *testing.T) {
	svc := newTestTokenService(t, time.Hour)
	foreign, err := NewTokenService(TokenConfig{Secret: testSigningSecret, Issuer: "someone-else"})
	if err != nil {
		t.Fatalf("NewTokenService() error = %v", err)
	}

	issued, err := foreign.Issue("acc-001")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if _, err := svc.Verify(issued.Value); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Verify() error = %v, want ErrTokenInvalid", err)
	}
}

func TestTokenService_MissingSubject(t *testing.T) {
	svc := newTestTokenService(t, time.Hour)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "churchplanner",
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	raw, err := token.SignedString([]byte(testSigningSecret))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	if _, err := svc.Verify(raw); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Verify() error = %v, want ErrTokenInvalid", err)
	}
}

func TestTokenService_Malformed(t *testing.T) {
	svc := newTestTokenService(t, time.Hour)

	for _, raw := range []string{"", "not-a-valid-jwt", "abc.def", "a.b.c"} {
		if _, err := svc.Verify(raw); !errors.Is(err, ErrTokenInvalid) {
			t.Errorf("Verify(%q) error = %v, want ErrTokenInvalid", raw, err)
		}
	}
}

func TestNewTokenService_MissingSecret(t *testing.T) {
	_, err := NewTokenService(TokenConfig{})
	if !errors.Is(err, ErrMissingSigningSecret) {
		t.Errorf("NewTokenService() error = %v, want ErrMissingSigningSecret", err)
	}
}

func TestNewTokenService_DefaultTTL(t *testing.T) {
	svc, err := NewTokenService(TokenConfig{Secret: testSigningSecret})
	if err != nil {
		t.Fatalf("NewTokenService() error = %v", err)
	}
	if svc.TTL() != DefaultTokenTTL {
		t.Errorf("TTL() = %v, want %v", svc.TTL(), DefaultTokenTTL)
	}

	issued, err := svc.Issue("acc-001")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	diff := time.Until(issued.ExpiresAt) - DefaultTokenTTL
	if diff < -time.Minute || diff > time.Minute {
		t.Errorf("default TTL should be ~15 minutes, got expiry diff of %v", diff)
	}
}

func TestTokenService_IssueRequiresAccount(t *testing.T) {
	svc := newTestTokenService(t, time.Hour)
	if _, err := svc.Issue(""); !errors.Is(err, ErrValidation) {
		t.Errorf("Issue(\"\") error = %v, want ErrValidation", err)
	}
}
