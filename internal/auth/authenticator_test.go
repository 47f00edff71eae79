package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type authFixture struct {
	auth   *Authenticator
	store  *SQLStore
	tokens *TokenService
	clock  *testClock
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	clock := newTestClock()
	store, db := testStore(t, clock)
	seedTestChurch(t, db, "ch-alpha")

	tokens := newTestTokenService(t, 15*time.Minute)
	tokens.now = clock.Now

	ex, err := NewTokenExtractor(ExtractorConfig{})
	if err != nil {
		t.Fatalf("NewTokenExtractor() error = %v", err)
	}
	return &authFixture{auth: NewAuthenticator(ex, tokens, store), store: store, tokens: tokens, clock: clock}
}

func (f *authFixture) request(t *testing.T, accountID string) *http.Request {
	t.Helper()
	issued, err := f.tokens.Issue(accountID)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	r := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	r.Header.Set("Authorization", "Bearer "+issued.Value)
	return r
}

func TestAuthenticator_Success(t *testing.T) {
	f := newAuthFixture(t)
	acc := seedTestAccount(t, f.store, "member@alpha.org", RoleAdmin, "ch-alpha")

	id, err := f.auth.Authenticate(t.Context(), f.request(t, acc.ID))
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	want := Identity{AccountID: acc.ID, Role: RoleAdmin, TenantID: "ch-alpha"}
	if id != want {
		t.Errorf("Authenticate() = %+v, want %+v", id, want)
	}
}

func TestAuthenticator_ReflectsLiveRole(t *testing.T) {
	f := newAuthFixture(t)
	acc := seedTestAccount(t, f.store, "demoted@alpha.org", RoleAdmin, "ch-alpha")
	r := f.request(t, acc.ID)

	if err := f.store.SetRole(t.Context(), acc.ID, RoleUser); err != nil {
		t.Fatalf("SetRole() error = %v", err)
	}

	id, err := f.auth.Authenticate(t.Context(), r)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if id.Role != RoleUser {
		t.Errorf("Role = %q, want the live role %q", id.Role, RoleUser)
	}
}

func TestAuthenticator_Failures(t *testing.T) {
	f := newAuthFixture(t)
	acc := seedTestAccount(t, f.store, "member@alpha.org", RoleUser, "ch-alpha")
	disabled := seedTestAccount(t, f.store, "off@alpha.org", RoleUser, "ch-alpha")
	if err := f.store.SetActive(t.Context(), disabled.ID, false); err != nil {
		t.Fatalf("SetActive() error = %v", err)
	}

	noToken := httptest.NewRequest(http.MethodGet, "/", nil)
	malformed := httptest.NewRequest(http.MethodGet, "/", nil)
	malformed.Header.Set("Authorization", "Basic Zm9vOmJhcg==")
	garbage := httptest.NewRequest(http.MethodGet, "/", nil)
	garbage.Header.Set("Authorization", "Bearer not.a.jwt")

	tests := []struct {
		name string
		req  *http.Request
		want error
	}{
		{"no token", noToken, ErrNoToken},
		{"malformed carrier", malformed, ErrMalformedToken},
		{"garbage token", garbage, ErrTokenInvalid},
		{"deleted account", f.request(t, "acc-deleted"), ErrTokenInvalid},
		{"disabled account", f.request(t, disabled.ID), ErrAccountDisabled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.auth.Authenticate(t.Context(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("Authenticate() error = %v, want %v", err, tt.want)
			}
		})
	}

	t.Run("expired token", func(t *testing.T) {
		r := f.request(t, acc.ID)
		f.clock.Advance(16 * time.Minute)
		if _, err := f.auth.Authenticate(t.Context(), r); !errors.Is(err, ErrTokenExpired) {
			t.Errorf("Authenticate() error = %v, want ErrTokenExpired", err)
		}
	})
}
