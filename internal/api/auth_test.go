package api

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/moonseer/church-planner-core/internal/auth"
)

func TestRegister(t *testing.T) {
	f := newFixture(t)

	rec := f.do(request{
		method: http.MethodPost,
		path:   "/api/v1/auth/register",
		body:   registerRequest{Email: "  New.Member@Example.com ", Password: testPassword, Name: "New Member"},
	})
	expectStatus(t, rec, http.StatusCreated)

	var acc auth.Account
	decode(t, rec, &acc)
	if acc.Email != "new.member@example.com" {
		t.Errorf("email = %q, want normalised", acc.Email)
	}
	if acc.Role != auth.RoleUser || acc.TenantID != "" {
		t.Errorf("role/tenant = %s/%q, want user with no church", acc.Role, acc.TenantID)
	}
	if acc.SecretHash != "" {
		t.Error("secret hash must not be serialised")
	}

	dup := f.do(request{
		method: http.MethodPost,
		path:   "/api/v1/auth/register",
		body:   registerRequest{Email: "new.member@example.com", Password: testPassword},
	})
	expectStatus(t, dup, http.StatusConflict)
}

func TestRegister_RejectsRoleField(t *testing.T) {
	f := newFixture(t)

	rec := f.do(request{
		method: http.MethodPost,
		path:   "/api/v1/auth/register",
		body:   `{"email":"sneaky@example.com","password":"Correct-horse-1","role":"superadmin"}`,
	})
	expectStatus(t, rec, http.StatusBadRequest)

	if _, err := f.store.FindByEmail(t.Context(), "sneaky@example.com", false); err == nil {
		t.Error("account should not exist after rejected registration")
	}
}

func TestRegister_WeakPasswordListsRules(t *testing.T) {
	f := newFixture(t)

	rec := f.do(request{
		method: http.MethodPost,
		path:   "/api/v1/auth/register",
		body:   registerRequest{Email: "weak@example.com", Password: "Abc1"},
	})
	expectStatus(t, rec, http.StatusBadRequest)

	resp := decode(t, rec, nil)
	if resp.Success {
		t.Error("success should be false")
	}
	got := map[auth.Rule]bool{}
	for _, d := range resp.Details {
		got[d.Rule] = true
		if d.Message == "" {
			t.Errorf("rule %s has no message", d.Rule)
		}
	}
	if !got[auth.RuleMinLength] || !got[auth.RuleSymbol] {
		t.Errorf("details = %+v, want min_length and symbol", resp.Details)
	}
	if got[auth.RuleUppercase] || got[auth.RuleDigit] {
		t.Errorf("details = %+v, satisfied rules should not be listed", resp.Details)
	}
}

func TestRegister_BadJSON(t *testing.T) {
	f := newFixture(t)

	for _, body := range []string{`{`, `{"email":"a@example.com"} {}`, `[]`} {
		rec := f.do(request{method: http.MethodPost, path: "/api/v1/auth/register", body: body})
		expectStatus(t, rec, http.StatusBadRequest)
	}
}

func TestLogin_Success(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.CookieSecure = true })
	acc := f.seedAccount("pastor@example.com", auth.RoleUser, "")

	rec := f.do(request{
		method: http.MethodPost,
		path:   "/api/v1/auth/login",
		body:   loginRequest{Email: "PASTOR@example.com", Password: testPassword},
	})
	expectStatus(t, rec, http.StatusOK)

	var got auth.Account
	resp := decode(t, rec, &got)
	if !resp.Success || resp.Token == "" || resp.ExpiresAt.IsZero() {
		t.Fatalf("resp = %+v", resp)
	}
	if got.ID != acc.ID {
		t.Errorf("account id = %q, want %q", got.ID, acc.ID)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("cookies = %d, want 1", len(cookies))
	}
	c := cookies[0]
	if c.Name != auth.DefaultCookieName || c.Value != resp.Token {
		t.Errorf("cookie = %s=%q", c.Name, c.Value)
	}
	if !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteLaxMode {
		t.Errorf("cookie flags HttpOnly=%v Secure=%v SameSite=%v", c.HttpOnly, c.Secure, c.SameSite)
	}
	if !c.Expires.Equal(resp.ExpiresAt.Truncate(time.Second)) {
		t.Errorf("cookie expires %v, token expires %v", c.Expires, resp.ExpiresAt)
	}
}

func TestLogin_UnknownEmailAndWrongPasswordLookAlike(t *testing.T) {
	f := newFixture(t)
	f.seedAccount("known@example.com", auth.RoleUser, "")

	unknown := f.do(request{
		method: http.MethodPost,
		path:   "/api/v1/auth/login",
		body:   loginRequest{Email: "nobody@example.com", Password: testPassword},
	})
	wrong := f.do(request{
		method: http.MethodPost,
		path:   "/api/v1/auth/login",
		body:   loginRequest{Email: "known@example.com", Password: "Wrong-password-1"},
	})

	expectStatus(t, unknown, http.StatusUnauthorized)
	expectStatus(t, wrong, http.StatusUnauthorized)
	if a, b := decode(t, unknown, nil).Error, decode(t, wrong, nil).Error; a != b || a != msgInvalidCredentials {
		t.Errorf("messages %q and %q should both be %q", a, b, msgInvalidCredentials)
	}
}

func TestLogin_MissingFields(t *testing.T) {
	f := newFixture(t)
	rec := f.do(request{method: http.MethodPost, path: "/api/v1/auth/login", body: loginRequest{Email: "a@example.com"}})
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestLogin_Lockout(t *testing.T) {
	f := newFixture(t)
	f.seedAccount("locked@example.com", auth.RoleUser, "")

	wrong := request{
		method: http.MethodPost,
		path:   "/api/v1/auth/login",
		body:   loginRequest{Email: "locked@example.com", Password: "Wrong-password-1"},
	}

	threshold := auth.DefaultLockoutPolicy().Threshold
	for i := 1; i < threshold; i++ {
		expectStatus(t, f.do(wrong), http.StatusUnauthorized)
	}

	// The attempt that crosses the threshold is already refused as locked.
	rec := f.do(wrong)
	expectStatus(t, rec, http.StatusTooManyRequests)
	retry, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	if err != nil || retry <= 0 {
		t.Errorf("Retry-After = %q, want positive seconds", rec.Header().Get("Retry-After"))
	}
	if resp := decode(t, rec, nil); resp.Error != "Account is temporarily locked. Try again in 15m0s." {
		t.Errorf("error = %q, want remaining lock time", resp.Error)
	}

	// The correct password does not get through while locked.
	f.clock.Advance(time.Second)
	correct := request{
		method: http.MethodPost,
		path:   "/api/v1/auth/login",
		body:   loginRequest{Email: "locked@example.com", Password: testPassword},
	}
	rec = f.do(correct)
	expectStatus(t, rec, http.StatusTooManyRequests)
	if resp := decode(t, rec, nil); resp.Error != "Account is temporarily locked. Try again in 14m59s." {
		t.Errorf("error = %q, want remaining lock time", resp.Error)
	}

	// Lock expires lazily.
	f.clock.Advance(auth.DefaultLockoutPolicy().Duration + time.Second)
	expectStatus(t, f.do(correct), http.StatusOK)

	acc, err := f.store.FindByEmail(t.Context(), "locked@example.com", false)
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if acc.FailedAttempts != 0 || acc.LockedUntil != nil {
		t.Errorf("lock state after success = %d/%v, want reset", acc.FailedAttempts, acc.LockedUntil)
	}
}

func TestLogin_SuccessResetsFailures(t *testing.T) {
	f := newFixture(t)
	f.seedAccount("reset@example.com", auth.RoleUser, "")

	wrong := request{
		method: http.MethodPost,
		path:   "/api/v1/auth/login",
		body:   loginRequest{Email: "reset@example.com", Password: "Wrong-password-1"},
	}
	threshold := auth.DefaultLockoutPolicy().Threshold
	for i := 1; i < threshold; i++ {
		expectStatus(t, f.do(wrong), http.StatusUnauthorized)
	}
	f.login("reset@example.com")

	// A fresh run of failures is needed to lock again.
	for i := 1; i < threshold; i++ {
		expectStatus(t, f.do(wrong), http.StatusUnauthorized)
	}
}

func TestLogin_DisabledAccount(t *testing.T) {
	f := newFixture(t)
	acc := f.seedAccount("gone@example.com", auth.RoleUser, "")
	if err := f.store.SetActive(t.Context(), acc.ID, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}

	correct := f.do(request{
		method: http.MethodPost,
		path:   "/api/v1/auth/login",
		body:   loginRequest{Email: "gone@example.com", Password: testPassword},
	})
	expectStatus(t, correct, http.StatusForbidden)
	if resp := decode(t, correct, nil); resp.Error != msgAccountDisabled {
		t.Errorf("error = %q", resp.Error)
	}

	wrong := f.do(request{
		method: http.MethodPost,
		path:   "/api/v1/auth/login",
		body:   loginRequest{Email: "gone@example.com", Password: "Wrong-password-1"},
	})
	expectStatus(t, wrong, http.StatusUnauthorized)
}

func TestLogin_RateLimited(t *testing.T) {
	f := newFixture(t, func(d *Deps) {
		d.Security.RateLimit.Enabled = true
		d.Security.RateLimit.RequestsPerMinute = 2
	})

	attempt := request{
		method: http.MethodPost,
		path:   "/api/v1/auth/login",
		body:   loginRequest{Email: "nobody@example.com", Password: testPassword},
		remote: "203.0.113.7:51000",
	}
	expectStatus(t, f.do(attempt), http.StatusUnauthorized)
	expectStatus(t, f.do(attempt), http.StatusUnauthorized)

	rec := f.do(attempt)
	expectStatus(t, rec, http.StatusTooManyRequests)
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}

	// Another client is unaffected.
	other := attempt
	other.remote = "198.51.100.4:40000"
	expectStatus(t, f.do(other), http.StatusUnauthorized)

	// The window slides.
	f.clock.Advance(time.Minute + time.Second)
	expectStatus(t, f.do(attempt), http.StatusUnauthorized)
}

func TestMe(t *testing.T) {
	f := newFixture(t)
	church := f.seedChurch("Grace Chapel")
	acc := f.seedAccount("admin@example.com", auth.RoleAdmin, church.ID)
	token := f.login(acc.Email)

	rec := f.do(request{method: http.MethodGet, path: "/api/v1/auth/me", token: token})
	expectStatus(t, rec, http.StatusOK)

	var me struct {
		ID          string            `json:"id"`
		Role        auth.Role         `json:"role"`
		TenantID    string            `json:"tenant_id"`
		Permissions []auth.Permission `json:"permissions"`
	}
	decode(t, rec, &me)
	if me.ID != acc.ID || me.Role != auth.RoleAdmin || me.TenantID != church.ID {
		t.Errorf("me = %+v", me)
	}
	if len(me.Permissions) != len(auth.PermissionsForRole(auth.RoleAdmin)) {
		t.Errorf("permissions = %v", me.Permissions)
	}
}

func TestMe_Unauthenticated(t *testing.T) {
	f := newFixture(t)
	acc := f.seedAccount("member@example.com", auth.RoleUser, "")
	token := f.login(acc.Email)

	tests := []struct {
		name    string
		header  string
		wantMsg string
	}{
		{"no token", "", msgAuthRequired},
		{"garbage token", "Bearer not-a-jwt", msgInvalidToken},
		{"basic scheme", "Basic dXNlcjpwYXNz", msgInvalidToken},
		{"tampered token", "Bearer " + token + "x", msgInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			f.handler.ServeHTTP(rec, r)

			expectStatus(t, rec, http.StatusUnauthorized)
			if resp := decode(t, rec, nil); resp.Error != tt.wantMsg {
				t.Errorf("error = %q, want %q", resp.Error, tt.wantMsg)
			}
		})
	}
}

func TestMe_CookieCarrier(t *testing.T) {
	f := newFixture(t)
	acc := f.seedAccount("cookie@example.com", auth.RoleUser, "")
	token := f.login(acc.Email)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	r.AddCookie(&http.Cookie{Name: auth.DefaultCookieName, Value: token})
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, r)
	expectStatus(t, rec, http.StatusOK)
}

func TestMe_DeletedOrDisabledAccount(t *testing.T) {
	f := newFixture(t)
	acc := f.seedAccount("member@example.com", auth.RoleUser, "")
	token := f.login(acc.Email)

	if err := f.store.SetActive(t.Context(), acc.ID, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	rec := f.do(request{method: http.MethodGet, path: "/api/v1/auth/me", token: token})
	expectStatus(t, rec, http.StatusForbidden)

	if _, err := f.db.ExecContext(t.Context(), "DELETE FROM accounts WHERE id = ?", acc.ID); err != nil {
		t.Fatalf("deleting account: %v", err)
	}
	rec = f.do(request{method: http.MethodGet, path: "/api/v1/auth/me", token: token})
	expectStatus(t, rec, http.StatusUnauthorized)
}

func TestLogout_ClearsCookie(t *testing.T) {
	f := newFixture(t)

	rec := f.do(request{method: http.MethodPost, path: "/api/v1/auth/logout"})
	expectStatus(t, rec, http.StatusOK)

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("cookies = %d, want 1", len(cookies))
	}
	if c := cookies[0]; c.Value != "" || c.MaxAge >= 0 {
		t.Errorf("cookie = %+v, want cleared", c)
	}
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	acc := f.seedAccount("member@example.com", auth.RoleUser, "")
	token := f.login(acc.Email)

	const next = "Another-horse-2"

	wrong := f.do(request{
		method: http.MethodPost,
		path:   "/api/v1/auth/password",
		token:  token,
		body:   changePasswordRequest{CurrentPassword: "Wrong-password-1", NewPassword: next},
	})
	expectStatus(t, wrong, http.StatusUnauthorized)

	weak := f.do(request{
		method: http.MethodPost,
		path:   "/api/v1/auth/password",
		token:  token,
		body:   changePasswordRequest{CurrentPassword: testPassword, NewPassword: "short"},
	})
	expectStatus(t, weak, http.StatusBadRequest)

	ok := f.do(request{
		method: http.MethodPost,
		path:   "/api/v1/auth/password",
		token:  token,
		body:   changePasswordRequest{CurrentPassword: testPassword, NewPassword: next},
	})
	expectStatus(t, ok, http.StatusOK)

	old := f.do(request{
		method: http.MethodPost,
		path:   "/api/v1/auth/login",
		body:   loginRequest{Email: acc.Email, Password: testPassword},
	})
	expectStatus(t, old, http.StatusUnauthorized)

	fresh := f.do(request{
		method: http.MethodPost,
		path:   "/api/v1/auth/login",
		body:   loginRequest{Email: acc.Email, Password: next},
	})
	expectStatus(t, fresh, http.StatusOK)
}
