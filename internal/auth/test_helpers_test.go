package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/moonseer/church-planner-core/internal/infrastructure/database"
	"github.com/moonseer/church-planner-core/internal/infrastructure/database/dbtest"
)

// testPassword satisfies DefaultPasswordPolicy.
const testPassword = "Correct-horse-1"

// testHasher returns cheap Argon2id parameters so tests stay fast.
func testHasher() Hasher {
	return Hasher{Time: 1, Memory: 8 * 1024, Threads: 1}
}

// testClock is a manually advanced clock shared by store and service.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 10, 4, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// testStore opens a migrated SQLite database and a store over it.
func testStore(t *testing.T, clock *testClock) (*SQLStore, *database.DB) {
	t.Helper()

	db := dbtest.Open(t)
	store := NewSQLStore(db, StoreOptions{
		Lockout: DefaultLockoutPolicy(),
		Hasher:  testHasher(),
		Now:     clock.Now,
	})
	return store, db
}

// seedTestChurch inserts a church row so accounts can reference it.
func seedTestChurch(t *testing.T, db *database.DB, id string) {
	t.Helper()

	ts := time.Now().UTC().Format(time.RFC3339)
	_, err := db.ExecContext(t.Context(),
		"INSERT INTO churches (id, name, timezone, created_at, updated_at) VALUES (?, ?, 'UTC', ?, ?)",
		id, "Church "+id, ts, ts)
	if err != nil {
		t.Fatalf("seeding church %s: %v", id, err)
	}
}

// seedTestAccount creates an account with testPassword and returns it.
func seedTestAccount(t *testing.T, store CredentialStore, email string, role Role, tenantID string) *Account {
	t.Helper()

	acc, err := store.Create(t.Context(), NewAccount{
		Email:    email,
		Password: testPassword,
		Role:     role,
		TenantID: tenantID,
	})
	if err != nil {
		t.Fatalf("creating test account %s: %v", email, err)
	}
	return acc
}

// recordingSink captures security events for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []SecurityEvent
}

func (r *recordingSink) Emit(_ context.Context, ev SecurityEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingSink) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func (r *recordingSink) has(t EventType) bool {
	for _, got := range r.types() {
		if got == t {
			return true
		}
	}
	return false
}
